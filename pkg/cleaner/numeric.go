package cleaner

import (
	"database/sql"
	"math"
	"regexp"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

const validatorName = "numeric_validator"

var (
	// quantity: one or more digits
	integerPattern = regexp.MustCompile(`^[0-9]+$`)
	// unit price and total: digits, optionally a single point followed by digits
	decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

	maxQuantity = decimal.NewFromInt(math.MaxInt64)
)

// QuantityInRange reports whether q can be stored as a 64-bit integer quantity
func QuantityInRange(q decimal.Decimal) bool {
	return q.Round(0).LessThanOrEqual(maxQuantity)
}

// NumericValidator accepts or rejects quantity, unit price and total spent.
// It never infers a value.
type NumericValidator struct{}

// Name implements Stage
func (NumericValidator) Name() string { return validatorName }

// Apply implements Stage
func (NumericValidator) Apply(b *Batch) {
	rejected := 0
	for _, t := range b.Records {
		fields := []struct {
			column  string
			text    *sql.NullString
			target  *decimal.NullDecimal
			pattern *regexp.Regexp
		}{
			{model.ColQuantity, &t.QuantityText, &t.Quantity, integerPattern},
			{model.ColPricePerUnit, &t.PricePerUnitText, &t.PricePerUnit, decimalPattern},
			{model.ColTotalSpent, &t.TotalSpentText, &t.TotalSpent, decimalPattern},
		}
		for _, f := range fields {
			value, ok := validateNumeric(*f.text, f.pattern)
			*f.target = value
			if f.text.Valid && !ok {
				rejected++
				b.journal.Record(validatorName, t, f.column, strPtr(f.text.String), nil,
					model.OpInvalidToNull, "pattern_mismatch", model.FindingMalformedValue)
				*f.text = sql.NullString{}
				continue
			}
			if f.column == model.ColQuantity && value.Valid && !QuantityInRange(value.Decimal) {
				rejected++
				b.journal.Record(validatorName, t, f.column, strPtr(f.text.String), nil,
					model.OpInvalidToNull, "out_of_range", model.FindingMalformedValue)
				*f.target = decimal.NullDecimal{}
				*f.text = sql.NullString{}
			}
		}
		t.NumericsComplete = t.Quantity.Valid && t.PricePerUnit.Valid && t.TotalSpent.Valid
	}

	b.logger.Info("Validated numeric fields",
		zap.String("stage", validatorName),
		zap.Int("rejected", rejected))
}

// validateNumeric returns the decimal value of text when it matches pattern.
// ok is false only when a present value was rejected.
func validateNumeric(text sql.NullString, pattern *regexp.Regexp) (decimal.NullDecimal, bool) {
	if !text.Valid || text.String == "" {
		return decimal.NullDecimal{}, !text.Valid
	}
	if !pattern.MatchString(text.String) {
		return decimal.NullDecimal{}, false
	}
	d, err := decimal.NewFromString(text.String)
	if err != nil {
		return decimal.NullDecimal{}, false
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, true
}
