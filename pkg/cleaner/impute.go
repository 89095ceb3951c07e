package cleaner

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

const imputerName = "missing_value_imputer"

// Drop reasons
const (
	DropTwoOrMoreMissing = "two_or_more_numeric_missing"
	DropZeroUnitPrice    = "zero_unit_price"
	DropZeroQuantity     = "zero_quantity"
	DropQuantityOverflow = "quantity_out_of_range"
)

// MissingValueImputer reconstructs one missing numeric field from the other two
// using total_spent = quantity * unit_price, and drops records it cannot repair.
type MissingValueImputer struct{}

// Name implements Stage
func (MissingValueImputer) Name() string { return imputerName }

// Apply implements Stage
func (MissingValueImputer) Apply(b *Batch) {
	imputed := 0
	dropped := b.drop(imputerName, func(t *model.Transaction) (string, []string) {
		reason, missing, changed := imputeNumeric(b.journal, t)
		if changed {
			imputed++
		}
		return reason, missing
	})

	b.logger.Info("Imputed numeric fields",
		zap.String("stage", imputerName),
		zap.Int("imputed", imputed),
		zap.Int("dropped", dropped))
}

// imputeNumeric repairs t in place. It returns a non-empty drop reason when the
// record is unrecoverable.
func imputeNumeric(j *Journal, t *model.Transaction) (reason string, missing []string, changed bool) {
	if !t.Quantity.Valid {
		missing = append(missing, model.ColQuantity)
	}
	if !t.PricePerUnit.Valid {
		missing = append(missing, model.ColPricePerUnit)
	}
	if !t.TotalSpent.Valid {
		missing = append(missing, model.ColTotalSpent)
	}

	switch {
	case len(missing) == 0:
		return "", nil, false
	case len(missing) > 1:
		return DropTwoOrMoreMissing, missing, false
	}

	qty, price, total := t.Quantity.Decimal, t.PricePerUnit.Decimal, t.TotalSpent.Decimal

	switch missing[0] {
	case model.ColQuantity:
		if price.IsZero() {
			return DropZeroUnitPrice, missing, false
		}
		derived := total.Div(price)
		if !QuantityInRange(derived) {
			return DropQuantityOverflow, missing, false
		}
		t.Quantity = decimal.NullDecimal{Decimal: derived, Valid: true}
		j.Record(imputerName, t, model.ColQuantity, nil, strPtr(t.Quantity.Decimal.String()),
			model.OpImputeQuantity, "total_spent/unit_price", model.FindingNone)
	case model.ColPricePerUnit:
		if qty.IsZero() {
			return DropZeroQuantity, missing, false
		}
		t.PricePerUnit.Decimal = total.Div(qty)
		t.PricePerUnit.Valid = true
		j.Record(imputerName, t, model.ColPricePerUnit, nil, strPtr(t.PricePerUnit.Decimal.String()),
			model.OpImputeUnitPrice, "total_spent/quantity", model.FindingNone)
	case model.ColTotalSpent:
		t.TotalSpent.Decimal = qty.Mul(price)
		t.TotalSpent.Valid = true
		j.Record(imputerName, t, model.ColTotalSpent, nil, strPtr(t.TotalSpent.Decimal.String()),
			model.OpImputeTotalSpent, "quantity*unit_price", model.FindingNone)
	}
	return "", nil, true
}
