package cleaner

import (
	"database/sql"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

const normalizerName = "field_normalizer"

// sentinels are placeholder strings that stand in for missing data.
// Comparison is case sensitive on the trimmed value.
var sentinels = map[string]struct{}{
	"ERROR":   {},
	"UNKNOWN": {},
}

// FieldNormalizer replaces blank and sentinel values with an explicit missing
// marker. It is a pure per-field pass with no cross-field dependency.
type FieldNormalizer struct{}

// Name implements Stage
func (FieldNormalizer) Name() string { return normalizerName }

// Apply implements Stage
func (FieldNormalizer) Apply(b *Batch) {
	nulled, trimmed := 0, 0
	for _, t := range b.Records {
		for _, f := range textFields(t) {
			if !f.value.Valid {
				continue
			}
			original := f.value.String
			cleaned, reason, missing := normalizeText(original)
			switch {
			case missing:
				*f.value = sql.NullString{}
				nulled++
				b.journal.Record(normalizerName, t, f.column, strPtr(original), nil,
					model.OpSentinelToNull, reason, model.FindingMalformedValue)
			case cleaned != original:
				f.value.String = cleaned
				trimmed++
				b.journal.Record(normalizerName, t, f.column, strPtr(original), strPtr(cleaned),
					model.OpTrimWhitespace, "surrounding_whitespace", model.FindingNone)
			}
		}
	}

	b.logger.Info("Normalized fields",
		zap.String("stage", normalizerName),
		zap.Int("nulled", nulled),
		zap.Int("trimmed", trimmed))
}

// normalizeText returns the trimmed value, or missing=true with a reason when
// the value is blank or a sentinel.
func normalizeText(s string) (cleaned string, reason string, missing bool) {
	cleaned = strings.TrimSpace(s)
	// NFKC only decides blankness; stored text and sentinel matching stay literal
	if cleaned == "" || strings.TrimSpace(norm.NFKC.String(cleaned)) == "" {
		return "", "blank", true
	}
	if _, ok := sentinels[cleaned]; ok {
		return "", "sentinel_" + cleaned, true
	}
	return cleaned, "", false
}

type textField struct {
	column string
	value  *sql.NullString
}

// textFields lists every nullable field of a record still held as text
func textFields(t *model.Transaction) []textField {
	return []textField{
		{model.ColItem, &t.Item},
		{model.ColQuantity, &t.QuantityText},
		{model.ColPricePerUnit, &t.PricePerUnitText},
		{model.ColTotalSpent, &t.TotalSpentText},
		{model.ColPaymentMethod, &t.PaymentMethod},
		{model.ColLocation, &t.Location},
		{model.ColTransactionDate, &t.DateText},
	}
}
