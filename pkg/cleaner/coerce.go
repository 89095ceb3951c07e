package cleaner

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

const coercerName = "type_coercer"

// Coerce finalizes field types and derives day-of-week and month from the
// repaired date. A missing date yields missing derived fields.
func Coerce(b *Batch) []model.CleanTransaction {
	out := make([]model.CleanTransaction, 0, len(b.Records))
	for _, t := range b.Records {
		c := model.CleanTransaction{
			TransactionID:   t.TransactionID,
			Item:            t.Item,
			PaymentMethod:   t.PaymentMethod,
			Location:        t.Location,
			TransactionDate: t.TransactionDate,
			PricePerUnit:    roundMoney(t.PricePerUnit),
			TotalSpent:      roundMoney(t.TotalSpent),

			NumericsComplete: t.NumericsComplete,
		}

		if t.Quantity.Valid {
			q := t.Quantity.Decimal
			if !q.IsInteger() {
				rounded := q.Round(0)
				b.journal.Record(coercerName, t, model.ColQuantity, strPtr(q.String()), strPtr(rounded.String()),
					model.OpRoundQuantity, "non_integral_quantity", model.FindingNone)
				q = rounded
			}
			c.Quantity = sql.NullInt64{Int64: q.IntPart(), Valid: true}
		}

		c.DayOfWeek, c.TransactionMonth = DateFeatures(t.TransactionDate)
		out = append(out, c)
	}
	return out
}

// DateFeatures returns the weekday and month names of d
func DateFeatures(d model.NullDate) (dayOfWeek, month sql.NullString) {
	if !d.Valid {
		return sql.NullString{}, sql.NullString{}
	}
	weekday := d.Date.In(time.UTC).Weekday()
	return sql.NullString{String: weekday.String(), Valid: true},
		sql.NullString{String: d.Date.Month.String(), Valid: true}
}

func roundMoney(v decimal.NullDecimal) decimal.NullDecimal {
	if !v.Valid {
		return v
	}
	return decimal.NullDecimal{Decimal: v.Decimal.Round(2), Valid: true}
}
