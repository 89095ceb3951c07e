// pkg/converter/values.go
package converter

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/David-Botos/pos-cleaner/pkg/connector"
	"github.com/David-Botos/pos-cleaner/pkg/model"
)

const isoDate = "2006-01-02"

// CleanRowValues returns r's values in CleanedTableMetadata column order
func (c *TypeConverter) CleanRowValues(r model.CleanTransaction) []interface{} {
	return []interface{}{
		r.TransactionID,
		nullableString(r.Item),
		nullableInt(r.Quantity),
		c.money(r.PricePerUnit),
		c.money(r.TotalSpent),
		nullableString(r.PaymentMethod),
		nullableString(r.Location),
		c.date(r.TransactionDate),
		nullableString(r.DayOfWeek),
		nullableString(r.TransactionMonth),
	}
}

// AuditRowValues returns op's values in AuditTableMetadata column order
func (c *TypeConverter) AuditRowValues(op model.CleaningOperation) []interface{} {
	return []interface{}{
		op.ID,
		op.RunID,
		op.Stage,
		op.ColumnName,
		nullablePtr(op.OriginalValue),
		nullablePtr(op.NewValue),
		op.RowIdentifier,
		op.CleaningOperation,
		op.CleaningReason,
		op.Category.String(),
		c.timestamp(op.CleanedAt),
	}
}

// money renders a two-decimal value as text; every dialect parses it exactly
func (c *TypeConverter) money(v decimal.NullDecimal) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Decimal.StringFixed(2)
}

func (c *TypeConverter) date(d model.NullDate) interface{} {
	if !d.Valid {
		return nil
	}
	if c.dialect == connector.DialectSQLite {
		return d.Date.String()
	}
	return d.Date.In(time.UTC)
}

func (c *TypeConverter) timestamp(t time.Time) interface{} {
	if c.dialect == connector.DialectSQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t
}

func nullableString(s sql.NullString) interface{} {
	if !s.Valid {
		return nil
	}
	return s.String
}

func nullableInt(i sql.NullInt64) interface{} {
	if !i.Valid {
		return nil
	}
	return i.Int64
}

func nullablePtr(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// ToRawText converts a value scanned from a source database into raw text.
// NULL stays nil; everything else is rendered the way a CSV export would.
func ToRawText(value interface{}) (*string, error) {
	var s string
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int:
		s = strconv.Itoa(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		s = strconv.FormatBool(v)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			s = v.Format(isoDate)
		} else {
			s = v.Format("2006-01-02 15:04:05")
		}
	case fmt.Stringer:
		s = v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %T to text: %w", value, err)
		}
		s = string(b)
	}
	return &s, nil
}
