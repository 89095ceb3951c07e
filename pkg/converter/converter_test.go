package converter

import (
	"database/sql"
	"reflect"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/connector"
	"github.com/David-Botos/pos-cleaner/pkg/model"
)

func TestMapType(t *testing.T) {
	tests := []struct {
		logical string
		dialect connector.Dialect
		want    string
		wantErr bool
	}{
		{"TEXT", connector.DialectPostgres, "TEXT", false},
		{"TEXT", connector.DialectSnowflake, "VARCHAR", false},
		{"INTEGER", connector.DialectSnowflake, "NUMBER(38,0)", false},
		{"DECIMAL(10,2)", connector.DialectPostgres, "NUMERIC(10,2)", false},
		{"decimal(10, 2)", connector.DialectSnowflake, "NUMBER(10,2)", false},
		{"DECIMAL(10,2)", connector.DialectSQLite, "TEXT", false},
		{"DATE", connector.DialectPostgres, "DATE", false},
		{"DATE", connector.DialectSQLite, "TEXT", false},
		{"TIMESTAMP", connector.DialectPostgres, "TIMESTAMP WITH TIME ZONE", false},
		{"GEOGRAPHY", connector.DialectPostgres, "TEXT", true},
	}
	for _, tt := range tests {
		c := NewTypeConverter(zap.NewNop(), tt.dialect)
		got, err := c.MapType(tt.logical)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("MapType(%q, %v) = %q, %v; want %q", tt.logical, tt.dialect, got, err, tt.want)
		}
	}
}

func TestGenerateColumnDefinitions(t *testing.T) {
	c := NewTypeConverter(zap.NewNop(), connector.DialectPostgres)
	defs, err := c.GenerateColumnDefinitions(model.CleanedTableMetadata("public", "cleaned"))
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != len(model.OutputColumns) {
		t.Fatalf("got %d definitions", len(defs))
	}
	if defs[0] != `"transaction_id" TEXT NOT NULL` {
		t.Errorf("first definition = %q", defs[0])
	}
	if defs[3] != `"price_per_unit" NUMERIC(10,2) NULL` {
		t.Errorf("price definition = %q", defs[3])
	}

	audit := model.AuditTableMetadata("", "audit")
	if got := PrimaryKeyClause(audit); got != `"id"` {
		t.Errorf("primary key = %q", got)
	}
	if got := QuoteQualifiedName("public", "Cleaned"); got != `"public"."cleaned"` {
		t.Errorf("qualified name = %q", got)
	}
	if got := strings.Join(QuotedColumnNames(audit)[:2], ","); got != `"id","run_id"` {
		t.Errorf("quoted columns = %q", got)
	}
}

func TestCleanRowValues(t *testing.T) {
	row := model.CleanTransaction{
		TransactionID:    "T1",
		Item:             sql.NullString{String: "Tea", Valid: true},
		Quantity:         sql.NullInt64{Int64: 3, Valid: true},
		PricePerUnit:     decimal.NullDecimal{Decimal: decimal.RequireFromString("1.5"), Valid: true},
		TransactionDate:  model.NewNullDate(civil.Date{Year: 2023, Month: time.March, Day: 4}),
		DayOfWeek:        sql.NullString{String: "Saturday", Valid: true},
		TransactionMonth: sql.NullString{String: "March", Valid: true},
	}

	sqlite := NewTypeConverter(zap.NewNop(), connector.DialectSQLite).CleanRowValues(row)
	want := []interface{}{"T1", "Tea", int64(3), "1.50", nil, nil, nil, "2023-03-04", "Saturday", "March"}
	if !reflect.DeepEqual(sqlite, want) {
		t.Errorf("sqlite values = %#v\nwant %#v", sqlite, want)
	}

	pg := NewTypeConverter(zap.NewNop(), connector.DialectPostgres).CleanRowValues(row)
	if d, ok := pg[7].(time.Time); !ok || !d.Equal(time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("postgres date = %#v", pg[7])
	}
}

func TestAuditRowValues(t *testing.T) {
	original := "ERROR"
	op := model.CleaningOperation{
		ID:                "op-1",
		RunID:             "run-1",
		Stage:             "field_normalizer",
		ColumnName:        model.ColItem,
		OriginalValue:     &original,
		RowIdentifier:     "T1",
		CleaningOperation: model.OpSentinelToNull,
		CleaningReason:    "sentinel_ERROR",
		Category:          model.FindingMalformedValue,
		CleanedAt:         time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	got := NewTypeConverter(zap.NewNop(), connector.DialectSQLite).AuditRowValues(op)
	if len(got) != len(model.AuditTableMetadata("", "a").Columns) {
		t.Fatalf("got %d values", len(got))
	}
	if got[4] != "ERROR" || got[5] != nil || got[9] != "MalformedValue" || got[10] != "2024-01-02T03:04:05Z" {
		t.Errorf("values = %#v", got)
	}
}

func TestToRawText(t *testing.T) {
	tests := []struct {
		name  string
		in    interface{}
		want  string
		isNil bool
	}{
		{"nil", nil, "", true},
		{"string", " 2.00 ", " 2.00 ", false},
		{"bytes", []byte("Cash"), "Cash", false},
		{"int", int64(3), "3", false},
		{"float", 2.5, "2.5", false},
		{"date", time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), "2023-01-05", false},
		{"timestamp", time.Date(2023, 1, 5, 9, 30, 0, 0, time.UTC), "2023-01-05 09:30:00", false},
	}
	for _, tt := range tests {
		got, err := ToRawText(tt.in)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if tt.isNil {
			if got != nil {
				t.Errorf("%s: got %q, want nil", tt.name, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("%s: got %v, want %q", tt.name, got, tt.want)
		}
	}
}
