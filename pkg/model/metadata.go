// pkg/model/metadata.go
package model

import "strings"

// Canonical column names of the raw point-of-sale table
const (
	ColTransactionID   = "transaction_id"
	ColItem            = "item"
	ColQuantity        = "quantity"
	ColPricePerUnit    = "price_per_unit"
	ColTotalSpent      = "total_spent"
	ColPaymentMethod   = "payment_method"
	ColLocation        = "location"
	ColTransactionDate = "transaction_date"

	// Derived during enrichment only
	ColDayOfWeek        = "day_of_week"
	ColTransactionMonth = "transaction_month"
)

// RawColumns lists the raw table columns in their documented order
var RawColumns = []string{
	ColTransactionID,
	ColItem,
	ColQuantity,
	ColPricePerUnit,
	ColTotalSpent,
	ColPaymentMethod,
	ColLocation,
	ColTransactionDate,
}

// OutputColumns lists the projection columns in export order
var OutputColumns = []string{
	ColTransactionID,
	ColItem,
	ColQuantity,
	ColPricePerUnit,
	ColTotalSpent,
	ColPaymentMethod,
	ColLocation,
	ColTransactionDate,
	ColDayOfWeek,
	ColTransactionMonth,
}

// TableMetadata contains the structure information for a database table
type TableMetadata struct {
	Schema      string   // Schema name (may be empty)
	Table       string   // Table name
	Columns     []Column // Column definitions
	PrimaryKeys []string // List of primary key column names
}

// Column represents metadata about a table column
type Column struct {
	Name         string // Column name
	DataType     string // Logical type: TEXT, INTEGER, DECIMAL(10,2), DATE
	Nullable     bool   // Whether column allows NULL values
	IsPrimaryKey bool   // Whether column is part of primary key
}

// QualifiedName returns schema.table, or just table when no schema is set
func (tm *TableMetadata) QualifiedName() string {
	if tm.Schema == "" {
		return tm.Table
	}
	return tm.Schema + "." + tm.Table
}

// ColumnNames returns the column names in declaration order
func (tm *TableMetadata) ColumnNames() []string {
	names := make([]string, len(tm.Columns))
	for i, col := range tm.Columns {
		names[i] = col.Name
	}
	return names
}

// CleanedTableMetadata describes the typed output table.
// The transaction ID is not declared as a key: duplicates are only diagnosed.
func CleanedTableMetadata(schema, table string) *TableMetadata {
	return &TableMetadata{
		Schema: schema,
		Table:  table,
		Columns: []Column{
			{Name: ColTransactionID, DataType: "TEXT"},
			{Name: ColItem, DataType: "TEXT", Nullable: true},
			{Name: ColQuantity, DataType: "INTEGER", Nullable: true},
			{Name: ColPricePerUnit, DataType: "DECIMAL(10,2)", Nullable: true},
			{Name: ColTotalSpent, DataType: "DECIMAL(10,2)", Nullable: true},
			{Name: ColPaymentMethod, DataType: "TEXT", Nullable: true},
			{Name: ColLocation, DataType: "TEXT", Nullable: true},
			{Name: ColTransactionDate, DataType: "DATE", Nullable: true},
			{Name: ColDayOfWeek, DataType: "TEXT", Nullable: true},
			{Name: ColTransactionMonth, DataType: "TEXT", Nullable: true},
		},
	}
}

// Audit table columns
const (
	AuditColID                = "id"
	AuditColRunID             = "run_id"
	AuditColStage             = "stage"
	AuditColColumnName        = "column_name"
	AuditColOriginalValue     = "original_value"
	AuditColNewValue          = "new_value"
	AuditColRowIdentifier     = "row_identifier"
	AuditColCleaningOperation = "cleaning_operation"
	AuditColCleaningReason    = "cleaning_reason"
	AuditColCategory          = "category"
	AuditColCleanedAt         = "cleaned_at"
)

// AuditTableMetadata describes the table cleaning operations are journaled to
func AuditTableMetadata(schema, table string) *TableMetadata {
	return &TableMetadata{
		Schema: schema,
		Table:  table,
		Columns: []Column{
			{Name: AuditColID, DataType: "TEXT", IsPrimaryKey: true},
			{Name: AuditColRunID, DataType: "TEXT"},
			{Name: AuditColStage, DataType: "TEXT"},
			{Name: AuditColColumnName, DataType: "TEXT"},
			{Name: AuditColOriginalValue, DataType: "TEXT", Nullable: true},
			{Name: AuditColNewValue, DataType: "TEXT", Nullable: true},
			{Name: AuditColRowIdentifier, DataType: "TEXT"},
			{Name: AuditColCleaningOperation, DataType: "TEXT"},
			{Name: AuditColCleaningReason, DataType: "TEXT"},
			{Name: AuditColCategory, DataType: "TEXT"},
			{Name: AuditColCleanedAt, DataType: "TIMESTAMP"},
		},
		PrimaryKeys: []string{AuditColID},
	}
}

// CanonicalColumn maps a loader header such as "Price Per Unit" or
// "TRANSACTION_ID" onto a canonical column name. ok is false for unknown headers.
func CanonicalColumn(header string) (string, bool) {
	name := NormalizeColumnName(header)
	name = strings.Join(strings.Fields(strings.ReplaceAll(name, "_", " ")), "_")
	for _, col := range RawColumns {
		if col == name {
			return col, true
		}
	}
	return "", false
}

// NormalizeColumnName lowercases and trims a column name
func NormalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
