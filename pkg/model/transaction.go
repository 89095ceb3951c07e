// pkg/model/transaction.go
package model

import (
	"database/sql"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RawTransaction is one point-of-sale row exactly as the loader supplied it.
// Every field is text; a nil pointer means the source held a NULL.
type RawTransaction struct {
	TransactionID   *string
	Item            *string
	Quantity        *string
	PricePerUnit    *string
	TotalSpent      *string
	PaymentMethod   *string
	Location        *string
	TransactionDate *string
}

// Field returns the raw value of a column by its canonical name
func (r RawTransaction) Field(column string) *string {
	switch column {
	case ColTransactionID:
		return r.TransactionID
	case ColItem:
		return r.Item
	case ColQuantity:
		return r.Quantity
	case ColPricePerUnit:
		return r.PricePerUnit
	case ColTotalSpent:
		return r.TotalSpent
	case ColPaymentMethod:
		return r.PaymentMethod
	case ColLocation:
		return r.Location
	case ColTransactionDate:
		return r.TransactionDate
	default:
		return nil
	}
}

// SetField assigns a raw value by canonical column name; unknown names are ignored
func (r *RawTransaction) SetField(column string, value *string) {
	switch column {
	case ColTransactionID:
		r.TransactionID = value
	case ColItem:
		r.Item = value
	case ColQuantity:
		r.Quantity = value
	case ColPricePerUnit:
		r.PricePerUnit = value
	case ColTotalSpent:
		r.TotalSpent = value
	case ColPaymentMethod:
		r.PaymentMethod = value
	case ColLocation:
		r.Location = value
	case ColTransactionDate:
		r.TransactionDate = value
	}
}

// NullDate is a calendar date that may be missing
type NullDate struct {
	Date  civil.Date
	Valid bool
}

// String renders the row in RawColumns order, separated by "|", with NULL for
// missing values
func (r RawTransaction) String() string {
	parts := make([]string, len(RawColumns))
	for i, col := range RawColumns {
		if v := r.Field(col); v != nil {
			parts[i] = *v
		} else {
			parts[i] = "NULL"
		}
	}
	return strings.Join(parts, "|")
}

// NewNullDate wraps a valid date
func NewNullDate(d civil.Date) NullDate {
	return NullDate{Date: d, Valid: true}
}

// Transaction is the working record mutated in place by the cleaning stages.
//
// Text fields carry what survived normalization. Numeric fields stay as text
// until the numeric validator accepts them into the decimal slots; from then on
// only the decimal slots are authoritative.
type Transaction struct {
	TransactionID string
	HasID         bool

	Item          sql.NullString
	PaymentMethod sql.NullString
	Location      sql.NullString

	QuantityText     sql.NullString
	PricePerUnitText sql.NullString
	TotalSpentText   sql.NullString
	DateText         sql.NullString

	Quantity     decimal.NullDecimal
	PricePerUnit decimal.NullDecimal
	TotalSpent   decimal.NullDecimal

	// NumericsComplete is set by the validator when all three numeric fields were
	// present before imputation.
	NumericsComplete bool

	TransactionDate NullDate

	// Raw is the row as loaded, kept for the journal of dropped records
	Raw RawTransaction
}

// NewTransaction copies a raw row into a working record
func NewTransaction(raw RawTransaction) *Transaction {
	t := &Transaction{Raw: raw}
	if raw.TransactionID != nil {
		t.TransactionID = *raw.TransactionID
		t.HasID = true
	}
	t.Item = nullString(raw.Item)
	t.PaymentMethod = nullString(raw.PaymentMethod)
	t.Location = nullString(raw.Location)
	t.QuantityText = nullString(raw.Quantity)
	t.PricePerUnitText = nullString(raw.PricePerUnit)
	t.TotalSpentText = nullString(raw.TotalSpent)
	t.DateText = nullString(raw.TransactionDate)
	return t
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// CleanTransaction is the typed output of the coercion and enrichment stage
type CleanTransaction struct {
	TransactionID    string
	Item             sql.NullString
	Quantity         sql.NullInt64
	PricePerUnit     decimal.NullDecimal // 2 fractional digits
	TotalSpent       decimal.NullDecimal // 2 fractional digits
	PaymentMethod    sql.NullString
	Location         sql.NullString
	TransactionDate  NullDate
	DayOfWeek        sql.NullString
	TransactionMonth sql.NullString

	// NumericsComplete reports that all three numeric fields came from the input
	NumericsComplete bool
}

// ProjectionRow is the formatted view handed to export collaborators.
// Missing values are empty strings.
type ProjectionRow struct {
	TransactionID    string
	Item             string
	Quantity         string
	PricePerUnit     string
	TotalSpent       string
	PaymentMethod    string
	Location         string
	TransactionDate  string
	DayOfWeek        string
	TransactionMonth string
}

// Values returns the row in OutputColumns order
func (p ProjectionRow) Values() []string {
	return []string{
		p.TransactionID,
		p.Item,
		p.Quantity,
		p.PricePerUnit,
		p.TotalSpent,
		p.PaymentMethod,
		p.Location,
		p.TransactionDate,
		p.DayOfWeek,
		p.TransactionMonth,
	}
}
