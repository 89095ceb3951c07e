package cleaner

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

// Report summarizes a cleaning run for operator awareness. Nothing in it
// fails the run.
type Report struct {
	InputRows  int
	OutputRows int
	Dropped    []DroppedRecord

	// RecordsWithNulls counts output records with any null among item,
	// quantity, unit price, total spent and transaction date.
	RecordsWithNulls int
	NullsByField     map[string]int

	Identifiers IdentifierDiagnostics

	Operations []OperationCount
	Categories map[model.FindingCategory]int
}

// DuplicateID is a transaction identifier seen more than once in the input
type DuplicateID struct {
	TransactionID string
	Count         int
}

// IdentifierDiagnostics describes violations of the total order over IDs that
// date forward-fill relies on
type IdentifierDiagnostics struct {
	Duplicates []DuplicateID
	MissingIDs int
}

// DroppedCount returns the number of records removed by the imputer
func (r Report) DroppedCount() int {
	return len(r.Dropped)
}

// DiagnoseIdentifiers reports duplicate and missing transaction IDs in the
// working set. Duplicates are flagged, never removed.
func DiagnoseIdentifiers(b *Batch) IdentifierDiagnostics {
	counts := make(map[string]int)
	var diag IdentifierDiagnostics
	for _, t := range b.Records {
		if !t.HasID || strings.TrimSpace(t.TransactionID) == "" {
			diag.MissingIDs++
			if b.journal != nil {
				b.journal.Record("identifier_check", t, model.ColTransactionID, nil, nil,
					model.OpMissingID, "null_or_blank_identifier", model.FindingOrderingPrecondition)
			}
			continue
		}
		counts[t.TransactionID]++
	}

	for id, n := range counts {
		if n > 1 {
			diag.Duplicates = append(diag.Duplicates, DuplicateID{TransactionID: id, Count: n})
		}
	}
	sort.Slice(diag.Duplicates, func(i, j int) bool {
		return diag.Duplicates[i].TransactionID < diag.Duplicates[j].TransactionID
	})

	if b.journal != nil {
		for _, d := range diag.Duplicates {
			b.journal.Record("identifier_check", &model.Transaction{TransactionID: d.TransactionID},
				model.ColTransactionID, nil, nil, model.OpDuplicateID,
				"occurrences_"+strconv.Itoa(d.Count), model.FindingOrderingPrecondition)
		}
	}
	if b.logger != nil && (len(diag.Duplicates) > 0 || diag.MissingIDs > 0) {
		b.logger.Warn("Transaction identifiers are not a total order",
			zap.Int("duplicate_ids", len(diag.Duplicates)),
			zap.Int("missing_ids", diag.MissingIDs))
	}
	return diag
}

// BuildReport assembles the run report from the final records
func BuildReport(
	inputRows int,
	b *Batch,
	records []model.CleanTransaction,
	identifiers IdentifierDiagnostics,
	journal *Journal,
) Report {
	nulls := map[string]int{
		model.ColItem:            0,
		model.ColQuantity:        0,
		model.ColPricePerUnit:    0,
		model.ColTotalSpent:      0,
		model.ColTransactionDate: 0,
	}
	withNulls := 0
	for _, r := range records {
		missing := false
		for col, null := range map[string]bool{
			model.ColItem:            !r.Item.Valid,
			model.ColQuantity:        !r.Quantity.Valid,
			model.ColPricePerUnit:    !r.PricePerUnit.Valid,
			model.ColTotalSpent:      !r.TotalSpent.Valid,
			model.ColTransactionDate: !r.TransactionDate.Valid,
		} {
			if null {
				nulls[col]++
				missing = true
			}
		}
		if missing {
			withNulls++
		}
	}

	report := Report{
		InputRows:        inputRows,
		OutputRows:       len(records),
		Dropped:          append([]DroppedRecord(nil), b.Dropped...),
		RecordsWithNulls: withNulls,
		NullsByField:     nulls,
		Identifiers:      identifiers,
	}
	if journal != nil {
		report.Operations = journal.OperationCounts()
		report.Categories = journal.CategoryCounts()
	}
	return report
}

// SortForOutput orders records by transaction date ascending, ties by
// transaction ID, with missing dates last
func SortForOutput(records []model.CleanTransaction) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case a.TransactionDate.Valid != b.TransactionDate.Valid:
			return a.TransactionDate.Valid
		case a.TransactionDate.Valid && a.TransactionDate.Date != b.TransactionDate.Date:
			return a.TransactionDate.Date.Before(b.TransactionDate.Date)
		default:
			return a.TransactionID < b.TransactionID
		}
	})
}

// Project formats records into the export view: 2-decimal money and the
// configured date layout. Records keep their order.
func Project(records []model.CleanTransaction, dateLayout string) ([]model.ProjectionRow, error) {
	if dateLayout == "" {
		return nil, errors.New("date layout cannot be empty")
	}
	rows := make([]model.ProjectionRow, 0, len(records))
	for _, r := range records {
		row := model.ProjectionRow{
			TransactionID:    r.TransactionID,
			Item:             r.Item.String,
			PaymentMethod:    r.PaymentMethod.String,
			Location:         r.Location.String,
			DayOfWeek:        r.DayOfWeek.String,
			TransactionMonth: r.TransactionMonth.String,
		}
		if r.Quantity.Valid {
			row.Quantity = strconv.FormatInt(r.Quantity.Int64, 10)
		}
		if r.PricePerUnit.Valid {
			row.PricePerUnit = r.PricePerUnit.Decimal.StringFixed(2)
		}
		if r.TotalSpent.Valid {
			row.TotalSpent = r.TotalSpent.Decimal.StringFixed(2)
		}
		if r.TransactionDate.Valid {
			row.TransactionDate = r.TransactionDate.Date.In(time.UTC).Format(dateLayout)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// String renders the report as plain text
func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Cleaning Report\n===============\n")
	fmt.Fprintf(&sb, "Input rows:              %d\n", r.InputRows)
	fmt.Fprintf(&sb, "Dropped (unrecoverable): %d\n", r.DroppedCount())
	fmt.Fprintf(&sb, "Output rows:             %d\n", r.OutputRows)
	fmt.Fprintf(&sb, "Records with nulls:      %d\n", r.RecordsWithNulls)

	fmt.Fprintf(&sb, "\nNulls by field\n--------------\n")
	fields := make([]string, 0, len(r.NullsByField))
	for f := range r.NullsByField {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(&sb, "- %s: %d\n", f, r.NullsByField[f])
	}

	if len(r.Identifiers.Duplicates) > 0 || r.Identifiers.MissingIDs > 0 {
		fmt.Fprintf(&sb, "\nIdentifier findings\n-------------------\n")
		fmt.Fprintf(&sb, "- missing ids: %d\n", r.Identifiers.MissingIDs)
		for _, d := range r.Identifiers.Duplicates {
			fmt.Fprintf(&sb, "- duplicate %s: %d\n", d.TransactionID, d.Count)
		}
	}

	if len(r.Operations) > 0 {
		fmt.Fprintf(&sb, "\nCleaning operations\n-------------------\n")
		for _, op := range r.Operations {
			fmt.Fprintf(&sb, "- %s: %d\n", op.Operation, op.Count)
		}
	}
	return sb.String()
}
