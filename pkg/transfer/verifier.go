package transfer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/connector"
	"github.com/David-Botos/pos-cleaner/pkg/model"
)

// Issue types reported by the verifier
const (
	IssueMissingValue     = "missing_value"
	IssueArithmetic       = "arithmetic_mismatch"
	IssueUnfilledDate     = "unfilled_date"
	IssueDerivedFeature   = "derived_feature"
	IssueOutputOrder      = "output_order"
	IssueRowCountMismatch = "row_count_mismatch"

	defaultVerifyTimeout = 5 * time.Minute
)

// totalTolerance is the largest accepted gap between total and quantity times price
var totalTolerance = decimal.New(1, -2)

// IntegrityIssue represents a data integrity issue
type IntegrityIssue struct {
	IssueType    string
	Description  string
	ColumnName   string
	AffectedRows int64
	Examples     []string // up to maxExamples transaction IDs
}

const maxExamples = 5

// VerificationReport contains the results of verifying a cleaned record set
type VerificationReport struct {
	VerificationTime  time.Time
	RecordsChecked    int
	IntegrityVerified bool
	IntegrityIssues   []IntegrityIssue

	// Row count check against a written table; Target is empty when skipped
	Target          string
	RowCountMatches bool
	ExpectedRows    int64
	TargetRowCount  int64

	Duration time.Duration
}

// Passed reports whether every check that ran succeeded
func (r *VerificationReport) Passed() bool {
	return r.IntegrityVerified && (r.Target == "" || r.RowCountMatches)
}

// String renders a short summary
func (r *VerificationReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Verification\n------------\n")
	fmt.Fprintf(&sb, "Records checked: %d\n", r.RecordsChecked)
	if r.IntegrityVerified {
		sb.WriteString("Integrity:       ok\n")
	} else {
		fmt.Fprintf(&sb, "Integrity:       %d issue(s)\n", len(r.IntegrityIssues))
		for _, issue := range r.IntegrityIssues {
			fmt.Fprintf(&sb, "- %s [%s] %s (%d rows)\n", issue.IssueType, issue.ColumnName, issue.Description, issue.AffectedRows)
		}
	}
	if r.Target != "" {
		fmt.Fprintf(&sb, "Row count:       %d expected, %d in %s\n", r.ExpectedRows, r.TargetRowCount, r.Target)
	}
	return sb.String()
}

// Verifier checks the guarantees of cleaned output
type Verifier struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewVerifier creates a new verifier
func NewVerifier(logger *zap.Logger) *Verifier {
	return &Verifier{
		logger:  logger.Named("verifier"),
		timeout: defaultVerifyTimeout,
	}
}

// WithTimeout sets a custom timeout for database checks
func (v *Verifier) WithTimeout(timeout time.Duration) *Verifier {
	v.timeout = timeout
	return v
}

// issueCollector accumulates affected rows per issue key
type issueCollector struct {
	order  []string
	issues map[string]*IntegrityIssue
}

func newIssueCollector() *issueCollector {
	return &issueCollector{issues: make(map[string]*IntegrityIssue)}
}

func (c *issueCollector) add(issueType, column, description, id string) {
	key := issueType + "/" + column
	issue, ok := c.issues[key]
	if !ok {
		issue = &IntegrityIssue{IssueType: issueType, ColumnName: column, Description: description}
		c.issues[key] = issue
		c.order = append(c.order, key)
	}
	issue.AffectedRows++
	if len(issue.Examples) < maxExamples {
		issue.Examples = append(issue.Examples, id)
	}
}

func (c *issueCollector) list() []IntegrityIssue {
	out := make([]IntegrityIssue, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, *c.issues[key])
	}
	return out
}

// Verify checks records in output order:
//   - item, quantity, unit price and total are present
//   - total matches quantity times unit price when all three came from the input
//   - a missing date only occurs before the first dated record in ID order
//   - day of week and month are present exactly when the date is
//   - records are sorted by date then ID with missing dates last
func (v *Verifier) Verify(records []model.CleanTransaction) *VerificationReport {
	start := time.Now()
	issues := newIssueCollector()

	for i, r := range records {
		id := r.TransactionID
		if !r.Item.Valid {
			issues.add(IssueMissingValue, model.ColItem, "item not inferred", id)
		}
		if !r.Quantity.Valid {
			issues.add(IssueMissingValue, model.ColQuantity, "quantity missing after imputation", id)
		}
		if !r.PricePerUnit.Valid {
			issues.add(IssueMissingValue, model.ColPricePerUnit, "unit price missing after imputation", id)
		}
		if !r.TotalSpent.Valid {
			issues.add(IssueMissingValue, model.ColTotalSpent, "total missing after imputation", id)
		}

		if r.NumericsComplete && r.Quantity.Valid && r.PricePerUnit.Valid && r.TotalSpent.Valid {
			expected := decimal.NewFromInt(r.Quantity.Int64).Mul(r.PricePerUnit.Decimal)
			if expected.Sub(r.TotalSpent.Decimal).Abs().GreaterThan(totalTolerance) {
				issues.add(IssueArithmetic, model.ColTotalSpent, "total differs from quantity x unit price", id)
			}
		}

		if r.DayOfWeek.Valid != r.TransactionDate.Valid || r.TransactionMonth.Valid != r.TransactionDate.Valid {
			issues.add(IssueDerivedFeature, model.ColDayOfWeek, "derived date features disagree with the date", id)
		}

		if i > 0 && outputLess(r, records[i-1]) {
			issues.add(IssueOutputOrder, model.ColTransactionDate, "record out of output order", id)
		}
	}

	for _, id := range unfilledDates(records) {
		issues.add(IssueUnfilledDate, model.ColTransactionDate, "missing date after a dated record in ID order", id)
	}

	report := &VerificationReport{
		VerificationTime: start,
		RecordsChecked:   len(records),
		IntegrityIssues:  issues.list(),
	}
	report.IntegrityVerified = len(report.IntegrityIssues) == 0
	report.Duration = time.Since(start)

	if report.IntegrityVerified {
		v.logger.Info("Output verification successful", zap.Int("records", len(records)))
	} else {
		for _, issue := range report.IntegrityIssues {
			v.logger.Warn("Output integrity issue",
				zap.String("issueType", issue.IssueType),
				zap.String("column", issue.ColumnName),
				zap.Int64("affectedRows", issue.AffectedRows),
				zap.Strings("examples", issue.Examples))
		}
	}
	return report
}

func outputLess(a, b model.CleanTransaction) bool {
	switch {
	case a.TransactionDate.Valid != b.TransactionDate.Valid:
		return a.TransactionDate.Valid
	case a.TransactionDate.Valid && a.TransactionDate.Date != b.TransactionDate.Date:
		return a.TransactionDate.Date.Before(b.TransactionDate.Date)
	default:
		return a.TransactionID < b.TransactionID
	}
}

// unfilledDates returns IDs of undated records that follow a dated record in ID order
func unfilledDates(records []model.CleanTransaction) []string {
	byID := make([]model.CleanTransaction, len(records))
	copy(byID, records)
	sort.SliceStable(byID, func(i, j int) bool { return byID[i].TransactionID < byID[j].TransactionID })

	var (
		seenDate bool
		ids      []string
	)
	for _, r := range byID {
		if r.TransactionDate.Valid {
			seenDate = true
			continue
		}
		if seenDate {
			ids = append(ids, r.TransactionID)
		}
	}
	return ids
}

// VerifyRowCount compares the row count of a written table with the expected count
// and records the outcome on report
func (v *Verifier) VerifyRowCount(
	ctx context.Context,
	conn connector.DatabaseConnector,
	table string,
	expected int64,
	report *VerificationReport,
) error {
	v.logger.Info("Verifying row count", zap.String("table", table))

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := conn.DB().GetContext(ctx, &count, query); err != nil {
		return fmt.Errorf("failed to count rows in %s: %w", table, err)
	}

	report.Target = table
	report.ExpectedRows = expected
	report.TargetRowCount = count
	report.RowCountMatches = count == expected

	if report.RowCountMatches {
		v.logger.Info("Row count verification successful",
			zap.String("table", table),
			zap.Int64("count", count))
	} else {
		v.logger.Warn("Row count mismatch",
			zap.String("table", table),
			zap.Int64("expected", expected),
			zap.Int64("targetCount", count),
			zap.Int64("difference", expected-count))
		report.IntegrityIssues = append(report.IntegrityIssues, IntegrityIssue{
			IssueType:    IssueRowCountMismatch,
			Description:  fmt.Sprintf("expected %d rows, found %d", expected, count),
			AffectedRows: abs64(expected - count),
		})
	}
	return nil
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
