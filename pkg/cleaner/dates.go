package cleaner

import (
	"database/sql"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

const dateRepairerName = "date_repairer"

// DateRepairer parses transaction dates, nulls the unparseable ones, then
// forward-fills missing dates in transaction ID order.
//
// Forward-fill follows identifier order, not calendar recency: a missing date
// takes the date of the nearest earlier record by ID.
type DateRepairer struct {
	Layouts []string
}

// Name implements Stage
func (DateRepairer) Name() string { return dateRepairerName }

// Apply implements Stage
func (r DateRepairer) Apply(b *Batch) {
	layouts := r.Layouts
	if len(layouts) == 0 {
		layouts = DefaultInputDateLayouts
	}

	invalid := 0
	for _, t := range b.Records {
		if !t.DateText.Valid {
			continue
		}
		d, ok := ParseDate(t.DateText.String, layouts)
		if !ok {
			invalid++
			b.journal.Record(dateRepairerName, t, model.ColTransactionDate, strPtr(t.DateText.String), nil,
				model.OpInvalidToNull, "unparseable_date", model.FindingMalformedValue)
			t.DateText = sql.NullString{}
			continue
		}
		t.TransactionDate = model.NewNullDate(d)
	}

	SortByTransactionID(b.Records)
	filled, unfilled := forwardFill(b.Records, func(t *model.Transaction, d civil.Date) {
		b.journal.Record(dateRepairerName, t, model.ColTransactionDate, nil, strPtr(d.String()),
			model.OpForwardFillDate, "previous_by_transaction_id", model.FindingNone)
	})

	if unfilled > 0 {
		b.logger.Warn("Records left without a date: no earlier valid date in ID order",
			zap.String("stage", dateRepairerName),
			zap.Int("count", unfilled))
	}
	b.logger.Info("Repaired transaction dates",
		zap.String("stage", dateRepairerName),
		zap.Int("invalid", invalid),
		zap.Int("forward_filled", filled))
}

// ParseDate parses s as a calendar date using the first matching layout.
// s is expected to be normalized already.
func ParseDate(s string, layouts []string) (civil.Date, bool) {
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(ts), true
		}
	}
	return civil.Date{}, false
}

// SortByTransactionID imposes the stable, lexicographic ID order forward-fill depends on
func SortByTransactionID(records []*model.Transaction) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TransactionID < records[j].TransactionID
	})
}

// forwardFill folds over records in their current order carrying the last valid
// date. onFill is called for every record that received a carried date.
func forwardFill(records []*model.Transaction, onFill func(*model.Transaction, civil.Date)) (filled, unfilled int) {
	var last model.NullDate
	for _, t := range records {
		if t.TransactionDate.Valid {
			last = t.TransactionDate
			continue
		}
		if !last.Valid {
			unfilled++
			continue
		}
		t.TransactionDate = last
		filled++
		if onFill != nil {
			onFill(t, last.Date)
		}
	}
	return filled, unfilled
}
