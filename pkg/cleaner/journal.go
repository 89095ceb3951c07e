package cleaner

import (
	"sort"
	"time"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

// Journal collects the cleaning operations of one run in the order they happened
type Journal struct {
	runID string
	clock func() time.Time
	ops   []model.CleaningOperation
	byOp  map[string]int
	byCat map[model.FindingCategory]int
}

// NewJournal creates an empty journal for a run
func NewJournal(runID string, clock func() time.Time) *Journal {
	if clock == nil {
		clock = time.Now
	}
	return &Journal{
		runID: runID,
		clock: clock,
		byOp:  make(map[string]int),
		byCat: make(map[model.FindingCategory]int),
	}
}

// Record appends one operation. column is "*" for whole-record operations.
func (j *Journal) Record(
	stage string,
	t *model.Transaction,
	column string,
	original, updated *string,
	operation, reason string,
	category model.FindingCategory,
) {
	rowID := ""
	if t != nil {
		rowID = t.TransactionID
	}
	j.ops = append(j.ops, model.CleaningOperation{
		RunID:             j.runID,
		Stage:             stage,
		ColumnName:        column,
		OriginalValue:     original,
		NewValue:          updated,
		RowIdentifier:     rowID,
		CleaningOperation: operation,
		CleaningReason:    reason,
		Category:          category,
		CleanedAt:         j.clock(),
	})
	j.byOp[operation]++
	j.byCat[category]++
}

// Len returns the number of recorded operations
func (j *Journal) Len() int {
	return len(j.ops)
}

// Operations returns a copy of the recorded operations
func (j *Journal) Operations() []model.CleaningOperation {
	out := make([]model.CleaningOperation, len(j.ops))
	copy(out, j.ops)
	return out
}

// Count returns how many operations of a kind were recorded
func (j *Journal) Count(operation string) int {
	return j.byOp[operation]
}

// OperationCounts returns per-kind counts sorted by kind
func (j *Journal) OperationCounts() []OperationCount {
	out := make([]OperationCount, 0, len(j.byOp))
	for op, n := range j.byOp {
		out = append(out, OperationCount{Operation: op, Count: n})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Operation < out[b].Operation })
	return out
}

// CategoryCounts returns per-category counts
func (j *Journal) CategoryCounts() map[model.FindingCategory]int {
	out := make(map[model.FindingCategory]int, len(j.byCat))
	for c, n := range j.byCat {
		out[c] = n
	}
	return out
}

// OperationCount is the number of operations of one kind
type OperationCount struct {
	Operation string
	Count     int
}

func strPtr(s string) *string {
	return &s
}
