// pkg/cleaner/cleaner.go
package cleaner

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

// Stage is one ordered pass over the working record set
type Stage interface {
	Name() string
	Apply(b *Batch)
}

// Batch is the working record set of a single run, shared by every stage.
// Stages mutate records in place and may only remove records via drop.
type Batch struct {
	RunID   string
	Records []*model.Transaction
	Dropped []DroppedRecord

	journal *Journal
	logger  *zap.Logger
}

// DroppedRecord is a record the imputer removed from the working set
type DroppedRecord struct {
	TransactionID string
	Reason        string
	Missing       []string
	// Raw is the row as loaded
	Raw model.RawTransaction
}

// StageTiming records how long a stage ran
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Options configures a DataCleaner
type Options struct {
	// InputDateLayouts are tried in order when parsing transaction dates
	InputDateLayouts []string
	// OutputDateLayout formats the projection's date column
	OutputDateLayout string
	// Random drives the weighted item tie-break; required
	Random RandomSource
	// Clock stamps journal entries; defaults to time.Now
	Clock func() time.Time
}

// DefaultInputDateLayouts are accepted when no layouts are configured
var DefaultInputDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// DefaultOutputDateLayout renders day/month/year
const DefaultOutputDateLayout = "02/01/2006"

// Result is everything a cleaning run produces
type Result struct {
	Records    []model.CleanTransaction
	Projection []model.ProjectionRow
	Report     Report
	Operations []model.CleaningOperation
	Timings    []StageTiming
}

// DataCleaner runs the fixed sequence of cleaning stages over a raw table
type DataCleaner struct {
	logger *zap.Logger
	opts   Options
	stages []Stage
}

// NewDataCleaner creates a new DataCleaner instance
func NewDataCleaner(logger *zap.Logger, opts Options) (*DataCleaner, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if opts.Random == nil {
		return nil, errors.New("random source cannot be nil")
	}
	if len(opts.InputDateLayouts) == 0 {
		opts.InputDateLayouts = DefaultInputDateLayouts
	}
	if opts.OutputDateLayout == "" {
		opts.OutputDateLayout = DefaultOutputDateLayout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	// Order matters: numeric validation before arithmetic imputation, imputation
	// before coercion, date repair before date features.
	stages := []Stage{
		FieldNormalizer{},
		NumericValidator{},
		MissingValueImputer{},
		CategoricalCoImputer{},
		DateRepairer{Layouts: opts.InputDateLayouts},
		ItemInferencer{Random: opts.Random},
	}

	return &DataCleaner{
		logger: logger.Named("cleaner"),
		opts:   opts,
		stages: stages,
	}, nil
}

// Clean runs every stage over rows and returns the typed, enriched result.
// Data-quality problems never fail the run; they are journaled and reported.
func (c *DataCleaner) Clean(runID string, rows []model.RawTransaction) (*Result, error) {
	if runID == "" {
		return nil, errors.New("run id cannot be empty")
	}

	journal := NewJournal(runID, c.opts.Clock)
	batch := &Batch{
		RunID:   runID,
		Records: make([]*model.Transaction, 0, len(rows)),
		journal: journal,
		logger:  c.logger,
	}
	for _, raw := range rows {
		batch.Records = append(batch.Records, model.NewTransaction(raw))
	}

	c.logger.Info("Starting cleaning run",
		zap.String("run_id", runID),
		zap.Int("input_rows", len(rows)))

	identifiers := DiagnoseIdentifiers(batch)

	timings := make([]StageTiming, 0, len(c.stages)+1)
	for _, stage := range c.stages {
		start := time.Now()
		stage.Apply(batch)
		timings = append(timings, StageTiming{Stage: stage.Name(), Duration: time.Since(start)})
	}

	start := time.Now()
	records := Coerce(batch)
	SortForOutput(records)
	timings = append(timings, StageTiming{Stage: coercerName, Duration: time.Since(start)})

	projection, err := Project(records, c.opts.OutputDateLayout)
	if err != nil {
		return nil, fmt.Errorf("failed to build projection: %w", err)
	}

	report := BuildReport(len(rows), batch, records, identifiers, journal)

	c.logger.Info("Cleaning run complete",
		zap.String("run_id", runID),
		zap.Int("output_rows", len(records)),
		zap.Int("dropped_rows", len(batch.Dropped)),
		zap.Int("records_with_nulls", report.RecordsWithNulls),
		zap.Int("cleaning_operations", journal.Len()))

	return &Result{
		Records:    records,
		Projection: projection,
		Report:     report,
		Operations: journal.Operations(),
		Timings:    timings,
	}, nil
}

// drop removes the records selected by reasonOf from the working set.
// reasonOf returns an empty reason for records that stay.
func (b *Batch) drop(stage string, reasonOf func(t *model.Transaction) (string, []string)) int {
	kept := b.Records[:0]
	dropped := 0
	for _, t := range b.Records {
		reason, missing := reasonOf(t)
		if reason == "" {
			kept = append(kept, t)
			continue
		}
		dropped++
		b.Dropped = append(b.Dropped, DroppedRecord{
			TransactionID: t.TransactionID,
			Reason:        reason,
			Missing:       missing,
			Raw:           t.Raw,
		})
		b.journal.Record(stage, t, "*", strPtr(t.Raw.String()), nil,
			model.OpDropRecord, reason, model.FindingUnrecoverableRecord)
	}
	for i := len(kept); i < len(b.Records); i++ {
		b.Records[i] = nil
	}
	b.Records = kept
	return dropped
}
