package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/cleaner"
	"github.com/David-Botos/pos-cleaner/pkg/sink"
)

// RunMetrics tracks counters and timings for one run
type RunMetrics struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time

	RowsRead     int64
	RowsDropped  int64
	RowsOutput   int64
	RowsWithNull int64
	LoadDuration time.Duration

	StageDurations []cleaner.StageTiming
	OpsByKind      map[string]int
	OpsByCategory  map[string]int

	RowsWritten    map[string]int64
	WriteDurations map[string]time.Duration

	ErrorCounts map[ErrorCategory]int

	logger *zap.Logger
	mu     sync.Mutex
}

// NewRunMetrics creates a new metrics tracker
func NewRunMetrics(runID string, logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		RunID:          runID,
		StartTime:      time.Now(),
		OpsByKind:      make(map[string]int),
		OpsByCategory:  make(map[string]int),
		RowsWritten:    make(map[string]int64),
		WriteDurations: make(map[string]time.Duration),
		ErrorCounts:    make(map[ErrorCategory]int),
		logger:         logger,
	}
}

// RecordLoad records the raw rows read
func (m *RunMetrics) RecordLoad(rows int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RowsRead = int64(rows)
	m.LoadDuration = d
}

// RecordCleaning records the outcome of the cleaning stages
func (m *RunMetrics) RecordCleaning(res *cleaner.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RowsDropped = int64(res.Report.DroppedCount())
	m.RowsOutput = int64(res.Report.OutputRows)
	m.RowsWithNull = int64(res.Report.RecordsWithNulls)
	m.StageDurations = append([]cleaner.StageTiming(nil), res.Timings...)
	for _, op := range res.Report.Operations {
		m.OpsByKind[op.Operation] = op.Count
	}
	for cat, n := range res.Report.Categories {
		m.OpsByCategory[cat.String()] = n
	}
}

// RecordWrite records a completed sink write
func (m *RunMetrics) RecordWrite(res sink.WriteResult, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RowsWritten[res.Target] += res.Rows
	m.WriteDurations[res.Target] += d
}

// RecordError counts a run error by category
func (m *RunMetrics) RecordError(category ErrorCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorCounts[category]++
}

// Complete marks the run as finished
func (m *RunMetrics) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now()

	if m.logger != nil {
		m.logger.Info("Run metrics",
			zap.String("run_id", m.RunID),
			zap.Int64("rows_read", m.RowsRead),
			zap.Int64("rows_dropped", m.RowsDropped),
			zap.Int64("rows_output", m.RowsOutput),
			zap.Duration("duration", m.EndTime.Sub(m.StartTime)))
	}
}

// Duration returns the run duration so far
func (m *RunMetrics) Duration() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// CalculateThroughput returns rows read per second
func (m *RunMetrics) CalculateThroughput() float64 {
	seconds := m.Duration().Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(m.RowsRead) / seconds
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GenerateMetricsReport creates a detailed metrics report
func (m *RunMetrics) GenerateMetricsReport() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, `
Run Metrics Report
==================
Run ID:                  %s
Duration:                %s
Load Time:               %s
Average Throughput:      %.2f rows/sec

Rows
----
Read:                    %d
Dropped:                 %d
Output:                  %d
With Nulls:              %d
`,
		m.RunID,
		formatDuration(m.Duration()),
		formatDuration(m.LoadDuration),
		m.CalculateThroughput(),
		m.RowsRead,
		m.RowsDropped,
		m.RowsOutput,
		m.RowsWithNull,
	)

	if len(m.StageDurations) > 0 {
		sb.WriteString("\nStage Timings\n-------------\n")
		for _, st := range m.StageDurations {
			fmt.Fprintf(&sb, "- %s: %s\n", st.Stage, formatDuration(st.Duration))
		}
	}

	if len(m.OpsByCategory) > 0 {
		sb.WriteString("\nFindings by Category\n--------------------\n")
		for _, cat := range sortedKeys(m.OpsByCategory) {
			fmt.Fprintf(&sb, "- %s: %d\n", cat, m.OpsByCategory[cat])
		}
	}

	if len(m.RowsWritten) > 0 {
		sb.WriteString("\nOutputs\n-------\n")
		for _, target := range sortedKeys(m.RowsWritten) {
			fmt.Fprintf(&sb, "- %s: %d rows in %s\n", target, m.RowsWritten[target], formatDuration(m.WriteDurations[target]))
		}
	}

	if len(m.ErrorCounts) > 0 {
		sb.WriteString("\nErrors\n------\n")
		for cat, n := range m.ErrorCounts {
			fmt.Fprintf(&sb, "- %s: %d\n", cat, n)
		}
	}

	return sb.String()
}

// ToJSON serializes metrics to JSON
func (m *RunMetrics) ToJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stages := make(map[string]string, len(m.StageDurations))
	for _, st := range m.StageDurations {
		stages[st.Stage] = st.Duration.String()
	}

	return json.Marshal(struct {
		RunID         string            `json:"runId"`
		Duration      string            `json:"duration"`
		RowsRead      int64             `json:"rowsRead"`
		RowsDropped   int64             `json:"rowsDropped"`
		RowsOutput    int64             `json:"rowsOutput"`
		RowsWithNull  int64             `json:"rowsWithNull"`
		Stages        map[string]string `json:"stages"`
		OpsByKind     map[string]int    `json:"opsByKind"`
		OpsByCategory map[string]int    `json:"opsByCategory"`
		RowsWritten   map[string]int64  `json:"rowsWritten"`
	}{
		RunID:         m.RunID,
		Duration:      formatDuration(m.Duration()),
		RowsRead:      m.RowsRead,
		RowsDropped:   m.RowsDropped,
		RowsOutput:    m.RowsOutput,
		RowsWithNull:  m.RowsWithNull,
		Stages:        stages,
		OpsByKind:     m.OpsByKind,
		OpsByCategory: m.OpsByCategory,
		RowsWritten:   m.RowsWritten,
	})
}

// Registry builds a Prometheus registry holding the run's gauges
func (m *RunMetrics) Registry() *prometheus.Registry {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg := prometheus.NewRegistry()

	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "posclean_rows",
		Help: "Rows seen by the last run, by phase.",
	}, []string{"phase"})
	rows.WithLabelValues("read").Set(float64(m.RowsRead))
	rows.WithLabelValues("dropped").Set(float64(m.RowsDropped))
	rows.WithLabelValues("output").Set(float64(m.RowsOutput))
	rows.WithLabelValues("with_nulls").Set(float64(m.RowsWithNull))

	written := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "posclean_rows_written",
		Help: "Rows written by the last run, by target.",
	}, []string{"target"})
	for target, n := range m.RowsWritten {
		written.WithLabelValues(target).Set(float64(n))
	}

	stages := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "posclean_stage_duration_seconds",
		Help: "Duration of each cleaning stage in the last run.",
	}, []string{"stage"})
	for _, st := range m.StageDurations {
		stages.WithLabelValues(st.Stage).Set(st.Duration.Seconds())
	}

	findings := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "posclean_cleaning_operations",
		Help: "Cleaning operations journaled by the last run, by finding category.",
	}, []string{"category"})
	for cat, n := range m.OpsByCategory {
		findings.WithLabelValues(cat).Set(float64(n))
	}

	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posclean_run_duration_seconds",
		Help: "Wall time of the last run.",
	})
	duration.Set(m.Duration().Seconds())

	completed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posclean_last_completion_timestamp_seconds",
		Help: "Unix time the last run completed.",
	})
	if !m.EndTime.IsZero() {
		completed.Set(float64(m.EndTime.Unix()))
	}

	reg.MustRegister(rows, written, stages, findings, duration, completed)
	return reg
}

// Push sends the run's gauges to a Prometheus Pushgateway
func (m *RunMetrics) Push(ctx context.Context, url, job string) error {
	err := push.New(url, job).
		Gatherer(m.Registry()).
		Grouping("run_id", m.RunID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	if m.logger != nil {
		m.logger.Info("Pushed run metrics", zap.String("url", url), zap.String("job", job))
	}
	return nil
}
