package transfer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/cleaner"
	"github.com/David-Botos/pos-cleaner/pkg/model"
	"github.com/David-Botos/pos-cleaner/pkg/sink"
)

func sampleMetrics() *RunMetrics {
	m := NewRunMetrics("run-1", zap.NewNop())
	m.RecordLoad(10, 20*time.Millisecond)
	m.RecordCleaning(&cleaner.Result{
		Report: cleaner.Report{
			InputRows:        10,
			OutputRows:       8,
			Dropped:          []cleaner.DroppedRecord{{TransactionID: "T1"}, {TransactionID: "T2"}},
			RecordsWithNulls: 1,
			Operations:       []cleaner.OperationCount{{Operation: model.OpSentinelToNull, Count: 4}},
			Categories:       map[model.FindingCategory]int{model.FindingMalformedValue: 4},
		},
		Timings: []cleaner.StageTiming{{Stage: "numeric_validator", Duration: time.Millisecond}},
	})
	m.RecordWrite(sink.WriteResult{Target: "out.csv", Rows: 8}, 5*time.Millisecond)
	m.Complete()
	return m
}

func TestGenerateMetricsReport(t *testing.T) {
	report := sampleMetrics().GenerateMetricsReport()

	for _, want := range []string{
		"Run Metrics Report",
		"Run ID:                  run-1",
		"Read:                    10",
		"Dropped:                 2",
		"Output:                  8",
		"- numeric_validator:",
		"- out.csv: 8 rows",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestMetricsToJSON(t *testing.T) {
	data, err := sampleMetrics().ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		RunID       string           `json:"runId"`
		RowsDropped int64            `json:"rowsDropped"`
		OpsByKind   map[string]int   `json:"opsByKind"`
		RowsWritten map[string]int64 `json:"rowsWritten"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.RunID != "run-1" || decoded.RowsDropped != 2 || decoded.OpsByKind[model.OpSentinelToNull] != 4 || decoded.RowsWritten["out.csv"] != 8 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.500s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute + 3*time.Second, "2h 5m 3s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPush(t *testing.T) {
	var (
		method, path string
		body         string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := sampleMetrics().Push(context.Background(), srv.URL, "pos_cleaner"); err != nil {
		t.Fatal(err)
	}
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if path != "/metrics/job/pos_cleaner/run_id/run-1" {
		t.Errorf("path = %s", path)
	}
	if body == "" {
		t.Error("empty push body")
	}
}
