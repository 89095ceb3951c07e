package transfer

import (
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/pos-cleaner/pkg/cleaner"
	"github.com/David-Botos/pos-cleaner/pkg/sink"
)

// RunJob identifies one execution of the pipeline
type RunJob struct {
	ID         string
	Source     string
	RandomSeed uint64
	StartedAt  time.Time
}

// NewRunJob creates a job with a fresh run ID
func NewRunJob(source string, seed uint64) RunJob {
	return RunJob{
		ID:         uuid.NewString(),
		Source:     source,
		RandomSeed: seed,
		StartedAt:  time.Now(),
	}
}

// RunResult is everything a completed run produced
type RunResult struct {
	Job          RunJob
	Cleaning     *cleaner.Result
	Verification *VerificationReport
	Outputs      []sink.WriteResult
	Metrics      *RunMetrics
	CompletedAt  time.Time
}

// Digest returns the digest of the CSV export, or "" when none was written
func (r *RunResult) Digest() string {
	for _, out := range r.Outputs {
		if out.Digest != "" {
			return out.Digest
		}
	}
	return ""
}

// Duration returns how long the run took
func (r *RunResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return time.Since(r.Job.StartedAt)
	}
	return r.CompletedAt.Sub(r.Job.StartedAt)
}
