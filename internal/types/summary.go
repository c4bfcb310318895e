package types

import "time"

// Status describes how a strategy's measuring phase ended.
type Status string

const (
	// StatusComplete means every configured trial produced a sample.
	StatusComplete Status = "complete"
	// StatusRetriesExhausted means a trial failed twice in a row and the
	// remaining trials were abandoned.
	StatusRetriesExhausted Status = "configured_retries_exhausted"
	// StatusCancelled means the run context was cancelled mid-strategy.
	StatusCancelled Status = "cancelled"
)

// TimingSample is one trial's measurement.
type TimingSample struct {
	Strategy string
	Trial    int // 1-based
	Duration time.Duration
	Rows     int
	Warnings []string
}

// Summary holds the reduced statistics for all trials of one strategy.
// It is immutable once handed to a Sink.
type Summary struct {
	RunID          string
	Name           string
	Description    string
	InputSize      int
	RowsReturned   int
	ConfiguredRuns int
	CompletedRuns  int

	Mean   time.Duration
	Median time.Duration
	Min    time.Duration
	Max    time.Duration
	StdDev time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration

	Status   Status
	Partial  bool
	Failure  string
	Warnings []string

	// RowsDigest is the order-independent digest of the last successful trial's rows.
	RowsDigest string
	StartedAt  time.Time
	Elapsed    time.Duration
}

// Failed reports whether the strategy stopped before completing its trials.
func (s *Summary) Failed() bool {
	return s.Status != StatusComplete
}
