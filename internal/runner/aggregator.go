package runner

import (
	"time"

	"github.com/dbsmedya/lookupbench/internal/stats"
	"github.com/dbsmedya/lookupbench/internal/types"
)

// Aggregator folds one strategy's samples into a Summary. It is owned by a
// single strategy pass and never shared.
type Aggregator struct {
	runID       string
	name        string
	description string
	inputSize   int
	configured  int
	startedAt   time.Time

	samples   []types.TimingSample
	durations []time.Duration
	lastRows  types.RowSet
	warnings  []string
}

// NewAggregator starts an empty aggregation for st.
func NewAggregator(runID string, st types.Strategy, inputSize, configured int) *Aggregator {
	return &Aggregator{
		runID:       runID,
		name:        st.Name(),
		description: st.Description(),
		inputSize:   inputSize,
		configured:  configured,
		startedAt:   time.Now(),
		samples:     make([]types.TimingSample, 0, configured),
		durations:   make([]time.Duration, 0, configured),
	}
}

// Add records a successful trial. rows are kept only until the next Add.
func (a *Aggregator) Add(sample types.TimingSample, rows types.RowSet) {
	a.samples = append(a.samples, sample)
	a.durations = append(a.durations, sample.Duration)
	a.lastRows = rows
	for _, w := range sample.Warnings {
		a.Warn(w)
	}
}

// Warn attaches a message to the summary, ignoring exact repeats.
func (a *Aggregator) Warn(msg string) {
	for _, w := range a.warnings {
		if w == msg {
			return
		}
	}
	a.warnings = append(a.warnings, msg)
}

// Completed returns the number of recorded trials.
func (a *Aggregator) Completed() int {
	return len(a.samples)
}

// Samples returns the raw samples in trial order.
func (a *Aggregator) Samples() []types.TimingSample {
	out := make([]types.TimingSample, len(a.samples))
	copy(out, a.samples)
	return out
}

// Summary finalizes the aggregation. A status other than complete marks the
// summary partial; statistics then cover only the completed trials.
func (a *Aggregator) Summary(status types.Status, failure error) types.Summary {
	r := stats.Summarize(a.durations)

	s := types.Summary{
		RunID:          a.runID,
		Name:           a.name,
		Description:    a.description,
		InputSize:      a.inputSize,
		RowsReturned:   a.lastRows.Len(),
		ConfiguredRuns: a.configured,
		CompletedRuns:  len(a.samples),
		Mean:           r.Mean,
		Median:         r.Median,
		Min:            r.Min,
		Max:            r.Max,
		StdDev:         r.StdDev,
		P50:            r.P50,
		P95:            r.P95,
		P99:            r.P99,
		Status:         status,
		Partial:        status != types.StatusComplete || len(a.samples) < a.configured,
		StartedAt:      a.startedAt,
		Elapsed:        time.Since(a.startedAt),
	}
	if failure != nil {
		s.Failure = failure.Error()
	}
	if len(a.samples) > 0 {
		s.RowsDigest = a.lastRows.Digest()
	}
	if len(a.warnings) > 0 {
		s.Warnings = append([]string(nil), a.warnings...)
	}
	return s
}
