// Package runner executes benchmark strategies and reduces their timings.
//
// Strategies run one after another in the configured order and every trial
// of a strategy runs to completion before the next one starts. Nothing here
// runs concurrently: overlapping trials would share server caches and
// connections and skew each other's numbers.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/lookupbench/internal/config"
	"github.com/dbsmedya/lookupbench/internal/logger"
	"github.com/dbsmedya/lookupbench/internal/types"
)

// State is a strategy's position in the benchmark life cycle.
type State int

const (
	StateIdle State = iota
	StateWarmingUp
	StateMeasuring
	StateSummarizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWarmingUp:
		return "warming_up"
	case StateMeasuring:
		return "measuring"
	case StateSummarizing:
		return "summarizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options controls how many trials run and how they are isolated.
type Options struct {
	Iterations   int
	WarmupRuns   int
	TrialTimeout time.Duration // 0 = none
	ColdCache    bool
	RetryDelay   time.Duration
}

// OptionsFromConfig maps the benchmark section onto runner options.
func OptionsFromConfig(cfg *config.BenchmarkConfig) Options {
	return Options{
		Iterations:   cfg.Iterations,
		WarmupRuns:   cfg.WarmupRuns,
		TrialTimeout: cfg.TrialTimeout,
		ColdCache:    cfg.ColdCache,
	}
}

// Result is the outcome of one Run.
type Result struct {
	RunID         string
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	InputSize     int
	Summaries     []types.Summary
	Discrepancies []Discrepancy
	// Errors holds sink failures. Strategy failures live in their Summary.
	Errors []error
}

// Failed returns the summaries of strategies that did not complete.
func (r *Result) Failed() []types.Summary {
	var out []types.Summary
	for i := range r.Summaries {
		if r.Summaries[i].Failed() {
			out = append(out, r.Summaries[i])
		}
	}
	return out
}

// Runner drives every strategy through Idle, WarmingUp, Measuring,
// Summarizing and Done.
type Runner struct {
	provider   types.Provider
	strategies []types.Strategy
	sink       types.Sink
	opts       Options
	logger     *logger.Logger
	runID      string
	state      State

	// OnStateChange, if set, is called on every transition.
	OnStateChange func(strategy string, from, to State)
}

// New creates a Runner. Strategies run in the order given.
func New(provider types.Provider, strategies []types.Strategy, sink types.Sink, opts Options, log *logger.Logger) (*Runner, error) {
	if provider == nil {
		return nil, fmt.Errorf("resource provider is nil")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no strategies to run")
	}
	if sink == nil {
		return nil, fmt.Errorf("reporting sink is nil")
	}
	if opts.Iterations < 1 {
		return nil, fmt.Errorf("iterations must be at least 1, got %d", opts.Iterations)
	}
	if opts.WarmupRuns < 0 {
		return nil, fmt.Errorf("warmup runs cannot be negative, got %d", opts.WarmupRuns)
	}
	if log == nil {
		log = logger.NewDefault()
	}

	runID := uuid.NewString()
	return &Runner{
		provider:   provider,
		strategies: strategies,
		sink:       sink,
		opts:       opts,
		logger:     log.WithRun(runID),
		runID:      runID,
		state:      StateIdle,
	}, nil
}

// RunID identifies this run in every report row.
func (r *Runner) RunID() string {
	return r.runID
}

// State returns the state of the strategy currently being benchmarked.
func (r *Runner) State() State {
	return r.state
}

func (r *Runner) transition(strategy string, to State) {
	from := r.state
	r.state = to
	r.logger.Debugw("State change", "strategy", strategy, "from", from.String(), "to", to.String())
	if r.OnStateChange != nil {
		r.OnStateChange(strategy, from, to)
	}
}

// Run benchmarks every strategy against ids. A failing strategy never stops
// the run; cancelling ctx finishes the current strategy as cancelled and
// skips the rest.
func (r *Runner) Run(ctx context.Context, ids types.IdentifierSet) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}

	result := &Result{
		RunID:     r.runID,
		StartedAt: time.Now(),
		InputSize: ids.Len(),
		Summaries: make([]types.Summary, 0, len(r.strategies)),
	}

	r.logger.Infow("Starting benchmark run",
		"strategies", len(r.strategies),
		"iterations", r.opts.Iterations,
		"identifiers", ids.Len(),
		"warmup_runs", r.opts.WarmupRuns,
		"cold_cache", r.opts.ColdCache,
		"trial_timeout", r.opts.TrialTimeout,
	)

	// Start from a clean session regardless of what ran before this process.
	if warnings := r.isolate(ctx); len(warnings) > 0 {
		r.logger.Warnw("Session was not clean before the first strategy", "objects", warnings)
	}

	var runErr error
	for i, st := range r.strategies {
		if err := ctx.Err(); err != nil {
			r.logger.Warnw("Run cancelled, skipping remaining strategies",
				"skipped", len(r.strategies)-i,
			)
			runErr = err
			break
		}

		summary, err := r.runStrategy(ctx, st, ids)
		result.Summaries = append(result.Summaries, summary)
		if err != nil {
			result.Errors = append(result.Errors, err)
		}
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	result.Discrepancies = CrossCheck(result.Summaries)
	for _, d := range result.Discrepancies {
		r.logger.Warnw("Strategy results disagree with the majority",
			"strategy", d.Strategy,
			"check", d.Check,
			"got", d.Got,
			"want", d.Want,
		)
	}

	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	r.logger.Infow("Benchmark run completed",
		"duration", result.Duration,
		"strategies", len(result.Summaries),
		"failed", len(result.Failed()),
		"discrepancies", len(result.Discrepancies),
	)

	return result, runErr
}

// runStrategy takes one strategy through the full state cycle and hands the
// summary to the sink. The returned error is a sink failure only.
func (r *Runner) runStrategy(ctx context.Context, st types.Strategy, ids types.IdentifierSet) (types.Summary, error) {
	name := st.Name()
	log := r.logger.WithStrategy(name)
	agg := NewAggregator(r.runID, st, ids.Len(), r.opts.Iterations)

	r.transition(name, StateIdle)
	log.Infow("Benchmarking strategy", "description", st.Description())

	if r.opts.WarmupRuns > 0 {
		r.transition(name, StateWarmingUp)
		r.warmUp(ctx, st, ids, log)
	}

	r.transition(name, StateMeasuring)
	status, failure := r.measure(ctx, st, ids, agg, log)

	// Debris left by this strategy is its own defect.
	if warnings := r.isolate(context.WithoutCancel(ctx)); len(warnings) > 0 {
		log.Warnw("Strategy left transient objects behind", "objects", warnings)
		for _, w := range warnings {
			agg.Warn(w)
		}
	}

	r.transition(name, StateSummarizing)
	summary := agg.Summary(status, failure)
	r.logSummary(log, &summary)

	var sinkErr error
	if err := r.sink.Report(context.WithoutCancel(ctx), summary, agg.Samples()); err != nil {
		log.Errorw("Failed to report summary", "error", err)
		sinkErr = fmt.Errorf("report %s: %w", name, err)
	}

	r.transition(name, StateDone)
	return summary, sinkErr
}

// measure runs the configured number of timed trials and returns how the
// phase ended.
func (r *Runner) measure(ctx context.Context, st types.Strategy, ids types.IdentifierSet, agg *Aggregator, log *logger.Logger) (types.Status, error) {
	for trial := 1; trial <= r.opts.Iterations; trial++ {
		if err := ctx.Err(); err != nil {
			return types.StatusCancelled, err
		}

		sample, rows, err := r.trialWithRetry(ctx, st, ids, trial, log)
		if err != nil {
			if ctx.Err() != nil {
				log.Warnw("Strategy cancelled", "trial", trial, "completed", agg.Completed())
				return types.StatusCancelled, err
			}
			log.Errorw("Trial failed twice, abandoning strategy",
				"trial", trial,
				"completed", agg.Completed(),
				"configured", r.opts.Iterations,
				"error", err,
			)
			return types.StatusRetriesExhausted, err
		}
		agg.Add(sample, rows)
	}
	return types.StatusComplete, nil
}

func (r *Runner) warmUp(ctx context.Context, st types.Strategy, ids types.IdentifierSet, log *logger.Logger) {
	for i := 1; i <= r.opts.WarmupRuns; i++ {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := r.runTrial(ctx, st, ids, 0); err != nil {
			log.Warnw("Warm-up run failed", "run", i, "error", err)
		}
	}
	log.Debugw("Warm-up complete", "runs", r.opts.WarmupRuns)
}

func (r *Runner) logSummary(log *logger.Logger, s *types.Summary) {
	fields := []interface{}{
		"status", s.Status,
		"completed", s.CompletedRuns,
		"configured", s.ConfiguredRuns,
		"rows", s.RowsReturned,
		"mean", s.Mean,
		"median", s.Median,
		"p95", s.P95,
		"p99", s.P99,
	}
	if s.Failed() {
		log.Errorw("Strategy failed", append(fields, "error", s.Failure)...)
		return
	}
	log.Infow("Strategy completed", fields...)
}
