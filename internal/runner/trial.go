package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"github.com/dbsmedya/lookupbench/internal/logger"
	"github.com/dbsmedya/lookupbench/internal/types"
)

// trialAttempts is one run plus at most one retry with the same inputs.
const trialAttempts = 2

// coldCacheStatements run on the trial's session before the timer starts.
var coldCacheStatements = []string{
	"DISCARD PLANS",
	"SELECT pg_stat_reset()",
}

// trialWithRetry runs one trial, retrying it once on any failure unless the
// run itself was cancelled.
func (r *Runner) trialWithRetry(ctx context.Context, st types.Strategy, ids types.IdentifierSet, trial int, log *logger.Logger) (types.TimingSample, types.RowSet, error) {
	var (
		sample types.TimingSample
		rows   types.RowSet
	)

	err := retry.Do(
		func() error {
			s, rs, err := r.runTrial(ctx, st, ids, trial)
			if err != nil {
				return err
			}
			sample, rows = s, rs
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(trialAttempts),
		retry.Delay(r.opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
		retry.OnRetry(func(n uint, err error) {
			if n+1 < trialAttempts {
				log.Warnw("Trial failed, retrying", "trial", trial, "error", err)
			}
		}),
	)
	return sample, rows, err
}

// runTrial is one acquire, time, release cycle. Only the Execute call is
// inside the timed window.
func (r *Runner) runTrial(ctx context.Context, st types.Strategy, ids types.IdentifierSet, trial int) (types.TimingSample, types.RowSet, error) {
	sample := types.TimingSample{Strategy: st.Name(), Trial: trial}

	tctx, cancel := r.trialContext(ctx)
	defer cancel()

	sess, err := r.provider.Acquire(tctx)
	if err != nil {
		return sample, nil, &types.TrialError{Kind: types.ErrResourceAcquisition, Strategy: st.Name(), Trial: trial, Err: err}
	}
	defer sess.Release()

	if r.opts.ColdCache {
		sample.Warnings = append(sample.Warnings, clearCaches(tctx, sess)...)
	}

	start := time.Now()
	rows, err := st.Execute(tctx, sess, ids)
	sample.Duration = time.Since(start)

	if err != nil {
		if !types.IsCleanupOnly(err) {
			return sample, nil, &types.TrialError{Kind: types.ErrExecution, Strategy: st.Name(), Trial: trial, Err: err}
		}
		r.logger.WithStrategy(st.Name()).WithTrial(trial).Warnw("Transient object cleanup failed", "error", err)
		sample.Warnings = append(sample.Warnings, err.Error())
	}

	if err := validateRows(rows, ids.Len()); err != nil {
		return sample, nil, &types.TrialError{Kind: types.ErrExecution, Strategy: st.Name(), Trial: trial, Err: err}
	}
	sample.Rows = len(rows)
	return sample, rows, nil
}

func (r *Runner) trialContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.TrialTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.TrialTimeout)
	}
	return context.WithCancel(ctx)
}

// clearCaches drops cached plans and statistics on the session. Failures
// are returned as warnings; they never fail the trial.
func clearCaches(ctx context.Context, sess types.Session) []string {
	var warnings []string
	for _, stmt := range coldCacheStatements {
		if err := sess.Exec(ctx, stmt); err != nil {
			warnings = append(warnings, fmt.Sprintf("cold cache: %s: %v", stmt, err))
		}
	}
	return warnings
}

// validateRows rejects results no correct lookup can produce.
func validateRows(rows types.RowSet, identifiers int) error {
	if len(rows) > identifiers {
		return fmt.Errorf("returned %d rows for %d identifiers", len(rows), identifiers)
	}
	for _, row := range rows {
		if row.Payload == "" {
			return fmt.Errorf("row %d has an empty payload", row.ID)
		}
	}
	return nil
}

// isolate lists transient objects left on every idle session and resets
// each one. The returned strings describe what was found or what could not
// be checked.
func (r *Runner) isolate(ctx context.Context) []string {
	sessions, err := r.idleSessions(ctx)
	if err != nil {
		r.logger.Warnw("Isolation check skipped", "error", err)
		return nil
	}

	var found []string
	for _, sess := range sessions {
		found = append(found, isolateSession(ctx, sess)...)
		sess.Release()
	}
	return found
}

// idleSessions returns every idle pooled session when the provider can hand
// them out, and a single acquired session otherwise.
func (r *Runner) idleSessions(ctx context.Context) ([]types.Session, error) {
	if pool, ok := r.provider.(types.IdleProvider); ok {
		return pool.AcquireAllIdle(ctx), nil
	}
	sess, err := r.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return []types.Session{sess}, nil
}

func isolateSession(ctx context.Context, sess types.Session) []string {
	var found []string
	objects, err := sess.TransientObjects(ctx)
	if err != nil {
		found = append(found, fmt.Sprintf("transient object check failed: %v", err))
	} else {
		for _, obj := range objects {
			found = append(found, "residual "+obj)
		}
	}

	if err := sess.Reset(ctx); err != nil {
		found = append(found, fmt.Sprintf("session reset failed: %v", err))
	}
	return found
}
