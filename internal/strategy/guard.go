package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dbsmedya/lookupbench/internal/types"
)

// TempTable is the connection-scoped table bulk-load strategies fill.
const TempTable = "lookup_ids"

// cleanupTimeout bounds a DROP or DEALLOCATE issued after the trial context ended.
var cleanupTimeout = 5 * time.Second

// cleanupContext survives cancellation of ctx so debris is still removed
// when a trial times out or the run is interrupted.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// withCleanup marks err as an execution failure and attaches a cleanup
// failure, if any. Cleanup failures alone, including ones from a nested
// guard, are never promoted to execution failures.
func withCleanup(err error, object string, cleanupErr error) error {
	if !types.IsCleanupOnly(err) {
		err = types.Execution(err)
	}
	if cleanupErr == nil {
		return err
	}
	ce := &types.CleanupError{Object: object, Err: cleanupErr}
	if err == nil {
		return ce
	}
	return multierror.Append(err, ce)
}

// withTempTable creates TempTable with ddl, runs fn, and drops the table on
// every exit path. Rows from fn are returned even when only the drop failed.
func withTempTable(ctx context.Context, s types.Session, ddl string, fn func() (types.RowSet, error)) (rows types.RowSet, err error) {
	if err := s.Exec(ctx, ddl); err != nil {
		return nil, types.Execution(fmt.Errorf("create %s: %w", TempTable, err))
	}
	defer func() {
		cctx, cancel := cleanupContext(ctx)
		defer cancel()
		err = withCleanup(err, "table "+TempTable, s.Exec(cctx, "DROP TABLE IF EXISTS "+TempTable))
	}()
	return fn()
}

// withPrepared prepares sql under name, runs fn, and deallocates on every exit path.
func withPrepared(ctx context.Context, s types.Session, name, sql string, fn func() (types.RowSet, error)) (rows types.RowSet, err error) {
	if err := s.Prepare(ctx, name, sql); err != nil {
		return nil, types.Execution(fmt.Errorf("prepare %s: %w", name, err))
	}
	defer func() {
		cctx, cancel := cleanupContext(ctx)
		defer cancel()
		err = withCleanup(err, "statement "+name, s.Deallocate(cctx, name))
	}()
	return fn()
}
