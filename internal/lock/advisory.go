// Package lock provides PostgreSQL advisory locking for lookupbench.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeouts for lock acquisition.
const (
	// TimeoutImmediate tries once and returns.
	TimeoutImmediate = time.Duration(0)

	// TimeoutShort is suitable for fast-failing duplicate run detection.
	TimeoutShort = time.Second

	// TimeoutLong allows queueing behind a running benchmark.
	TimeoutLong = time.Minute
)

// pollInterval is how often a waiting AcquireLock retries pg_try_advisory_lock.
var pollInterval = 250 * time.Millisecond

const (
	tryLockSQL = "SELECT pg_try_advisory_lock(hashtextextended($1, 0))"
	unlockSQL  = "SELECT pg_advisory_unlock(hashtextextended($1, 0))"
)

// AdvisoryLock is a session-level PostgreSQL advisory lock keyed by the
// 64-bit hash of a name. Session locks belong to one backend, so the lock
// pins a dedicated connection from the pool until it is released.
type AdvisoryLock struct {
	db       *sql.DB
	conn     *sql.Conn
	lockName string
}

// NewAdvisoryLock creates a new advisory lock with the given name.
// The lock is not acquired until AcquireLock is called.
func NewAdvisoryLock(db *sql.DB, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		db:       db,
		lockName: lockName,
	}
}

// AcquireLock tries to take the lock, polling until timeout elapses.
// It returns false without error when another session holds the lock.
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeout time.Duration) (bool, error) {
	if a.conn != nil {
		return true, nil // Already holding the lock
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve lock connection: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		var locked bool
		if err := conn.QueryRowContext(ctx, tryLockSQL, a.lockName).Scan(&locked); err != nil {
			_ = conn.Close()
			return false, fmt.Errorf("failed to execute pg_try_advisory_lock: %w", err)
		}
		if locked {
			a.conn = conn
			return true, nil
		}
		if !time.Now().Before(deadline) {
			_ = conn.Close()
			return false, nil
		}

		select {
		case <-ctx.Done():
			_ = conn.Close()
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ReleaseLock unlocks and returns the pinned connection to the pool.
// It reports false when the lock was not held.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if a.conn == nil {
		return false, nil // Not holding the lock
	}
	conn := a.conn
	a.conn = nil
	defer conn.Close()

	var released bool
	if err := conn.QueryRowContext(ctx, unlockSQL, a.lockName).Scan(&released); err != nil {
		return false, fmt.Errorf("failed to execute pg_advisory_unlock: %w", err)
	}
	return released, nil
}

// IsHeld returns true if this lock is currently held by this instance.
func (a *AdvisoryLock) IsHeld() bool {
	return a.conn != nil
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// AcquireOrFail acquires the lock with TimeoutShort or returns ErrLockTimeout.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context) error {
	acquired, err := a.AcquireLock(ctx, TimeoutShort)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}
	return nil
}

// WithLock runs fn while holding the lock and releases it on every exit path,
// including a panic in fn.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeout time.Duration, fn func() error) error {
	acquired, err := a.AcquireLock(ctx, timeout)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}

	defer func() {
		// fresh context: ctx may already be cancelled by a signal
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, _ = a.ReleaseLock(releaseCtx)
	}()

	return fn()
}

// GenerateRunLockName namespaces a configured lock name.
// Example: GenerateRunLockName("nightly run") -> "lookupbench:run:nightly_run"
func GenerateRunLockName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)

	return "lookupbench:run:" + sanitized
}

// NewRunLock creates the lock that serializes benchmark runs against one database.
func NewRunLock(db *sql.DB, name string) *AdvisoryLock {
	return NewAdvisoryLock(db, GenerateRunLockName(name))
}
