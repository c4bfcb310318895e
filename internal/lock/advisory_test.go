package lock

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tryLockQuery = regexp.QuoteMeta(tryLockSQL)
	unlockQuery  = regexp.QuoteMeta(unlockSQL)
)

func boolRow(v bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"result"}).AddRow(v)
}

func TestAdvisoryLock_AcquireAndRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	l := NewAdvisoryLock(db, "bench")

	mock.ExpectQuery(tryLockQuery).WithArgs("bench").WillReturnRows(boolRow(true))
	acquired, err := l.AcquireLock(ctx, TimeoutImmediate)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, l.IsHeld())

	// Re-acquiring a held lock does not hit the database
	acquired, err = l.AcquireLock(ctx, TimeoutImmediate)
	require.NoError(t, err)
	assert.True(t, acquired)

	mock.ExpectQuery(unlockQuery).WithArgs("bench").WillReturnRows(boolRow(true))
	released, err := l.ReleaseLock(ctx)
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, l.IsHeld())

	released, err = l.ReleaseLock(ctx)
	require.NoError(t, err)
	assert.False(t, released, "second release is a no-op")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLock_HeldElsewhere(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(tryLockQuery).WithArgs("bench").WillReturnRows(boolRow(false))

	l := NewAdvisoryLock(db, "bench")
	acquired, err := l.AcquireLock(context.Background(), TimeoutImmediate)
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.False(t, l.IsHeld())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLock_PollsUntilFree(t *testing.T) {
	pollInterval = time.Millisecond
	defer func() { pollInterval = 250 * time.Millisecond }()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(tryLockQuery).WithArgs("bench").WillReturnRows(boolRow(false))
	mock.ExpectQuery(tryLockQuery).WithArgs("bench").WillReturnRows(boolRow(false))
	mock.ExpectQuery(tryLockQuery).WithArgs("bench").WillReturnRows(boolRow(true))

	l := NewAdvisoryLock(db, "bench")
	acquired, err := l.AcquireLock(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLock_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(tryLockQuery).WillReturnError(errors.New("permission denied"))

	l := NewAdvisoryLock(db, "bench")
	acquired, err := l.AcquireLock(context.Background(), TimeoutImmediate)
	assert.False(t, acquired)
	assert.ErrorContains(t, err, "pg_try_advisory_lock")
	assert.False(t, l.IsHeld())
}

func TestAcquireOrFail(t *testing.T) {
	pollInterval = time.Millisecond
	defer func() { pollInterval = 250 * time.Millisecond }()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 2000; i++ {
		mock.ExpectQuery(tryLockQuery).WillReturnRows(boolRow(false))
	}
	mock.MatchExpectationsInOrder(true)

	err = NewAdvisoryLock(db, "bench").AcquireOrFail(context.Background())
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Contains(t, err.Error(), `"bench"`)
}

func TestWithLock(t *testing.T) {
	t.Run("Releases after success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(tryLockQuery).WillReturnRows(boolRow(true))
		mock.ExpectQuery(unlockQuery).WillReturnRows(boolRow(true))

		l := NewAdvisoryLock(db, "bench")
		called := false
		err = l.WithLock(context.Background(), TimeoutImmediate, func() error {
			called = true
			assert.True(t, l.IsHeld())
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
		assert.False(t, l.IsHeld())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Releases after error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(tryLockQuery).WillReturnRows(boolRow(true))
		mock.ExpectQuery(unlockQuery).WillReturnRows(boolRow(true))

		boom := errors.New("boom")
		err = NewAdvisoryLock(db, "bench").WithLock(context.Background(), TimeoutImmediate, func() error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Releases after panic", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(tryLockQuery).WillReturnRows(boolRow(true))
		mock.ExpectQuery(unlockQuery).WillReturnRows(boolRow(true))

		l := NewAdvisoryLock(db, "bench")
		assert.Panics(t, func() {
			_ = l.WithLock(context.Background(), TimeoutImmediate, func() error { panic("strategy bug") })
		})
		assert.False(t, l.IsHeld())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Does not run fn when held elsewhere", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(tryLockQuery).WillReturnRows(boolRow(false))

		err = NewAdvisoryLock(db, "bench").WithLock(context.Background(), TimeoutImmediate, func() error {
			t.Fatal("fn must not run")
			return nil
		})
		assert.ErrorIs(t, err, ErrLockTimeout)
	})
}

func TestGenerateRunLockName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"lookupbench", "lookupbench:run:lookupbench"},
		{"nightly run", "lookupbench:run:nightly_run"},
		{"a'b;c", "lookupbench:run:a_b_c"},
		{"with-dash_1", "lookupbench:run:with-dash_1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, GenerateRunLockName(tt.input))
	}

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "lookupbench:run:x", NewRunLock(db, "x").LockName())
}
