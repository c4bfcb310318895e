package types

import (
	"context"
	"io"
)

// Session is a connection-scoped handle a Strategy executes against.
// Transient server-side objects created through it (temporary tables,
// prepared statements) live only as long as the underlying connection.
type Session interface {
	// Query runs sql and fully materializes the (id, payload) rows it returns.
	Query(ctx context.Context, sql string, args ...any) (RowSet, error)
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) error
	// Prepare creates a named server-side prepared statement.
	Prepare(ctx context.Context, name, sql string) error
	// Deallocate drops a named prepared statement.
	Deallocate(ctx context.Context, name string) error
	// CopyFrom streams r into a COPY ... FROM STDIN statement and returns the row count.
	CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error)
	// TransientObjects lists temporary tables and prepared statements that
	// this session has created and not yet dropped.
	TransientObjects(ctx context.Context) ([]string, error)
	// Reset drops every transient object and cached plan on the session.
	Reset(ctx context.Context) error
	// Release returns the session to its provider.
	Release()
}

// Provider supplies a ready-to-use Session per trial.
type Provider interface {
	Acquire(ctx context.Context) (Session, error)
}

// IdleProvider is a Provider backed by a pool. AcquireAllIdle hands out every
// idle session at once so isolation can reach each pooled connection, not
// just the one the next Acquire would return. Callers release each session.
type IdleProvider interface {
	Provider
	AcquireAllIdle(ctx context.Context) []Session
}

// Strategy is one retrieval approach under comparison. Implementations are
// stateless and may be invoked repeatedly against independent sessions.
type Strategy interface {
	Name() string
	Description() string
	// Execute performs exactly one retrieval and returns the materialized rows.
	// Every transient object it creates is removed before it returns.
	Execute(ctx context.Context, s Session, ids IdentifierSet) (RowSet, error)
}

// Sink receives each finished Summary with its raw samples in trial order.
type Sink interface {
	Report(ctx context.Context, summary Summary, samples []TimingSample) error
	Close() error
}
