// Package database provides PostgreSQL connection management for lookupbench.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dbsmedya/lookupbench/internal/config"
	"github.com/dbsmedya/lookupbench/internal/types"
)

const connectAttempts = 3

// Manager owns the connection pool. Benchmark sessions come from Pool;
// administrative work (locking, preflight, result storage) goes through DB,
// a database/sql view over the same pool.
type Manager struct {
	Pool   *pgxpool.Pool
	DB     *sql.DB
	config *config.DatabaseConfig
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.DatabaseConfig) *Manager {
	return &Manager{
		config: cfg,
	}
}

// Connect opens the pool and verifies it with a ping.
func (m *Manager) Connect(ctx context.Context) error {
	if m.config == nil {
		return fmt.Errorf("database configuration is nil")
	}

	pool, err := m.connectWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.Pool = pool
	m.DB = stdlib.OpenDBFromPool(pool)
	return nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(m.config)
	if err != nil {
		return nil, err
	}

	var pool *pgxpool.Pool
	err = retry.Do(
		func() error {
			p, err := pgxpool.NewWithConfig(ctx, poolCfg)
			if err != nil {
				return err
			}
			if err := p.Ping(ctx); err != nil {
				p.Close()
				return err
			}
			pool = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed after %d attempts: %w", connectAttempts, err)
	}
	return pool, nil
}

// PoolConfig parses the DSN and applies pool sizing.
func PoolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid connection settings: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	// No client-side statement cache: every strategy pays its own parse and
	// plan cost, and only statements a strategy prepares by name persist.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeDescribeExec
	return poolCfg, nil
}

// BuildDSN returns the configured URL or a libpq key/value connection string.
func BuildDSN(cfg *config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	values := map[string]string{
		"host":   cfg.Host,
		"port":   strconv.Itoa(cfg.Port),
		"user":   cfg.User,
		"dbname": cfg.Database,
	}
	if cfg.Password != "" {
		values["password"] = cfg.Password
	}
	if cfg.SSLMode != "" {
		values["sslmode"] = cfg.SSLMode
	}
	if cfg.ConnectTimeout > 0 {
		values["connect_timeout"] = strconv.Itoa(cfg.ConnectTimeout)
	}
	if cfg.ApplicationName != "" {
		values["application_name"] = cfg.ApplicationName
	}
	return connectionString(values)
}

// connectionString renders values in sorted key order, single-quoting each value.
func connectionString(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"='"+replacer.Replace(values[k])+"'")
	}
	return strings.Join(parts, " ")
}

// Acquire implements types.Provider. Failures wrap types.ErrResourceAcquisition.
func (m *Manager) Acquire(ctx context.Context) (types.Session, error) {
	if m.Pool == nil {
		return nil, fmt.Errorf("%w: not connected", types.ErrResourceAcquisition)
	}
	conn, err := m.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrResourceAcquisition, err)
	}
	return &Session{conn: conn}, nil
}

// AcquireAllIdle implements types.IdleProvider. Connections held by the
// database/sql view (the run lock among them) are not idle and are skipped.
func (m *Manager) AcquireAllIdle(ctx context.Context) []types.Session {
	if m.Pool == nil {
		return nil
	}
	conns := m.Pool.AcquireAllIdle(ctx)
	sessions := make([]types.Session, 0, len(conns))
	for _, conn := range conns {
		sessions = append(sessions, &Session{conn: conn})
	}
	return sessions
}

// Close closes all database connections gracefully.
func (m *Manager) Close() error {
	var result *multierror.Error

	if m.DB != nil {
		if err := m.DB.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("sql close: %w", err))
		}
		m.DB = nil
	}
	if m.Pool != nil {
		m.Pool.Close()
		m.Pool = nil
	}

	return result.ErrorOrNil()
}

// Ping verifies the pool is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Pool == nil {
		return fmt.Errorf("not connected")
	}
	if err := m.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
