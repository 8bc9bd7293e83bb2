// Package dbman is a database-access facade unifying raw parameterized SQL
// and a fluent query builder behind one connection/session manager.
//
// A Manager owns one engine handle (a *sql.DB bound to one connection
// URL). Units of work acquire context-scoped sessions through WithSession,
// which guarantees commit on success, rollback on failure, and close on
// every exit path. Both execution modes produce the same materialized
// tabular result shape.
package dbman

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/quimdev/dbman/internal/core"
)

// probeTimeout bounds the construction-time liveness probe.
const probeTimeout = 5 * time.Second

// Session is a logical unit-of-work handle bound to the engine.
type Session = core.Session

// Result is a materialized tabular query result.
type Result = core.Result

// Manager owns the engine handle and the scope registry. Construct it
// once per database target; it is safe for concurrent use.
type Manager struct {
	db      *sql.DB
	dialect core.Dialect
	scopes  *core.Registry
	log     *slog.Logger
	echo    bool
	schema  Schema

	mu        sync.Mutex
	connected bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithEcho logs every executed statement at debug level.
func WithEcho() Option {
	return func(m *Manager) { m.echo = true }
}

// WithLogger sets the logger used for probe reports and statement echo.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithSchema makes construction issue idempotent CREATE TABLE DDL for
// every table the schema describes, once connectivity is confirmed.
func WithSchema(schema Schema) Option {
	return func(m *Manager) { m.schema = schema }
}

// New opens the engine for a canonical connection URL (see
// config.BuildURL) and probes connectivity. A failed probe is reported,
// not fatal: the manager is still returned and usable for retry. Only a
// malformed URL or an unregistered driver fails construction.
func New(databaseURL string, opts ...Option) (*Manager, error) {
	driver, dsn, dialect, err := resolveURL(databaseURL)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return FromDB(db, dialect, opts...), nil
}

// FromDB wraps an already-open engine handle. The same construction
// protocol runs: liveness probe (non-fatal) and optional schema DDL.
func FromDB(db *sql.DB, dialect core.Dialect, opts ...Option) *Manager {
	m := &Manager{
		db:      db,
		dialect: dialect,
		scopes:  core.NewRegistry(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("component", "dbman")

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := m.Ping(ctx); err != nil {
		m.log.Warn("database connection failed", "error", err)
		return m
	}
	m.log.Info("database connected")

	if m.schema != nil {
		m.log.Info("creating database tables")
		if err := m.CreateAll(ctx, m.schema); err != nil {
			m.log.Warn("schema create failed", "error", err)
		}
	}
	return m
}

// Ping issues a trivial statement against the engine and records the
// outcome, so Connected reflects the latest known state.
func (m *Manager) Ping(ctx context.Context) error {
	var one int
	err := m.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	m.mu.Lock()
	m.connected = err == nil
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("liveness probe: %w", err)
	}
	return nil
}

// Connected reports the outcome of the most recent probe.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// DB exposes the underlying engine handle.
func (m *Manager) DB() *sql.DB { return m.db }

// Close closes the engine handle and its pool.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Bind attaches a scope identity to ctx. All session acquisitions under
// the returned context share one Session until the owning unit of work
// completes; unbound contexts get a private session per unit of work.
func Bind(ctx context.Context) context.Context {
	return core.Bind(ctx)
}

// WithSession runs body inside the calling context's unit of work.
//
// The context's session is created on first use and reused by nested
// calls under the same bound context. The call that created the session
// owns it: when body returns nil the session is committed, when body
// returns an error it is rolled back and that error is returned unchanged.
// The session is closed on both paths, even when commit or rollback fails.
func (m *Manager) WithSession(ctx context.Context, body func(*Session) error) (err error) {
	s, created, err := m.scopes.Acquire(ctx, func() (*core.Session, error) {
		return core.NewSession(ctx, m.db, m.dialect, m.sessionLogger())
	})
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	if !created {
		// Nested acquisition: the outer unit of work owns termination.
		return body(s)
	}

	defer func() {
		m.scopes.Release(ctx, s)
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if berr := body(s); berr != nil {
		if rerr := s.Rollback(); rerr != nil {
			m.log.Warn("rollback failed", "session", s.ID(), "error", rerr)
		}
		return berr
	}
	return s.Commit()
}

// SQLRaw executes a raw statement with :name parameters inside one unit
// of work and returns the fully materialized result. Parameter values are
// passed to the engine, never spliced into the statement. Zero rows is a
// valid empty result, not an error.
func (m *Manager) SQLRaw(ctx context.Context, query string, params map[string]any) (*Result, error) {
	var res *Result
	err := m.WithSession(ctx, func(s *Session) error {
		r, qerr := s.Query(ctx, query, params)
		if qerr != nil {
			return qerr
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Query starts a fluent query over T's table on a fresh session. Unlike
// SQLRaw the session is not scoped to a unit of work: it stays open across
// chained calls so fetch terminals (All, One, Count) can keep exploring.
// The Frame terminal closes it; after fetch terminals the caller closes
// the builder.
func Query[T any](ctx context.Context, m *Manager) (*core.QueryBuilder[T], error) {
	s, err := core.NewSession(ctx, m.db, m.dialect, m.sessionLogger())
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	return core.NewQueryBuilder[T](s), nil
}

// CreateAll issues CREATE TABLE IF NOT EXISTS for every table the schema
// describes. Safe to call repeatedly; existing tables are skipped.
func (m *Manager) CreateAll(ctx context.Context, schema Schema) error {
	for _, t := range schema.Tables() {
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", t.Name, t.Definition)
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// DropAll drops every table the schema describes, in reverse declaration
// order so dependents go first. Destructive; intended for test teardown.
func (m *Manager) DropAll(ctx context.Context, schema Schema) error {
	tables := schema.Tables()
	for i := len(tables) - 1; i >= 0; i-- {
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s;", tables[i].Name)
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop table %s: %w", tables[i].Name, err)
		}
	}
	return nil
}

func (m *Manager) sessionLogger() *slog.Logger {
	if !m.echo {
		return nil
	}
	return m.log
}
