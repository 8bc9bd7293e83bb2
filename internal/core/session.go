// File: internal/core/session.go
package core

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one logical unit of work: a dedicated connection checked out
// of the engine's pool with an open transaction on it. Commit and Rollback
// end the transaction; Close always returns the connection to the pool.
//
// A Session belongs to the calling context that opened it and must not be
// handed to another goroutine while open.
type Session struct {
	id      uuid.UUID
	conn    *sql.Conn
	tx      *sql.Tx
	dialect Dialect
	log     *slog.Logger

	mu     sync.Mutex
	done   bool // transaction committed or rolled back
	closed bool
}

// NewSession checks a connection out of db and opens a transaction on it.
// log may be nil to disable statement echo.
func NewSession(ctx context.Context, db *sql.DB, dialect Dialect, log *slog.Logger) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	s := &Session{
		id:      uuid.New(),
		conn:    conn,
		tx:      tx,
		dialect: dialect,
		log:     log,
	}
	s.echo("session opened")
	return s, nil
}

// ID identifies this session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Dialect returns the placeholder dialect of the bound engine.
func (s *Session) Dialect() Dialect { return s.dialect }

// Query executes a statement with :name parameters and materializes every
// row before returning, so the result outlives the session. Zero rows is a
// valid, non-error result.
func (s *Session) Query(ctx context.Context, query string, params map[string]any) (*Result, error) {
	bound, args, err := BindNamed(query, params, s.dialect)
	if err != nil {
		return nil, err
	}
	return s.Table(ctx, bound, args...)
}

// Exec executes a statement with :name parameters that returns no rows.
func (s *Session) Exec(ctx context.Context, query string, params map[string]any) (sql.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	bound, args, err := BindNamed(query, params, s.dialect)
	if err != nil {
		return nil, err
	}
	s.echo("exec", "query", bound)
	res, err := s.tx.ExecContext(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return res, nil
}

// Select runs a positional-placeholder query inside the session's
// transaction and hands back the live rows. Used by the query builder's
// fetch terminals; callers own the rows handle.
func (s *Session) Select(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	s.echo("select", "query", query)
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

// Table runs a positional-placeholder query and materializes all rows.
func (s *Session) Table(ctx context.Context, query string, args ...any) (*Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	s.echo("query", "query", query)
	started := time.Now()
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return collectRows(rows, started)
}

// Commit commits the session's transaction. The session still needs Close.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.echo("session committed")
	return nil
}

// Rollback rolls the session's transaction back. The session still needs
// Close.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	s.echo("session rolled back")
	return nil
}

// Close returns the connection to the pool. A transaction still open at
// this point is rolled back first. Close never leaks the connection: it is
// released even when the rollback fails, and calling Close twice is safe.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.done {
		s.done = true
		if err := s.tx.Rollback(); err != nil && s.log != nil {
			s.log.Warn("rollback on close failed", "session", s.id, "error", err)
		}
	}
	s.echo("session closed")
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("release connection: %w", err)
	}
	return nil
}

func (s *Session) echo(msg string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.Debug(msg, append([]any{"session", s.id}, args...)...)
}
