package dbman_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quimdev/dbman"
	"github.com/quimdev/dbman/internal/core"
)

func newMock(t *testing.T) (*dbman.Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Construction-time liveness probe.
	mock.ExpectQuery(`SELECT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	m := dbman.FromDB(db, core.SQLiteDialect{})
	require.True(t, m.Connected())
	return m, mock
}

func TestFromDB_ProbeFailureIsNotFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("connection refused"))

	m := dbman.FromDB(db, core.SQLiteDialect{})
	require.NotNil(t, m)
	assert.False(t, m.Connected())

	// The manager stays usable for retry.
	mock.ExpectQuery(`SELECT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	require.NoError(t, m.Ping(context.Background()))
	assert.True(t, m.Connected())
}

func TestFromDB_CreatesSchemaTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS orders`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	schema := dbman.Tables{
		{Name: "users", Definition: "id INTEGER PRIMARY KEY, email TEXT"},
		{Name: "orders", Definition: "id INTEGER PRIMARY KEY, user_id INTEGER"},
	}
	dbman.FromDB(db, core.SQLiteDialect{}, dbman.WithSchema(schema))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFromDB_SchemaSkippedWhenUnreachable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("connection refused"))

	schema := dbman.Tables{{Name: "users", Definition: "id INTEGER"}}
	m := dbman.FromDB(db, core.SQLiteDialect{}, dbman.WithSchema(schema))
	require.NotNil(t, m)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSession_CommitOnSuccess(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO t`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := m.WithSession(context.Background(), func(s *dbman.Session) error {
		_, err := s.Exec(context.Background(), "INSERT INTO t(v) VALUES (:v)", map[string]any{"v": 1})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSession_RollbackOnFailure(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := m.WithSession(context.Background(), func(s *dbman.Session) error {
		return boom
	})
	// The original error comes back unchanged.
	require.Same(t, boom, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSession_RollbackOnExecutionError(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	execErr := errors.New("syntax error")
	mock.ExpectExec(`BROKEN`).WillReturnError(execErr)
	mock.ExpectRollback()

	err := m.WithSession(context.Background(), func(s *dbman.Session) error {
		_, err := s.Exec(context.Background(), "BROKEN", nil)
		return err
	})
	require.ErrorIs(t, err, execErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSession_NestedAcquisitionReusesSession(t *testing.T) {
	m, mock := newMock(t)

	// One transaction for the whole scope.
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO t`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO t`).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	ctx := dbman.Bind(context.Background())
	var outer, inner *dbman.Session
	err := m.WithSession(ctx, func(s *dbman.Session) error {
		outer = s
		if _, err := s.Exec(ctx, "INSERT INTO t(v) VALUES (:v)", map[string]any{"v": 1}); err != nil {
			return err
		}
		return m.WithSession(ctx, func(s2 *dbman.Session) error {
			inner = s2
			_, err := s2.Exec(ctx, "INSERT INTO t(v) VALUES (:v)", map[string]any{"v": 2})
			return err
		})
	})
	require.NoError(t, err)
	require.Same(t, outer, inner)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRaw_ReturnsRows(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM t WHERE active = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectCommit()

	res, err := m.SQLRaw(context.Background(), "SELECT id FROM t WHERE active = :a", map[string]any{"a": int64(1)})
	require.NoError(t, err)
	require.Equal(t, []string{"id"}, res.Columns)
	require.Equal(t, 2, res.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRaw_EmptyResultIsNotError(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM t`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	res, err := m.SQLRaw(context.Background(), "SELECT id FROM t", nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.True(t, res.Empty())
}

func TestSQLRaw_ExecutionErrorAfterRollback(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT nope`).WillReturnError(errors.New("no such column"))
	mock.ExpectRollback()

	_, err := m.SQLRaw(context.Background(), "SELECT nope", nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDropAll_ReverseOrder(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectExec(`DROP TABLE IF EXISTS orders`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS users`).WillReturnResult(sqlmock.NewResult(0, 0))

	schema := dbman.Tables{
		{Name: "users", Definition: "id INTEGER"},
		{Name: "orders", Definition: "id INTEGER"},
	}
	require.NoError(t, m.DropAll(context.Background(), schema))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_MalformedURL(t *testing.T) {
	_, err := dbman.New("not-a-url")
	require.Error(t, err)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := dbman.New("oracle://localhost/xe")
	require.Error(t, err)
}
