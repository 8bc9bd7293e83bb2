package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBindNamed_Postgres(t *testing.T) {
	bound, args, err := BindNamed(
		"SELECT id FROM t WHERE active = :a AND name = :n",
		map[string]any{"a": 1, "n": "joaquim"},
		PostgresDialect{},
	)
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM t WHERE active = $1 AND name = $2", bound)
	require.Equal(t, []any{1, "joaquim"}, args)
}

func TestBindNamed_SQLite(t *testing.T) {
	bound, args, err := BindNamed(
		"SELECT id FROM t WHERE active = :a",
		map[string]any{"a": 1},
		SQLiteDialect{},
	)
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM t WHERE active = ?", bound)
	require.Equal(t, []any{1}, args)
}

func TestBindNamed_RepeatedParam(t *testing.T) {
	bound, args, err := BindNamed(
		"SELECT * FROM t WHERE a = :x OR b = :x",
		map[string]any{"x": 7},
		PostgresDialect{},
	)
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM t WHERE a = $1 OR b = $2", bound)
	require.Equal(t, []any{7, 7}, args)
}

func TestBindNamed_MissingParam(t *testing.T) {
	_, _, err := BindNamed("SELECT * FROM t WHERE a = :x", nil, SQLiteDialect{})
	require.ErrorIs(t, err, ErrMissingParam)
}

func TestBindNamed_CastUntouched(t *testing.T) {
	bound, args, err := BindNamed(
		"SELECT id::text FROM t WHERE a = :x",
		map[string]any{"x": 1},
		PostgresDialect{},
	)
	require.NoError(t, err)
	require.Equal(t, "SELECT id::text FROM t WHERE a = $1", bound)
	require.Len(t, args, 1)
}

func TestBindNamed_QuotedColonUntouched(t *testing.T) {
	bound, args, err := BindNamed(
		"SELECT ':x' AS lit FROM t WHERE a = :x",
		map[string]any{"x": true},
		SQLiteDialect{},
	)
	require.NoError(t, err)
	require.Equal(t, "SELECT ':x' AS lit FROM t WHERE a = ?", bound)
	require.Equal(t, []any{true}, args)
}

func TestBindNamed_NoParams(t *testing.T) {
	bound, args, err := BindNamed("SELECT 1", nil, PostgresDialect{})
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", bound)
	require.Empty(t, args)
}

func TestRebind(t *testing.T) {
	require.Equal(t,
		"SELECT * FROM t WHERE a = $1 AND b = $2",
		Rebind("SELECT * FROM t WHERE a = ? AND b = ?", PostgresDialect{}),
	)
	require.Equal(t,
		"SELECT * FROM t WHERE a = ? AND b = ?",
		Rebind("SELECT * FROM t WHERE a = ? AND b = ?", SQLiteDialect{}),
	)
	require.Equal(t,
		"SELECT '?' , a FROM t WHERE b = $1",
		Rebind("SELECT '?' , a FROM t WHERE b = ?", PostgresDialect{}),
	)
}
