// File: internal/core/dialect.go
package core

import (
	"fmt"
	"strings"
	"unicode"
)

// Dialect describes how a SQL driver formats bind placeholders.
type Dialect interface {
	// Name is the database/sql driver name used with sql.Open.
	Name() string

	// Placeholder returns the placeholder for the n-th bound value
	// (1-based), e.g. "?" for SQLite, "$1" for Postgres.
	Placeholder(position int) string
}

// PostgresDialect formats $N placeholders for lib/pq.
type PostgresDialect struct{}

func (PostgresDialect) Name() string                { return "postgres" }
func (PostgresDialect) Placeholder(position int) string { return fmt.Sprintf("$%d", position) }

// SQLiteDialect formats ? placeholders for mattn/go-sqlite3.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string                { return "sqlite3" }
func (SQLiteDialect) Placeholder(position int) string { return "?" }

// QuestionDialect formats ? placeholders for any driver using ODBC-style
// binding. Name is the driver the caller registered.
type QuestionDialect struct {
	Driver string
}

func (d QuestionDialect) Name() string                { return d.Driver }
func (d QuestionDialect) Placeholder(position int) string { return "?" }

// BindNamed rewrites :name placeholders in query to the dialect's
// positional form and returns the bound values in placeholder order.
// Parameter values are never spliced into the statement text.
//
// A double colon (Postgres cast syntax) and colons inside single-quoted
// literals are left untouched. A :name with no entry in params is an
// error.
func BindNamed(query string, params map[string]any, d Dialect) (string, []any, error) {
	if len(params) == 0 && !strings.Contains(query, ":") {
		return query, nil, nil
	}

	var (
		out      strings.Builder
		args     []any
		inQuote  bool
		position int
	)
	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'':
			inQuote = !inQuote
			out.WriteRune(r)
		case !inQuote && r == ':' && i+1 < len(runes) && runes[i+1] == ':':
			// cast operator, keep both colons
			out.WriteString("::")
			i++
		case !inQuote && r == ':' && i+1 < len(runes) && isNameStart(runes[i+1]):
			j := i + 1
			for j < len(runes) && isNameRune(runes[j]) {
				j++
			}
			name := string(runes[i+1 : j])
			val, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("bind: %w: %s", ErrMissingParam, name)
			}
			position++
			out.WriteString(d.Placeholder(position))
			args = append(args, val)
			i = j - 1
		default:
			out.WriteRune(r)
		}
	}
	return out.String(), args, nil
}

// Rebind rewrites ? placeholders to the dialect's positional form. Used by
// the query builder, whose conditions are written with ? regardless of
// backend.
func Rebind(query string, d Dialect) string {
	if (d.Placeholder(1)) == "?" {
		return query
	}
	var (
		out      strings.Builder
		inQuote  bool
		position int
	)
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			out.WriteRune(r)
		case !inQuote && r == '?':
			position++
			out.WriteString(d.Placeholder(position))
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
