// File: internal/core/builder.go
package core

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// QueryBuilder is a generics-based fluent query builder bound to one open
// Session and one mapped entity type. Nothing touches the database until a
// terminal (All, One, Count, Frame) runs. Fetch terminals leave the
// session open so chains can keep exploring; Frame is the end of the
// session's life and always closes it.
type QueryBuilder[T any] struct {
	session     *Session
	table       string
	selectCols  []string
	whereOps    []string
	args        []interface{}
	joinClauses []string
	orderBy     string
	limit       int
	offset      int
}

// NewQueryBuilder starts a query over T's table on the given session. The
// table name is derived from T's struct name (snake_case); override with
// From.
func NewQueryBuilder[T any](s *Session) *QueryBuilder[T] {
	return &QueryBuilder[T]{session: s, table: tableNameOf(reflect.TypeOf((*T)(nil)).Elem())}
}

// Session returns the builder's bound session. Callers using fetch
// terminals close it through here when the chain is done.
func (qb *QueryBuilder[T]) Session() *Session {
	return qb.session
}

// Close closes the bound session.
func (qb *QueryBuilder[T]) Close() error {
	return qb.session.Close()
}

func (qb *QueryBuilder[T]) From(table string) *QueryBuilder[T] {
	qb.table = table
	return qb
}

func (qb *QueryBuilder[T]) Select(cols ...string) *QueryBuilder[T] {
	qb.selectCols = cols
	return qb
}

// Where adds a condition written with ? placeholders; conditions are ANDed.
func (qb *QueryBuilder[T]) Where(cond string, vals ...interface{}) *QueryBuilder[T] {
	qb.whereOps = append(qb.whereOps, cond)
	qb.args = append(qb.args, vals...)
	return qb
}

// Join adds a JOIN clause (e.g. "JOIN other_table ON ...")
func (qb *QueryBuilder[T]) Join(clause string) *QueryBuilder[T] {
	qb.joinClauses = append(qb.joinClauses, clause)
	return qb
}

// OrderBy sets the ORDER BY clause
func (qb *QueryBuilder[T]) OrderBy(order string) *QueryBuilder[T] {
	qb.orderBy = order
	return qb
}

// Limit sets the LIMIT clause
func (qb *QueryBuilder[T]) Limit(n int) *QueryBuilder[T] {
	qb.limit = n
	return qb
}

// Offset sets the OFFSET clause
func (qb *QueryBuilder[T]) Offset(n int) *QueryBuilder[T] {
	qb.offset = n
	return qb
}

// Build assembles the SQL statement in the session's dialect and returns
// it with its args.
func (qb *QueryBuilder[T]) Build() (string, []interface{}) {
	parts := []string{"SELECT"}
	if len(qb.selectCols) > 0 {
		parts = append(parts, strings.Join(qb.selectCols, ", "))
	} else {
		parts = append(parts, "*")
	}
	parts = append(parts, "FROM", qb.table)
	if len(qb.joinClauses) > 0 {
		parts = append(parts, strings.Join(qb.joinClauses, " "))
	}
	if len(qb.whereOps) > 0 {
		parts = append(parts, "WHERE", strings.Join(qb.whereOps, " AND "))
	}
	if qb.orderBy != "" {
		parts = append(parts, "ORDER BY", qb.orderBy)
	}
	if qb.limit > 0 {
		parts = append(parts, fmt.Sprintf("LIMIT %d", qb.limit))
	}
	if qb.offset > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET %d", qb.offset))
	}
	query := strings.Join(parts, " ")
	return Rebind(query, qb.session.Dialect()), qb.args
}

// All executes the built query and scans every row into a slice of T,
// matching snake_case column names to T's fields. The session stays open.
func (qb *QueryBuilder[T]) All(ctx context.Context) ([]T, error) {
	query, args := qb.Build()
	rows, err := qb.session.Select(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	elemType := reflect.TypeOf((*T)(nil)).Elem()
	if elemType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity type %s is not a struct", elemType)
	}
	fieldIdx, err := columnFields(elemType, columns)
	if err != nil {
		return nil, err
	}

	var results []T
	for rows.Next() {
		elemPtr := reflect.New(elemType)
		elemVal := elemPtr.Elem()
		ptrs := make([]interface{}, len(columns))
		for i, f := range fieldIdx {
			ptrs[i] = elemVal.Field(f).Addr().Interface()
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, elemVal.Interface().(T))
	}
	return results, rows.Err()
}

// One fetches a single record into T; sql.ErrNoRows when nothing matches.
func (qb *QueryBuilder[T]) One(ctx context.Context) (T, error) {
	qb.limit = 1
	items, err := qb.All(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(items) == 0 {
		var zero T
		return zero, sql.ErrNoRows
	}
	return items[0], nil
}

// Count returns the count of matching records, keeping only the WHERE and
// JOIN clauses of the chain. The session stays open.
func (qb *QueryBuilder[T]) Count(ctx context.Context) (int64, error) {
	originalCols := qb.selectCols
	originalOrder, originalLimit, originalOffset := qb.orderBy, qb.limit, qb.offset
	qb.selectCols = []string{"COUNT(*)"}
	qb.orderBy, qb.limit, qb.offset = "", 0, 0
	query, args := qb.Build()
	qb.selectCols = originalCols
	qb.orderBy, qb.limit, qb.offset = originalOrder, originalLimit, originalOffset

	rows, err := qb.session.Select(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var count int64
	if !rows.Next() {
		return 0, rows.Err()
	}
	if err := rows.Scan(&count); err != nil {
		return 0, err
	}
	return count, rows.Err()
}

// Frame executes the composed statement directly against the bound
// connection and materializes the tabular result, skipping per-entity
// scanning. This terminal ends the session's life: the session is closed
// whether or not the query succeeds.
func (qb *QueryBuilder[T]) Frame(ctx context.Context) (*Result, error) {
	defer qb.session.Close()
	query, args := qb.Build()
	return qb.session.Table(ctx, query, args...)
}

// columnFields maps each result column to the index of the struct field
// whose snake_case name matches it.
func columnFields(t reflect.Type, columns []string) ([]int, error) {
	byName := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		byName[snakeCase(f.Name)] = i
	}
	idx := make([]int, len(columns))
	for i, col := range columns {
		f, ok := byName[col]
		if !ok {
			return nil, fmt.Errorf("no field on %s for column %q", t.Name(), col)
		}
		idx[i] = f
	}
	return idx, nil
}

// tableNameOf derives a table name from the struct name, e.g. UserOrder
// becomes user_order.
func tableNameOf(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return snakeCase(t.Name())
}

func snakeCase(name string) string {
	out := ""
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			out += "_"
		}
		out += string(unicode.ToLower(r))
	}
	return out
}
