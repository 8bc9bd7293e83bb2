// File: internal/core/result.go
package core

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// Result is a fully materialized tabular query result: ordered rows of
// fixed arity plus the column names they came with. Rows stay valid after
// the session that produced them is closed.
type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Len returns the number of rows.
func (r *Result) Len() int { return len(r.Rows) }

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool { return len(r.Rows) == 0 }

// Records projects each row into a column-name keyed map. The projection
// is pure: it does not mutate the result.
func (r *Result) Records() []map[string]any {
	records := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for j, col := range r.Columns {
			rec[col] = row[j]
		}
		records[i] = rec
	}
	return records
}

// WriteCSV writes the result as CSV with a header row. NULL values are
// written as the literal NULL.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(r.Columns))
	for _, row := range r.Rows {
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (r *Result) String() string {
	return fmt.Sprintf("Result(%d rows, columns %v)", len(r.Rows), r.Columns)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// collectRows drains rows into a Result, normalizing []byte-backed text
// where the driver reports raw bytes. The rows handle is closed before
// returning so the result never holds engine resources.
func collectRows(rows *sql.Rows, started time.Time) (*Result, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &Result{
		Columns:  columns,
		Rows:     out,
		Duration: time.Since(started),
	}, nil
}
