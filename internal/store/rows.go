package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/querylift/internal/ir"
)

// Row maps column names to values.
type Row map[string]ir.IRValue

// Insert adds rows to table. Columns a row leaves out get their default.
func (s *Store) Insert(ctx context.Context, table string, rows ...Row) error {
	for i, row := range rows {
		cols := make([]string, 0, len(row))
		for c := range row {
			cols = append(cols, c)
		}
		slices.Sort(cols)

		quoted := make([]string, len(cols))
		marks := make([]string, len(cols))
		args := make([]any, len(cols))
		for j, c := range cols {
			v, err := ir.DriverValue(row[c])
			if err != nil {
				return fmt.Errorf("insert %s row %d column %s: %w", table, i, c, err)
			}
			quoted[j], marks[j], args[j] = quote(c), "?", v
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
		if err := s.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
	}
	return nil
}

// Result holds the rows of one query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Column returns the values of column i.
func (r Result) Column(i int) []any {
	out := make([]any, len(r.Rows))
	for j, row := range r.Rows {
		out[j] = row[i]
	}
	return out
}

// Query runs query and reads every row. Text values are returned as
// strings rather than byte slices.
func (s *Store) Query(ctx context.Context, query string, args ...any) (Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("read columns: %w", err)
	}
	res := Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return res, nil
}
