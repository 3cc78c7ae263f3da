package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Query executes a query and returns the resulting rows.
// This is the escape hatch collaborators (exporters, ad hoc tooling)
// build their own reads on. Callers are responsible for closing the
// returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRows executes a query and returns every row as an ordered tuple.
func (s *Store) QueryRows(ctx context.Context, query string, args ...any) ([][]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	result := [][]any{}
	for rows.Next() {
		tuple, err := scanTuple(rows, len(columns))
		if err != nil {
			return nil, err
		}
		result = append(result, tuple)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	return result, nil
}

// QueryMaps executes a query and returns every row as a column-keyed map.
func (s *Store) QueryMaps(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	result := []map[string]any{}
	for rows.Next() {
		tuple, err := scanTuple(rows, len(columns))
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(columns))
		for i, col := range columns {
			m[col] = tuple[i]
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	return result, nil
}

// scanTuple scans the current row into a []any, normalizing []byte
// columns to strings so callers see printable values.
func scanTuple(rows *sql.Rows, n int) ([]any, error) {
	tuple := make([]any, n)
	ptrs := make([]any, n)
	for i := range tuple {
		ptrs[i] = &tuple[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	for i, v := range tuple {
		if b, ok := v.([]byte); ok {
			tuple[i] = string(b)
		}
	}
	return tuple, nil
}

// Execute runs a statement and returns the number of rows affected.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("execute: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("execute: %w", err)
	}
	return n, nil
}

// GetConfig reads one t_config element.
func (s *Store) GetConfig(ctx context.Context, element string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(value, '') FROM t_config WHERE element = ?`, element,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("config element %q does not exist", element)}
	}
	if err != nil {
		return "", fmt.Errorf("get config: %w", err)
	}
	return value, nil
}

// SetConfig writes one t_config element, inserting or replacing it.
func (s *Store) SetConfig(ctx context.Context, element, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO t_config (element, value) VALUES (?, ?)
		ON CONFLICT(element) DO UPDATE SET value = excluded.value
	`, element, value)
	if err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	return nil
}

// Version returns the schema version recorded when the database was
// initialized.
func (s *Store) Version(ctx context.Context) (string, error) {
	return s.GetConfig(ctx, configVersion)
}
