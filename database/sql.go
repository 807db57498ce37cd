package database

import (
	"context"
	"database/sql"
)

// SQLDatabase adapts a *sql.DB to the Database interface.
type SQLDatabase struct {
	db *sql.DB
}

func NewSQLDatabase(db *sql.DB) *SQLDatabase { return &SQLDatabase{db: db} }

func (s *SQLDatabase) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows: rows}, nil
}

func (s *SQLDatabase) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *SQLDatabase) PingContext(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLDatabase) Close() error { return s.db.Close() }

type sqlRows struct {
	rows *sql.Rows
}

func (r sqlRows) Next() bool                 { return r.rows.Next() }
func (r sqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r sqlRows) Err() error                 { return r.rows.Err() }
func (r sqlRows) Close() error               { return r.rows.Close() }

var _ Database = (*SQLDatabase)(nil)
