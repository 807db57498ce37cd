package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxDatabase implements Database over a pgxpool.Pool.
type PgxDatabase struct {
	pool *pgxpool.Pool
}

func NewPgxDatabase(pool *pgxpool.Pool) *PgxDatabase { return &PgxDatabase{pool: pool} }

func (p *PgxDatabase) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (p *PgxDatabase) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgxResult{tag: tag}, nil
}

func (p *PgxDatabase) PingContext(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *PgxDatabase) Close() error {
	p.pool.Close()
	return nil
}

type pgxRows struct {
	rows   pgx.Rows
	fields []pgconn.FieldDescription
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

func (r *pgxRows) Columns() ([]string, error) {
	if r.fields == nil {
		r.fields = r.rows.FieldDescriptions()
	}
	cols := make([]string, len(r.fields))
	for i, fd := range r.fields {
		cols[i] = fd.Name
	}
	return cols, nil
}

func (r *pgxRows) Err() error { return r.rows.Err() }

func (r *pgxRows) Close() error {
	r.rows.Close()
	return nil
}

type pgxResult struct {
	tag pgconn.CommandTag
}

func (r pgxResult) RowsAffected() (int64, error) { return r.tag.RowsAffected(), nil }

var _ Database = (*PgxDatabase)(nil)
