package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lakeql/nlsearch/internal/domain"
)

// PGXQuerier runs statements against a pgxpool.Pool opened with a
// read-only DSN. Every query runs inside a transaction so "SET LOCAL
// statement_timeout" takes effect for that statement only.
type PGXQuerier struct {
	pool              *pgxpool.Pool
	statementTimeoutMS int64
}

// NewPGXQuerier opens a pool against dsn. dsn should point at a
// read-only replica or role; this adapter enforces no access control of
// its own beyond what the validator (C2) already guaranteed upstream.
func NewPGXQuerier(ctx context.Context, dsn string, poolSize int32, statementTimeoutMS int64) (*PGXQuerier, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if poolSize > 0 {
		cfg.MaxConns = poolSize
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return &PGXQuerier{pool: pool, statementTimeoutMS: statementTimeoutMS}, nil
}

// Close releases the pool.
func (q *PGXQuerier) Close() { q.pool.Close() }

// Query runs sql with args inside a read-only transaction, returning
// columns in result order and rows as ordered column->value mappings.
func (q *PGXQuerier) Query(ctx context.Context, sql string, args []any) ([]string, []domain.Row, error) {
	tx, err := q.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if q.statementTimeoutMS > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", q.statementTimeoutMS)); err != nil {
			return nil, nil, fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	var result []domain.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(domain.Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}

	return columns, result, nil
}
