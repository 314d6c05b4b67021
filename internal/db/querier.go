// Package db declares the read-only database contract consumed by the
// query runner (C9) and provides a pgx-backed adapter (C15) plus a
// scripted fake for tests.
package db

import (
	"context"

	"github.com/lakeql/nlsearch/internal/domain"
)

// Querier executes a single parameterized, read-only statement. sql
// uses pgx's native "$1, $2, ..." placeholder syntax; translating the
// SQL Artifact's %(name)s convention into that is the runner's job, not
// the Querier's.
type Querier interface {
	Query(ctx context.Context, sql string, args []any) (columns []string, rows []domain.Row, err error)
}
