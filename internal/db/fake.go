package db

import (
	"context"

	"github.com/lakeql/nlsearch/internal/domain"
)

// FakeQuerier is a scripted Querier for tests.
type FakeQuerier struct {
	Columns   []string
	Rows      []domain.Row
	Err       error
	LastSQL   string
	LastArgs  []any
	CallCount int
}

func (f *FakeQuerier) Query(_ context.Context, sql string, args []any) ([]string, []domain.Row, error) {
	f.CallCount++
	f.LastSQL = sql
	f.LastArgs = args
	if f.Err != nil {
		return nil, nil, f.Err
	}
	return f.Columns, f.Rows, nil
}
