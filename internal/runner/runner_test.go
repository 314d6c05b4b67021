package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeql/nlsearch/internal/db"
	"github.com/lakeql/nlsearch/internal/domain"
)

func TestRun_TranslatesNamedPlaceholders(t *testing.T) {
	fake := &db.FakeQuerier{Columns: []string{"name"}, Rows: []domain.Row{{"name": "홍길동"}}}
	r := New(fake, time.Second, 100)

	artifact := domain.SQLArtifact{
		SQL:        `SELECT * FROM customers WHERE name = %(customer_name)s AND region = %(region)s`,
		Parameters: map[string]any{"customer_name": "홍길동", "region": "서울"},
	}

	_, rows, err := r.Run(context.Background(), artifact)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "SELECT * FROM customers WHERE name = $1 AND region = $2", fake.LastSQL)
	assert.Equal(t, []any{"홍길동", "서울"}, fake.LastArgs)
}

func TestRun_ReusesPositionForRepeatedPlaceholder(t *testing.T) {
	fake := &db.FakeQuerier{}
	r := New(fake, time.Second, 100)

	artifact := domain.SQLArtifact{
		SQL:        `SELECT * FROM events WHERE occurred_at >= %(date_from)s OR updated_at >= %(date_from)s`,
		Parameters: map[string]any{"date_from": "2024-01-01"},
	}

	_, _, err := r.Run(context.Background(), artifact)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM events WHERE occurred_at >= $1 OR updated_at >= $1", fake.LastSQL)
	assert.Equal(t, []any{"2024-01-01"}, fake.LastArgs)
}

func TestRun_MissingParameterErrors(t *testing.T) {
	fake := &db.FakeQuerier{}
	r := New(fake, time.Second, 100)

	artifact := domain.SQLArtifact{SQL: `SELECT * FROM customers WHERE name = %(customer_name)s`, Parameters: map[string]any{}}

	_, _, err := r.Run(context.Background(), artifact)
	require.Error(t, err)
	assert.Equal(t, 0, fake.CallCount)
}

func TestRun_TruncatesBeyondRowCap(t *testing.T) {
	rows := make([]domain.Row, 5)
	for i := range rows {
		rows[i] = domain.Row{"id": i}
	}
	fake := &db.FakeQuerier{Columns: []string{"id"}, Rows: rows}
	r := New(fake, time.Second, 3)

	_, got, err := r.Run(context.Background(), domain.SQLArtifact{SQL: "SELECT id FROM customers"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
