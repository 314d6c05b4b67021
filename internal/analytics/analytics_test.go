package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeql/nlsearch/internal/domain"
)

// drain blocks until the recorder's queue has been fully drained by
// polling Stats().TotalRecords, avoiding a fixed sleep.
func drain(t *testing.T, r *Recorder, wantTotal int64) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if r.Stats(0).TotalRecords >= wantTotal {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("recorder did not drain to %d records in time", wantTotal)
}

func TestEnqueue_UpdatesPopularAndSuccessRate(t *testing.T) {
	r := New(16)
	defer r.Close()

	r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "customers in seoul", Success: true, ResultCount: 5, ResponseTimeMS: 100})
	r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "customers in seoul", Success: false, ResultCount: 0, ResponseTimeMS: 200})
	drain(t, r, 2)

	popular := r.Popular(10, 0)
	require.Len(t, popular, 1)
	assert.Equal(t, int64(2), popular[0].Count)
	assert.InDelta(t, 0.5, popular[0].SuccessRate, 0.001)
}

func TestFailures_FiltersByMinRate(t *testing.T) {
	r := New(16)
	defer r.Close()

	r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "flaky query", Success: false, ResponseTimeMS: 50})
	r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "flaky query", Success: false, ResponseTimeMS: 60})
	r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "reliable query", Success: true, ResponseTimeMS: 30})
	drain(t, r, 3)

	failures := r.Failures(0.5, 10)
	require.Len(t, failures, 1)
	assert.Equal(t, "flaky query", failures[0].NormalizedQuery)
}

func TestStats_TracksPerErrorCounts(t *testing.T) {
	r := New(16)
	defer r.Close()

	validationKind := domain.ErrValidation
	r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "bad query", Success: false, ErrorKind: &validationKind, ResponseTimeMS: 10})
	drain(t, r, 1)

	stats := r.Stats(0)
	assert.Equal(t, int64(1), stats.PerErrorCounts[domain.ErrValidation])
	assert.Equal(t, int64(1), stats.TotalRecords)
}

func TestSuggest_RanksByFuzzyDistanceThenPopularity(t *testing.T) {
	r := New(16)
	defer r.Close()

	r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "customers named lee", Success: true, ResponseTimeMS: 10})
	for i := 0; i < 3; i++ {
		r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "customers named kim", Success: true, ResponseTimeMS: 10})
	}
	r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "orders from last week", Success: true, ResponseTimeMS: 10})
	drain(t, r, 5)

	suggestions := r.Suggest("customers named", 10)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "customers named kim", suggestions[0].NormalizedQuery, "more popular of two equally-close matches ranks first")
	assert.Equal(t, int64(3), suggestions[0].Count)
	assert.Equal(t, "customers named lee", suggestions[1].NormalizedQuery)
}

func TestSuggest_EmptyTermOrNonPositiveLimitReturnsNil(t *testing.T) {
	r := New(16)
	defer r.Close()

	r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "customers named hong", Success: true, ResponseTimeMS: 10})
	drain(t, r, 1)

	assert.Nil(t, r.Suggest("", 10))
	assert.Nil(t, r.Suggest("customers", 0))
}

func TestEnqueue_OverflowDropsAndIncrementsCounter(t *testing.T) {
	r := New(1)
	defer r.Close()

	for i := 0; i < 50; i++ {
		r.Enqueue(Record{Timestamp: time.Now(), NormalizedQuery: "q", Success: true, ResponseTimeMS: 1})
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		stats := r.Stats(0)
		if stats.TotalRecords+stats.DroppedRecords >= 50 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected all 50 enqueues to be accounted for as processed or dropped")
}
