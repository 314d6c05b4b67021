package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeql/nlsearch/internal/domain"
)

func TestGetPut_RoundTrips(t *testing.T) {
	c := New(100)
	defer c.Close()

	val := domain.Result{RowCount: 3}
	c.Put("k1", "some query", val, time.Minute)

	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, 3, got.RowCount)
}

func TestGet_MissOnExpiredEntry(t *testing.T) {
	c := New(100)
	defer c.Close()

	c.Put("k1", "q", domain.Result{RowCount: 1}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k1")
	assert.False(t, ok)
}

func TestPut_UpsertIncrementsHitCount(t *testing.T) {
	c := New(100)
	defer c.Close()

	c.Put("k1", "q", domain.Result{RowCount: 1}, time.Minute)
	c.Put("k1", "q", domain.Result{RowCount: 2}, time.Minute)

	entry, ok := c.getEntry("k1")
	require.True(t, ok)
	// put starts at 1, the upsert bumps it to 2, getEntry's own hit makes 3.
	assert.Equal(t, 3, entry.HitCount)
	assert.Equal(t, 2, entry.Payload.RowCount)
}

func TestInvalidate_RemovesMatchingNormalizedQuery(t *testing.T) {
	c := New(100)
	defer c.Close()

	c.Put("k1", "customers in seoul", domain.Result{}, time.Minute)
	c.Put("k2", "events for 홍길동", domain.Result{}, time.Minute)

	removed := c.Invalidate("seoul")
	assert.Equal(t, 1, removed)

	_, ok := c.Get("k1")
	assert.False(t, ok)
	_, ok = c.Get("k2")
	assert.True(t, ok)
}

func TestCleanup_RemovesExpiredEntries(t *testing.T) {
	c := New(100)
	defer c.Close()

	c.Put("k1", "q", domain.Result{}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	removed := c.Cleanup()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestGetOrCompute_RunsExactlyOnceConcurrently(t *testing.T) {
	c := New(100)
	defer c.Close()

	var calls atomic.Int64
	compute := func(_ context.Context) (domain.Result, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return domain.Result{RowCount: 7}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _, err := c.GetOrCompute(context.Background(), "shared-key", "q", time.Minute, compute)
			require.NoError(t, err)
			assert.Equal(t, 7, result.RowCount)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
}

func TestGetOrCompute_PropagatesComputeError(t *testing.T) {
	c := New(100)
	defer c.Close()

	wantErr := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "k", "q", time.Minute, func(_ context.Context) (domain.Result, error) {
		return domain.Result{}, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}
