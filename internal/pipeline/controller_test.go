package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeql/nlsearch/internal/analytics"
	"github.com/lakeql/nlsearch/internal/cache"
	"github.com/lakeql/nlsearch/internal/db"
	"github.com/lakeql/nlsearch/internal/domain"
	"github.com/lakeql/nlsearch/internal/intent"
	"github.com/lakeql/nlsearch/internal/pipelineerr"
	"github.com/lakeql/nlsearch/internal/retry"
	"github.com/lakeql/nlsearch/internal/runner"
	"github.com/lakeql/nlsearch/internal/sqlgen/rule"
	"github.com/lakeql/nlsearch/internal/sqlvalidate"
	"github.com/lakeql/nlsearch/internal/strategy"
)

// recordingSink captures every event Send receives, in order.
type recordingSink struct {
	events []domain.PipelineEvent
}

func (s *recordingSink) Send(ev domain.PipelineEvent) bool {
	s.events = append(s.events, ev)
	return true
}

func (s *recordingSink) kinds() []domain.EventKind {
	out := make([]domain.EventKind, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Kind()
	}
	return out
}

// deadlineCapturingQuerier records the deadline on the context it's
// called with, so a test can assert what deadline the controller
// actually propagated down to the execute_sql stage.
type deadlineCapturingQuerier struct {
	db.FakeQuerier
	capturedDeadline time.Time
	capturedOK       bool
}

func (q *deadlineCapturingQuerier) Query(ctx context.Context, sql string, args []any) ([]string, []domain.Row, error) {
	q.capturedDeadline, q.capturedOK = ctx.Deadline()
	return q.FakeQuerier.Query(ctx, sql, args)
}

func defaultRetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, ExponentialBase: 2}
}

func newTestController(t *testing.T, querier db.Querier) (*Controller, *cache.Cache, *analytics.Recorder) {
	t.Helper()
	ruleGen := rule.New()
	sched := strategy.New(ruleGen, ruleGen, defaultRetryPolicy())
	validator := sqlvalidate.New([]string{"customers", "events", "customer_products", "users", "customer_memos"})
	run := runner.New(querier, time.Second, 100)
	resultCache := cache.New(100)
	rec := analytics.New(16)
	t.Cleanup(func() {
		resultCache.Close()
		rec.Close()
	})
	ctrl := New(intent.New(), sched, validator, run, resultCache, rec, domain.StrategyRuleOnly, 50, 0, 0)
	return ctrl, resultCache, rec
}

func drainAnalytics(t *testing.T, rec *analytics.Recorder, want int64) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rec.Stats(0).TotalRecords >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("analytics recorder did not drain in time")
}

func TestRun_HappyPathEmitsEventsInOrder(t *testing.T) {
	querier := &db.FakeQuerier{Columns: []string{"name"}, Rows: []domain.Row{{"name": "hong"}}}
	ctrl, _, rec := newTestController(t, querier)

	sink := &recordingSink{}
	req := domain.Request{Query: "customers where named exactly 홍길동", Options: domain.RequestOptions{}}

	_, result, err := ctrl.Run(context.Background(), sink, req)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, domain.SourceRule, result.Artifact.Source)

	kinds := sink.kinds()
	require.Equal(t, []domain.EventKind{
		domain.EventStart,
		domain.EventStageStart, domain.EventStageEnd,
		domain.EventStageStart, domain.EventStageEnd,
		domain.EventStageStart, domain.EventStageEnd,
		domain.EventStageStart, domain.EventStageEnd,
		domain.EventStageStart, domain.EventStageEnd,
		domain.EventComplete,
	}, kinds)

	drainAnalytics(t, rec, 1)
	assert.Equal(t, int64(1), rec.Stats(0).TotalRecords)
}

// TestRun_LiteralSpecScenarioOne runs the unmodified canonical scenario
// string end-to-end under rule_first, without rewording it to force a
// different intent kind.
func TestRun_LiteralSpecScenarioOne(t *testing.T) {
	querier := &db.FakeQuerier{Columns: []string{"name"}, Rows: []domain.Row{{"name": "hong"}}}
	ctrl, _, _ := newTestController(t, querier)

	sink := &recordingSink{}
	req := domain.Request{Query: "customers named 홍길동", Options: domain.RequestOptions{Strategy: domain.StrategyRuleFirst}}

	_, result, err := ctrl.Run(context.Background(), sink, req)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentSimpleQuery, result.Intent.Kind)
	assert.Equal(t, []string{"홍길동"}, result.Intent.Entities[domain.EntityCustomerName])
	assert.Equal(t, domain.SourceRule, result.Artifact.Source, "rule_first must not escalate to the LLM for this scenario")
	assert.Equal(t, "홍길동", result.Artifact.Parameters["customer_name"])
	assert.GreaterOrEqual(t, result.RowCount, 0)
}

func TestRun_CacheHitSkipsStagesAndEmitsCacheHit(t *testing.T) {
	querier := &db.FakeQuerier{Columns: []string{"name"}, Rows: []domain.Row{{"name": "hong"}}}
	ctrl, resultCache, _ := newTestController(t, querier)

	req := domain.Request{Query: "customers where named exactly 홍길동", Options: domain.RequestOptions{UseCache: true}}

	first := &recordingSink{}
	_, _, err := ctrl.Run(context.Background(), first, req)
	require.NoError(t, err)

	// The store_cache stage is asynchronous; wait for it to land.
	key := domain.CacheKey(req.Query, req.Context, req.Options)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := resultCache.Get(key); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}

	second := &recordingSink{}
	_, result, err := ctrl.Run(context.Background(), second, req)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, querier.CallCount, 1, "cache hit must not re-run the query")

	assert.Equal(t, []domain.EventKind{domain.EventStart, domain.EventCacheHit, domain.EventComplete}, second.kinds())
}

func TestRun_ValidatorRejectionEmitsSecurityErrorWithoutSQL(t *testing.T) {
	ruleGen := rule.New()
	sched := strategy.New(ruleGen, ruleGen, defaultRetryPolicy())
	// Whitelist excludes "customers", so the rule-generated SQL is
	// rejected by the unauthorized_table rule.
	validator := sqlvalidate.New([]string{"events"})
	run := runner.New(&db.FakeQuerier{}, time.Second, 100)
	resultCache := cache.New(10)
	rec := analytics.New(16)
	t.Cleanup(func() { resultCache.Close(); rec.Close() })
	ctrl := New(intent.New(), sched, validator, run, resultCache, rec, domain.StrategyRuleOnly, 50, 0, 0)

	sink := &recordingSink{}
	req := domain.Request{Query: "customers where named exactly 홍길동"}

	_, _, err := ctrl.Run(context.Background(), sink, req)
	require.Error(t, err)
	assert.Equal(t, domain.ErrSecurity, pipelineErrKind(t, err))

	last := sink.events[len(sink.events)-1]
	errEvent, ok := last.(domain.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, domain.ErrSecurity, errEvent.ErrKind)
	assert.NotContains(t, errEvent.Message, "SELECT")
	assert.Contains(t, errEvent.Reasons, domain.RuleUnauthorizedTable)
}

func TestRun_GenerationFailureCarriesPerStrategyReasons(t *testing.T) {
	ruleGen := rule.New()
	// Both rule and LLM branches are backed by the same rule generator,
	// so a query that matches no template fails both branches under
	// rule_first.
	sched := strategy.New(ruleGen, ruleGen, defaultRetryPolicy())
	validator := sqlvalidate.New([]string{"customers", "events"})
	run := runner.New(&db.FakeQuerier{}, time.Second, 100)
	resultCache := cache.New(10)
	rec := analytics.New(16)
	t.Cleanup(func() { resultCache.Close(); rec.Close() })
	ctrl := New(intent.New(), sched, validator, run, resultCache, rec, domain.StrategyRuleFirst, 50, 0, 0)

	sink := &recordingSink{}
	req := domain.Request{Query: "zzz unrecognizable nonsense with no entities at all"}

	_, _, err := ctrl.Run(context.Background(), sink, req)
	require.Error(t, err)
	assert.Equal(t, domain.ErrGenerationFailed, pipelineErrKind(t, err))

	var pe *pipelineerr.Error
	require.ErrorAs(t, err, &pe)
	require.Len(t, pe.GenReasons, 2)
	assert.Contains(t, pe.GenReasons[0], "rule: ")
	assert.Contains(t, pe.GenReasons[1], "llm: ")

	last := sink.events[len(sink.events)-1]
	errEvent, ok := last.(domain.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, pe.GenReasons, errEvent.GenReasons)
}

func TestRun_RuntimeFailureEmitsRuntimeError(t *testing.T) {
	querier := &db.FakeQuerier{Err: assertError{"connection refused"}}
	ctrl, _, _ := newTestController(t, querier)

	sink := &recordingSink{}
	req := domain.Request{Query: "customers where named exactly 홍길동"}

	_, _, err := ctrl.Run(context.Background(), sink, req)
	require.Error(t, err)
	assert.Equal(t, domain.ErrRuntime, pipelineErrKind(t, err))
}

func TestRun_UnsupportedStrategyIsValidationError(t *testing.T) {
	ctrl, _, _ := newTestController(t, &db.FakeQuerier{})
	sink := &recordingSink{}
	req := domain.Request{Query: "anything", Options: domain.RequestOptions{Strategy: "not_a_strategy"}}

	_, _, err := ctrl.Run(context.Background(), sink, req)
	require.Error(t, err)
	assert.Equal(t, domain.ErrValidation, pipelineErrKind(t, err))
	assert.Empty(t, sink.events, "validation failures happen before the event stream opens")
}

func TestRun_EmptyQueryIsValidationError(t *testing.T) {
	ctrl, _, _ := newTestController(t, &db.FakeQuerier{})
	_, _, err := ctrl.Run(context.Background(), &recordingSink{}, domain.Request{Query: "   "})
	require.Error(t, err)
	assert.Equal(t, domain.ErrValidation, pipelineErrKind(t, err))
}

func TestRun_DeadlineIsBoundedBySystemMax(t *testing.T) {
	ctrl, _, _ := newTestController(t, &db.FakeQuerier{})
	sink := &recordingSink{}
	req := domain.Request{
		Query:   "customers where named exactly 홍길동",
		Options: domain.RequestOptions{TimeoutSeconds: 3600},
	}
	_, _, err := ctrl.Run(context.Background(), sink, req)
	require.NoError(t, err)
}

// TestRun_RequestTimeoutConfigBoundsTheDeadline verifies the
// controller-level requestTimeout (REQUEST_TIMEOUT_SECONDS) actually
// bounds the context handed down the stages, not just the
// caller-supplied options.timeout_seconds.
func TestRun_RequestTimeoutConfigBoundsTheDeadline(t *testing.T) {
	querier := &deadlineCapturingQuerier{FakeQuerier: db.FakeQuerier{Columns: []string{"name"}, Rows: []domain.Row{{"name": "hong"}}}}

	ruleGen := rule.New()
	sched := strategy.New(ruleGen, ruleGen, defaultRetryPolicy())
	validator := sqlvalidate.New([]string{"customers"})
	run := runner.New(querier, time.Second, 100) // statement timeout wider than the request timeout under test
	resultCache := cache.New(10)
	rec := analytics.New(16)
	t.Cleanup(func() { resultCache.Close(); rec.Close() })

	const configuredRequestTimeout = 500 * time.Millisecond
	ctrl := New(intent.New(), sched, validator, run, resultCache, rec, domain.StrategyRuleOnly, 50, 0, configuredRequestTimeout)

	before := time.Now()
	_, _, err := ctrl.Run(context.Background(), NoopSink, domain.Request{Query: "customers where named exactly 홍길동"})
	require.NoError(t, err)

	require.True(t, querier.capturedOK, "query runner should have observed a deadline on its context")
	gotBudget := querier.capturedDeadline.Sub(before)
	assert.InDelta(t, configuredRequestTimeout.Seconds(), gotBudget.Seconds(), 0.25,
		"effective deadline should reflect the configured request timeout, not the wider statement timeout or the 60s default")
}

func pipelineErrKind(t *testing.T, err error) domain.ErrorKind {
	t.Helper()
	return pipelineerr.KindOf(err)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
