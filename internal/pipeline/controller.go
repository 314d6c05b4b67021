// Package pipeline implements the pipeline controller (C7): the single
// place that sequences classify_intent -> generate_sql -> validate_sql
// -> execute_sql -> format_result around a cache lookup, enforces the
// per-request deadline, and emits the ordered event stream other
// components (C11, C12) consume.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lakeql/nlsearch/internal/analytics"
	"github.com/lakeql/nlsearch/internal/cache"
	"github.com/lakeql/nlsearch/internal/domain"
	"github.com/lakeql/nlsearch/internal/formatter"
	"github.com/lakeql/nlsearch/internal/intent"
	"github.com/lakeql/nlsearch/internal/metrics"
	"github.com/lakeql/nlsearch/internal/pipelineerr"
	"github.com/lakeql/nlsearch/internal/runner"
	"github.com/lakeql/nlsearch/internal/sqlvalidate"
	"github.com/lakeql/nlsearch/internal/strategy"
)

// defaultSystemMaxDeadline is the fallback cap when the controller is
// built with a zero requestTimeout.
const defaultSystemMaxDeadline = 60 * time.Second

// EventSink receives a request's PipelineEvents in emission order.
// C12's Dispatcher and the controller's own tests both implement it.
type EventSink interface {
	Send(ev domain.PipelineEvent) bool
}

type noopSink struct{}

func (noopSink) Send(domain.PipelineEvent) bool { return true }

// NoopSink discards every event; used by callers (the plain JSON HTTP
// handler) that only want Run's return value.
var NoopSink EventSink = noopSink{}

// Controller wires the classifier (C1), strategy scheduler (C6), SQL
// validator (C2), query runner (C9), result cache (C8), and analytics
// recorder (C11) behind the nine-stage sequence.
type Controller struct {
	classifier *intent.Classifier
	scheduler  *strategy.Scheduler
	validator  *sqlvalidate.Validator
	runner     *runner.Runner
	cache      *cache.Cache
	analytics  *analytics.Recorder

	defaultStrategy domain.Strategy
	defaultLimit    int
	cacheTTL        time.Duration
	requestTimeout  time.Duration
}

// New builds a Controller. requestTimeout <= 0 uses the default system
// max deadline (60s).
func New(
	classifier *intent.Classifier,
	scheduler *strategy.Scheduler,
	validator *sqlvalidate.Validator,
	run *runner.Runner,
	resultCache *cache.Cache,
	recorder *analytics.Recorder,
	defaultStrategy domain.Strategy,
	defaultLimit int,
	cacheTTL time.Duration,
	requestTimeout time.Duration,
) *Controller {
	if requestTimeout <= 0 {
		requestTimeout = defaultSystemMaxDeadline
	}
	return &Controller{
		classifier:      classifier,
		scheduler:       scheduler,
		validator:       validator,
		runner:          run,
		cache:           resultCache,
		analytics:       recorder,
		defaultStrategy: defaultStrategy,
		defaultLimit:    defaultLimit,
		cacheTTL:        cacheTTL,
		requestTimeout:  requestTimeout,
	}
}

// Analytics returns the controller's analytics recorder, for transport
// layers (the suggestion endpoint) that read aggregates the recorder
// already maintains rather than duplicating them.
func (c *Controller) Analytics() *analytics.Recorder {
	return c.analytics
}

// Run executes req through every stage, delivering events to sink in
// emission order, and returns the generated request id alongside the
// terminal Result. Any returned error is a *pipelineerr.Error carrying
// one of the taxonomy kinds.
func (c *Controller) Run(ctx context.Context, sink EventSink, req domain.Request) (string, domain.Result, error) {
	return c.RunWithID(ctx, uuid.NewString(), sink, req)
}

// RunWithID is Run with the request id supplied by the caller, for
// callers (the streaming transport) that need to know the id before
// the pipeline starts emitting events under it.
func (c *Controller) RunWithID(ctx context.Context, requestID string, sink EventSink, req domain.Request) (string, domain.Result, error) {
	if sink == nil {
		sink = NoopSink
	}
	start := time.Now()

	strat := req.Options.Strategy
	if strat == "" {
		strat = c.defaultStrategy
	}

	record := analytics.Record{Timestamp: start, UserID: req.UserID, Strategy: strat}
	finish := func(result domain.Result, err error) (string, domain.Result, error) {
		record.ResponseTimeMS = time.Since(start).Milliseconds()
		record.Success = err == nil
		record.ResultCount = result.RowCount
		if err != nil {
			kind := pipelineerr.KindOf(err)
			record.ErrorKind = &kind
		}
		c.analytics.Enqueue(record)
		return requestID, result, err
	}

	if err := validateRequest(req.Query, strat); err != nil {
		return finish(domain.Result{}, err)
	}
	normalizedQuery := domain.Normalize(req.Query)
	record.NormalizedQuery = normalizedQuery

	deadline := c.requestTimeout
	if req.Options.TimeoutSeconds > 0 {
		if requested := time.Duration(req.Options.TimeoutSeconds * float64(time.Second)); requested < deadline {
			deadline = requested
		}
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	sink.Send(domain.StartEvent{RequestID: requestID, Query: req.Query, Timestamp: start})

	var cacheKey string
	if req.Options.UseCache {
		cacheKey = domain.CacheKey(req.Query, req.Context, req.Options)
		if cached, ok := c.cache.Get(cacheKey); ok {
			metrics.CacheHitsTotal.Inc()
			sink.Send(domain.CacheHitEvent{RequestID: requestID, Key: cacheKey})
			sink.Send(domain.CompleteEvent{RequestID: requestID, Result: cached})
			return finish(cached, nil)
		}
		metrics.CacheMissesTotal.Inc()
	}

	result, err := c.runStages(ctx, sink, requestID, req, strat, normalizedQuery, &record)
	if err != nil {
		pe := toPipelineErr(err)
		metrics.ObserveError(pe.Kind)
		sink.Send(domain.ErrorEvent{RequestID: requestID, ErrKind: pe.Kind, Message: pe.Error(), Reasons: pe.Reasons, GenReasons: pe.GenReasons})
		return finish(domain.Result{}, pe)
	}

	sink.Send(domain.CompleteEvent{RequestID: requestID, Result: result})

	// store_cache: asynchronous, failure-silent; never writes for a
	// request that's already past its deadline or canceled.
	if req.Options.UseCache && ctx.Err() == nil {
		go c.cache.Put(cacheKey, normalizedQuery, result, c.cacheTTL)
	}

	return finish(result, nil)
}

// runStages implements classify_intent through format_result.
func (c *Controller) runStages(
	ctx context.Context,
	sink EventSink,
	requestID string,
	req domain.Request,
	strat domain.Strategy,
	normalizedQuery string,
	record *analytics.Record,
) (domain.Result, error) {
	sink.Send(domain.StageStartEvent{RequestID: requestID, Stage: domain.StageIntent, Timestamp: time.Now()})
	intentStart := time.Now()
	classified := c.classifier.Classify(normalizedQuery)
	intentDuration := time.Since(intentStart)
	metrics.ObserveStage(domain.StageIntent, intentDuration)
	sink.Send(domain.StageEndEvent{RequestID: requestID, Stage: domain.StageIntent, DurationMS: intentDuration.Milliseconds()})

	sink.Send(domain.StageStartEvent{RequestID: requestID, Stage: domain.StageSQLGen, Timestamp: time.Now()})
	genStart := time.Now()
	artifact, err := c.scheduler.Generate(ctx, strat, classified, req.Query)
	genDuration := time.Since(genStart)
	record.SQLGenMS = genDuration.Milliseconds()
	metrics.ObserveStage(domain.StageSQLGen, genDuration)
	sink.Send(domain.StageEndEvent{RequestID: requestID, Stage: domain.StageSQLGen, DurationMS: genDuration.Milliseconds()})
	if err != nil {
		if kind := stageErrorKind(ctx, domain.ErrGenerationFailed); kind != domain.ErrGenerationFailed {
			return domain.Result{}, pipelineerr.Wrap(kind, err)
		}
		return domain.Result{}, pipelineerr.GenerationFailed(err)
	}

	sink.Send(domain.StageStartEvent{RequestID: requestID, Stage: domain.StageValidate, Timestamp: time.Now()})
	validateStart := time.Now()
	verdict := c.validator.Validate(artifact.SQL)
	validateDuration := time.Since(validateStart)
	metrics.ObserveStage(domain.StageValidate, validateDuration)
	sink.Send(domain.StageEndEvent{RequestID: requestID, Stage: domain.StageValidate, DurationMS: validateDuration.Milliseconds()})
	if !verdict.Accepted {
		return domain.Result{}, pipelineerr.Security(verdict.Reasons)
	}
	artifact.SQL = verdict.NormalizedSQL

	sink.Send(domain.StageStartEvent{RequestID: requestID, Stage: domain.StageExecute, Timestamp: time.Now()})
	execStart := time.Now()
	_, rows, err := c.runner.Run(ctx, artifact)
	execDuration := time.Since(execStart)
	record.SQLExecMS = execDuration.Milliseconds()
	metrics.ObserveStage(domain.StageExecute, execDuration)
	sink.Send(domain.StageEndEvent{RequestID: requestID, Stage: domain.StageExecute, DurationMS: execDuration.Milliseconds()})
	if err != nil {
		return domain.Result{}, pipelineerr.Wrap(stageErrorKind(ctx, domain.ErrRuntime), err)
	}

	sink.Send(domain.StageStartEvent{RequestID: requestID, Stage: domain.StageFormat, Timestamp: time.Now()})
	formatStart := time.Now()
	limit := req.Options.Limit
	if limit <= 0 {
		limit = c.defaultLimit
	}
	formattedRows := rows
	highlighted := false
	if req.Options.EnableHighlighting {
		formattedRows = formatter.NewHighlighter(req.Query, "", "").HighlightRows(formattedRows)
		highlighted = true
	}
	pageRows, pageInfo := formatter.Paginate(formattedRows, 0, limit)
	formatDuration := time.Since(formatStart)
	metrics.ObserveStage(domain.StageFormat, formatDuration)
	sink.Send(domain.StageEndEvent{RequestID: requestID, Stage: domain.StageFormat, DurationMS: formatDuration.Milliseconds()})

	return domain.Result{
		Rows:            pageRows,
		RowCount:        len(rows),
		ExecutionTimeMS: execDuration.Milliseconds(),
		StrategyUsed:    strat,
		Artifact:        artifact,
		Intent:          classified,
		Highlighted:     highlighted,
		PageInfo:        pageInfo,
	}, nil
}

func validateRequest(query string, strat domain.Strategy) error {
	if strings.TrimSpace(query) == "" {
		return pipelineerr.New(domain.ErrValidation, "query must not be empty")
	}
	switch strat {
	case domain.StrategyRuleOnly, domain.StrategyLLMOnly, domain.StrategyRuleFirst, domain.StrategyLLMFirst, domain.StrategyHybrid:
		return nil
	default:
		return pipelineerr.New(domain.ErrValidation, fmt.Sprintf("unsupported strategy %q", strat))
	}
}

// stageErrorKind prefers the deadline/cancellation kind over fallback
// whenever ctx itself has already expired, since a timed-out generator
// or runner call surfaces as a plain error otherwise.
func stageErrorKind(ctx context.Context, fallback domain.ErrorKind) domain.ErrorKind {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return domain.ErrTimeout
	case context.Canceled:
		return domain.ErrCanceled
	default:
		return fallback
	}
}

func toPipelineErr(err error) *pipelineerr.Error {
	var pe *pipelineerr.Error
	if errors.As(err, &pe) {
		return pe
	}
	return pipelineerr.Wrap(domain.ErrRuntime, err)
}
