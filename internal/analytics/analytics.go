// Package analytics implements the analytics recorder (C11): producers
// enqueue one record per completed request onto a bounded channel (the
// module's one deliberately stdlib-only MPSC queue), a single
// background goroutine drains it and updates per-query, per-error, and
// failure-response-time aggregates.
package analytics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/lakeql/nlsearch/internal/domain"
)

const defaultQueueSize = 4096
const ewmaAlpha = 0.1
const maxFailureSamples = 2048

// Record is one completed request's outcome, as submitted by the
// pipeline controller.
type Record struct {
	Timestamp       time.Time
	UserID          *int64
	NormalizedQuery string
	Strategy        domain.Strategy
	Success         bool
	ResultCount     int
	ResponseTimeMS  int64
	SQLGenMS        int64
	SQLExecMS       int64
	ErrorKind       *domain.ErrorKind
}

type queryAgg struct {
	normalizedQuery string
	count           int64
	successCount    int64
	totalRows       int64
	lastSeen        time.Time
	avgResponseMS   float64
}

// Stats is the output of Recorder.Stats.
type Stats struct {
	TotalRecords    int64
	DroppedRecords  int64
	PerErrorCounts  map[domain.ErrorKind]int64
	ResponseTimeP50 float64
	ResponseTimeP90 float64
	ResponseTimeP99 float64
}

// Recorder is the analytics recorder.
type Recorder struct {
	queue chan Record

	mu             sync.Mutex
	perQuery       map[string]*queryAgg
	perError       map[domain.ErrorKind]int64
	failureSamples []float64
	failureNext    int

	totalRecords int64
	dropCount    atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Recorder and starts its drain worker. queueSize <= 0
// uses the default (4096).
func New(queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	r := &Recorder{
		queue:    make(chan Record, queueSize),
		perQuery: make(map[string]*queryAgg),
		perError: make(map[domain.ErrorKind]int64),
		stopCh:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.drainLoop()
	return r
}

// Close stops the drain worker after flushing whatever is already
// queued.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// Enqueue submits rec. On overflow the oldest queued record is dropped
// to make room and the drop counter is incremented.
func (r *Recorder) Enqueue(rec Record) {
	select {
	case r.queue <- rec:
		return
	default:
	}

	select {
	case <-r.queue:
		r.dropCount.Add(1)
	default:
	}

	select {
	case r.queue <- rec:
	default:
		r.dropCount.Add(1)
	}
}

func (r *Recorder) drainLoop() {
	defer r.wg.Done()
	for {
		select {
		case rec := <-r.queue:
			r.apply(rec)
		case <-r.stopCh:
			r.drainRemaining()
			return
		}
	}
}

func (r *Recorder) drainRemaining() {
	for {
		select {
		case rec := <-r.queue:
			r.apply(rec)
		default:
			return
		}
	}
}

func (r *Recorder) apply(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.totalRecords++

	agg, ok := r.perQuery[rec.NormalizedQuery]
	if !ok {
		agg = &queryAgg{normalizedQuery: rec.NormalizedQuery}
		r.perQuery[rec.NormalizedQuery] = agg
	}
	agg.count++
	agg.lastSeen = rec.Timestamp
	agg.totalRows += int64(rec.ResultCount)
	if rec.Success {
		agg.successCount++
	}
	responseMS := float64(rec.ResponseTimeMS)
	if agg.count == 1 {
		agg.avgResponseMS = responseMS
	} else {
		agg.avgResponseMS = ewmaAlpha*responseMS + (1-ewmaAlpha)*agg.avgResponseMS
	}

	if rec.ErrorKind != nil {
		r.perError[*rec.ErrorKind]++
	}
	if !rec.Success {
		r.recordFailureSample(responseMS)
	}
}

// recordFailureSample keeps a bounded ring buffer of failed-request
// response times to compute approximate quantiles cheaply.
func (r *Recorder) recordFailureSample(ms float64) {
	if len(r.failureSamples) < maxFailureSamples {
		r.failureSamples = append(r.failureSamples, ms)
		return
	}
	r.failureSamples[r.failureNext] = ms
	r.failureNext = (r.failureNext + 1) % maxFailureSamples
}

// Popular returns the top-`limit` queries by count seen within window
// (window <= 0 means unbounded).
func (r *Recorder) Popular(limit int, window time.Duration) []domain.PopularQuery {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Time{}
	if window > 0 {
		cutoff = time.Now().Add(-window)
	}

	candidates := make([]*queryAgg, 0, len(r.perQuery))
	for _, agg := range r.perQuery {
		if window > 0 && agg.lastSeen.Before(cutoff) {
			continue
		}
		candidates = append(candidates, agg)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].count > candidates[j].count })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]domain.PopularQuery, len(candidates))
	for i, agg := range candidates {
		successRate := 0.0
		if agg.count > 0 {
			successRate = float64(agg.successCount) / float64(agg.count)
		}
		out[i] = domain.PopularQuery{
			NormalizedQuery: agg.normalizedQuery,
			Count:           agg.count,
			LastSeen:        agg.lastSeen,
			AvgResponseTime: agg.avgResponseMS / 1000,
			SuccessRate:     successRate,
			TotalRows:       agg.totalRows,
		}
	}
	return out
}

// Failures returns queries whose failure rate (1 - success rate) is at
// least minRate, worst-first, capped at limit.
func (r *Recorder) Failures(minRate float64, limit int) []domain.PopularQuery {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := make([]*queryAgg, 0)
	for _, agg := range r.perQuery {
		if agg.count == 0 {
			continue
		}
		failureRate := 1 - float64(agg.successCount)/float64(agg.count)
		if failureRate >= minRate {
			candidates = append(candidates, agg)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri := 1 - float64(candidates[i].successCount)/float64(candidates[i].count)
		rj := 1 - float64(candidates[j].successCount)/float64(candidates[j].count)
		return ri > rj
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]domain.PopularQuery, len(candidates))
	for i, agg := range candidates {
		out[i] = domain.PopularQuery{
			NormalizedQuery: agg.normalizedQuery,
			Count:           agg.count,
			LastSeen:        agg.lastSeen,
			AvgResponseTime: agg.avgResponseMS / 1000,
			SuccessRate:     float64(agg.successCount) / float64(agg.count),
			TotalRows:       agg.totalRows,
		}
	}
	return out
}

// Suggest returns autocomplete candidates from previously seen queries,
// ranked by fuzzy closeness to term first and by how often the matched
// query has been seen second. term should already be normalized the
// same way incoming requests are.
func (r *Recorder) Suggest(term string, limit int) []domain.QuerySuggestion {
	if term == "" || limit <= 0 {
		return nil
	}

	r.mu.Lock()
	queries := make([]string, 0, len(r.perQuery))
	counts := make(map[string]int64, len(r.perQuery))
	for q, agg := range r.perQuery {
		queries = append(queries, q)
		counts[q] = agg.count
	}
	r.mu.Unlock()

	ranks := fuzzy.RankFind(term, queries)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return counts[ranks[i].Target] > counts[ranks[j].Target]
	})
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}

	out := make([]domain.QuerySuggestion, len(ranks))
	for i, rank := range ranks {
		out[i] = domain.QuerySuggestion{
			NormalizedQuery: rank.Target,
			Count:           counts[rank.Target],
			Distance:        rank.Distance,
		}
	}
	return out
}

// Stats reports process-wide counters and approximate response-time
// quantiles over failed requests. window is unused: the counters are
// cumulative since startup.
func (r *Recorder) Stats(_ time.Duration) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	perError := make(map[domain.ErrorKind]int64, len(r.perError))
	for k, v := range r.perError {
		perError[k] = v
	}

	samples := append([]float64(nil), r.failureSamples...)
	sort.Float64s(samples)

	return Stats{
		TotalRecords:    r.totalRecords,
		DroppedRecords:  r.dropCount.Load(),
		PerErrorCounts:  perError,
		ResponseTimeP50: quantile(samples, 0.50),
		ResponseTimeP90: quantile(samples, 0.90),
		ResponseTimeP99: quantile(samples, 0.99),
	}
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
