// Package intent implements the intent classifier (C1): regex-based
// entity extraction and a four-way kind classification, with a
// deterministic complexity score. Classification never fails.
package intent

import (
	"regexp"

	"github.com/lakeql/nlsearch/internal/domain"
)

// Classifier is stateless; its methods are safe for concurrent use.
type Classifier struct{}

// New returns a ready-to-use Classifier.
func New() *Classifier { return &Classifier{} }

var (
	aggregationSignals = regexp.MustCompile(`(?i)\b(average|avg|sum|total|count|percentage|rate|maximum|max|minimum|min|group by|per)\b`)
	joinSignals        = regexp.MustCompile(`(?i)\b(with their|and their|together with|along with|joined with|related to|associated with)\b`)
	filteringSignals   = regexp.MustCompile(`(?i)\b(where|named exactly|equal to|greater than|less than|between|before|after|containing)\b`)
)

// Classify produces an Intent for a normalized query. It never returns an
// error; low-signal queries simply get a low Confidence.
func (c *Classifier) Classify(normalizedQuery string) domain.Intent {
	entities := extractEntities(normalizedQuery)
	keywords := extractKeywords(normalizedQuery)

	aggCount := len(aggregationSignals.FindAllString(normalizedQuery, -1))
	joinCount := len(joinSignals.FindAllString(normalizedQuery, -1))
	filterCount := len(filteringSignals.FindAllString(normalizedQuery, -1))

	kind, confidence := classifyKind(aggCount, joinCount, filterCount)

	entityCount := 0
	for _, v := range entities {
		entityCount += len(v)
	}
	complexity := 0.1*float64(entityCount) +
		0.2*float64(joinCount) +
		0.15*float64(aggCount) +
		0.05*float64(len(normalizedQuery))/100

	reasoning := reasonFor(kind, aggCount, joinCount, filterCount, entityCount)

	return domain.NewIntent(kind, entities, keywords, complexity, confidence, reasoning)
}

// classifyKind applies the aggregation > join > filtering > simple_query
// precedence rule and derives a confidence from the winning signal's
// strength relative to the runner-up.
func classifyKind(aggCount, joinCount, filterCount int) (domain.IntentKind, float64) {
	counts := []struct {
		kind  domain.IntentKind
		count int
	}{
		{domain.IntentAggregation, aggCount},
		{domain.IntentJoin, joinCount},
		{domain.IntentFiltering, filterCount},
	}

	for _, c := range counts {
		if c.count == 0 {
			continue
		}
		runnerUp := 0
		for _, other := range counts {
			if other.kind != c.kind && other.count > runnerUp {
				runnerUp = other.count
			}
		}
		margin := c.count - runnerUp
		confidence := 0.5 + 0.15*float64(c.count) + 0.1*float64(margin)
		return c.kind, clamp01(confidence)
	}

	return domain.IntentSimpleQuery, 0.2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func reasonFor(kind domain.IntentKind, aggCount, joinCount, filterCount, entityCount int) string {
	switch kind {
	case domain.IntentAggregation:
		return "matched aggregation signal words"
	case domain.IntentJoin:
		return "matched cross-entity join signal words"
	case domain.IntentFiltering:
		return "matched filtering signal words"
	default:
		if entityCount > 0 {
			return "entities found but no strong kind signal, defaulting to simple_query"
		}
		return "no signal words or entities matched"
	}
}
