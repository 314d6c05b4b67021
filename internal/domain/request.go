// Package domain holds the shared types that flow between the pipeline
// stages: the request, the intent, generated SQL, validation verdicts,
// cached results, and the pipeline event stream. Nothing in this package
// depends on any other internal package, so every stage can depend on it
// without creating an import cycle.
package domain

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Strategy selects which generator(s) the scheduler runs for a request.
type Strategy string

const (
	StrategyRuleOnly  Strategy = "rule_only"
	StrategyLLMOnly   Strategy = "llm_only"
	StrategyRuleFirst Strategy = "rule_first"
	StrategyLLMFirst  Strategy = "llm_first"
	StrategyHybrid    Strategy = "hybrid"
)

// RequestOptions is the typed, bounded set of per-request knobs. Extra
// carries forward-compatible passthrough values that this module doesn't
// recognize but that a caller wants preserved for cache-key purposes.
type RequestOptions struct {
	Strategy           Strategy       `json:"strategy,omitempty"`
	TimeoutSeconds     float64        `json:"timeout_seconds,omitempty"`
	UseCache           bool           `json:"use_cache"`
	EnableHighlighting bool           `json:"enable_highlighting"`
	Limit              int            `json:"limit,omitempty"`
	Extra              map[string]any `json:"-"`
}

// recognizedOptionKeys are the wire keys UnmarshalJSON consumes into
// named fields; anything else in the object lands in Extra.
var recognizedOptionKeys = []string{
	"strategy", "timeout_seconds", "use_cache", "enable_highlighting", "limit",
}

// UnmarshalJSON decodes the recognized option keys into their typed
// fields and collects anything else into Extra, so a caller's
// forward-compatible passthrough values survive into the cache key.
func (o *RequestOptions) UnmarshalJSON(data []byte) error {
	type known struct {
		Strategy           Strategy `json:"strategy,omitempty"`
		TimeoutSeconds     float64  `json:"timeout_seconds,omitempty"`
		UseCache           bool     `json:"use_cache"`
		EnableHighlighting bool     `json:"enable_highlighting"`
		Limit              int      `json:"limit,omitempty"`
	}
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range recognizedOptionKeys {
		delete(raw, key)
	}

	*o = RequestOptions{
		Strategy:           k.Strategy,
		TimeoutSeconds:     k.TimeoutSeconds,
		UseCache:           k.UseCache,
		EnableHighlighting: k.EnableHighlighting,
		Limit:              k.Limit,
	}
	if len(raw) > 0 {
		o.Extra = raw
	}
	return nil
}

// Request is the normalized form of an incoming natural-language query.
type Request struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
	Options RequestOptions `json:"options,omitempty"`
	UserID  *int64         `json:"user_id,omitempty"`
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// Normalize lowercases and collapses whitespace. It is deterministic and
// idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(query string) string {
	trimmed := strings.TrimSpace(query)
	collapsed := whitespaceRE.ReplaceAllString(trimmed, " ")
	return strings.ToLower(collapsed)
}

// CanonicalJSON renders a map as a JSON object with lexicographically
// sorted keys, used for both the cache key and for any place that needs a
// deterministic representation of a context/options map.
func CanonicalJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(jsonString(k))
		b.WriteByte(':')
		b.WriteString(jsonValue(m[k]))
	}
	b.WriteByte('}')
	return b.String()
}
