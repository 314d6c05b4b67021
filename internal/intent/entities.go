package intent

import (
	"regexp"

	"github.com/lakeql/nlsearch/internal/domain"
)

// entityRule pairs an entity kind with the regex that extracts it. Kept
// as a data table (rather than inline literals scattered through the
// classifier) so the extraction order and intent are visible at a
// glance, the way the teacher keeps prompt text as a data asset instead
// of inline strings.
type entityRule struct {
	Kind domain.EntityKind
	Re   *regexp.Regexp
}

var entityRules = []entityRule{
	// ISO and Korean-style dates: 2024-01-30, 2024년 1월 30일, 30대 style age
	// buckets are left to fall through to keyword since they aren't dates.
	{domain.EntityDate, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)},
	{domain.EntityDate, regexp.MustCompile(`\d{4}년\s?\d{1,2}월\s?(\d{1,2}일)?`)},

	// Amounts: currency-prefixed ($, ₩) or followed by a unit (원, dollars, usd).
	{domain.EntityAmount, regexp.MustCompile(`[$₩]\s?\d[\d,]*(\.\d+)?`)},
	{domain.EntityAmount, regexp.MustCompile(`\b\d[\d,]*(\.\d+)?\s?(원|dollars\b|usd\b)`)},

	// Quoted strings are treated as product names: "Premium Plan".
	{domain.EntityProductName, regexp.MustCompile(`"([^"]+)"`)},

	// Hangul syllable runs of 2-4 characters are the pattern-matching
	// stand-in for a Korean morphological name analyzer: when that hook
	// is unavailable (it always is here), this regex is the sole source
	// for customer_name extraction.
	{domain.EntityCustomerName, regexp.MustCompile(`[\x{AC00}-\x{D7A3}]{2,4}`)},

	// A short list of recognized region/location words. Real deployments
	// would source this from the schema's location column's distinct
	// values; this module ships a small static list as a reasonable
	// default since the schema isn't known ahead of time.
	{domain.EntityLocation, regexp.MustCompile(`(?i)\b(seoul|busan|incheon|daegu|region|서울|부산|인천|대구|지역)\b`)},
}

// stopwords are excluded from the keyword set.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "for": true, "by": true,
	"and": true, "or": true, "with": true, "named": true, "is": true,
	"are": true, "in": true, "on": true, "to": true, "their": true,
}

// extractEntities runs every entity rule over the query and collects
// ordered, de-duplicated matches per kind.
func extractEntities(query string) map[domain.EntityKind][]string {
	out := map[domain.EntityKind][]string{}
	for _, rule := range entityRules {
		matches := rule.Re.FindAllString(query, -1)
		if len(matches) == 0 {
			continue
		}
		seen := map[string]bool{}
		for _, m := range matches {
			m = trimQuotes(m)
			if seen[m] {
				continue
			}
			seen[m] = true
			out[rule.Kind] = append(out[rule.Kind], m)
		}
	}
	return out
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// extractKeywords tokenizes on whitespace/punctuation and keeps
// non-stopword tokens of length >= 3 as the keyword set.
func extractKeywords(query string) []string {
	tokens := tokenizeRE.FindAllString(query, -1)
	seen := map[string]bool{}
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) < 3 || stopwords[t] {
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

var tokenizeRE = regexp.MustCompile(`[\p{L}\p{N}]+`)
