// Package formatter implements the result formatter (C10): highlighting
// of query terms inside string columns, and pagination arithmetic over
// a row slice.
package formatter

import (
	"html"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/lakeql/nlsearch/internal/domain"
)

const defaultMarkerOpen = "«"
const defaultMarkerClose = "»"

var tokenRE = regexp.MustCompile(`[\p{Han}\p{Hiragana}\p{Katakana}\p{Hangul}]+|[A-Za-z0-9]+`)

// Tokenize splits query on whitespace while treating CJK character runs
// as their own tokens, since Korean and Japanese text is frequently
// unspaced.
func Tokenize(query string) []string {
	matches := tokenRE.FindAllString(query, -1)
	seen := make(map[string]bool, len(matches))
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) < 1 || seen[m] {
			continue
		}
		seen[m] = true
		tokens = append(tokens, m)
	}
	// Longest first, so "customers" vs "customer" style overlaps highlight
	// the longer token rather than leaving a partial match inside it.
	sort.Slice(tokens, func(i, j int) bool { return len(tokens[i]) > len(tokens[j]) })
	return tokens
}

// Highlighter wraps matched query terms in string column values.
type Highlighter struct {
	MarkerOpen, MarkerClose string
	re                      *regexp.Regexp
}

// NewHighlighter builds a Highlighter for the given query's tokens.
// An empty query yields a Highlighter that never matches.
func NewHighlighter(query, markerOpen, markerClose string) *Highlighter {
	if markerOpen == "" {
		markerOpen = defaultMarkerOpen
	}
	if markerClose == "" {
		markerClose = defaultMarkerClose
	}
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return &Highlighter{MarkerOpen: markerOpen, MarkerClose: markerClose}
	}

	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = regexp.QuoteMeta(tok)
	}
	return &Highlighter{
		MarkerOpen:  markerOpen,
		MarkerClose: markerClose,
		re:          regexp.MustCompile("(?i)(" + strings.Join(parts, "|") + ")"),
	}
}

// HighlightRows HTML-escapes every string value in rows, then wraps
// matched query terms in the marker pair. Non-string values pass
// through unchanged.
func (h *Highlighter) HighlightRows(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, row := range rows {
		out[i] = h.highlightRow(row)
	}
	return out
}

func (h *Highlighter) highlightRow(row domain.Row) domain.Row {
	out := make(domain.Row, len(row))
	for col, val := range row {
		s, ok := val.(string)
		if !ok {
			out[col] = val
			continue
		}
		escaped := html.EscapeString(s)
		if h.re == nil {
			out[col] = escaped
			continue
		}
		out[col] = h.re.ReplaceAllString(escaped, h.MarkerOpen+"$1"+h.MarkerClose)
	}
	return out
}

// Paginate slices rows to [offset, offset+limit) and computes PageInfo.
// limit <= 0 is treated as "no pagination": the full slice is returned
// as a single page.
func Paginate(rows []domain.Row, offset, limit int) ([]domain.Row, domain.PageInfo) {
	total := len(rows)
	if limit <= 0 {
		return rows, domain.PageInfo{Offset: 0, Limit: total, Total: total, Page: 1, Pages: 1}
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	pages := int(math.Ceil(float64(total) / float64(limit)))
	if pages < 1 {
		pages = 1
	}
	page := offset/limit + 1

	return rows[offset:end], domain.PageInfo{
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		Page:    page,
		Pages:   pages,
		HasNext: end < total,
		HasPrev: offset > 0,
	}
}
