package domain

import "time"

// Row is a single result row, column name to value.
type Row map[string]any

// PageInfo describes the slice of a result set returned to the client.
type PageInfo struct {
	Offset  int
	Limit   int
	Total   int
	Page    int
	Pages   int
	HasNext bool
	HasPrev bool
}

// Result is the fully-formatted output of a single pipeline run.
type Result struct {
	Rows            []Row
	RowCount        int
	ExecutionTimeMS int64
	StrategyUsed    Strategy
	Artifact        SQLArtifact
	Intent          Intent
	Highlighted     bool
	PageInfo        PageInfo
}

// CacheEntry is a stored Result plus the cache's own bookkeeping. The
// cache owns entries exclusively; Get returns a copy of Payload, never a
// reference into cache-internal storage.
type CacheEntry struct {
	Key        string
	Payload    Result
	ExpiresAt  time.Time
	CreatedAt  time.Time
	HitCount   int
	LastAccess time.Time

	// TotalRows and ExecutionTimeMS are copied from Payload at Put time;
	// Cache.Stats does not read them. Mirrors the original SearchCache
	// row, which carried these alongside the JSON payload.
	TotalRows       int
	ExecutionTimeMS int64
}

// PopularQuery is a process-wide aggregate maintained by the analytics
// recorder (C11).
type PopularQuery struct {
	NormalizedQuery string
	Count           int64
	LastSeen        time.Time
	AvgResponseTime float64 // seconds
	SuccessRate     float64
	TotalRows       int64
}

// QuerySuggestion is one autocomplete candidate returned by the
// analytics recorder's fuzzy match over previously seen queries,
// ranked by closeness to the caller's partial input first and by how
// often the matched query has been seen second.
type QuerySuggestion struct {
	NormalizedQuery string
	Count           int64
	Distance        int
}
