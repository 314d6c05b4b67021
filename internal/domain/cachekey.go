package domain

import (
	"crypto/md5"
	"encoding/hex"
)

// CacheKey computes the 32-character lowercase hex digest used to key the
// result cache: digest(normalize(query) || 0x1f || canonical(context) ||
// 0x1f || canonical(options)). MD5 is used purely as a content digest, not
// for anything security-sensitive, matching the hashing scheme the original
// SearchCache.generate_cache_key used for the same purpose.
func CacheKey(query string, context map[string]any, opts RequestOptions) string {
	h := md5.New()
	h.Write([]byte(Normalize(query)))
	h.Write([]byte{0x1f})
	h.Write([]byte(CanonicalJSON(context)))
	h.Write([]byte{0x1f})
	h.Write([]byte(CanonicalJSON(optionsForKey(opts))))
	return hex.EncodeToString(h.Sum(nil))
}

// optionsForKey filters RequestOptions down to the fields that change the
// computed result, so unrelated knobs (e.g. use_cache itself) don't
// fragment the cache. Mirrors the "filtered important options" step in
// the original cache-key generator.
func optionsForKey(opts RequestOptions) map[string]any {
	m := map[string]any{}
	if opts.Strategy != "" {
		m["strategy"] = string(opts.Strategy)
	}
	if opts.Limit != 0 {
		m["limit"] = opts.Limit
	}
	m["enable_highlighting"] = opts.EnableHighlighting
	for k, v := range opts.Extra {
		m[k] = v
	}
	return m
}
