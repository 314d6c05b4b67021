// Package llm declares the LLM client contract consumed by the
// generator (C4) and provides two implementations: an Anthropic-backed
// adapter (C14) and a scripted fake for tests.
package llm

import "context"

// CompleteOptions holds options for a single Complete call.
type CompleteOptions struct {
	CacheSystemPrompt bool
}

// CompleteOption is a functional option for Complete.
type CompleteOption func(*CompleteOptions)

// WithCacheControl marks the system prompt as cacheable: it is large
// and identical across concurrent generation calls for the same
// deployment's schema summary.
func WithCacheControl() CompleteOption {
	return func(o *CompleteOptions) {
		o.CacheSystemPrompt = true
	}
}

// Client is the interface for interacting with an LLM.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error)
}
