// Package llm implements the LLM-backed SQL generator (C4): renders a
// prompt from the static schema summary, example pairs and the user
// query, asks the model for a strict JSON response, and repairs a
// single malformed-JSON response by extracting the first balanced
// {...} block before giving up.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lakeql/nlsearch/internal/domain"
	"github.com/lakeql/nlsearch/internal/llm"
)

const defaultConfidence = 0.7
const defaultTimeout = 30 * time.Second

// generateResponse is the expected JSON shape from the model.
type generateResponse struct {
	SQL         string         `json:"sql"`
	Parameters  map[string]any `json:"parameters"`
	Explanation string         `json:"explanation"`
	Confidence  *float64       `json:"confidence"`
}

// Generator renders a prompt and delegates completion to an llm.Client,
// bounding every call by its own timeout regardless of how much of the
// caller's deadline remains.
type Generator struct {
	client  llm.Client
	timeout time.Duration
}

// New returns a Generator backed by client. timeout <= 0 uses the
// default (30s).
func New(client llm.Client, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Generator{client: client, timeout: timeout}
}

// Generate asks the LLM for a SQL Artifact for the given query. The
// call is bounded by min(g.timeout, time left on ctx), the same
// sub-deadline pattern the query runner (C9) applies to the database
// call.
func (g *Generator) Generate(ctx context.Context, intent domain.Intent, query string) (domain.SQLArtifact, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	systemPrompt := buildSystemPrompt()
	userPrompt := buildUserPrompt(query, intent.Keywords)

	raw, err := g.client.Complete(ctx, systemPrompt, userPrompt, llm.WithCacheControl())
	if err != nil {
		if ctx.Err() != nil {
			return domain.SQLArtifact{}, &domain.GenError{Kind: domain.GenErrLLMTimeout, Reason: ctx.Err().Error()}
		}
		return domain.SQLArtifact{}, &domain.GenError{Kind: domain.GenErrLLMUnavailable, Reason: err.Error()}
	}

	parsed, err := parseGenerateResponse(raw)
	if err != nil {
		return domain.SQLArtifact{}, &domain.GenError{Kind: domain.GenErrLLMMalformed, Reason: err.Error()}
	}

	confidence := defaultConfidence
	if parsed.Confidence != nil {
		confidence = *parsed.Confidence
	}

	return domain.SQLArtifact{
		SQL:         parsed.SQL,
		Parameters:  parsed.Parameters,
		Explanation: parsed.Explanation,
		Confidence:  confidence,
		Source:      domain.SourceLLM,
	}, nil
}

func parseGenerateResponse(raw string) (*generateResponse, error) {
	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return nil, errors.New("no JSON object found in response")
	}

	var parsed generateResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		// Single repair pass: re-extract the first balanced {...} block
		// in case the first extraction grabbed a partial match.
		repaired := extractJSONObject(jsonStr, 0)
		if repaired == "" || json.Unmarshal([]byte(repaired), &parsed) != nil {
			return nil, fmt.Errorf("malformed JSON response: %w", err)
		}
	}

	if parsed.SQL == "" {
		return nil, errors.New("response JSON has no sql field")
	}
	if parsed.Parameters == nil {
		parsed.Parameters = map[string]any{}
	}
	return &parsed, nil
}
