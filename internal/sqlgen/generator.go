// Package sqlgen declares the shared contract implemented by the
// rule-based (C3) and LLM-backed (C4) SQL generators, so the strategy
// scheduler (C6) can hold both behind one interface.
package sqlgen

import (
	"context"

	"github.com/lakeql/nlsearch/internal/domain"
)

// Generator turns a classified Intent into a SQL Artifact.
type Generator interface {
	Generate(ctx context.Context, intent domain.Intent, query string) (domain.SQLArtifact, error)
}
