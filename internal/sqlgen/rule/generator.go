// Package rule implements the rule-based SQL generator (C3): a table of
// pattern templates keyed on intent kind and detected entity sets, with
// per-template fixed confidence. Values are always substituted as named
// parameters, never inlined into the SQL text.
package rule

import (
	"context"

	"github.com/lakeql/nlsearch/internal/domain"
)

// Generator matches an Intent against the template table.
type Generator struct{}

// New returns a ready-to-use Generator.
func New() *Generator { return &Generator{} }

// Generate returns a SQL Artifact for the first matching template, or a
// *domain.GenError{Kind: GenErrNoRuleMatch} if none match.
func (g *Generator) Generate(_ context.Context, intent domain.Intent, _ string) (domain.SQLArtifact, error) {
	for _, tpl := range templates {
		if tpl.kind != intent.Kind {
			continue
		}
		if !hasAll(intent.Entities, tpl.requires) {
			continue
		}
		sql, params := tpl.build(intent.Entities)
		return domain.SQLArtifact{
			SQL:         sql,
			Parameters:  params,
			Explanation: "matched rule template " + tpl.name,
			Confidence:  tpl.confidence,
			Source:      domain.SourceRule,
		}, nil
	}
	return domain.SQLArtifact{}, &domain.GenError{Kind: domain.GenErrNoRuleMatch}
}

func hasAll(entities map[domain.EntityKind][]string, required []domain.EntityKind) bool {
	for _, k := range required {
		if len(entities[k]) == 0 {
			return false
		}
	}
	return true
}
