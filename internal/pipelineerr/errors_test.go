package pipelineerr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeql/nlsearch/internal/domain"
)

func TestGenerationFailed_CarriesPerBranchReasonsFromMultiGenError(t *testing.T) {
	multi := &domain.MultiGenError{Reasons: []string{"rule: no_rule_match", "llm: llm_unavailable: connection refused"}}

	e := GenerationFailed(multi)
	assert.Equal(t, domain.ErrGenerationFailed, e.Kind)
	assert.Equal(t, multi.Reasons, e.GenReasons)
}

func TestGenerationFailed_FallsBackToSingleReasonForPlainError(t *testing.T) {
	e := GenerationFailed(&domain.GenError{Kind: domain.GenErrNoRuleMatch})
	assert.Equal(t, domain.ErrGenerationFailed, e.Kind)
	require.Len(t, e.GenReasons, 1)
	assert.Equal(t, "no_rule_match", e.GenReasons[0])
}

func TestSecurity_StillPopulatesRuleReasonsNotGenReasons(t *testing.T) {
	e := Security([]domain.RuleID{domain.RuleUnauthorizedTable})
	assert.Equal(t, domain.ErrSecurity, e.Kind)
	assert.Equal(t, []domain.RuleID{domain.RuleUnauthorizedTable}, e.Reasons)
	assert.Nil(t, e.GenReasons)
}
