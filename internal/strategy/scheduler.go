// Package strategy implements the strategy scheduler (C6): it runs the
// rule-based and/or LLM-backed generators according to one of five
// strategies and resolves the winning SQL Artifact.
package strategy

import (
	"context"
	"errors"

	"github.com/alitto/pond/v2"

	"github.com/lakeql/nlsearch/internal/domain"
	"github.com/lakeql/nlsearch/internal/retry"
	"github.com/lakeql/nlsearch/internal/sqlgen"
)

// lowConfidenceThreshold gates rule_first's fallback to the LLM.
const lowConfidenceThreshold = 0.5

// Scheduler picks and runs a generation strategy.
type Scheduler struct {
	rule       sqlgen.Generator
	llm        sqlgen.Generator
	retryPolicy retry.Policy
	hybridPool pond.ResultPool[branchResult]
}

type branchResult struct {
	artifact domain.SQLArtifact
	err      error
}

// New builds a Scheduler over the rule and LLM generators. retryPolicy
// governs every C4 invocation (the LLM generator is always run "wrapped
// by C5", per the strategy table).
func New(rule, llm sqlgen.Generator, retryPolicy retry.Policy) *Scheduler {
	return &Scheduler{
		rule:        rule,
		llm:         llm,
		retryPolicy: retryPolicy,
		hybridPool:  pond.NewResultPool[branchResult](2),
	}
}

// Generate resolves a SQL Artifact for intent/query under strategy.
func (s *Scheduler) Generate(ctx context.Context, strat domain.Strategy, intent domain.Intent, query string) (domain.SQLArtifact, error) {
	switch strat {
	case domain.StrategyRuleOnly:
		return s.runRule(ctx, intent, query)
	case domain.StrategyLLMOnly:
		return s.runLLM(ctx, intent, query)
	case domain.StrategyRuleFirst:
		return s.ruleFirst(ctx, intent, query)
	case domain.StrategyLLMFirst:
		return s.llmFirst(ctx, intent, query)
	case domain.StrategyHybrid:
		return s.hybrid(ctx, intent, query)
	default:
		return s.ruleFirst(ctx, intent, query)
	}
}

func (s *Scheduler) runRule(ctx context.Context, intent domain.Intent, query string) (domain.SQLArtifact, error) {
	artifact, err := s.rule.Generate(ctx, intent, query)
	if err != nil {
		return domain.SQLArtifact{}, err
	}
	return artifact, nil
}

// runLLM runs the LLM generator wrapped by the retry executor.
func (s *Scheduler) runLLM(ctx context.Context, intent domain.Intent, query string) (domain.SQLArtifact, error) {
	policy := s.retryPolicy
	policy.Retriable = isRetriableGenError
	return retry.Do(ctx, policy, func(ctx context.Context, _ int) (domain.SQLArtifact, error) {
		return s.llm.Generate(ctx, intent, query)
	})
}

func (s *Scheduler) ruleFirst(ctx context.Context, intent domain.Intent, query string) (domain.SQLArtifact, error) {
	artifact, err := s.rule.Generate(ctx, intent, query)
	if err == nil && artifact.Confidence >= lowConfidenceThreshold {
		return artifact, nil
	}
	llmArtifact, llmErr := s.runLLM(ctx, intent, query)
	if llmErr != nil {
		if err != nil {
			return domain.SQLArtifact{}, &domain.MultiGenError{Reasons: []string{"rule: " + err.Error(), "llm: " + llmErr.Error()}}
		}
		return domain.SQLArtifact{}, llmErr
	}
	return llmArtifact, nil
}

func (s *Scheduler) llmFirst(ctx context.Context, intent domain.Intent, query string) (domain.SQLArtifact, error) {
	llmArtifact, llmErr := s.runLLM(ctx, intent, query)
	if llmErr == nil {
		return llmArtifact, nil
	}
	ruleArtifact, ruleErr := s.rule.Generate(ctx, intent, query)
	if ruleErr != nil {
		return domain.SQLArtifact{}, &domain.MultiGenError{Reasons: []string{"llm: " + llmErr.Error(), "rule: " + ruleErr.Error()}}
	}
	return ruleArtifact, nil
}

// hybrid runs both generators in parallel under the same ctx deadline
// and picks the higher-confidence artifact; ties favor the rule result.
// A failed branch never aborts the other: each branch always returns a
// nil group error and carries its own failure inside branchResult.
func (s *Scheduler) hybrid(ctx context.Context, intent domain.Intent, query string) (domain.SQLArtifact, error) {
	group := s.hybridPool.NewGroupContext(ctx)

	group.SubmitErr(func() (branchResult, error) {
		artifact, err := s.rule.Generate(ctx, intent, query)
		return branchResult{artifact: artifact, err: err}, nil
	})
	group.SubmitErr(func() (branchResult, error) {
		artifact, err := s.runLLM(ctx, intent, query)
		return branchResult{artifact: artifact, err: err}, nil
	})

	results, err := group.Wait()
	if err != nil {
		return domain.SQLArtifact{}, err
	}

	rule, llmResult := results[0], results[1]
	switch {
	case rule.err != nil && llmResult.err != nil:
		return domain.SQLArtifact{}, &domain.MultiGenError{Reasons: []string{"rule: " + rule.err.Error(), "llm: " + llmResult.err.Error()}}
	case rule.err != nil:
		return llmResult.artifact, nil
	case llmResult.err != nil:
		return rule.artifact, nil
	case llmResult.artifact.Confidence > rule.artifact.Confidence:
		return llmResult.artifact, nil
	default:
		return rule.artifact, nil
	}
}

func isRetriableGenError(err error) bool {
	var genErr *domain.GenError
	if errors.As(err, &genErr) {
		return genErr.Retriable()
	}
	return false
}
