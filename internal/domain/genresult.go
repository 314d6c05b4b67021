package domain

import "strings"

// GenErrorKind is the failure taxonomy local to SQL generation (C3/C4),
// distinct from the pipeline-wide ErrorKind surfaced to clients. The
// strategy scheduler (C6) and retry executor (C5) reason about these;
// C7 maps a generation failure to the single pipeline-wide
// generation_failed kind.
type GenErrorKind string

const (
	GenErrNoRuleMatch        GenErrorKind = "no_rule_match"
	GenErrLLMUnavailable     GenErrorKind = "llm_unavailable"
	GenErrLLMTimeout         GenErrorKind = "llm_timeout"
	GenErrLLMMalformed       GenErrorKind = "llm_malformed"
	GenErrTransientNetwork   GenErrorKind = "transient_network"
)

// GenError is the error type returned by C3/C4 generators and wrapped by
// C5/C6 as attempts are retried or fall back.
type GenError struct {
	Kind   GenErrorKind
	Reason string
}

func (e *GenError) Error() string {
	if e.Reason != "" {
		return string(e.Kind) + ": " + e.Reason
	}
	return string(e.Kind)
}

// Retriable reports whether C5 is allowed to re-attempt after this error.
func (e *GenError) Retriable() bool {
	switch e.Kind {
	case GenErrLLMTimeout, GenErrLLMMalformed, GenErrTransientNetwork:
		return true
	default:
		return false
	}
}

// MultiGenError carries one labeled reason per strategy branch that was
// tried and failed, for strategies (rule_first, llm_first, hybrid) that
// run more than one generator before giving up.
type MultiGenError struct {
	Reasons []string
}

func (e *MultiGenError) Error() string {
	return strings.Join(e.Reasons, "; ")
}
