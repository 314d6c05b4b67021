// Package pipelineerr defines the small taxonomy of terminal error kinds
// the pipeline surfaces (spec §7), wrapped the way the rest of this
// module wraps errors: fmt.Errorf("...: %w", err) at each layer, with
// errors.As used at the boundary that needs to recover the Kind.
package pipelineerr

import (
	"errors"
	"fmt"

	"github.com/lakeql/nlsearch/internal/domain"
)

// Error is a pipeline-terminal error carrying its taxonomy kind.
type Error struct {
	Kind       domain.ErrorKind
	Reasons    []domain.RuleID // populated for Kind == security
	GenReasons []string        // populated for Kind == generation_failed, one per strategy branch tried
	err        error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.err }

// New builds a pipelineerr.Error with the given kind and message.
func New(kind domain.ErrorKind, msg string) *Error {
	return &Error{Kind: kind, err: errors.New(msg)}
}

// Wrap builds a pipelineerr.Error with the given kind, wrapping err.
func Wrap(kind domain.ErrorKind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, err: err}
}

// Security builds a security-kind error carrying validator rule-ids. Its
// Error() text intentionally omits the offending SQL.
func Security(reasons []domain.RuleID) *Error {
	return &Error{
		Kind:    domain.ErrSecurity,
		Reasons: reasons,
		err:     fmt.Errorf("rejected by rules: %v", reasons),
	}
}

// GenerationFailed builds a generation_failed-kind error. If err wraps a
// *domain.MultiGenError (every strategy that tries more than one
// generator builds one on a double failure), its per-branch reasons are
// carried onto GenReasons; otherwise GenReasons holds err's own message
// as the sole reason.
func GenerationFailed(err error) *Error {
	e := &Error{Kind: domain.ErrGenerationFailed, err: err}
	var multi *domain.MultiGenError
	switch {
	case errors.As(err, &multi):
		e.GenReasons = multi.Reasons
	case err != nil:
		e.GenReasons = []string{err.Error()}
	}
	return e
}

// KindOf extracts the taxonomy kind from err, defaulting to ErrRuntime
// if err is not (or does not wrap) a *Error.
func KindOf(err error) domain.ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return domain.ErrRuntime
}
