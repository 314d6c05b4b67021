// Package runner implements the read-only query runner (C9): it
// translates a SQL Artifact's %(name)s named placeholders into
// positional placeholders, enforces a per-query statement timeout, and
// double-checks the row-count cap the validator already enforced on
// the SQL text.
package runner

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/lakeql/nlsearch/internal/db"
	"github.com/lakeql/nlsearch/internal/domain"
)

const defaultStatementTimeout = 10 * time.Second
const defaultRowCap = 100

var namedPlaceholderRE = regexp.MustCompile(`%\(([a-zA-Z_][a-zA-Z0-9_]*)\)s`)

// Runner executes a validated SQL Artifact against a Querier.
type Runner struct {
	querier           db.Querier
	statementTimeout  time.Duration
	rowCap            int
}

// New builds a Runner. rowCap <= 0 uses the default cap (100).
func New(querier db.Querier, statementTimeout time.Duration, rowCap int) *Runner {
	if statementTimeout <= 0 {
		statementTimeout = defaultStatementTimeout
	}
	if rowCap <= 0 {
		rowCap = defaultRowCap
	}
	return &Runner{querier: querier, statementTimeout: statementTimeout, rowCap: rowCap}
}

// Run executes artifact and returns rows in result order, truncated to
// the row cap if the underlying query somehow returned more.
func (r *Runner) Run(ctx context.Context, artifact domain.SQLArtifact) ([]string, []domain.Row, error) {
	positionalSQL, args, err := bindNamedParameters(artifact.SQL, artifact.Parameters)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.statementTimeout)
	defer cancel()

	columns, rows, err := r.querier.Query(ctx, positionalSQL, args)
	if err != nil {
		return nil, nil, fmt.Errorf("run query: %w", err)
	}

	if len(rows) > r.rowCap {
		rows = rows[:r.rowCap]
	}
	return columns, rows, nil
}

// bindNamedParameters rewrites %(name)s placeholders, in order of first
// appearance, into pgx's $1, $2, ... positional syntax and produces the
// matching ordered argument slice. Values are never interpolated into
// the SQL text itself.
func bindNamedParameters(sql string, params map[string]any) (string, []any, error) {
	var args []any
	var missing string
	seen := make(map[string]int) // name -> 1-indexed position

	rewritten := namedPlaceholderRE.ReplaceAllStringFunc(sql, func(match string) string {
		name := namedPlaceholderRE.FindStringSubmatch(match)[1]
		if pos, ok := seen[name]; ok {
			return fmt.Sprintf("$%d", pos)
		}
		value, ok := params[name]
		if !ok && missing == "" {
			missing = name
		}
		args = append(args, value)
		pos := len(args)
		seen[name] = pos
		return fmt.Sprintf("$%d", pos)
	})
	if missing != "" {
		return "", nil, fmt.Errorf("missing value for placeholder %q", missing)
	}

	for name := range params {
		if _, used := seen[name]; !used {
			return "", nil, fmt.Errorf("parameter %q is not referenced by the statement", name)
		}
	}
	return rewritten, args, nil
}
