// Package sqlvalidate implements the SQL safety validator (C2): an
// AND-ed rule set that either accepts a candidate statement or rejects
// it with the set of rule-ids that fired. It is the only line of
// defence between external text and the database, so every rule is a
// single regex/string scan — no SQL parser, to stay well under the
// module's 10ms budget even at the length cap.
package sqlvalidate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lakeql/nlsearch/internal/domain"
)

const maxSQLBytes = 10 * 1024 // R1: 10 KiB
const maxLimit = 100

// Validator holds the table whitelist it validates against.
type Validator struct {
	whitelist map[string]bool
}

// New builds a Validator over the given allowed-table list.
func New(whitelist []string) *Validator {
	set := make(map[string]bool, len(whitelist))
	for _, t := range whitelist {
		set[strings.ToLower(t)] = true
	}
	return &Validator{whitelist: set}
}

// Validate runs rules R1-R7 (plus the R8 advisory) against sql and
// returns the Verdict. Accepted is true iff no rule rejected.
func (v *Validator) Validate(sql string) domain.Verdict {
	var reasons []domain.RuleID

	if len(sql) > maxSQLBytes {
		reasons = append(reasons, domain.RuleTooLong)
	}

	if !domain.StartsWithSelectOrWith(sql) {
		reasons = append(reasons, domain.RuleNonSelect)
	}

	if hasDestructiveVerb(sql) {
		reasons = append(reasons, domain.RuleDestructive)
	}

	if hasSystemIdentifier(sql) {
		reasons = append(reasons, domain.RuleSystemAccess)
	}

	if v.hasInjectionPattern(sql) {
		reasons = append(reasons, domain.RuleInjection)
	}

	if !v.allTablesWhitelisted(sql) {
		reasons = append(reasons, domain.RuleUnauthorizedTable)
	}

	normalized, limitReason := enforceLimit(sql)
	if limitReason != "" {
		reasons = append(reasons, domain.RuleLimitExceeded)
	}

	var advisories []domain.RuleID
	if v.hasAdvisoryColumnIssue(sql) {
		advisories = append(advisories, domain.RuleAdvisoryColumn)
	}

	return domain.Verdict{
		Accepted:      len(reasons) == 0,
		Reasons:       reasons,
		Advisories:    advisories,
		NormalizedSQL: normalized,
	}
}

func hasDestructiveVerb(sql string) bool {
	upper := strings.ToUpper(sql)
	for _, verb := range destructiveVerbs {
		if containsWholeToken(upper, verb) {
			return true
		}
	}
	return false
}

func hasSystemIdentifier(sql string) bool {
	lower := strings.ToLower(sql)
	for _, id := range systemIdentifiers {
		if strings.Contains(lower, strings.ToLower(id)) {
			return true
		}
	}
	return false
}

// containsWholeToken reports whether token appears in upperSQL as a
// standalone identifier (not as a substring of a longer identifier).
func containsWholeToken(upperSQL, token string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(token) + `\b`)
	return re.MatchString(upperSQL)
}

// hasInjectionPattern implements R5's four lexical checks.
func (v *Validator) hasInjectionPattern(sql string) bool {
	if hasOddUnescapedQuotes(sql) {
		return true
	}
	if stackedStmtRE.MatchString(sql) {
		return true
	}
	if v.unionReferencesUnauthorizedTable(sql) {
		return true
	}
	if commentVerbRE.MatchString(sql) {
		return true
	}
	return false
}

func hasOddUnescapedQuotes(sql string) bool {
	withoutEscaped := strings.ReplaceAll(sql, "''", "")
	return strings.Count(withoutEscaped, "'")%2 != 0
}

func (v *Validator) unionReferencesUnauthorizedTable(sql string) bool {
	loc := unionRE.FindStringIndex(sql)
	if loc == nil {
		return false
	}
	rightSide := sql[loc[1]:]
	for _, table := range extractTables(rightSide) {
		if !v.whitelist[table] {
			return true
		}
	}
	return false
}

func extractTables(sql string) []string {
	matches := fromJoinTableRE.FindAllStringSubmatch(sql, -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		tables = append(tables, name)
	}
	return tables
}

func (v *Validator) allTablesWhitelisted(sql string) bool {
	for _, table := range extractTables(sql) {
		if !v.whitelist[table] {
			return false
		}
	}
	return true
}

// enforceLimit implements R7: append LIMIT 100 when absent, reject when
// an explicit LIMIT exceeds maxLimit.
func enforceLimit(sql string) (normalized string, rejectReason string) {
	m := limitRE.FindStringSubmatch(sql)
	if m == nil {
		trimmed := strings.TrimRight(strings.TrimSpace(sql), ";")
		return trimmed + " LIMIT " + strconv.Itoa(maxLimit), ""
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > maxLimit {
		return sql, "limit_exceeded"
	}
	return sql, ""
}

// hasAdvisoryColumnIssue implements R8: a best-effort check that flags
// (without rejecting) a SELECT referencing a column outside the known
// set for a single, unambiguously-referenced table.
func (v *Validator) hasAdvisoryColumnIssue(sql string) bool {
	tables := extractTables(sql)
	if len(tables) != 1 {
		return false // ambiguous which table a column belongs to; skip
	}
	allowed, ok := advisoryColumns[tables[0]]
	if !ok {
		return false
	}
	cols := selectedColumns(sql)
	if len(cols) == 0 {
		return false
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		allowedSet[c] = true
	}
	for _, c := range cols {
		if c == "*" {
			continue
		}
		if !allowedSet[strings.ToLower(c)] {
			return true
		}
	}
	return false
}

var selectColumnsRE = regexp.MustCompile(`(?is)^\s*SELECT\s+(.+?)\s+FROM\s`)

func selectedColumns(sql string) []string {
	m := selectColumnsRE.FindStringSubmatch(sql)
	if m == nil {
		return nil
	}
	parts := strings.Split(m[1], ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		// Drop "col AS alias" / "table.col" qualifiers for a simple check.
		if i := strings.IndexByte(p, ' '); i >= 0 {
			p = p[:i]
		}
		if i := strings.LastIndexByte(p, '.'); i >= 0 {
			p = p[i+1:]
		}
		if p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}
