package domain

import (
	"regexp"
	"strings"
)

// ArtifactSource records which generator produced a SQL Artifact.
type ArtifactSource string

const (
	SourceRule   ArtifactSource = "rule"
	SourceLLM    ArtifactSource = "llm"
	SourceHybrid ArtifactSource = "hybrid"
)

// SQLArtifact is a generated query plus its parameter bindings. sql is
// never interpolated with user values directly: every %(name)s
// placeholder must have a matching entry in Parameters.
type SQLArtifact struct {
	SQL         string
	Parameters  map[string]any
	Explanation string
	Confidence  float64
	Source      ArtifactSource
}

var placeholderRE = regexp.MustCompile(`%\(([a-zA-Z_][a-zA-Z0-9_]*)\)s`)

// Placeholders returns the set of %(name)s placeholder names referenced
// in sql, in order of first appearance.
func Placeholders(sql string) []string {
	matches := placeholderRE.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// WellFormed reports whether every placeholder in a.SQL has a matching
// parameter and vice versa, and the statement starts with SELECT/WITH.
func (a SQLArtifact) WellFormed() bool {
	if !StartsWithSelectOrWith(a.SQL) {
		return false
	}
	placeholders := Placeholders(a.SQL)
	if len(placeholders) != len(a.Parameters) {
		return false
	}
	for _, p := range placeholders {
		if _, ok := a.Parameters[p]; !ok {
			return false
		}
	}
	return true
}

// StartsWithSelectOrWith checks the first keyword after stripping leading
// whitespace and comments, mirroring rule R2 of the SQL validator.
func StartsWithSelectOrWith(sql string) bool {
	trimmed := StripLeadingCommentsAndSpace(sql)
	upper := strings.ToUpper(trimmed)
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

// StripLeadingCommentsAndSpace removes leading whitespace and any leading
// "--" or "/* ... */" comments, repeatedly, so callers can inspect the
// first real token of a statement. Shared by SQLArtifact.WellFormed and
// the SQL validator's R2 check.
func StripLeadingCommentsAndSpace(sql string) string {
	s := sql
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
				continue
			}
			return ""
		default:
			return s
		}
	}
}
