package sqlvalidate

import "regexp"

// destructiveVerbs are rejected as whole tokens anywhere in the
// statement (rule R3).
var destructiveVerbs = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "TRUNCATE", "ALTER", "CREATE", "GRANT", "REVOKE", "COPY",
}

// systemIdentifiers are rejected anywhere in the statement (rule R4).
var systemIdentifiers = []string{
	"pg_sleep", "pg_read_file", "lo_import", "lo_export",
	"current_user", "session_user", "version()", "information_schema", "pg_catalog",
}

// advisoryColumns is a best-effort, non-blocking per-table column
// whitelist (rule R8), following the soft column check the original
// sql_validator.py carried alongside its hard table whitelist. Unknown
// tables are simply not checked: this is advisory, never a rejection
// source, so an incomplete map only means fewer advisories, not false
// rejections.
var advisoryColumns = map[string][]string{
	"customers": {
		"id", "name", "email", "phone", "region", "status", "created_at", "updated_at",
	},
	"customer_memos": {
		"id", "customer_id", "body", "author", "created_at",
	},
	"customer_products": {
		"id", "customer_id", "product_name", "amount", "purchased_at",
	},
	"users": {
		"id", "name", "email", "role", "created_at",
	},
	"events": {
		"id", "customer_id", "kind", "occurred_at", "metadata",
	},
}

var (
	unionRE      = regexp.MustCompile(`(?i)\bUNION\b(\s+ALL)?`)
	stackedStmtRE = regexp.MustCompile(`;\s*[^\s-/]`) // ';' then a non-whitespace, non-comment-opener char
	commentVerbRE = regexp.MustCompile(`(?i)(--|/\*).{0,40}?\b(SELECT|DROP|DELETE|UPDATE|INSERT|UNION)\b`)
	fromJoinTableRE = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	limitRE         = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\b`)
)
