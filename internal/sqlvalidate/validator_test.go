package sqlvalidate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lakeql/nlsearch/internal/domain"
)

func whitelist() []string {
	return []string{"customers", "customer_memos", "customer_products", "users", "events"}
}

func TestValidate_AcceptsSimpleSelect(t *testing.T) {
	v := New(whitelist())
	got := v.Validate(`SELECT * FROM customers WHERE name = 'x'`)

	assert.True(t, got.Accepted)
	assert.Empty(t, got.Reasons)
	assert.Contains(t, got.NormalizedSQL, "LIMIT 100")
}

func TestValidate_RejectsTooLong(t *testing.T) {
	v := New(whitelist())
	sql := "SELECT * FROM customers WHERE name = '" + strings.Repeat("a", 11*1024) + "'"
	got := v.Validate(sql)

	assert.False(t, got.Accepted)
	assert.Contains(t, got.Reasons, domain.RuleTooLong)
}

func TestValidate_RejectsNonSelect(t *testing.T) {
	v := New(whitelist())
	got := v.Validate(`UPDATE customers SET name = 'x'`)

	assert.False(t, got.Accepted)
	assert.Contains(t, got.Reasons, domain.RuleNonSelect)
	assert.Contains(t, got.Reasons, domain.RuleDestructive)
}

func TestValidate_InjectionScenario(t *testing.T) {
	v := New(whitelist())
	got := v.Validate(`'; DROP TABLE customers; --`)

	assert.False(t, got.Accepted)
	assert.Contains(t, got.Reasons, domain.RuleDestructive)
	assert.Contains(t, got.Reasons, domain.RuleInjection)
}

func TestValidate_RejectsSystemAccess(t *testing.T) {
	v := New(whitelist())
	got := v.Validate(`SELECT pg_sleep(5) FROM customers`)

	assert.False(t, got.Accepted)
	assert.Contains(t, got.Reasons, domain.RuleSystemAccess)
}

func TestValidate_RejectsUnauthorizedTable(t *testing.T) {
	v := New(whitelist())
	got := v.Validate(`SELECT * FROM secret_table`)

	assert.False(t, got.Accepted)
	assert.Contains(t, got.Reasons, domain.RuleUnauthorizedTable)
}

func TestValidate_LimitBoundary(t *testing.T) {
	v := New(whitelist())

	ok := v.Validate(`SELECT * FROM customers LIMIT 100`)
	assert.True(t, ok.Accepted)

	rejected := v.Validate(`SELECT * FROM customers LIMIT 101`)
	assert.False(t, rejected.Accepted)
	assert.Contains(t, rejected.Reasons, domain.RuleLimitExceeded)
}

func TestValidate_UnionIntoUnauthorizedTableIsInjection(t *testing.T) {
	v := New(whitelist())
	got := v.Validate(`SELECT * FROM customers UNION SELECT * FROM secret_table`)

	assert.False(t, got.Accepted)
	assert.Contains(t, got.Reasons, domain.RuleInjection)
}

func TestValidate_AdvisoryColumnDoesNotBlock(t *testing.T) {
	v := New(whitelist())
	got := v.Validate(`SELECT id, nonexistent_column FROM customers`)

	assert.True(t, got.Accepted)
	assert.Contains(t, got.Advisories, domain.RuleAdvisoryColumn)
}
