package llm

// schemaSummary is the static table/column listing rendered into every
// generation prompt. It mirrors the validator's whitelist; kept as its
// own copy here (rather than importing sqlvalidate) since prompt text
// and validation rules are different concerns that happen to share a
// source of truth in the deployment's schema.
var schemaSummary = map[string][]string{
	"customers":         {"id", "name", "email", "phone", "region", "status", "created_at", "updated_at"},
	"customer_memos":    {"id", "customer_id", "body", "author", "created_at"},
	"customer_products": {"id", "customer_id", "product_name", "amount", "purchased_at"},
	"users":             {"id", "name", "email", "role", "created_at"},
	"events":            {"id", "customer_id", "kind", "occurred_at", "metadata"},
}

var schemaTableOrder = []string{"customers", "customer_memos", "customer_products", "users", "events"}

type examplePair struct {
	question string
	sql      string
}

// examplePairs are few-shot examples rendered into the prompt, grounded
// in the same domain vocabulary the rule templates cover.
var examplePairs = []examplePair{
	{
		question: "show customers in region 서울",
		sql:      `SELECT * FROM customers WHERE region = %(region)s LIMIT 100`,
	},
	{
		question: "average purchase amount per region",
		sql: `SELECT c.region, AVG(p.amount) AS avg_amount FROM customer_products p ` +
			`JOIN customers c ON c.id = p.customer_id GROUP BY c.region LIMIT 100`,
	},
	{
		question: "events for customer 홍길동 after 2024-01-01",
		sql: `SELECT ev.* FROM events ev JOIN customers c ON c.id = ev.customer_id ` +
			`WHERE c.name = %(customer_name)s AND ev.occurred_at >= %(date_from)s LIMIT 100`,
	},
}
