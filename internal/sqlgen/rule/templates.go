package rule

import "github.com/lakeql/nlsearch/internal/domain"

// template is one entry in the pattern table: a required intent kind,
// a set of entity kinds that must all be present, and a builder that
// renders the SQL and parameter map from the matched entities.
//
// Templates are tried in table order; the first whose kind and
// required entities all match wins. Order matters: more specific
// entity requirements are listed before more general ones for the
// same kind.
type template struct {
	name       string
	kind       domain.IntentKind
	requires   []domain.EntityKind
	confidence float64
	build      func(entities map[domain.EntityKind][]string) (sql string, params map[string]any)
}

func first(entities map[domain.EntityKind][]string, k domain.EntityKind) string {
	vs := entities[k]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// templates is the pattern table for C3. Each covers one of the
// whitelisted tables (customers, customer_memos, customer_products,
// users, events); anything it can't match falls through to
// GenErrNoRuleMatch and the caller escalates to the LLM generator.
// customer_by_name_simple covers IntentSimpleQuery separately from
// IntentFiltering's customer_by_name since a bare "customers named X"
// carries no filtering signal word and classifies as simple_query.
var templates = []template{
	{
		name:       "customer_by_name_and_date_range",
		kind:       domain.IntentFiltering,
		requires:   []domain.EntityKind{domain.EntityCustomerName, domain.EntityDate},
		confidence: 0.8,
		build: func(e map[domain.EntityKind][]string) (string, map[string]any) {
			dates := e[domain.EntityDate]
			sql := `SELECT * FROM customers WHERE name = %(customer_name)s`
			params := map[string]any{"customer_name": first(e, domain.EntityCustomerName)}
			if len(dates) > 0 {
				sql = `SELECT c.* FROM customers c JOIN events ev ON ev.customer_id = c.id ` +
					`WHERE c.name = %(customer_name)s AND ev.occurred_at >= %(date_from)s`
				params["date_from"] = dates[0]
			}
			return sql, params
		},
	},
	{
		name:       "customer_by_name",
		kind:       domain.IntentFiltering,
		requires:   []domain.EntityKind{domain.EntityCustomerName},
		confidence: 0.8,
		build: func(e map[domain.EntityKind][]string) (string, map[string]any) {
			return `SELECT * FROM customers WHERE name = %(customer_name)s`,
				map[string]any{"customer_name": first(e, domain.EntityCustomerName)}
		},
	},
	{
		name:       "customer_by_name_simple",
		kind:       domain.IntentSimpleQuery,
		requires:   []domain.EntityKind{domain.EntityCustomerName},
		confidence: 0.8,
		build: func(e map[domain.EntityKind][]string) (string, map[string]any) {
			return `SELECT * FROM customers WHERE name = %(customer_name)s`,
				map[string]any{"customer_name": first(e, domain.EntityCustomerName)}
		},
	},
	{
		name:       "customer_by_location",
		kind:       domain.IntentFiltering,
		requires:   []domain.EntityKind{domain.EntityLocation},
		confidence: 0.75,
		build: func(e map[domain.EntityKind][]string) (string, map[string]any) {
			return `SELECT * FROM customers WHERE region = %(region)s`,
				map[string]any{"region": first(e, domain.EntityLocation)}
		},
	},
	{
		name:       "events_in_date_range",
		kind:       domain.IntentFiltering,
		requires:   []domain.EntityKind{domain.EntityDate},
		confidence: 0.7,
		build: func(e map[domain.EntityKind][]string) (string, map[string]any) {
			return `SELECT * FROM events WHERE occurred_at >= %(date_from)s`,
				map[string]any{"date_from": first(e, domain.EntityDate)}
		},
	},
	{
		name:       "products_by_customer_join",
		kind:       domain.IntentJoin,
		requires:   []domain.EntityKind{domain.EntityCustomerName},
		confidence: 0.75,
		build: func(e map[domain.EntityKind][]string) (string, map[string]any) {
			sql := `SELECT c.name, p.product_name, p.amount, p.purchased_at ` +
				`FROM customers c JOIN customer_products p ON p.customer_id = c.id ` +
				`WHERE c.name = %(customer_name)s`
			return sql, map[string]any{"customer_name": first(e, domain.EntityCustomerName)}
		},
	},
	{
		name:       "products_by_product_join",
		kind:       domain.IntentJoin,
		requires:   []domain.EntityKind{domain.EntityProductName},
		confidence: 0.7,
		build: func(e map[domain.EntityKind][]string) (string, map[string]any) {
			sql := `SELECT c.name, p.amount, p.purchased_at ` +
				`FROM customer_products p JOIN customers c ON c.id = p.customer_id ` +
				`WHERE p.product_name = %(product_name)s`
			return sql, map[string]any{"product_name": first(e, domain.EntityProductName)}
		},
	},
	{
		name:       "average_amount_by_location",
		kind:       domain.IntentAggregation,
		requires:   []domain.EntityKind{domain.EntityLocation},
		confidence: 0.75,
		build: func(e map[domain.EntityKind][]string) (string, map[string]any) {
			sql := `SELECT c.region, AVG(p.amount) AS avg_amount ` +
				`FROM customer_products p JOIN customers c ON c.id = p.customer_id ` +
				`WHERE c.region = %(region)s GROUP BY c.region`
			return sql, map[string]any{"region": first(e, domain.EntityLocation)}
		},
	},
	{
		name:       "count_by_location",
		kind:       domain.IntentAggregation,
		requires:   []domain.EntityKind{},
		confidence: 0.6,
		build: func(e map[domain.EntityKind][]string) (string, map[string]any) {
			if loc := first(e, domain.EntityLocation); loc != "" {
				return `SELECT region, COUNT(*) AS total FROM customers WHERE region = %(region)s GROUP BY region`,
					map[string]any{"region": loc}
			}
			return `SELECT region, COUNT(*) AS total FROM customers GROUP BY region`, map[string]any{}
		},
	},
}
