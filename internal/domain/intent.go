package domain

// IntentKind is the classification assigned to a query by the intent
// classifier. Kinds are ordered by precedence, highest first, for the
// classifier's tie-break rule.
type IntentKind string

const (
	IntentAggregation IntentKind = "aggregation"
	IntentJoin        IntentKind = "join"
	IntentFiltering   IntentKind = "filtering"
	IntentSimpleQuery IntentKind = "simple_query"
)

// EntityKind enumerates the entity types the classifier can extract.
type EntityKind string

const (
	EntityCustomerName EntityKind = "customer_name"
	EntityDate         EntityKind = "date"
	EntityProductName  EntityKind = "product_name"
	EntityAmount       EntityKind = "amount"
	EntityLocation     EntityKind = "location"
	EntityKeyword      EntityKind = "keyword"
)

// Intent is the structured output of classification: a tagged struct
// (kind + common fields) rather than a duck-typed map, per the module's
// design notes on re-architecting dynamic intent objects.
type Intent struct {
	Kind       IntentKind
	Entities   map[EntityKind][]string
	Keywords   []string
	Complexity float64
	Confidence float64
	Reasoning  string
}

// clamp01 restricts v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NewIntent builds an Intent, enforcing the clamp and empty-list-omission
// invariants from the data model.
func NewIntent(kind IntentKind, entities map[EntityKind][]string, keywords []string, complexity, confidence float64, reasoning string) Intent {
	cleaned := make(map[EntityKind][]string, len(entities))
	for k, v := range entities {
		if len(v) > 0 {
			cleaned[k] = v
		}
	}
	return Intent{
		Kind:       kind,
		Entities:   cleaned,
		Keywords:   keywords,
		Complexity: clamp01(complexity),
		Confidence: clamp01(confidence),
		Reasoning:  reasoning,
	}
}
