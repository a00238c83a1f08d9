package valueindex

// QueryType is the closed set of comparisons an index can answer.
type QueryType uint8

const (
	QueryEqual QueryType = iota + 1
	QueryNotEqual
	QueryGreater
	QueryGreaterOrEqual
	QueryLess
	QueryLessOrEqual
)

// queryTypes is the dispatch table for QueryType. Every constant above must
// have an entry.
var queryTypes = [...]struct {
	name    string
	ordered bool
	// accepts reports whether a stored value whose comparison against the
	// query constant yields c satisfies the query.
	accepts func(c int) bool
}{
	QueryEqual:          {"==", false, func(c int) bool { return c == 0 }},
	QueryNotEqual:       {"!=", false, func(c int) bool { return c != 0 }},
	QueryGreater:        {">", true, func(c int) bool { return c > 0 }},
	QueryGreaterOrEqual: {">=", true, func(c int) bool { return c >= 0 }},
	QueryLess:           {"<", true, func(c int) bool { return c < 0 }},
	QueryLessOrEqual:    {"<=", true, func(c int) bool { return c <= 0 }},
}

// Valid reports whether q is a known query type.
func (q QueryType) Valid() bool {
	return q > 0 && int(q) < len(queryTypes)
}

// String returns the operator symbol of q.
func (q QueryType) String() string {
	if !q.Valid() {
		return "invalid"
	}
	return queryTypes[q].name
}

// Ordered reports whether q requires an ordered value type.
func (q QueryType) Ordered() bool {
	return q.Valid() && queryTypes[q].ordered
}

// Accepts reports whether a stored value satisfies q given c, the result of
// comparing the stored value against the query constant.
func (q QueryType) Accepts(c int) bool {
	return q.Valid() && queryTypes[q].accepts(c)
}

// Negate returns the query type matching exactly the valued ids q rejects.
func (q QueryType) Negate() QueryType {
	switch q {
	case QueryEqual:
		return QueryNotEqual
	case QueryNotEqual:
		return QueryEqual
	case QueryGreater:
		return QueryLessOrEqual
	case QueryGreaterOrEqual:
		return QueryLess
	case QueryLess:
		return QueryGreaterOrEqual
	case QueryLessOrEqual:
		return QueryGreater
	default:
		return q
	}
}
