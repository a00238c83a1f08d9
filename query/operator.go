package query

import "github.com/hupe1980/nodegraph/valueindex"

// Operator is a comparison operator of a Compare predicate.
type Operator uint8

const (
	OpEqual Operator = iota + 1
	OpNotEqual
	OpGreater
	OpGreaterOrEqual
	OpLess
	OpLessOrEqual
	// OpContains matches string values containing the constant.
	OpContains
	// OpPrefix matches string values starting with the constant.
	OpPrefix
)

var operators = [...]struct {
	name  string
	query valueindex.QueryType // zero when no index answers the operator
}{
	OpEqual:          {"=", valueindex.QueryEqual},
	OpNotEqual:       {"!=", valueindex.QueryNotEqual},
	OpGreater:        {">", valueindex.QueryGreater},
	OpGreaterOrEqual: {">=", valueindex.QueryGreaterOrEqual},
	OpLess:           {"<", valueindex.QueryLess},
	OpLessOrEqual:    {"<=", valueindex.QueryLessOrEqual},
	OpContains:       {"contains", 0},
	OpPrefix:         {"prefix", 0},
}

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	return op > 0 && int(op) < len(operators)
}

func (op Operator) String() string {
	if !op.Valid() {
		return "?"
	}
	return operators[op].name
}

// QueryType returns the index query answering op, if any.
func (op Operator) QueryType() (valueindex.QueryType, bool) {
	if !op.Valid() {
		return 0, false
	}
	q := operators[op].query
	return q, q != 0
}
