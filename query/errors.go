package query

import "errors"

var (
	// ErrNotNative is returned when lowering an expression that contains a part
	// no index can answer.
	ErrNotNative = errors.New("query: expression is not natively evaluable")

	// ErrUnknownProperty is returned when an expression references a property
	// that is not indexed.
	ErrUnknownProperty = errors.New("query: unknown property")

	// ErrNoResolver is returned when a relation or search predicate is
	// evaluated without a resolver.
	ErrNoResolver = errors.New("query: no resolver configured")
)
