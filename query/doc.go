// Package query compiles boolean predicates over node properties into index
// operations.
//
// An expression tree (And, Or, Not, Const, Compare, Range, In, HasValue,
// Overlap, Relation, Search) is checked with CanBeNative and lowered with
// Lower into a Native tree whose Filter method narrows a candidate set through
// the register:
//
//	c := query.NewCompiler(schema, reg)
//	native, rest, err := c.Split(query.AndOf(
//	    query.Eq("status", "open"),
//	    query.Cmp("title", query.OpContains, "urgent"),
//	))
//	ids, err := native.Filter(candidates)
//	// rest ("title contains urgent") is evaluated per node by an Evaluator.
//
// Property predicates are native only when the property is indexed and its
// index answers the operator. Relation and search predicates are always native
// and resolve through a RelationResolver and a Searcher. Search results are
// never cached.
package query
