// Package nodegraph provides an embedded node store with indexed, cached
// set-algebra queries.
//
// Nodes are typed records. A type declares its properties; indexed properties
// get a sorted value index, so equality, comparison, range, membership and
// interval-overlap predicates on them are answered by set operations instead
// of scans. Every intermediate id set carries a version stamp, and results are
// cached under the stamps of their inputs: a mutation makes stale results
// unreachable without invalidating anything.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, _ := nodegraph.New()
//	defer db.Close()
//
//	_ = db.DefineType("person",
//	    nodegraph.Indexed("name", nodegraph.KindString),
//	    nodegraph.Indexed("age", nodegraph.KindInt),
//	    nodegraph.Plain("bio", nodegraph.KindString),
//	)
//
//	id, _ := db.Insert(ctx, "person", map[string]any{"name": "Ada", "age": 36}, nil)
//
//	adults, _ := db.Query("person").
//	    Where(query.Cmp("age", query.OpGreaterOrEqual, 18)).
//	    OrderBy("name").
//	    Execute(ctx)
//
// # Query Evaluation
//
// A predicate is split into the conjuncts that indexes can answer and a
// remainder. The native part filters the members of the type through the
// register; the remainder (unindexed properties, string operators) is
// evaluated node by node on what is left. [QueryBuilder.Explain] shows the
// split.
//
// # Durability
//
// [Store.Checkpoint] writes the schema, the nodes and the state of every index
// to a single compressed file, replaced atomically. [Store.Restore] reads it
// back, verifies checksums and the durability identity, and audits the
// indexes against the nodes.
package nodegraph
