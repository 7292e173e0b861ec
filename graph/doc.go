// Package graph implements a small stateful workflow engine for
// multi-agent pipelines.
//
// A graph is a registry of named nodes, parallel groups and edges with a
// designated entry point. Each node is a pure function from a read-only
// state snapshot to a partial update; the executor alone merges updates
// into the shared state (last writer wins per field) and consults the
// edge table to pick the next node until the END marker is reached.
//
// Edges are a tagged union: a simple edge names a fixed target; a
// conditional edge evaluates a routing function against the state and
// looks the key up in a target table with an optional default; a
// first-match edge walks an ordered branch list and takes the first true
// predicate's target.
//
// Parallel groups run their members concurrently against one snapshot
// and union the results. Member output fields must be pairwise disjoint;
// an overlap, declared or observed, fails the run rather than silently
// overwriting.
//
// Example:
//
//	g := graph.NewStateGraph()
//	g.AddNode("classify", "classify the query", []string{"intent"}, classify)
//	g.AddNode("reply", "compose the reply", []string{"reply"}, reply)
//	g.SetEntryPoint("classify")
//	g.AddConditionalEdges("classify", routeByIntent, map[string]string{
//		"order_status": "reply",
//	}, "reply")
//	g.AddEdge("reply", graph.END)
//
//	runnable, err := g.Compile()
//	if err != nil {
//		// malformed wiring
//	}
//	final, err := runnable.Invoke(ctx, graph.State{"query": "Where is my order?"})
//
// Runs are independent: a compiled Runnable holds no per-run state and
// may execute concurrent invocations. There is no automatic retry; a
// failing node aborts the run and the error carries the state snapshot
// at the point of failure.
package graph
