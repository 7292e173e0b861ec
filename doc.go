// Agentgraph - Stateful Multi-Agent Workflows with Long-Term Memory
//
// Agentgraph is a graph-based engine for building stateful multi-agent
// applications in Go. Workflows are expressed as graphs of nodes sharing
// a single state: each node returns a partial update, the executor merges
// it, and conditional edges route the run until a terminal marker. On top
// of the engine sit a multi-kind memory subsystem (semantic, episodic and
// preference stores with pluggable backends), a salience gate deciding
// which memories are worth persisting, and ready-made support agents.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/threadsmith/agentgraph
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/threadsmith/agentgraph/graph"
//	)
//
//	func main() {
//		g := graph.NewStateGraph()
//
//		g.AddNode("classify", "classify the query", []string{"intent"},
//			func(ctx context.Context, state graph.State) (graph.State, error) {
//				return graph.State{"intent": "order_status"}, nil
//			})
//		g.AddNode("reply", "compose the reply", []string{"reply"},
//			func(ctx context.Context, state graph.State) (graph.State, error) {
//				return graph.State{"reply": "Your order is on its way."}, nil
//			})
//
//		g.SetEntryPoint("classify")
//		g.AddConditionalEdges("classify",
//			func(ctx context.Context, state graph.State) string {
//				intent, _ := state["intent"].(string)
//				return intent
//			},
//			map[string]string{"order_status": "reply"}, "reply")
//		g.AddEdge("reply", graph.END)
//
//		runnable, err := g.Compile()
//		if err != nil {
//			panic(err)
//		}
//		final, _ := runnable.Invoke(context.Background(), graph.State{"query": "Where is my order?"})
//		fmt.Println(final["reply"])
//	}
//
// # Packages
//
//   - graph: the workflow engine (state, nodes, edges, parallel groups,
//     compile-time validation, Mermaid rendering)
//   - memory: memory records, salience gating, conflict resolution and
//     the store interfaces
//   - store/memory, store/redis, store/sqlite, store/postgres: store
//     backends
//   - llm: the language-model boundary with go-openai and langchaingo
//     adapters
//   - agent: the customer-support graph and the multi-memory agent
//   - config, log: process configuration and leveled logging
//
// # Configuration
//
// Environment variables read by the examples:
//
//   - OPENAI_API_KEY: API credential (required)
//   - OPENAI_MODEL: chat model, defaults to gpt-4o-mini
//   - SALIENCE_THRESHOLD: memory-write gate in [0, 1], defaults to 0.6
//   - NODE_TIMEOUT: per-node execution bound, e.g. "30s"
//
// Runnable examples live in the ./examples directory.
package agentgraph // import "github.com/threadsmith/agentgraph"
