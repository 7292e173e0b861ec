package graph_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/threadsmith/agentgraph/graph"
)

func TestParallelGroup_MergedUpdateIsUnionOfMembers(t *testing.T) {
	t.Parallel()

	g := graph.NewStateGraph()
	g.AddParallelGroup("fanout",
		graph.Node{Name: "left", Outputs: []string{"left"}, Function: mark("left")},
		graph.Node{Name: "right", Outputs: []string{"right"}, Function: mark("right")},
		graph.Node{Name: "middle", Outputs: []string{"middle"}, Function: mark("middle")},
	)
	g.SetEntryPoint("fanout")
	g.AddEdge("fanout", graph.END)

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	final, err := runnable.Invoke(context.Background(), graph.State{"seed": 1})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	for _, field := range []string{"seed", "left", "right", "middle"} {
		if _, ok := final[field]; !ok {
			t.Errorf("merged state missing %q: %v", field, final)
		}
	}
}

func TestParallelGroup_DeclaredOverlapFailsAtCompile(t *testing.T) {
	t.Parallel()

	g := graph.NewStateGraph()
	g.AddParallelGroup("fanout",
		graph.Node{Name: "a", Outputs: []string{"shared"}, Function: mark("shared")},
		graph.Node{Name: "b", Outputs: []string{"shared"}, Function: mark("shared")},
	)
	g.SetEntryPoint("fanout")
	g.AddEdge("fanout", graph.END)

	var cfgErr *graph.ConfigError
	if _, err := g.Compile(); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for overlapping declared outputs, got %v", err)
	}
}

func TestParallelGroup_RuntimeOverlapFailsRun(t *testing.T) {
	t.Parallel()

	// Members without declared outputs that collide at run time.
	g := graph.NewStateGraph()
	g.AddParallelGroup("fanout",
		graph.Node{Name: "a", Function: mark("shared")},
		graph.Node{Name: "b", Function: mark("shared")},
	)
	g.SetEntryPoint("fanout")
	g.AddEdge("fanout", graph.END)

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	_, err = runnable.Invoke(context.Background(), graph.State{})
	var cfgErr *graph.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for colliding writes, got %v", err)
	}
}

func TestParallelGroup_MembersSeeSameSnapshot(t *testing.T) {
	t.Parallel()

	// Each member stamps its own field with what it observed; neither may
	// observe the other's write.
	g := graph.NewStateGraph()
	g.AddParallelGroup("fanout",
		graph.Node{Name: "a", Outputs: []string{"a_saw_b"}, Function: func(ctx context.Context, state graph.State) (graph.State, error) {
			time.Sleep(10 * time.Millisecond)
			_, sawB := state["b_done"]
			return graph.State{"a_saw_b": sawB}, nil
		}},
		graph.Node{Name: "b", Outputs: []string{"b_done"}, Function: func(ctx context.Context, state graph.State) (graph.State, error) {
			return graph.State{"b_done": true}, nil
		}},
	)
	g.SetEntryPoint("fanout")
	g.AddEdge("fanout", graph.END)

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	final, err := runnable.Invoke(context.Background(), graph.State{})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if final["a_saw_b"] != false {
		t.Error("member observed a sibling's output within the same group")
	}
}

func TestParallelGroup_MembersRunConcurrently(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	member := func(name string) graph.Node {
		return graph.Node{Name: name, Outputs: []string{name}, Function: func(ctx context.Context, state graph.State) (graph.State, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			inFlight.Add(-1)
			return graph.State{name: true}, nil
		}}
	}

	g := graph.NewStateGraph()
	g.AddParallelGroup("fanout", member("m1"), member("m2"), member("m3"))
	g.SetEntryPoint("fanout")
	g.AddEdge("fanout", graph.END)

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	start := time.Now()
	if _, err := runnable.Invoke(context.Background(), graph.State{}); err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	elapsed := time.Since(start)

	if peak.Load() < 2 {
		t.Errorf("members did not overlap: peak concurrency %d", peak.Load())
	}
	// Latency bounded by the slowest member, not the sum.
	if elapsed > 140*time.Millisecond {
		t.Errorf("group latency %v suggests sequential execution", elapsed)
	}
}

func TestParallelGroup_MemberErrorAbortsGroup(t *testing.T) {
	t.Parallel()

	g := graph.NewStateGraph()
	g.AddParallelGroup("fanout",
		graph.Node{Name: "ok", Outputs: []string{"ok"}, Function: mark("ok")},
		graph.Node{Name: "bad", Function: func(ctx context.Context, state graph.State) (graph.State, error) {
			return nil, errors.New("lookup failed")
		}},
	)
	g.SetEntryPoint("fanout")
	g.AddEdge("fanout", graph.END)

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	_, err = runnable.Invoke(context.Background(), graph.State{})
	var nodeErr *graph.NodeError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("expected NodeError, got %v", err)
	}
	if nodeErr.Node != "fanout" {
		t.Errorf("NodeError.Node = %q, want fanout", nodeErr.Node)
	}
}

func TestParallelGroup_EmptyGroupRejected(t *testing.T) {
	t.Parallel()

	g := graph.NewStateGraph()
	g.AddParallelGroup("empty")
	g.SetEntryPoint("empty")
	g.AddEdge("empty", graph.END)

	var cfgErr *graph.ConfigError
	if _, err := g.Compile(); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for empty group, got %v", err)
	}
}
