package graph

import (
	"context"
	"fmt"
)

// END is a special constant used to represent the terminal marker in the graph.
const END = "END"

// State is a snapshot of the shared workflow state. Nodes receive a copy
// and return a partial update containing only the fields they changed;
// the executor alone performs merges.
type State = map[string]any

// NodeFunc transforms a read-only state snapshot into a partial update.
type NodeFunc func(ctx context.Context, state State) (State, error)

// RouterFunc evaluates the current state and returns a routing key.
type RouterFunc func(ctx context.Context, state State) string

// Node represents a unit of processing in the graph.
type Node struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Outputs is the set of state fields the node may write. When
	// non-empty, an update touching any other field fails the run.
	Outputs []string

	// Function is the function associated with the node.
	Function NodeFunc
}

// StateGraph is a builder for a stateful workflow graph. Nodes, parallel
// groups and edges are registered on the builder; Compile validates the
// wiring and returns a Runnable.
type StateGraph struct {
	nodes  map[string]Node
	groups map[string]*Group
	edges  map[string]Edge
	// order preserves registration order for deterministic rendering
	order      []string
	entryPoint string
}

// NewStateGraph creates a new empty graph builder.
func NewStateGraph() *StateGraph {
	return &StateGraph{
		nodes:  make(map[string]Node),
		groups: make(map[string]*Group),
		edges:  make(map[string]Edge),
	}
}

// AddNode adds a node to the graph. The outputs slice declares the fields
// the node may write; pass nil to leave writes unchecked.
func (g *StateGraph) AddNode(name, description string, outputs []string, fn NodeFunc) {
	if _, exists := g.nodes[name]; !exists {
		if _, grouped := g.groups[name]; !grouped {
			g.order = append(g.order, name)
		}
	}
	g.nodes[name] = Node{
		Name:        name,
		Description: description,
		Outputs:     outputs,
		Function:    fn,
	}
}

// AddParallelGroup registers a set of member nodes that execute
// concurrently against one state snapshot. The group behaves as a single
// node: edges attach to the group name, never to a member.
func (g *StateGraph) AddParallelGroup(name string, members ...Node) {
	if _, exists := g.groups[name]; !exists {
		if _, noded := g.nodes[name]; !noded {
			g.order = append(g.order, name)
		}
	}
	g.groups[name] = &Group{Name: name, Members: members}
}

// AddEdge adds an unconditional edge from one node to a fixed target.
func (g *StateGraph) AddEdge(from, to string) {
	g.edges[from] = Edge{From: from, To: to}
}

// AddConditionalEdges adds a conditional edge: the router is evaluated
// against the current state and its key is looked up in targets. An empty
// defaultTarget means unmatched keys fail the run with a RoutingError.
func (g *StateGraph) AddConditionalEdges(from string, router RouterFunc, targets map[string]string, defaultTarget string) {
	g.edges[from] = Edge{
		From:    from,
		Router:  router,
		Targets: targets,
		Default: defaultTarget,
	}
}

// AddBranches adds a conditional edge with first-match semantics:
// branches are evaluated in declared order and the first true predicate
// wins. A branch with a nil predicate matches unconditionally and acts as
// the catch-all default.
func (g *StateGraph) AddBranches(from string, branches ...Branch) {
	g.edges[from] = Edge{
		From:     from,
		Branches: branches,
	}
}

// SetEntryPoint sets the entry point node name for the graph.
func (g *StateGraph) SetEntryPoint(name string) {
	g.entryPoint = name
}

// Compile validates the graph wiring and returns a Runnable. Malformed
// graphs (missing entry point, dangling edge targets, overlapping
// parallel-group output fields) are rejected here.
func (g *StateGraph) Compile() (*Runnable, error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if !g.hasVertex(g.entryPoint) {
		return nil, &ConfigError{Node: g.entryPoint, Reason: "entry point is not a registered node"}
	}

	for name := range g.groups {
		if _, dup := g.nodes[name]; dup {
			return nil, &ConfigError{Node: name, Reason: "name registered as both node and parallel group"}
		}
	}

	for _, group := range g.groups {
		if err := group.validate(); err != nil {
			return nil, err
		}
	}

	for from, edge := range g.edges {
		if !g.hasVertex(from) {
			return nil, &ConfigError{Node: from, Reason: "edge originates from unknown node"}
		}
		for _, target := range edge.targets() {
			if target != END && !g.hasVertex(target) {
				return nil, &ConfigError{Node: from, Reason: fmt.Sprintf("edge target %q is not a registered node", target)}
			}
		}
	}

	return &Runnable{graph: g}, nil
}

// hasVertex reports whether name is a registered node or parallel group.
func (g *StateGraph) hasVertex(name string) bool {
	if _, ok := g.nodes[name]; ok {
		return true
	}
	_, ok := g.groups[name]
	return ok
}
