package graph

import "context"

// Branch is one entry of a first-match conditional edge. Branches are
// evaluated in declared order; a nil When matches unconditionally.
type Branch struct {
	When func(ctx context.Context, state State) bool
	To   string
}

// Edge determines which node executes next after its source node. It is a
// tagged union: a simple edge carries only To; a conditional edge carries
// a Router plus a key table and optional Default; a first-match edge
// carries an ordered Branches list.
type Edge struct {
	// From is the name of the node from which the edge originates.
	From string

	// To is the fixed target of a simple edge.
	To string

	// Router, Targets and Default describe a table-driven conditional
	// edge. Router's key is looked up in Targets; Default (when non-empty)
	// catches unmatched keys.
	Router  RouterFunc
	Targets map[string]string
	Default string

	// Branches describes a first-match conditional edge.
	Branches []Branch
}

// conditional reports whether the edge's target depends on state.
func (e Edge) conditional() bool {
	return e.Router != nil || len(e.Branches) > 0
}

// resolve decides the next node for the given state. Resolution is
// deterministic: the same source and state always yield the same target.
func (e Edge) resolve(ctx context.Context, state State) (string, error) {
	switch {
	case len(e.Branches) > 0:
		for _, b := range e.Branches {
			if b.When == nil || b.When(ctx, state) {
				return b.To, nil
			}
		}
		return "", &RoutingError{Node: e.From, Key: "", State: state}

	case e.Router != nil:
		key := e.Router(ctx, state)
		if target, ok := e.Targets[key]; ok {
			return target, nil
		}
		if e.Default != "" {
			return e.Default, nil
		}
		return "", &RoutingError{Node: e.From, Key: key, State: state}

	default:
		return e.To, nil
	}
}

// targets returns every node name the edge can resolve to, for
// compile-time validation.
func (e Edge) targets() []string {
	switch {
	case len(e.Branches) > 0:
		out := make([]string, 0, len(e.Branches))
		for _, b := range e.Branches {
			out = append(out, b.To)
		}
		return out

	case e.Router != nil:
		out := make([]string, 0, len(e.Targets)+1)
		for _, t := range e.Targets {
			out = append(out, t)
		}
		if e.Default != "" {
			out = append(out, e.Default)
		}
		return out

	default:
		return []string{e.To}
	}
}
