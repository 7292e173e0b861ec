package graph

import (
	"fmt"
	"maps"
	"slices"
)

// cloneState returns a shallow copy of the state. Nodes receive copies so
// a node mutating its argument cannot leak writes past the merge step;
// values themselves are shared and treated as read-only by convention.
func cloneState(state State) State {
	if state == nil {
		return make(State)
	}
	return maps.Clone(state)
}

// applyUpdate merges a node's partial update into the current state:
// new keys are added, existing keys are overwritten. When the node
// declared an output set, a write outside it fails fast.
func applyUpdate(state State, update State, node string, declared []string) (State, error) {
	if len(declared) > 0 {
		for field := range update {
			if !slices.Contains(declared, field) {
				return nil, &ConfigError{
					Node:   node,
					Reason: fmt.Sprintf("wrote undeclared field %q (declared outputs: %v)", field, declared),
				}
			}
		}
	}

	result := cloneState(state)
	maps.Copy(result, update)
	return result, nil
}

// mergeDisjoint unions the partial updates of parallel-group members.
// Member field sets must be pairwise disjoint; an overlap has no
// documented merge policy and fails the run.
func mergeDisjoint(group string, members []string, updates []State) (State, error) {
	merged := make(State)
	owner := make(map[string]string)

	for i, update := range updates {
		for field, value := range update {
			if prev, taken := owner[field]; taken {
				return nil, &ConfigError{
					Node:   group,
					Reason: fmt.Sprintf("members %s and %s both wrote field %q", prev, members[i], field),
				}
			}
			owner[field] = members[i]
			merged[field] = value
		}
	}
	return merged, nil
}
