package graph

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Group is a set of member nodes executed concurrently against one state
// snapshot. Members never see each other's output within the same step;
// their updates are unioned into a single partial update once all have
// completed. Overall latency is bounded by the slowest member.
type Group struct {
	Name    string
	Members []Node
}

// validate checks the group's static configuration: at least one member,
// unique member names, and pairwise-disjoint declared output fields.
func (g *Group) validate() error {
	if len(g.Members) == 0 {
		return &ConfigError{Node: g.Name, Reason: "parallel group has no members"}
	}

	seen := make(map[string]bool, len(g.Members))
	owner := make(map[string]string)
	for _, m := range g.Members {
		if seen[m.Name] {
			return &ConfigError{Node: g.Name, Reason: fmt.Sprintf("duplicate member %q", m.Name)}
		}
		seen[m.Name] = true

		for _, field := range m.Outputs {
			if prev, taken := owner[field]; taken {
				return &ConfigError{
					Node:   g.Name,
					Reason: fmt.Sprintf("members %s and %s both declare output field %q", prev, m.Name, field),
				}
			}
			owner[field] = m.Name
		}
	}
	return nil
}

// run executes every member concurrently with an identical snapshot of
// state, waits for all of them, and returns the disjoint union of their
// updates. The first member error aborts the group.
func (g *Group) run(ctx context.Context, state State) (State, error) {
	var wg sync.WaitGroup
	updates := make([]State, len(g.Members))
	errs := make([]error, len(g.Members))

	for i, member := range g.Members {
		idx := i
		m := member
		snapshot := cloneState(state)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[idx] = fmt.Errorf("panic in parallel member %s/%s: %v", g.Name, m.Name, r)
				}
			}()

			update, err := m.Function(ctx, snapshot)
			if err != nil {
				errs[idx] = fmt.Errorf("member %s: %w", m.Name, err)
				return
			}
			if len(m.Outputs) > 0 {
				for field := range update {
					if !slices.Contains(m.Outputs, field) {
						errs[idx] = &ConfigError{
							Node:   g.Name,
							Reason: fmt.Sprintf("member %s wrote undeclared field %q", m.Name, field),
						}
						return
					}
				}
			}
			updates[idx] = update
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.Name
	}
	return mergeDisjoint(g.Name, names, updates)
}
