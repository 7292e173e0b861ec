package graph

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/threadsmith/agentgraph/log"
)

// Runnable is a compiled graph ready for execution. A Runnable is
// stateless between runs; each Invoke owns its own state instance, so a
// single Runnable may serve concurrent runs.
type Runnable struct {
	graph       *StateGraph
	logger      log.Logger
	nodeTimeout time.Duration
}

// Option configures a Runnable.
type Option func(*Runnable)

// WithLogger sets the logger used for run progress.
func WithLogger(logger log.Logger) Option {
	return func(r *Runnable) {
		r.logger = logger
	}
}

// WithNodeTimeout bounds the execution time of each node or parallel
// group. On expiry the run aborts with a NodeError wrapping the context
// error. Zero means no per-node deadline.
func WithNodeTimeout(d time.Duration) Option {
	return func(r *Runnable) {
		r.nodeTimeout = d
	}
}

// WithOptions returns a copy of the Runnable with the options applied.
func (r *Runnable) WithOptions(opts ...Option) *Runnable {
	clone := *r
	for _, opt := range opts {
		opt(&clone)
	}
	return &clone
}

// Invoke executes the graph from the entry point until the terminal
// marker is reached and returns the final state. On failure the partial
// state accumulated so far is returned alongside the error; NodeError and
// RoutingError additionally carry the snapshot at the point of failure.
// Failed nodes are not retried; retry policy is the caller's concern.
func (r *Runnable) Invoke(ctx context.Context, initial State) (State, error) {
	logger := r.logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	runID := uuid.NewString()[:8]
	state := cloneState(initial)
	current := r.graph.entryPoint

	logger.Info("run %s: starting at %s", runID, current)

	for current != END {
		update, declared, err := r.step(ctx, current, state)
		if err != nil {
			logger.Error("run %s: node %s failed: %v", runID, current, err)
			return state, err
		}

		state, err = applyUpdate(state, update, current, declared)
		if err != nil {
			logger.Error("run %s: merge after %s failed: %v", runID, current, err)
			return state, err
		}

		next, err := r.resolveNext(ctx, current, state)
		if err != nil {
			logger.Error("run %s: routing from %s failed: %v", runID, current, err)
			return state, err
		}

		logger.Debug("run %s: %s -> %s", runID, current, next)
		current = next
	}

	logger.Info("run %s: finished", runID)
	return state, nil
}

// step executes the named node or parallel group against a snapshot of
// state and returns its partial update plus the declared output fields to
// validate the merge against.
func (r *Runnable) step(ctx context.Context, name string, state State) (State, []string, error) {
	if r.nodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.nodeTimeout)
		defer cancel()
	}

	if group, ok := r.graph.groups[name]; ok {
		update, err := group.run(ctx, state)
		if err != nil {
			return nil, nil, nodeFailure(ctx, name, state, err)
		}
		// Disjointness was checked member-by-member inside the group.
		return update, nil, nil
	}

	node, ok := r.graph.nodes[name]
	if !ok {
		return nil, nil, &ConfigError{Node: name, Reason: ErrNodeNotFound.Error()}
	}

	update, err := node.Function(ctx, cloneState(state))
	if err != nil {
		return nil, nil, nodeFailure(ctx, name, state, err)
	}
	return update, node.Outputs, nil
}

// nodeFailure wraps a node error with the failing snapshot, preserving
// ConfigError so invariant violations keep their kind.
func nodeFailure(ctx context.Context, name string, state State, err error) error {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}
	// A node racing its deadline may surface its own failure; keep both
	// causes visible instead of replacing one with the other.
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = errors.Join(ctxErr, err)
	}
	return &NodeError{Node: name, State: state, Err: err}
}

// resolveNext consults the edge table for the node that just ran.
func (r *Runnable) resolveNext(ctx context.Context, current string, state State) (string, error) {
	edge, ok := r.graph.edges[current]
	if !ok {
		return "", &ConfigError{Node: current, Reason: ErrNoOutgoingEdge.Error()}
	}
	return edge.resolve(ctx, state)
}
