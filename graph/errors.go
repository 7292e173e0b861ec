package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")
)

// ConfigError reports a malformed graph: a dangling edge target, a name
// collision, or overlapping parallel-group output fields. It is detected
// at Compile where possible, otherwise at the first violation during a run.
type ConfigError struct {
	// Node is the node, group or edge source the error refers to.
	Node string
	// Reason describes the misconfiguration.
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("graph configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("graph configuration error at %s: %s", e.Node, e.Reason)
}

// NodeError reports a node whose underlying operation failed. The run is
// aborted; State carries the snapshot at the point of failure for
// diagnostics. Failed nodes are not retried.
type NodeError struct {
	// Node is the name of the failing node or parallel group.
	Node string
	// State is the snapshot passed to the node when it failed.
	State State
	// Err is the underlying failure.
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// RoutingError reports a conditional edge whose router returned a key
// with no table entry and no configured default.
type RoutingError struct {
	// Node is the edge's source node.
	Node string
	// Key is the unmatched routing key.
	Key string
	// State is the snapshot the router evaluated.
	State State
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no edge target for key %q routed from node %s", e.Key, e.Node)
}
