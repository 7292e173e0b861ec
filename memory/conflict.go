package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// VerifiedFact is a fact extracted from authoritative tool output,
// carrying the deterministic key it overwrites.
type VerifiedFact struct {
	Key     string
	Content string
}

// ConflictReport summarizes a resolution pass.
type ConflictReport struct {
	// FactsWritten is the number of verified facts upserted.
	FactsWritten int
	// Conflicts describes semantic memories the tool output contradicted.
	Conflicts []string
}

// Message renders the report the way the agent surfaces it to the user.
func (r ConflictReport) Message() string {
	if len(r.Conflicts) > 0 {
		return fmt.Sprintf("Tool output verified. %d conflict(s) detected and resolved; conflicting memories were replaced with authoritative tool data.", len(r.Conflicts))
	}
	return "Tool output verified. No conflicts detected. Memories updated with tool data."
}

// ConflictResolver reconciles semantic memory with tool output. Tool
// output is always authoritative: a contradicted fact is overwritten
// under its deterministic key, never merged or averaged.
type ConflictResolver struct {
	store     SemanticStore
	namespace string
}

// NewConflictResolver creates a resolver writing into the given
// namespace of the semantic store.
func NewConflictResolver(store SemanticStore, namespace string) *ConflictResolver {
	return &ConflictResolver{store: store, namespace: namespace}
}

// Resolve detects semantic memories contradicted by the verified facts
// and upserts every fact, overwriting stale entries in place.
func (r *ConflictResolver) Resolve(ctx context.Context, facts []VerifiedFact, memories []Record) (ConflictReport, error) {
	var report ConflictReport

	for _, memo := range memories {
		for _, fact := range facts {
			if conflicts(memo, fact) {
				report.Conflicts = append(report.Conflicts,
					fmt.Sprintf("memory %q contradicted by verified fact %q", memo.Key, fact.Key))
				break
			}
		}
	}

	now := time.Now().UTC()
	for _, fact := range facts {
		rec := Record{
			Kind:      KindSemantic,
			Key:       fact.Key,
			Content:   fact.Content,
			Metadata:  map[string]string{"source": "tool_verified"},
			CreatedAt: now,
		}
		if err := r.store.Upsert(ctx, r.namespace, fact.Key, rec); err != nil {
			return report, fmt.Errorf("upsert verified fact %s: %w", fact.Key, err)
		}
		report.FactsWritten++
	}

	return report, nil
}

// conflicts reports whether a stored memory disagrees with a verified
// fact about the same subject: same deterministic key but different
// content, or a ticket memory naming a different ticket ID.
func conflicts(memo Record, fact VerifiedFact) bool {
	if memo.Key == fact.Key {
		return !strings.EqualFold(strings.TrimSpace(memo.Content), strings.TrimSpace(fact.Content))
	}

	memoTicket := ticketPattern.FindStringSubmatch(strings.ToLower(memo.Content))
	factTicket := ticketPattern.FindStringSubmatch(strings.ToLower(fact.Content))
	if memoTicket != nil && factTicket != nil {
		return memoTicket[1] != factTicket[1]
	}
	return false
}
