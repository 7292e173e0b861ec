package memory

import "context"

// SemanticStore persists facts under deterministic keys. Upsert
// overwrites in place, which is how fresher tool-verified data replaces
// stale memories; the store itself guarantees idempotency by key.
type SemanticStore interface {
	// Upsert stores or replaces the record under (namespace, key).
	Upsert(ctx context.Context, namespace, key string, rec Record) error
	// Get retrieves a record; the bool reports whether it exists.
	Get(ctx context.Context, namespace, key string) (Record, bool, error)
	// Search returns up to k records relevant to the query, most
	// relevant first.
	Search(ctx context.Context, namespace, query string, k int) ([]Record, error)
}

// EpisodicStore accumulates experience records. Search blends relevance
// with recency so fresh experiences rank above stale ones.
type EpisodicStore interface {
	// Put stores a record under an opaque key.
	Put(ctx context.Context, namespace, key string, rec Record) error
	// Search returns up to k records ordered by recency-biased relevance.
	Search(ctx context.Context, namespace, query string, k int) ([]Record, error)
}

// PreferenceStore is a plain key-value store for user preferences.
// Preferences are written only on explicit request, never inferred.
type PreferenceStore interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, value string) error
	// All returns every preference in the namespace.
	All(ctx context.Context, namespace string) (map[string]string, error)
}
