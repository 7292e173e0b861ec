// Package memory provides in-process implementations of the memory store
// interfaces, used by tests and single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/threadsmith/agentgraph/memory"
)

// Store bundles in-process semantic, episodic and preference stores.
type Store struct {
	Semantic    *Semantic
	Episodic    *Episodic
	Preferences *Preferences
}

// NewStore creates an empty in-process store. Clock is swappable on the
// individual stores for recency tests.
func NewStore() *Store {
	return &Store{
		Semantic:    NewSemantic(),
		Episodic:    NewEpisodic(),
		Preferences: NewPreferences(),
	}
}

// Semantic implements memory.SemanticStore in process memory.
type Semantic struct {
	mu      sync.RWMutex
	records map[string]map[string]memory.Record

	// Now is swappable for recency tests.
	Now func() time.Time
}

var _ memory.SemanticStore = (*Semantic)(nil)

// NewSemantic creates an empty semantic store.
func NewSemantic() *Semantic {
	return &Semantic{
		records: make(map[string]map[string]memory.Record),
		Now:     time.Now,
	}
}

// Upsert stores or replaces a record under (namespace, key).
func (s *Semantic) Upsert(ctx context.Context, namespace, key string, rec memory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[namespace] == nil {
		s.records[namespace] = make(map[string]memory.Record)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.Now().UTC()
	}
	rec.Key = key
	rec.Kind = memory.KindSemantic
	s.records[namespace][key] = rec
	return nil
}

// Get retrieves a record.
func (s *Semantic) Get(ctx context.Context, namespace, key string) (memory.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[namespace][key]
	return rec, ok, nil
}

// Search ranks records by relevance to the query.
func (s *Semantic) Search(ctx context.Context, namespace, query string, k int) ([]memory.Record, error) {
	s.mu.RLock()
	records := collect(s.records[namespace])
	s.mu.RUnlock()

	return memory.Rank(records, query, k, 0, s.Now().UTC()), nil
}

// Episodic implements memory.EpisodicStore in process memory.
type Episodic struct {
	mu      sync.RWMutex
	records map[string]map[string]memory.Record

	// Now is swappable for recency tests.
	Now func() time.Time
}

var _ memory.EpisodicStore = (*Episodic)(nil)

// NewEpisodic creates an empty episodic store.
func NewEpisodic() *Episodic {
	return &Episodic{
		records: make(map[string]map[string]memory.Record),
		Now:     time.Now,
	}
}

// Put stores a record under an opaque key.
func (s *Episodic) Put(ctx context.Context, namespace, key string, rec memory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[namespace] == nil {
		s.records[namespace] = make(map[string]memory.Record)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.Now().UTC()
	}
	rec.Key = key
	rec.Kind = memory.KindEpisodic
	s.records[namespace][key] = rec
	return nil
}

// Search ranks records by recency-biased relevance.
func (s *Episodic) Search(ctx context.Context, namespace, query string, k int) ([]memory.Record, error) {
	s.mu.RLock()
	records := collect(s.records[namespace])
	s.mu.RUnlock()

	return memory.Rank(records, query, k, memory.DefaultRecencyWeight, s.Now().UTC()), nil
}

// Preferences implements memory.PreferenceStore in process memory.
type Preferences struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

var _ memory.PreferenceStore = (*Preferences)(nil)

// NewPreferences creates an empty preference store.
func NewPreferences() *Preferences {
	return &Preferences{values: make(map[string]map[string]string)}
}

// Get retrieves a preference value.
func (s *Preferences) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[namespace][key]
	return value, ok, nil
}

// Set stores a preference value.
func (s *Preferences) Set(ctx context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values[namespace] == nil {
		s.values[namespace] = make(map[string]string)
	}
	s.values[namespace][key] = value
	return nil
}

// All returns every preference in the namespace.
func (s *Preferences) All(ctx context.Context, namespace string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values[namespace]))
	for k, v := range s.values[namespace] {
		out[k] = v
	}
	return out, nil
}

func collect(records map[string]memory.Record) []memory.Record {
	out := make([]memory.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	return out
}
