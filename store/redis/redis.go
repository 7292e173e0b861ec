// Package redis backs the semantic and preference memory stores with
// Redis. Records are stored as JSON values under prefixed keys with a
// per-namespace key index; preferences use a hash per namespace.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/threadsmith/agentgraph/memory"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "agentgraph:"
	TTL      time.Duration // Expiration for records, default 0 (no expiration)
}

func (o Options) prefix() string {
	if o.Prefix == "" {
		return "agentgraph:"
	}
	return o.Prefix
}

// SemanticStore implements memory.SemanticStore on Redis.
type SemanticStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ memory.SemanticStore = (*SemanticStore)(nil)

// NewSemanticStore creates a Redis-backed semantic store.
func NewSemanticStore(opts Options) *SemanticStore {
	return &SemanticStore{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix: opts.prefix(),
		ttl:    opts.TTL,
		now:    time.Now,
	}
}

func (s *SemanticStore) recordKey(namespace, key string) string {
	return fmt.Sprintf("%ssemantic:%s:%s", s.prefix, namespace, key)
}

func (s *SemanticStore) indexKey(namespace string) string {
	return fmt.Sprintf("%ssemantic:%s:keys", s.prefix, namespace)
}

// Upsert stores or replaces the record under (namespace, key).
func (s *SemanticStore) Upsert(ctx context.Context, namespace, key string, rec memory.Record) error {
	rec.Key = key
	rec.Kind = memory.KindSemantic
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(namespace, key), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(namespace), key)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(namespace), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save record to redis: %w", err)
	}
	return nil
}

// Get retrieves a record by key.
func (s *SemanticStore) Get(ctx context.Context, namespace, key string) (memory.Record, bool, error) {
	data, err := s.client.Get(ctx, s.recordKey(namespace, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return memory.Record{}, false, nil
		}
		return memory.Record{}, false, fmt.Errorf("failed to load record from redis: %w", err)
	}

	var rec memory.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return memory.Record{}, false, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return rec, true, nil
}

// Search loads the namespace's records and ranks them by relevance.
func (s *SemanticStore) Search(ctx context.Context, namespace, query string, k int) ([]memory.Record, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys for namespace %s: %w", namespace, err)
	}
	if len(keys) == 0 {
		return []memory.Record{}, nil
	}

	recordKeys := make([]string, len(keys))
	for i, key := range keys {
		recordKeys[i] = s.recordKey(namespace, key)
	}
	values, err := s.client.MGet(ctx, recordKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	records := make([]memory.Record, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Record expired after the index was read.
			continue
		}
		var rec memory.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		records = append(records, rec)
	}

	return memory.Rank(records, query, k, 0, s.now().UTC()), nil
}

// Close closes the underlying client.
func (s *SemanticStore) Close() error {
	return s.client.Close()
}

// PreferenceStore implements memory.PreferenceStore on a Redis hash per
// namespace.
type PreferenceStore struct {
	client *redis.Client
	prefix string
}

var _ memory.PreferenceStore = (*PreferenceStore)(nil)

// NewPreferenceStore creates a Redis-backed preference store.
func NewPreferenceStore(opts Options) *PreferenceStore {
	return &PreferenceStore{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix: opts.prefix(),
	}
}

func (s *PreferenceStore) hashKey(namespace string) string {
	return fmt.Sprintf("%spref:%s", s.prefix, namespace)
}

// Get retrieves a preference value.
func (s *PreferenceStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.hashKey(namespace), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to load preference from redis: %w", err)
	}
	return value, true, nil
}

// Set stores a preference value.
func (s *PreferenceStore) Set(ctx context.Context, namespace, key, value string) error {
	if err := s.client.HSet(ctx, s.hashKey(namespace), key, value).Err(); err != nil {
		return fmt.Errorf("failed to save preference to redis: %w", err)
	}
	return nil
}

// All returns every preference in the namespace.
func (s *PreferenceStore) All(ctx context.Context, namespace string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, s.hashKey(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	return values, nil
}

// Close closes the underlying client.
func (s *PreferenceStore) Close() error {
	return s.client.Close()
}
