// Package postgres backs the semantic memory store with PostgreSQL,
// for deployments that share durable facts across agent instances.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadsmith/agentgraph/memory"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Options configuration for Postgres connection
type Options struct {
	ConnString string
	TableName  string // Default "semantic_memories"
}

// SemanticStore implements memory.SemanticStore using PostgreSQL
type SemanticStore struct {
	pool      DBPool
	tableName string
	now       func() time.Time
}

var _ memory.SemanticStore = (*SemanticStore)(nil)

// NewSemanticStore creates a new Postgres semantic store
func NewSemanticStore(ctx context.Context, opts Options) (*SemanticStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "semantic_memories"
	}

	return &SemanticStore{
		pool:      pool,
		tableName: tableName,
		now:       time.Now,
	}, nil
}

// NewSemanticStoreWithPool creates a new Postgres semantic store with an existing pool
// Useful for testing with mocks
func NewSemanticStoreWithPool(pool DBPool, tableName string) *SemanticStore {
	if tableName == "" {
		tableName = "semantic_memories"
	}
	return &SemanticStore{
		pool:      pool,
		tableName: tableName,
		now:       time.Now,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SemanticStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			content TEXT NOT NULL,
			salience DOUBLE PRECISION NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (namespace, key)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_namespace ON %s (namespace);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *SemanticStore) Close() {
	s.pool.Close()
}

// Upsert stores or replaces the record under (namespace, key).
func (s *SemanticStore) Upsert(ctx context.Context, namespace, key string, rec memory.Record) error {
	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (namespace, key, content, salience, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (namespace, key) DO UPDATE SET
			content = EXCLUDED.content,
			salience = EXCLUDED.salience,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query, namespace, key, rec.Content, rec.Salience, metadataJSON, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Get retrieves a record by key.
func (s *SemanticStore) Get(ctx context.Context, namespace, key string) (memory.Record, bool, error) {
	query := fmt.Sprintf(`
		SELECT content, salience, metadata, created_at
		FROM %s
		WHERE namespace = $1 AND key = $2
	`, s.tableName)

	var rec memory.Record
	var metadataJSON []byte

	err := s.pool.QueryRow(ctx, query, namespace, key).Scan(
		&rec.Content,
		&rec.Salience,
		&metadataJSON,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return memory.Record{}, false, nil
		}
		return memory.Record{}, false, fmt.Errorf("failed to load record: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return memory.Record{}, false, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	rec.Kind = memory.KindSemantic
	rec.Key = key
	return rec, true, nil
}

// Search loads the namespace's records and ranks them by relevance.
func (s *SemanticStore) Search(ctx context.Context, namespace, query string, k int) ([]memory.Record, error) {
	sql := fmt.Sprintf(`
		SELECT key, content, salience, metadata, created_at
		FROM %s
		WHERE namespace = $1
	`, s.tableName)

	rows, err := s.pool.Query(ctx, sql, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []memory.Record
	for rows.Next() {
		var rec memory.Record
		var metadataJSON []byte

		if err := rows.Scan(&rec.Key, &rec.Content, &rec.Salience, &metadataJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		rec.Kind = memory.KindSemantic
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	return memory.Rank(records, query, k, 0, s.now().UTC()), nil
}
