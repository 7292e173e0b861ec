// Package sqlite backs the episodic memory store with SQLite, for
// single-node deployments that need experiences to survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/threadsmith/agentgraph/memory"
)

// Options configures the SQLite connection.
type Options struct {
	Path      string
	TableName string // Default "episodic_memories"
}

// EpisodicStore implements memory.EpisodicStore on SQLite.
type EpisodicStore struct {
	db        *sql.DB
	tableName string
	now       func() time.Time
}

var _ memory.EpisodicStore = (*EpisodicStore)(nil)

// NewEpisodicStore opens (or creates) the database and its schema.
func NewEpisodicStore(opts Options) (*EpisodicStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "episodic_memories"
	}

	store := &EpisodicStore{
		db:        db,
		tableName: tableName,
		now:       time.Now,
	}

	if err := store.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// InitSchema creates the necessary table if it doesn't exist.
func (s *EpisodicStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			content TEXT NOT NULL,
			salience REAL NOT NULL,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (namespace, key)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_namespace ON %s (namespace);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *EpisodicStore) Close() error {
	return s.db.Close()
}

// Put stores a record under (namespace, key), replacing any previous
// record under the same key.
func (s *EpisodicStore) Put(ctx context.Context, namespace, key string, rec memory.Record) error {
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
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			content = excluded.content,
			salience = excluded.salience,
			metadata = excluded.metadata,
			created_at = excluded.created_at
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, namespace, key, rec.Content, rec.Salience, string(metadataJSON), createdAt); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Search loads the namespace's records and ranks them with the shared
// recency-biased scoring.
func (s *EpisodicStore) Search(ctx context.Context, namespace, query string, k int) ([]memory.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT key, content, salience, metadata, created_at FROM %s WHERE namespace = ?", s.tableName),
		namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []memory.Record
	for rows.Next() {
		var rec memory.Record
		var metadataJSON string
		if err := rows.Scan(&rec.Key, &rec.Content, &rec.Salience, &metadataJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if metadataJSON != "" && metadataJSON != "null" {
			if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		rec.Kind = memory.KindEpisodic
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	return memory.Rank(records, query, k, memory.DefaultRecencyWeight, s.now().UTC()), nil
}
