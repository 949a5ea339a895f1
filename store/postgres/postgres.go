package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/smallnest/hrrag/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresSnapshotStore implements store.SnapshotStore using PostgreSQL.
// Snapshot headers live in tableName and chunks in tableName_chunks with a
// pgvector embedding column.
type PostgresSnapshotStore struct {
	pool      DBPool
	tableName string
}

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "index_snapshots"
}

// NewPostgresSnapshotStore creates a new Postgres snapshot store
func NewPostgresSnapshotStore(ctx context.Context, opts PostgresOptions) (*PostgresSnapshotStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	return NewPostgresSnapshotStoreWithPool(pool, opts.TableName), nil
}

// NewPostgresSnapshotStoreWithPool creates a new Postgres snapshot store with an existing pool
// Useful for testing with mocks
func NewPostgresSnapshotStoreWithPool(pool DBPool, tableName string) *PostgresSnapshotStore {
	if tableName == "" {
		tableName = "index_snapshots"
	}
	return &PostgresSnapshotStore{
		pool:      pool,
		tableName: tableName,
	}
}

func (s *PostgresSnapshotStore) chunkTable() string {
	return s.tableName + "_chunks"
}

// InitSchema creates the vector extension and both tables if they don't exist
func (s *PostgresSnapshotStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS %[1]s (
			name TEXT PRIMARY KEY,
			model_name TEXT NOT NULL,
			chunk_size INTEGER NOT NULL,
			chunk_overlap INTEGER NOT NULL,
			dimension INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS %[2]s (
			snapshot TEXT NOT NULL REFERENCES %[1]s (name) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector NOT NULL,
			PRIMARY KEY (snapshot, position)
		);
	`, s.tableName, s.chunkTable())

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresSnapshotStore) Close() {
	s.pool.Close()
}

// Save replaces the snapshot header and all of its chunks in one transaction
func (s *PostgresSnapshotStore) Save(ctx context.Context, snapshot *store.IndexSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	metadata := make([][]byte, len(snapshot.Metadata))
	for i, md := range snapshot.Metadata {
		data, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for chunk %d: %w", i, err)
		}
		metadata[i] = data
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := s.saveTx(ctx, tx, snapshot, metadata); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (s *PostgresSnapshotStore) saveTx(ctx context.Context, tx pgx.Tx, snapshot *store.IndexSnapshot, metadata [][]byte) error {
	header := fmt.Sprintf(`
		INSERT INTO %s (name, model_name, chunk_size, chunk_overlap, dimension, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			model_name = EXCLUDED.model_name,
			chunk_size = EXCLUDED.chunk_size,
			chunk_overlap = EXCLUDED.chunk_overlap,
			dimension = EXCLUDED.dimension,
			created_at = EXCLUDED.created_at
	`, s.tableName)

	_, err := tx.Exec(ctx, header,
		snapshot.Name,
		snapshot.ModelName,
		snapshot.ChunkSize,
		snapshot.ChunkOverlap,
		snapshot.Dimension,
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot header: %w", err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE snapshot = $1", s.chunkTable()), snapshot.Name); err != nil {
		return fmt.Errorf("failed to clear snapshot chunks: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (snapshot, position, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
	`, s.chunkTable())

	for i, content := range snapshot.Chunks {
		_, err := tx.Exec(ctx, insert,
			snapshot.Name,
			i,
			content,
			metadata[i],
			pgvector.NewVector(snapshot.Vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("failed to save chunk %d: %w", i, err)
		}
	}
	return nil
}

// Load retrieves a snapshot and its chunks ordered by position
func (s *PostgresSnapshotStore) Load(ctx context.Context, name string) (*store.IndexSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT name, model_name, chunk_size, chunk_overlap, dimension, created_at
		FROM %s
		WHERE name = $1
	`, s.tableName)

	var snap store.IndexSnapshot
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&snap.Name,
		&snap.ModelName,
		&snap.ChunkSize,
		&snap.ChunkOverlap,
		&snap.Dimension,
		&snap.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrSnapshotNotFound, name)
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	chunks := fmt.Sprintf(`
		SELECT content, metadata, embedding::text
		FROM %s
		WHERE snapshot = $1
		ORDER BY position ASC
	`, s.chunkTable())

	rows, err := s.pool.Query(ctx, chunks, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var content, embedding string
		var metadataJSON []byte
		if err := rows.Scan(&content, &metadataJSON, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}

		var md map[string]any
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &md); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		var vec pgvector.Vector
		if err := vec.Scan(embedding); err != nil {
			return nil, fmt.Errorf("failed to parse embedding: %w", err)
		}

		snap.Chunks = append(snap.Chunks, content)
		snap.Metadata = append(snap.Metadata, md)
		snap.Vectors = append(snap.Vectors, vec.Slice())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}

	return &snap, nil
}

// List returns all snapshot names
func (s *PostgresSnapshotStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT name FROM %s ORDER BY name ASC", s.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return names, nil
}

// Delete removes a snapshot; its chunks go with it through the cascade
func (s *PostgresSnapshotStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE name = $1", s.tableName), name)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrSnapshotNotFound, name)
	}
	return nil
}
