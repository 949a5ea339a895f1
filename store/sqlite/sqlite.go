package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smallnest/hrrag/store"
)

// SqliteSnapshotStore implements store.SnapshotStore using SQLite
type SqliteSnapshotStore struct {
	db        *sql.DB
	tableName string
}

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "index_snapshots"
}

// NewSqliteSnapshotStore opens the database and creates the table if needed
func NewSqliteSnapshotStore(opts SqliteOptions) (*SqliteSnapshotStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "index_snapshots"
	}

	s := &SqliteSnapshotStore{
		db:        db,
		tableName: tableName,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SqliteSnapshotStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			model_name TEXT NOT NULL,
			chunk_size INTEGER NOT NULL,
			chunk_overlap INTEGER NOT NULL,
			dimension INTEGER NOT NULL,
			chunks TEXT NOT NULL,
			metadata TEXT NOT NULL,
			vectors TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteSnapshotStore) Close() error {
	return s.db.Close()
}

// Save stores a snapshot, replacing any row with the same name
func (s *SqliteSnapshotStore) Save(ctx context.Context, snapshot *store.IndexSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	chunksJSON, err := json.Marshal(snapshot.Chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %w", err)
	}
	metadataJSON, err := json.Marshal(snapshot.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	vectorsJSON, err := json.Marshal(snapshot.Vectors)
	if err != nil {
		return fmt.Errorf("failed to marshal vectors: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (name, model_name, chunk_size, chunk_overlap, dimension, chunks, metadata, vectors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			model_name = excluded.model_name,
			chunk_size = excluded.chunk_size,
			chunk_overlap = excluded.chunk_overlap,
			dimension = excluded.dimension,
			chunks = excluded.chunks,
			metadata = excluded.metadata,
			vectors = excluded.vectors,
			created_at = excluded.created_at
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		snapshot.Name,
		snapshot.ModelName,
		snapshot.ChunkSize,
		snapshot.ChunkOverlap,
		snapshot.Dimension,
		string(chunksJSON),
		string(metadataJSON),
		string(vectorsJSON),
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// Load retrieves a snapshot by name
func (s *SqliteSnapshotStore) Load(ctx context.Context, name string) (*store.IndexSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT name, model_name, chunk_size, chunk_overlap, dimension, chunks, metadata, vectors, created_at
		FROM %s
		WHERE name = ?
	`, s.tableName)

	var snap store.IndexSnapshot
	var chunksJSON, metadataJSON, vectorsJSON string

	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&snap.Name,
		&snap.ModelName,
		&snap.ChunkSize,
		&snap.ChunkOverlap,
		&snap.Dimension,
		&chunksJSON,
		&metadataJSON,
		&vectorsJSON,
		&snap.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrSnapshotNotFound, name)
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(chunksJSON), &snap.Chunks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chunks: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &snap.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(vectorsJSON), &snap.Vectors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vectors: %w", err)
	}

	return &snap, nil
}

// List returns all snapshot names
func (s *SqliteSnapshotStore) List(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT name FROM %s ORDER BY name ASC", s.tableName)

	rows, err := s.db.QueryContext(ctx, query)
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

// Delete removes a snapshot
func (s *SqliteSnapshotStore) Delete(ctx context.Context, name string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE name = ?", s.tableName)
	res, err := s.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", store.ErrSnapshotNotFound, name)
	}
	return nil
}
