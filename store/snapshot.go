package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSnapshotNotFound is returned by Load and Delete when no snapshot has the given name
var ErrSnapshotNotFound = errors.New("store: snapshot not found")

// IndexSnapshot is the persisted form of a built embedding index.
// Chunks, Metadata and Vectors are parallel slices.
type IndexSnapshot struct {
	Name         string           `json:"name"`
	ModelName    string           `json:"model_name"`
	ChunkSize    int              `json:"chunk_size"`
	ChunkOverlap int              `json:"chunk_overlap"`
	Dimension    int              `json:"dimension"`
	Chunks       []string         `json:"chunks"`
	Metadata     []map[string]any `json:"metadata"`
	Vectors      [][]float32      `json:"vectors"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Len returns the number of chunks in the snapshot
func (s *IndexSnapshot) Len() int {
	return len(s.Chunks)
}

// Validate checks the parallel-slice invariant and that every vector has Dimension entries
func (s *IndexSnapshot) Validate() error {
	if s.Name == "" {
		return errors.New("snapshot name is required")
	}
	if len(s.Metadata) != len(s.Chunks) || len(s.Vectors) != len(s.Chunks) {
		return fmt.Errorf("snapshot %s: %d chunks, %d metadata, %d vectors",
			s.Name, len(s.Chunks), len(s.Metadata), len(s.Vectors))
	}
	for i, v := range s.Vectors {
		if len(v) != s.Dimension {
			return fmt.Errorf("snapshot %s: vector %d has dimension %d, want %d", s.Name, i, len(v), s.Dimension)
		}
	}
	return nil
}

// SnapshotStore defines the interface for index snapshot persistence
type SnapshotStore interface {
	// Save stores a snapshot, replacing any snapshot with the same name
	Save(ctx context.Context, snapshot *IndexSnapshot) error

	// Load retrieves a snapshot by name
	Load(ctx context.Context, name string) (*IndexSnapshot, error)

	// List returns the names of all stored snapshots, sorted
	List(ctx context.Context) ([]string, error)

	// Delete removes a snapshot
	Delete(ctx context.Context, name string) error
}
