package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/smallnest/hrrag/store"
)

const snapshotExt = ".json"

// FileSnapshotStore implements store.SnapshotStore with one JSON file per snapshot
type FileSnapshotStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileSnapshotStore creates a store rooted at path, creating the directory if needed
func NewFileSnapshotStore(path string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileSnapshotStore{path: path}, nil
}

func (s *FileSnapshotStore) fileFor(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid snapshot name %q", name)
	}
	return filepath.Join(s.path, name+snapshotExt), nil
}

// Save writes the snapshot to a temporary file and renames it into place
func (s *FileSnapshotStore) Save(_ context.Context, snapshot *store.IndexSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	target, err := s.fileFor(snapshot.Name)
	if err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.path, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// Load reads the named snapshot
func (s *FileSnapshotStore) Load(_ context.Context, name string) (*store.IndexSnapshot, error) {
	target, err := s.fileFor(name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(target)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", store.ErrSnapshotNotFound, name)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot store.IndexSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// List returns the names of the snapshot files in the directory
func (s *FileSnapshotStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	entries, err := os.ReadDir(s.path)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), snapshotExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), snapshotExt))
	}
	slices.Sort(names)
	return names, nil
}

// Delete removes the named snapshot file
func (s *FileSnapshotStore) Delete(_ context.Context, name string) error {
	target, err := s.fileFor(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", store.ErrSnapshotNotFound, name)
		}
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
