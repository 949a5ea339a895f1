package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/smallnest/hrrag/store"
)

// MemorySnapshotStore implements store.SnapshotStore in process memory
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*store.IndexSnapshot
}

// NewMemorySnapshotStore creates a new in-memory snapshot store
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		snapshots: make(map[string]*store.IndexSnapshot),
	}
}

// Save stores a copy of the snapshot
func (m *MemorySnapshotStore) Save(_ context.Context, snapshot *store.IndexSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.Name] = clone(snapshot)
	return nil
}

// Load returns a copy of the named snapshot
func (m *MemorySnapshotStore) Load(_ context.Context, name string) (*store.IndexSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.snapshots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrSnapshotNotFound, name)
	}
	return clone(s), nil
}

// List returns stored snapshot names in sorted order
func (m *MemorySnapshotStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.snapshots))
	for name := range m.snapshots {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Delete removes the named snapshot
func (m *MemorySnapshotStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.snapshots[name]; !ok {
		return fmt.Errorf("%w: %s", store.ErrSnapshotNotFound, name)
	}
	delete(m.snapshots, name)
	return nil
}

func clone(s *store.IndexSnapshot) *store.IndexSnapshot {
	c := *s
	c.Chunks = slices.Clone(s.Chunks)
	c.Metadata = make([]map[string]any, len(s.Metadata))
	for i, md := range s.Metadata {
		c.Metadata[i] = make(map[string]any, len(md))
		for k, v := range md {
			c.Metadata[i][k] = v
		}
	}
	c.Vectors = make([][]float32, len(s.Vectors))
	for i, v := range s.Vectors {
		c.Vectors[i] = slices.Clone(v)
	}
	return &c
}
