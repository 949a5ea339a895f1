package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/smallnest/hrrag/store"
	"github.com/stretchr/testify/assert"
)

func newSnapshot(name string) *store.IndexSnapshot {
	return &store.IndexSnapshot{
		Name:         name,
		ModelName:    "hash-2",
		ChunkSize:    500,
		ChunkOverlap: 50,
		Dimension:    2,
		Chunks:       []string{"Document: Onboarding Guide"},
		Metadata:     []map[string]any{{"type": "document", "id": "doc_001"}},
		Vectors:      [][]float32{{0, 1}},
		CreatedAt:    time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRedisSnapshotStore(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	s := NewRedisSnapshotStore(RedisOptions{
		Addr: mr.Addr(),
	})
	defer s.Close()

	ctx := context.Background()

	// Save
	err = s.Save(ctx, newSnapshot("hr"))
	assert.NoError(t, err)
	assert.True(t, mr.Exists("hrrag:snapshot:hr"))

	// Load
	loaded, err := s.Load(ctx, "hr")
	assert.NoError(t, err)
	assert.Equal(t, "hash-2", loaded.ModelName)
	assert.Equal(t, []string{"Document: Onboarding Guide"}, loaded.Chunks)
	assert.Equal(t, [][]float32{{0, 1}}, loaded.Vectors)
	assert.Equal(t, "document", loaded.Metadata[0]["type"])

	// List
	assert.NoError(t, s.Save(ctx, newSnapshot("archive")))
	names, err := s.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"archive", "hr"}, names)

	// Delete
	assert.NoError(t, s.Delete(ctx, "hr"))
	_, err = s.Load(ctx, "hr")
	assert.ErrorIs(t, err, store.ErrSnapshotNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "hr"), store.ErrSnapshotNotFound)

	names, err = s.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"archive"}, names)
}

func TestRedisSnapshotStore_TTL(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	s := NewRedisSnapshotStore(RedisOptions{
		Addr:   mr.Addr(),
		Prefix: "test:",
		TTL:    time.Minute,
	})
	defer s.Close()

	ctx := context.Background()
	assert.NoError(t, s.Save(ctx, newSnapshot("short")))
	assert.Equal(t, time.Minute, mr.TTL("test:snapshot:short"))

	mr.FastForward(2 * time.Minute)

	names, err := s.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, names)

	members, _ := mr.SMembers("test:snapshots")
	assert.Empty(t, members)
}

func TestRedisSnapshotStore_Invalid(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	s := NewRedisSnapshotStore(RedisOptions{Addr: mr.Addr()})
	defer s.Close()

	bad := newSnapshot("bad")
	bad.Chunks = append(bad.Chunks, "extra")
	assert.Error(t, s.Save(context.Background(), bad))
}
