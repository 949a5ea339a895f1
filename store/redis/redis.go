package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/hrrag/store"
)

// RedisSnapshotStore implements store.SnapshotStore using Redis
type RedisSnapshotStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "hrrag:"
	TTL      time.Duration // Expiration for snapshots, default 0 (no expiration)
}

// NewRedisSnapshotStore creates a new Redis snapshot store
func NewRedisSnapshotStore(opts RedisOptions) *RedisSnapshotStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "hrrag:"
	}

	return &RedisSnapshotStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (s *RedisSnapshotStore) snapshotKey(name string) string {
	return fmt.Sprintf("%ssnapshot:%s", s.prefix, name)
}

func (s *RedisSnapshotStore) indexKey() string {
	return s.prefix + "snapshots"
}

// Save stores a snapshot
func (s *RedisSnapshotStore) Save(ctx context.Context, snapshot *store.IndexSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.snapshotKey(snapshot.Name), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), snapshot.Name)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot to redis: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by name
func (s *RedisSnapshotStore) Load(ctx context.Context, name string) (*store.IndexSnapshot, error) {
	data, err := s.client.Get(ctx, s.snapshotKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", store.ErrSnapshotNotFound, name)
		}
		return nil, fmt.Errorf("failed to load snapshot from redis: %w", err)
	}

	var snapshot store.IndexSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// List returns the names of snapshots whose keys still exist.
// Names of expired snapshots are pruned from the index.
func (s *RedisSnapshotStore) List(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(members) == 0 {
		return []string{}, nil
	}

	pipe := s.client.Pipeline()
	exists := make([]*redis.IntCmd, len(members))
	for i, name := range members {
		exists[i] = pipe.Exists(ctx, s.snapshotKey(name))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check snapshots: %w", err)
	}

	names := make([]string, 0, len(members))
	var stale []any
	for i, name := range members {
		if exists[i].Val() == 0 {
			stale = append(stale, name)
			continue
		}
		names = append(names, name)
	}
	if len(stale) > 0 {
		s.client.SRem(ctx, s.indexKey(), stale...)
	}

	slices.Sort(names)
	return names, nil
}

// Delete removes a snapshot
func (s *RedisSnapshotStore) Delete(ctx context.Context, name string) error {
	pipe := s.client.Pipeline()
	del := pipe.Del(ctx, s.snapshotKey(name))
	pipe.SRem(ctx, s.indexKey(), name)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", store.ErrSnapshotNotFound, name)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
