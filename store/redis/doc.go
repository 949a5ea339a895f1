// Package redis provides Redis-backed storage for index snapshots.
//
// A snapshot is stored as one JSON value under "<prefix>snapshot:<name>" and
// its name is added to the "<prefix>snapshots" set. With a TTL configured,
// expired snapshots drop out of List on the next call.
//
//	snapshots := redis.NewRedisSnapshotStore(redis.RedisOptions{
//		Addr:   "localhost:6379",
//		Prefix: "hrrag:", // optional
//		TTL:    24 * time.Hour,
//	})
//	defer snapshots.Close()
package redis
