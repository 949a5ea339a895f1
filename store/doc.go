// Package store persists built embedding indexes so they can be restored
// without re-embedding the corpus.
//
// An IndexSnapshot carries the chunk texts, per-chunk metadata and vectors of
// a ChunkIndex together with the settings it was built with. Backends
// implement SnapshotStore:
//
//   - memory: process-local map, useful in tests
//   - file: one JSON document per snapshot in a directory
//   - sqlite: a single table with JSON columns
//   - postgres: a header table plus a chunk table with a pgvector column
//   - redis: one key per snapshot plus a name index set
//
// # Usage
//
//	snapshots, err := sqlite.NewSqliteSnapshotStore(sqlite.SqliteOptions{Path: "./hrrag.db"})
//	if err != nil {
//		return err
//	}
//	defer snapshots.Close()
//
//	if err := index.Save(ctx, snapshots, "hr-index"); err != nil {
//		return err
//	}
//
// Every backend returns ErrSnapshotNotFound, wrapped, when a name is unknown.
package store
