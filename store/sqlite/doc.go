// Package sqlite provides SQLite-backed storage for index snapshots.
//
// Each snapshot is one row: header columns for the build settings and JSON
// text columns for chunks, metadata and vectors.
//
//	snapshots, err := sqlite.NewSqliteSnapshotStore(sqlite.SqliteOptions{
//		Path:      "./hrrag.db",
//		TableName: "index_snapshots", // optional
//	})
//	if err != nil {
//		return err
//	}
//	defer snapshots.Close()
//
// Use ":memory:" as the path for a throwaway database.
package sqlite
