package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/smallnest/hrrag/store"
	"github.com/stretchr/testify/assert"
)

func newSnapshot() *store.IndexSnapshot {
	return &store.IndexSnapshot{
		Name:         "hr",
		ModelName:    "text-embedding-3-small",
		ChunkSize:    500,
		ChunkOverlap: 50,
		Dimension:    2,
		Chunks:       []string{"Employee: Ana Lee", "Policy: Remote Work Policy"},
		Metadata: []map[string]any{
			{"type": "employee", "id": "emp_001"},
			{"type": "policy", "id": "pol_001"},
		},
		Vectors:   [][]float32{{1, 0}, {0.5, 0.5}},
		CreatedAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestPostgresSnapshotStore_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "index_snapshots")
	snap := newSnapshot()

	md0, _ := json.Marshal(snap.Metadata[0])
	md1, _ := json.Marshal(snap.Metadata[1])

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO index_snapshots (name")).
		WithArgs(snap.Name, snap.ModelName, 500, 50, 2, snap.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM index_snapshots_chunks WHERE snapshot = $1")).
		WithArgs(snap.Name).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO index_snapshots_chunks")).
		WithArgs(snap.Name, 0, snap.Chunks[0], md0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO index_snapshots_chunks")).
		WithArgs(snap.Name, 1, snap.Chunks[1], md1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = s.Save(context.Background(), snap)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_Save_RollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "")
	snap := newSnapshot()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO index_snapshots (name")).
		WithArgs(snap.Name, snap.ModelName, 500, 50, 2, snap.CreatedAt).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = s.Save(context.Background(), snap)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save snapshot header")
	assert.Contains(t, err.Error(), "disk full")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_Save_Invalid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "index_snapshots")
	snap := newSnapshot()
	snap.Vectors = snap.Vectors[:1]

	assert.Error(t, s.Save(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "index_snapshots")
	created := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	header := pgxmock.NewRows([]string{"name", "model_name", "chunk_size", "chunk_overlap", "dimension", "created_at"}).
		AddRow("hr", "text-embedding-3-small", 500, 50, 2, created)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, model_name, chunk_size, chunk_overlap, dimension, created_at FROM index_snapshots WHERE name = $1")).
		WithArgs("hr").
		WillReturnRows(header)

	chunks := pgxmock.NewRows([]string{"content", "metadata", "embedding"}).
		AddRow("Employee: Ana Lee", []byte(`{"type":"employee","id":"emp_001"}`), "[1,0]").
		AddRow("Policy: Remote Work Policy", []byte(`{"type":"policy","id":"pol_001"}`), "[0.5,0.5]")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT content, metadata, embedding::text FROM index_snapshots_chunks WHERE snapshot = $1")).
		WithArgs("hr").
		WillReturnRows(chunks)

	loaded, err := s.Load(context.Background(), "hr")
	assert.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", loaded.ModelName)
	assert.Equal(t, []string{"Employee: Ana Lee", "Policy: Remote Work Policy"}, loaded.Chunks)
	assert.Equal(t, "policy", loaded.Metadata[1]["type"])
	assert.Equal(t, [][]float32{{1, 0}, {0.5, 0.5}}, loaded.Vectors)
	assert.NoError(t, loaded.Validate())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_Load_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "index_snapshots")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, model_name")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	loaded, err := s.Load(context.Background(), "missing")
	assert.Nil(t, loaded)
	assert.ErrorIs(t, err, store.ErrSnapshotNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_Load_BadMetadata(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "index_snapshots")

	header := pgxmock.NewRows([]string{"name", "model_name", "chunk_size", "chunk_overlap", "dimension", "created_at"}).
		AddRow("hr", "m", 500, 50, 1, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, model_name")).WithArgs("hr").WillReturnRows(header)

	chunks := pgxmock.NewRows([]string{"content", "metadata", "embedding"}).
		AddRow("x", []byte("{invalid"), "[1]")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT content, metadata")).WithArgs("hr").WillReturnRows(chunks)

	_, err = s.Load(context.Background(), "hr")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal metadata")
}

func TestPostgresSnapshotStore_ListAndDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "index_snapshots")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM index_snapshots ORDER BY name ASC")).
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("archive").AddRow("hr"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM index_snapshots WHERE name = $1")).
		WithArgs("hr").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM index_snapshots WHERE name = $1")).
		WithArgs("hr").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	names, err := s.List(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"archive", "hr"}, names)

	assert.NoError(t, s.Delete(context.Background(), "hr"))
	assert.ErrorIs(t, s.Delete(context.Background(), "hr"), store.ErrSnapshotNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_InitSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSnapshotStoreWithPool(mock, "index_snapshots")

	mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS vector")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	assert.NoError(t, s.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
