package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
	"github.com/smallnest/hrrag/rag/embedder"
	"github.com/smallnest/hrrag/rag/splitter"
	snapstore "github.com/smallnest/hrrag/store"
)

// ChunkIndex is an in-memory embedding index over chunked HR records.
// chunks, metadata and vectors are parallel slices of equal length.
type ChunkIndex struct {
	embedder     rag.Embedder
	splitter     *splitter.WordWindowSplitter
	modelName    string
	chunkSize    int
	chunkOverlap int
	logger       log.Logger

	chunks   []string
	metadata []map[string]any
	vectors  [][]float32
	built    bool
}

// IndexOption configures a ChunkIndex
type IndexOption func(*ChunkIndex)

// WithModelName records the embedding model identifier
func WithModelName(name string) IndexOption {
	return func(x *ChunkIndex) {
		x.modelName = name
	}
}

// WithChunkSize sets the chunk size in characters
func WithChunkSize(size int) IndexOption {
	return func(x *ChunkIndex) {
		x.chunkSize = size
	}
}

// WithChunkOverlap sets the overlap between consecutive chunks
func WithChunkOverlap(overlap int) IndexOption {
	return func(x *ChunkIndex) {
		x.chunkOverlap = overlap
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) IndexOption {
	return func(x *ChunkIndex) {
		x.logger = logger
	}
}

// NewChunkIndex creates an unbuilt index
func NewChunkIndex(emb rag.Embedder, opts ...IndexOption) (*ChunkIndex, error) {
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", rag.ErrInvalidConfig)
	}

	x := &ChunkIndex{
		embedder:     emb,
		modelName:    "all-MiniLM-L6-v2",
		chunkSize:    splitter.DefaultChunkSize,
		chunkOverlap: splitter.DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.logger == nil {
		x.logger = log.GetDefaultLogger()
	}

	s, err := splitter.NewWordWindowSplitter(
		splitter.WithChunkSize(x.chunkSize),
		splitter.WithChunkOverlap(x.chunkOverlap),
	)
	if err != nil {
		return nil, err
	}
	x.splitter = s

	return x, nil
}

// Build chunks, embeds and indexes every record in ds, replacing any
// previous contents. On failure the previous index is left untouched.
func (x *ChunkIndex) Build(ctx context.Context, ds *rag.Dataset) error {
	if ds == nil {
		return rag.ErrEmptyCorpus
	}

	var chunks []rag.Chunk
	for _, e := range ds.Employees {
		chunks = append(chunks, x.splitter.SplitChunks(rag.EmployeeText(e), employeeChunkMetadata(e))...)
	}
	for _, p := range ds.Policies {
		chunks = append(chunks, x.splitter.SplitChunks(rag.PolicyText(p), policyChunkMetadata(p))...)
	}
	for _, d := range ds.Documents {
		chunks = append(chunks, x.splitter.SplitChunks(rag.DocumentText(d), documentChunkMetadata(d))...)
	}
	if len(chunks) == 0 {
		return rag.ErrEmptyCorpus
	}

	texts := make([]string, len(chunks))
	metadata := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
		metadata[i] = c.Metadata
	}

	start := time.Now()
	vectors, err := x.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
		vectors[i] = embedder.Normalize(slices.Clone(v))
	}

	x.chunks = texts
	x.metadata = metadata
	x.vectors = vectors
	x.built = true

	x.logger.Info("built embedding index: %d records, %d chunks, dim %d in %s",
		ds.RecordCount(), len(texts), dim, time.Since(start).Round(time.Millisecond))
	return nil
}

type scoredChunk struct {
	index int
	score float64
}

// Query returns up to topK chunks ranked by cosine similarity to text.
// Ties keep insertion order.
func (x *ChunkIndex) Query(ctx context.Context, text string, topK int) ([]rag.SearchResult, error) {
	if !x.built {
		return nil, rag.ErrNotBuilt
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", rag.ErrInvalidArgument, topK)
	}

	q, err := x.embedder.EmbedDocument(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(q) != len(x.vectors[0]) {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(q), len(x.vectors[0]))
	}
	q = embedder.Normalize(slices.Clone(q))

	scores := make([]scoredChunk, len(x.vectors))
	for i, v := range x.vectors {
		scores[i] = scoredChunk{index: i, score: embedder.Dot(q, v)}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if topK > len(scores) {
		topK = len(scores)
	}

	results := make([]rag.SearchResult, topK)
	for i := 0; i < topK; i++ {
		s := scores[i]
		results[i] = rag.SearchResult{
			Rank:       i + 1,
			Content:    x.chunks[s.index],
			Metadata:   copyMetadata(x.metadata[s.index]),
			Score:      s.score,
			Similarity: s.score,
		}
	}
	return results, nil
}

// SemanticSearch over-fetches 3*topK candidates and keeps those whose
// metadata matches every active filter. It may return fewer than topK
// results when matching candidates are scarce.
func (x *ChunkIndex) SemanticSearch(ctx context.Context, text string, topK int, filters map[string]any) ([]rag.SearchResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", rag.ErrInvalidArgument, topK)
	}

	candidates, err := x.Query(ctx, text, topK*3)
	if err != nil {
		return nil, err
	}

	results := make([]rag.SearchResult, 0, topK)
	for _, c := range candidates {
		if !rag.MatchesFilters(c.Metadata, filters) {
			continue
		}
		c.Rank = len(results) + 1
		results = append(results, c)
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// Size returns the number of indexed chunks, 0 before Build
func (x *ChunkIndex) Size() int {
	return len(x.chunks)
}

// IsBuilt reports whether the index can be queried
func (x *ChunkIndex) IsBuilt() bool {
	return x.built
}

// IndexStats summarizes a ChunkIndex
type IndexStats struct {
	Built                  bool           `json:"built"`
	TotalChunks            int            `json:"total_chunks"`
	Dimension              int            `json:"dimension"`
	ModelName              string         `json:"model_name"`
	ChunkSize              int            `json:"chunk_size"`
	ChunkOverlap           int            `json:"chunk_overlap"`
	TypeDistribution       map[string]int `json:"type_distribution"`
	DepartmentDistribution map[string]int `json:"department_distribution"`
}

// Statistics reports the index settings and per-type and per-department chunk counts
func (x *ChunkIndex) Statistics() IndexStats {
	stats := IndexStats{
		Built:                  x.built,
		TotalChunks:            len(x.chunks),
		ModelName:              x.modelName,
		ChunkSize:              x.chunkSize,
		ChunkOverlap:           x.chunkOverlap,
		TypeDistribution:       make(map[string]int),
		DepartmentDistribution: make(map[string]int),
	}
	if len(x.vectors) > 0 {
		stats.Dimension = len(x.vectors[0])
	}
	for _, md := range x.metadata {
		stats.TypeDistribution[rag.Or(rag.MetadataString(md, "type"), "Unknown")]++
		stats.DepartmentDistribution[rag.Or(rag.MetadataString(md, "department"), "Unknown")]++
	}
	return stats
}

// Save persists the built index under name
func (x *ChunkIndex) Save(ctx context.Context, snapshots snapstore.SnapshotStore, name string) error {
	if !x.built {
		return rag.ErrNotBuilt
	}

	snap := &snapstore.IndexSnapshot{
		Name:         name,
		ModelName:    x.modelName,
		ChunkSize:    x.chunkSize,
		ChunkOverlap: x.chunkOverlap,
		Dimension:    len(x.vectors[0]),
		Chunks:       x.chunks,
		Metadata:     x.metadata,
		Vectors:      x.vectors,
		CreatedAt:    time.Now().UTC(),
	}
	if err := snapshots.Save(ctx, snap); err != nil {
		return fmt.Errorf("save index snapshot %s: %w", name, err)
	}

	x.logger.Debug("saved index snapshot %s with %d chunks", name, len(x.chunks))
	return nil
}

// Load replaces the index contents with the named snapshot. The snapshot must
// be internally consistent and match the embedder's dimension.
func (x *ChunkIndex) Load(ctx context.Context, snapshots snapstore.SnapshotStore, name string) error {
	snap, err := snapshots.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("load index snapshot %s: %w", name, err)
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %v", rag.ErrInvalidConfig, err)
	}
	if snap.Len() == 0 {
		return rag.ErrEmptyCorpus
	}
	if dim := x.embedder.GetDimension(); dim > 0 && dim != snap.Dimension {
		return fmt.Errorf("%w: snapshot dimension %d does not match embedder dimension %d",
			rag.ErrInvalidConfig, snap.Dimension, dim)
	}

	s, err := splitter.NewWordWindowSplitter(
		splitter.WithChunkSize(snap.ChunkSize),
		splitter.WithChunkOverlap(snap.ChunkOverlap),
	)
	if err != nil {
		return err
	}

	if snap.ModelName != "" && snap.ModelName != x.modelName {
		x.logger.Warn("snapshot %s was built with model %s, index is configured for %s",
			name, snap.ModelName, x.modelName)
	}

	x.splitter = s
	x.chunkSize = snap.ChunkSize
	x.chunkOverlap = snap.ChunkOverlap
	x.chunks = snap.Chunks
	x.metadata = snap.Metadata
	x.vectors = snap.Vectors
	x.built = true

	x.logger.Info("loaded index snapshot %s: %d chunks", name, snap.Len())
	return nil
}
