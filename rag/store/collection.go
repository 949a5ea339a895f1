package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
	"github.com/smallnest/hrrag/rag/embedder"
)

// DefaultSearchLimit caps SearchByMetadata when no limit is given
const DefaultSearchLimit = 50

// analyzedFields are the metadata keys summarized by AnalyzeMetadata
var analyzedFields = []string{"type", "department", "doc_type", "priority", "employment_type"}

// Entry is one record stored in a Collection
type Entry struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`

	vector []float32
}

// CollectionResult is a ranked hit from a Collection query
type CollectionResult struct {
	Rank       int            `json:"rank"`
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Distance   float64        `json:"distance"`
	Similarity float64        `json:"similarity"`
}

// CollectionInfo describes a Collection
type CollectionInfo struct {
	Status         string `json:"status"`
	Name           string `json:"name"`
	Count          int    `json:"count"`
	EmbeddingModel string `json:"embedding_model"`
}

// Collection is a metadata-rich document store with filtered similarity search.
// One entry is kept per record, without chunking.
type Collection struct {
	name     string
	embedder rag.Embedder
	model    string
	logger   log.Logger
	now      func() time.Time

	entries []*Entry
	byID    map[string]*Entry
	built   bool
}

// CollectionOption configures a Collection
type CollectionOption func(*Collection)

// WithCollectionLogger sets the logger
func WithCollectionLogger(logger log.Logger) CollectionOption {
	return func(c *Collection) {
		c.logger = logger
	}
}

// WithClock sets the time source used for defaults and export timestamps
func WithClock(now func() time.Time) CollectionOption {
	return func(c *Collection) {
		c.now = now
	}
}

// WithEmbeddingModel records the embedding model reported by Info
func WithEmbeddingModel(model string) CollectionOption {
	return func(c *Collection) {
		c.model = model
	}
}

// NewCollection creates an empty collection
func NewCollection(name string, emb rag.Embedder, opts ...CollectionOption) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", rag.ErrInvalidConfig)
	}
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", rag.ErrInvalidConfig)
	}

	c := &Collection{
		name:     name,
		embedder: emb,
		model:    "all-MiniLM-L6-v2",
		now:      time.Now,
		byID:     make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.GetDefaultLogger()
	}
	return c, nil
}

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

// BuildCollection replaces the collection contents with one entry per record
func (c *Collection) BuildCollection(ctx context.Context, ds *rag.Dataset) error {
	if ds.RecordCount() == 0 {
		return rag.ErrEmptyCorpus
	}

	now := c.now().Format(time.RFC3339)
	entries := make([]*Entry, 0, ds.RecordCount())
	for _, e := range ds.Employees {
		entries = append(entries, &Entry{
			ID:       "emp_" + e.ID,
			Content:  rag.EmployeeText(e),
			Metadata: employeeEntryMetadata(e, now),
		})
	}
	for _, p := range ds.Policies {
		entries = append(entries, &Entry{
			ID:       "policy_" + p.ID,
			Content:  rag.PolicyText(p),
			Metadata: policyEntryMetadata(p, now),
		})
	}
	for _, d := range ds.Documents {
		entries = append(entries, &Entry{
			ID:       "doc_" + d.ID,
			Content:  rag.DocumentText(d),
			Metadata: documentEntryMetadata(d, now),
		})
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Content
	}
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed collection %s: %w", c.name, err)
	}
	if len(vectors) != len(entries) {
		return fmt.Errorf("embedder returned %d vectors for %d entries", len(vectors), len(entries))
	}

	byID := make(map[string]*Entry, len(entries))
	for i, e := range entries {
		e.vector = embedder.Normalize(slices.Clone(vectors[i]))
		if _, dup := byID[e.ID]; dup {
			c.logger.Warn("collection %s: duplicate id %s, keeping the last record", c.name, e.ID)
		}
		byID[e.ID] = e
	}

	c.entries = entries
	c.byID = byID
	c.built = true

	c.logger.Info("built collection %s with %d documents", c.name, len(entries))
	return nil
}

// QueryWithFilters returns up to topK entries matching filters, ordered by
// ascending cosine distance to text.
func (c *Collection) QueryWithFilters(ctx context.Context, text string, topK int, filters map[string]any) ([]CollectionResult, error) {
	if !c.built {
		return nil, rag.ErrNotBuilt
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", rag.ErrInvalidArgument, topK)
	}

	q, err := c.embedder.EmbedDocument(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(c.entries) > 0 && len(q) != len(c.entries[0].vector) {
		return nil, fmt.Errorf("query dimension %d does not match collection dimension %d", len(q), len(c.entries[0].vector))
	}
	q = embedder.Normalize(slices.Clone(q))

	var results []CollectionResult
	for _, e := range c.entries {
		if !rag.MatchesFilters(e.Metadata, filters) {
			continue
		}
		distance := 1 - embedder.Dot(q, e.vector)
		results = append(results, CollectionResult{
			ID:         e.ID,
			Content:    e.Content,
			Metadata:   copyMetadata(e.Metadata),
			Distance:   distance,
			Similarity: 1 - distance,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// FindSimilar is QueryWithFilters without filters
func (c *Collection) FindSimilar(ctx context.Context, text string, topK int) ([]CollectionResult, error) {
	return c.QueryWithFilters(ctx, text, topK, nil)
}

// SearchByMetadata returns entries matching filters in storage order.
// A limit of 0 or less means DefaultSearchLimit.
func (c *Collection) SearchByMetadata(filters map[string]any, limit int) ([]Entry, error) {
	if !c.built {
		return nil, rag.ErrNotBuilt
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var out []Entry
	for _, e := range c.entries {
		if len(out) == limit {
			break
		}
		if rag.MatchesFilters(e.Metadata, filters) {
			out = append(out, Entry{ID: e.ID, Content: e.Content, Metadata: copyMetadata(e.Metadata)})
		}
	}
	return out, nil
}

// AnalyzeMetadata counts entries per value of the summarized metadata fields.
// Entries without a field are counted under "Unknown".
func (c *Collection) AnalyzeMetadata() (map[string]map[string]int, error) {
	if !c.built {
		return nil, rag.ErrNotBuilt
	}

	analysis := make(map[string]map[string]int, len(analyzedFields))
	for _, field := range analyzedFields {
		counts := make(map[string]int)
		for _, e := range c.entries {
			v, ok := e.Metadata[field]
			if !ok || v == nil || v == "" {
				counts["Unknown"]++
				continue
			}
			counts[fmt.Sprint(v)]++
		}
		analysis[field] = counts
	}
	return analysis, nil
}

// GetDocumentByID returns the entry with id, if any
func (c *Collection) GetDocumentByID(id string) (*Entry, bool) {
	e, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &Entry{ID: e.ID, Content: e.Content, Metadata: copyMetadata(e.Metadata)}, true
}

type collectionExport struct {
	CollectionName  string  `json:"collection_name"`
	ExportTimestamp string  `json:"export_timestamp"`
	DocumentCount   int     `json:"document_count"`
	Documents       []Entry `json:"documents"`
}

// ExportCollection serializes every entry with its metadata as indented JSON
func (c *Collection) ExportCollection() ([]byte, error) {
	if !c.built {
		return nil, rag.ErrNotBuilt
	}

	export := collectionExport{
		CollectionName:  c.name,
		ExportTimestamp: c.now().Format(time.RFC3339),
		DocumentCount:   len(c.entries),
		Documents:       make([]Entry, len(c.entries)),
	}
	for i, e := range c.entries {
		export.Documents[i] = Entry{ID: e.ID, Content: e.Content, Metadata: e.Metadata}
	}
	return json.MarshalIndent(export, "", "  ")
}

// ResetCollection removes every entry and returns the collection to unbuilt
func (c *Collection) ResetCollection() {
	c.entries = nil
	c.byID = make(map[string]*Entry)
	c.built = false
	c.logger.Info("reset collection %s", c.name)
}

// Size returns the number of entries
func (c *Collection) Size() int {
	return len(c.entries)
}

// Info reports the collection status
func (c *Collection) Info() CollectionInfo {
	status := "empty"
	if c.built {
		status = "active"
	}
	return CollectionInfo{
		Status:         status,
		Name:           c.name,
		Count:          len(c.entries),
		EmbeddingModel: c.model,
	}
}
