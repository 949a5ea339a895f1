package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
	"github.com/smallnest/hrrag/rag/enterprise"
	"github.com/smallnest/hrrag/rag/kg"
	"github.com/smallnest/hrrag/rag/retriever"
	"github.com/smallnest/hrrag/rag/store"
	snapstore "github.com/smallnest/hrrag/store"
	"golang.org/x/sync/errgroup"
)

// Strategy names used as keys in build reports and comparisons
const (
	StrategyVector     = "vector"
	StrategyCollection = "collection"
	StrategyGraph      = "graph"
	StrategyEnterprise = "enterprise"
)

// Options configures a Suite. Zero values use the engine defaults.
type Options struct {
	ModelName string
	ChunkSize int
	// ChunkOverlap is the index chunk overlap; nil uses the default
	ChunkOverlap   *int
	CollectionName string
	GraphName      string
	TopK           int
	MaxDepth       int

	// Snapshots persists the chunk index; nil disables SaveIndex and LoadIndex
	Snapshots snapstore.SnapshotStore

	// KnowledgeGraph backs hybrid search; nil uses the mock entity searcher
	KnowledgeGraph *kg.Client

	// Enterprise answers grounded questions; nil uses a mirror-backed engine
	Enterprise *enterprise.Engine

	Logger log.Logger
}

// Metrics tracks query counts and latency across Compare calls
type Metrics struct {
	TotalQueries   int64         `json:"total_queries"`
	FailedQueries  int64         `json:"failed_queries"`
	TotalLatency   time.Duration `json:"total_latency"`
	AverageLatency time.Duration `json:"average_latency"`
	LastQueryTime  time.Time     `json:"last_query_time"`
	Builds         int64         `json:"builds"`
}

// Suite owns the three retrieval engines over one dataset together with the
// hybrid and enterprise capabilities built on the same records.
// Compare is safe for concurrent use once built; Build, LoadIndex, HybridSearch
// and Ask must be serialized by the caller.
type Suite struct {
	index      *store.ChunkIndex
	collection *store.Collection
	graph      *store.PropertyGraph
	kg         *kg.Client
	enterprise *enterprise.Engine
	hybrid     *retriever.HybridSearcher
	snapshots  snapstore.SnapshotStore

	topK     int
	maxDepth int
	logger   log.Logger

	mu      sync.Mutex
	data    *rag.Dataset
	metrics Metrics
	closers []func() error
}

// NewSuite creates the engines around emb
func NewSuite(emb rag.Embedder, opts Options) (*Suite, error) {
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", rag.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = log.GetDefaultLogger()
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 2
	}

	indexOpts := []store.IndexOption{store.WithLogger(opts.Logger)}
	if opts.ModelName != "" {
		indexOpts = append(indexOpts, store.WithModelName(opts.ModelName))
	}
	if opts.ChunkSize > 0 {
		indexOpts = append(indexOpts, store.WithChunkSize(opts.ChunkSize))
	}
	if opts.ChunkOverlap != nil {
		indexOpts = append(indexOpts, store.WithChunkOverlap(*opts.ChunkOverlap))
	}
	index, err := store.NewChunkIndex(emb, indexOpts...)
	if err != nil {
		return nil, err
	}

	collOpts := []store.CollectionOption{store.WithCollectionLogger(opts.Logger)}
	if opts.ModelName != "" {
		collOpts = append(collOpts, store.WithEmbeddingModel(opts.ModelName))
	}
	collection, err := store.NewCollection(rag.Or(opts.CollectionName, "hr_documents"), emb, collOpts...)
	if err != nil {
		return nil, err
	}

	graph := store.NewPropertyGraph(rag.Or(opts.GraphName, "hr_knowledge_graph"), store.WithGraphLogger(opts.Logger))

	if opts.KnowledgeGraph == nil {
		opts.KnowledgeGraph = kg.NewClient(nil, kg.WithLogger(opts.Logger))
	}
	if opts.Enterprise == nil {
		opts.Enterprise = enterprise.NewEngine(enterprise.WithLogger(opts.Logger))
	}

	return &Suite{
		index:      index,
		collection: collection,
		graph:      graph,
		kg:         opts.KnowledgeGraph,
		enterprise: opts.Enterprise,
		snapshots:  opts.Snapshots,
		topK:       opts.TopK,
		maxDepth:   opts.MaxDepth,
		logger:     opts.Logger,
	}, nil
}

// Index returns the chunked embedding index
func (s *Suite) Index() *store.ChunkIndex { return s.index }

// Collection returns the metadata-rich document store
func (s *Suite) Collection() *store.Collection { return s.collection }

// Graph returns the property graph
func (s *Suite) Graph() *store.PropertyGraph { return s.graph }

// KnowledgeGraph returns the external entity client
func (s *Suite) KnowledgeGraph() *kg.Client { return s.kg }

// Enterprise returns the grounded question answering engine
func (s *Suite) Enterprise() *enterprise.Engine { return s.enterprise }

// Hybrid returns the hybrid searcher, or nil before Build
func (s *Suite) Hybrid() *retriever.HybridSearcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hybrid
}

// Dataset returns the dataset of the last successful Build
func (s *Suite) Dataset() *rag.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// BuildReport records how long each engine took to build
type BuildReport struct {
	Records   int                      `json:"records"`
	Durations map[string]time.Duration `json:"durations"`
	Total     time.Duration            `json:"total"`
}

// Build builds every engine from ds concurrently. Each engine keeps its
// previous contents when its own build fails. A dataset without employees,
// policies or departments leaves the graph unbuilt.
func (s *Suite) Build(ctx context.Context, ds *rag.Dataset) (BuildReport, error) {
	if ds.RecordCount() == 0 {
		return BuildReport{}, rag.ErrEmptyCorpus
	}

	report := BuildReport{Records: ds.RecordCount(), Durations: make(map[string]time.Duration)}
	var mu sync.Mutex
	timed := func(name string, fn func() error) func() error {
		return func() error {
			start := time.Now()
			if err := fn(); err != nil {
				return fmt.Errorf("build %s: %w", name, err)
			}
			mu.Lock()
			report.Durations[name] = time.Since(start)
			mu.Unlock()
			return nil
		}
	}

	start := time.Now()
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(timed(StrategyVector, func() error {
		return s.index.Build(ectx, ds)
	}))
	eg.Go(timed(StrategyCollection, func() error {
		return s.collection.BuildCollection(ectx, ds)
	}))
	if hasGraphRecords(ds) {
		eg.Go(timed(StrategyGraph, func() error {
			return s.graph.BuildGraph(ds)
		}))
	}
	eg.Go(timed(StrategyEnterprise, func() error {
		_, err := s.enterprise.CreateDataStore(ectx, ds)
		return err
	}))
	if err := eg.Wait(); err != nil {
		return BuildReport{}, err
	}
	report.Total = time.Since(start)
	if !hasGraphRecords(ds) {
		s.graph.Reset()
		s.logger.Debug("no graph records, graph %s left empty", s.graph.Name())
	}

	s.mu.Lock()
	s.data = ds
	s.hybrid = retriever.NewHybridSearcher(ds, s.kg, retriever.WithLogger(s.logger))
	s.metrics.Builds++
	s.mu.Unlock()

	s.logger.Info("suite built from %d records in %s", report.Records, report.Total.Round(time.Millisecond))
	return report, nil
}

func hasGraphRecords(ds *rag.Dataset) bool {
	return len(ds.Employees)+len(ds.Policies)+len(ds.Departments) > 0
}

// Comparison holds one query answered by every retrieval strategy
type Comparison struct {
	Query      string                   `json:"query"`
	Vector     []rag.SearchResult       `json:"vector"`
	Collection []store.CollectionResult `json:"collection"`
	Graph      []store.GraphResult      `json:"graph"`
	Durations  map[string]time.Duration `json:"durations"`
}

// Compare runs query against the chunk index, the collection and the graph
// in parallel. topK <= 0 uses the suite default. The graph is skipped when
// the last build had no graph records.
func (s *Suite) Compare(ctx context.Context, query string, topK int) (*Comparison, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", rag.ErrInvalidArgument)
	}
	if topK <= 0 {
		topK = s.topK
	}

	start := time.Now()
	cmp, err := s.compare(ctx, query, topK)
	s.record(start, err)
	if err != nil {
		return nil, err
	}
	return cmp, nil
}

func (s *Suite) compare(ctx context.Context, query string, topK int) (*Comparison, error) {
	cmp := &Comparison{Query: query, Durations: make(map[string]time.Duration)}
	var mu sync.Mutex
	timed := func(name string, fn func() error) func() error {
		return func() error {
			start := time.Now()
			if err := fn(); err != nil {
				return fmt.Errorf("%s search: %w", name, err)
			}
			mu.Lock()
			cmp.Durations[name] = time.Since(start)
			mu.Unlock()
			return nil
		}
	}

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(timed(StrategyVector, func() (err error) {
		cmp.Vector, err = s.index.Query(ectx, query, topK)
		return err
	}))
	eg.Go(timed(StrategyCollection, func() (err error) {
		cmp.Collection, err = s.collection.QueryWithFilters(ectx, query, topK, nil)
		return err
	}))
	if s.graph.IsBuilt() || s.Dataset() == nil {
		eg.Go(timed(StrategyGraph, func() (err error) {
			cmp.Graph, err = s.graph.SemanticSearch(query, topK, s.maxDepth)
			return err
		}))
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return cmp, nil
}

func (s *Suite) record(start time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalQueries++
	if err != nil {
		s.metrics.FailedQueries++
	}
	s.metrics.TotalLatency += time.Since(start)
	s.metrics.AverageLatency = s.metrics.TotalLatency / time.Duration(s.metrics.TotalQueries)
	s.metrics.LastQueryTime = time.Now()
}

// HybridSearch runs req through the hybrid searcher
func (s *Suite) HybridSearch(ctx context.Context, req retriever.Request) (*retriever.Result, error) {
	h := s.Hybrid()
	if h == nil {
		return nil, rag.ErrNotBuilt
	}
	return h.Search(ctx, req)
}

// Ask answers req with the enterprise engine
func (s *Suite) Ask(ctx context.Context, req enterprise.QueryRequest) enterprise.QueryResult {
	return s.enterprise.Query(ctx, req)
}

// BuildContext renders the hits of cmp as a prompt context, at most perStrategy
// hits from each strategy in vector, collection, graph order.
func BuildContext(cmp *Comparison, perStrategy int, includeScores bool) string {
	if cmp == nil {
		return ""
	}
	if perStrategy <= 0 {
		perStrategy = len(cmp.Vector) + len(cmp.Collection) + len(cmp.Graph)
	}

	var b strings.Builder
	n := 0
	write := func(source, title, content string, score float64) {
		n++
		fmt.Fprintf(&b, "Document %d:\n", n)
		fmt.Fprintf(&b, "Source: %s\n", source)
		if includeScores {
			fmt.Fprintf(&b, "Score: %.4f\n", score)
		}
		if title != "" {
			fmt.Fprintf(&b, "Title: %s\n", title)
		}
		fmt.Fprintf(&b, "Content: %s\n\n", content)
	}

	for _, r := range cmp.Vector[:min(perStrategy, len(cmp.Vector))] {
		write(StrategyVector, rag.Or(rag.MetadataString(r.Metadata, "title"), rag.MetadataString(r.Metadata, "name")), r.Content, r.Score)
	}
	for _, r := range cmp.Collection[:min(perStrategy, len(cmp.Collection))] {
		write(StrategyCollection, rag.Or(rag.MetadataString(r.Metadata, "title"), rag.MetadataString(r.Metadata, "name")), r.Content, r.Similarity)
	}
	for _, r := range cmp.Graph[:min(perStrategy, len(cmp.Graph))] {
		write(StrategyGraph, r.NodeType+" "+r.NodeID, r.Content, r.Score)
	}
	return b.String()
}

// SaveIndex persists the chunk index under name
func (s *Suite) SaveIndex(ctx context.Context, name string) error {
	if s.snapshots == nil {
		return fmt.Errorf("%w: no snapshot store configured", rag.ErrInvalidConfig)
	}
	return s.index.Save(ctx, s.snapshots, name)
}

// LoadIndex replaces the chunk index with the snapshot stored under name
func (s *Suite) LoadIndex(ctx context.Context, name string) error {
	if s.snapshots == nil {
		return fmt.Errorf("%w: no snapshot store configured", rag.ErrInvalidConfig)
	}
	return s.index.Load(ctx, s.snapshots, name)
}

// Snapshots lists the stored index snapshots
func (s *Suite) Snapshots(ctx context.Context) ([]string, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.List(ctx)
}

// Stats aggregates the statistics of every engine
type Stats struct {
	Index      store.IndexStats        `json:"index"`
	Collection store.CollectionInfo    `json:"collection"`
	Graph      store.GraphStats        `json:"graph"`
	Entities   kg.UsageStats           `json:"entities"`
	DataStore  enterprise.UsageMetrics `json:"data_store"`
}

// Stats reports the current state of every engine
func (s *Suite) Stats() Stats {
	return Stats{
		Index:      s.index.Statistics(),
		Collection: s.collection.Info(),
		Graph:      s.graph.GetGraphStats(),
		Entities:   s.kg.UsageStats(),
		DataStore:  s.enterprise.UsageMetrics(),
	}
}

// GetMetrics returns a copy of the query metrics
func (s *Suite) GetMetrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// ResetMetrics clears the query metrics
func (s *Suite) ResetMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = Metrics{}
}

// onClose registers a release function run by Close in reverse order
func (s *Suite) onClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Close releases the cache and snapshot connections opened for the suite
func (s *Suite) Close() error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
