package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
	"github.com/smallnest/hrrag/rag/kg"
)

// Search modes
const (
	ModeHybrid           = "Hybrid (Internal + External)"
	ModeInternalOnly     = "Internal Only"
	ModeExternalOnly     = "External Only"
	ModeEntityEnrichment = "Entity Enrichment"
)

// MaxInternalResults caps the internal keyword hits per query
const MaxInternalResults = 5

var (
	employeeFields = []string{"name", "department", "job_title", "email"}
	policyFields   = []string{"title", "content", "type"}
)

// InternalResult is a keyword hit over the internal HR records
type InternalResult struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Request is a hybrid search request
type Request struct {
	Query         string
	Mode          string
	MinConfidence float64
	MaxExternal   int
	Types         []string
	Languages     []string
}

// Result holds the hits from each source plus a merged ranking
type Result struct {
	QueryID  string               `json:"query_id"`
	Internal []InternalResult     `json:"internal"`
	External []rag.ExternalResult `json:"external"`
	Combined []Hit                `json:"combined"`
}

// QueryRecord is one entry of the query history
type QueryRecord struct {
	ID            string        `json:"id"`
	Query         string        `json:"query"`
	Mode          string        `json:"mode"`
	Timestamp     time.Time     `json:"timestamp"`
	InternalCount int           `json:"internal_count"`
	ExternalCount int           `json:"external_count"`
	Duration      time.Duration `json:"duration_ns"`
}

// HybridSearcher combines keyword search over internal HR records with an
// external entity searcher. It is not safe for concurrent use.
type HybridSearcher struct {
	data     *rag.Dataset
	external rag.ExternalSearcher
	weights  [2]float64
	reranker *Reranker
	logger   log.Logger
	now      func() time.Time

	history []QueryRecord
}

// Option configures a HybridSearcher
type Option func(*HybridSearcher)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(h *HybridSearcher) {
		h.logger = logger
	}
}

// WithClock sets the time source for history and exports
func WithClock(now func() time.Time) Option {
	return func(h *HybridSearcher) {
		h.now = now
	}
}

// WithWeights scales internal and external scores in the combined ranking
func WithWeights(internal, external float64) Option {
	return func(h *HybridSearcher) {
		h.weights = [2]float64{internal, external}
	}
}

// NewHybridSearcher creates a searcher over data. A nil external searcher
// uses the offline knowledge graph mock.
func NewHybridSearcher(data *rag.Dataset, external rag.ExternalSearcher, opts ...Option) *HybridSearcher {
	if data == nil {
		data = &rag.Dataset{}
	}
	if external == nil {
		external = kg.NewMockSearcher()
	}

	h := &HybridSearcher{
		data:     data,
		external: external,
		weights:  [2]float64{1, 1},
		reranker: NewReranker(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log.GetDefaultLogger()
	}
	return h
}

// Search runs the sources selected by req.Mode and records the query.
// External failures are logged and leave External empty.
func (h *HybridSearcher) Search(ctx context.Context, req Request) (*Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	switch mode {
	case ModeHybrid, ModeInternalOnly, ModeExternalOnly, ModeEntityEnrichment:
	default:
		return nil, fmt.Errorf("%w: unknown search mode %q", rag.ErrInvalidArgument, mode)
	}

	start := h.now()
	res := &Result{
		QueryID:  uuid.NewString(),
		Internal: []InternalResult{},
		External: []rag.ExternalResult{},
	}

	if mode == ModeHybrid || mode == ModeInternalOnly {
		res.Internal = h.SearchInternal(req.Query)
	}
	if mode != ModeInternalOnly {
		external, err := h.searchExternal(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			h.logger.Warn("external search for %q failed: %v", req.Query, err)
		} else {
			res.External = external
		}
	}

	res.Combined = h.reranker.Rerank(req.Query, h.combine(res))

	h.history = append(h.history, QueryRecord{
		ID:            res.QueryID,
		Query:         req.Query,
		Mode:          mode,
		Timestamp:     start,
		InternalCount: len(res.Internal),
		ExternalCount: len(res.External),
		Duration:      h.now().Sub(start),
	})
	return res, nil
}

func (h *HybridSearcher) searchExternal(ctx context.Context, req Request) ([]rag.ExternalResult, error) {
	limit := req.MaxExternal
	if limit <= 0 {
		limit = 5
	}

	if l, ok := h.external.(kg.EntitySearcher); ok {
		return l.Lookup(ctx, kg.Query{
			Text:          req.Query,
			Limit:         limit,
			Types:         req.Types,
			Languages:     req.Languages,
			MinConfidence: req.MinConfidence,
		})
	}

	results, err := h.external.Search(ctx, req.Query, limit)
	if err != nil {
		return nil, err
	}
	kept := make([]rag.ExternalResult, 0, len(results))
	for _, r := range results {
		if r.Confidence >= req.MinConfidence {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// SearchInternal scores employees on name, department, job title and email
// and policies on title, content and type. The score is the fraction of
// fields containing the query; the best MaxInternalResults are returned.
func (h *HybridSearcher) SearchInternal(query string) []InternalResult {
	q := strings.ToLower(query)
	results := []InternalResult{}

	for _, e := range h.data.Employees {
		values := map[string]string{
			"name":       e.Name,
			"department": e.Department,
			"job_title":  e.JobTitle,
			"email":      e.Email,
		}
		if r, ok := matchFields(q, employeeFields, values); ok {
			r.Metadata = map[string]any{"type": "employee", "id": e.ID, "department": e.Department}
			results = append(results, r)
		}
	}
	for _, p := range h.data.Policies {
		values := map[string]string{
			"title":   p.Title,
			"content": p.Content,
			"type":    p.Type,
		}
		if r, ok := matchFields(q, policyFields, values); ok {
			r.Metadata = map[string]any{"type": "policy", "id": p.ID, "department": rag.Or(p.Department, rag.AllValues)}
			results = append(results, r)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > MaxInternalResults {
		results = results[:MaxInternalResults]
	}
	return results
}

func matchFields(q string, fields []string, values map[string]string) (InternalResult, bool) {
	var parts []string
	for _, f := range fields {
		if v := values[f]; strings.Contains(strings.ToLower(v), q) {
			parts = append(parts, f+": "+v)
		}
	}
	if len(parts) == 0 {
		return InternalResult{}, false
	}
	return InternalResult{
		Content: strings.Join(parts, rag.FieldDelimiter),
		Score:   float64(len(parts)) / float64(len(fields)),
	}, true
}

func (h *HybridSearcher) combine(res *Result) []Hit {
	hits := make([]Hit, 0, len(res.Internal)+len(res.External))
	for _, r := range res.Internal {
		hits = append(hits, Hit{
			Source:  SourceInternal,
			ID:      rag.MetadataString(r.Metadata, "id"),
			Content: r.Content,
			Score:   r.Score * h.weights[0],
		})
	}
	for _, r := range res.External {
		hits = append(hits, Hit{
			Source:  r.Source,
			ID:      r.ID,
			Content: r.Name + ": " + r.Description,
			Score:   r.Confidence * h.weights[1],
		})
	}
	return hits
}

// History returns the recorded queries, oldest first
func (h *HybridSearcher) History() []QueryRecord {
	return append([]QueryRecord(nil), h.history...)
}

type historyExport struct {
	ExportTimestamp string        `json:"export_timestamp"`
	TotalQueries    int           `json:"total_queries"`
	Queries         []QueryRecord `json:"queries"`
}

// ExportQueryHistory serializes the query history as indented JSON
func (h *HybridSearcher) ExportQueryHistory() ([]byte, error) {
	return json.MarshalIndent(historyExport{
		ExportTimestamp: h.now().Format(time.RFC3339),
		TotalQueries:    len(h.history),
		Queries:         h.History(),
	}, "", "  ")
}

// ExportEntityCache serializes the external searcher's cache when it keeps one
func (h *HybridSearcher) ExportEntityCache() ([]byte, error) {
	if c, ok := h.external.(interface{ ExportCache() ([]byte, error) }); ok {
		return c.ExportCache()
	}
	return json.MarshalIndent(map[string]any{
		"export_timestamp": h.now().Format(time.RFC3339),
		"cache_size":       0,
		"cache_entries":    map[string]any{},
	}, "", "  ")
}

// KnowledgeSources counts internal records and external entities found so far
func (h *HybridSearcher) KnowledgeSources() map[string]int {
	external := 0
	if c, ok := h.external.(interface{ EntitiesFound() int }); ok {
		external = c.EntitiesFound()
	} else {
		for _, r := range h.history {
			external += r.ExternalCount
		}
	}
	return map[string]int{
		"Internal HR Data":       len(h.data.Employees) + len(h.data.Policies),
		"Google Knowledge Graph": external,
	}
}

// PerformancePoint is the latency and result count of one recorded query
type PerformancePoint struct {
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"response_time_ns"`
	Results      int           `json:"results"`
}

// PerformanceMetrics returns the latest n history entries, newest first
func (h *HybridSearcher) PerformanceMetrics(n int) []PerformancePoint {
	var points []PerformancePoint
	for i := len(h.history) - 1; i >= 0 && len(points) < n; i-- {
		r := h.history[i]
		points = append(points, PerformancePoint{
			Timestamp:    r.Timestamp,
			ResponseTime: r.Duration,
			Results:      r.InternalCount + r.ExternalCount,
		})
	}
	return points
}
