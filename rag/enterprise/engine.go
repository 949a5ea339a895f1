package enterprise

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
)

// DefaultDataStoreID names the data store when no ID is configured
const DefaultDataStoreID = "hr-knowledge-base"

// Query defaults
const (
	DefaultMaxResults = 10
	DefaultMaxTokens  = 500
	ModeGrounded      = "RAG with Grounding"
)

const (
	sourceSnippetLen = 200
	answerSnippetLen = 150
	maxCitations     = 3
)

// QueryRequest configures an enterprise query
type QueryRequest struct {
	Query            string
	Mode             string
	MaxResults       int
	MaxTokens        int
	UseGrounding     bool
	IncludeCitations bool
	FilterSafety     bool
}

// Source is a document backing an answer
type Source struct {
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Relevance float64        `json:"relevance"`
	Metadata  map[string]any `json:"metadata"`
}

// QueryMetrics describes the cost of one query
type QueryMetrics struct {
	ResponseTime time.Duration `json:"response_time_ns"`
	TokensUsed   int           `json:"tokens_used"`
	APICalls     int           `json:"api_calls"`
}

// QueryResult is the answer to an enterprise query. A failed query has
// Error set and no answer.
type QueryResult struct {
	Answer         string       `json:"answer,omitempty"`
	Sources        []Source     `json:"sources,omitempty"`
	Citations      []string     `json:"citations,omitempty"`
	Confidence     float64      `json:"confidence"`
	SafetyScore    float64      `json:"safety_score"`
	GroundingScore float64      `json:"grounding_score"`
	Metrics        QueryMetrics `json:"metrics"`
	Error          string       `json:"error,omitempty"`
}

// DataStoreStatus reports the outcome of a data store lifecycle call
type DataStoreStatus struct {
	DataStoreID string `json:"data_store_id"`
	Documents   int    `json:"documents"`
	Status      string `json:"status"`
}

// UsageMetrics are cumulative counters
type UsageMetrics struct {
	APICalls   int     `json:"api_calls"`
	TokensUsed int     `json:"tokens_used"`
	DataSizeMB float64 `json:"data_size_mb"`
}

// PerformanceRecord is one entry of the performance history
type PerformanceRecord struct {
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"response_time_ns"`
	Query        string        `json:"query"`
	Mode         string        `json:"mode"`
	Success      bool          `json:"success"`
}

// PerformanceSummary aggregates the performance history
type PerformanceSummary struct {
	AvgResponseTime   time.Duration `json:"avg_response_time_ns"`
	SuccessRate       float64       `json:"success_rate"`
	GroundingAccuracy float64       `json:"grounding_accuracy"`
}

// QueryAnalytics counts queries by outcome, text and category
type QueryAnalytics struct {
	TotalQueries      int            `json:"total_queries"`
	SuccessfulQueries int            `json:"successful_queries"`
	FailedQueries     int            `json:"failed_queries"`
	QueryFrequency    map[string]int `json:"query_frequency"`
	Categories        map[string]int `json:"categories"`
}

// Engine manages an enterprise data store and answers queries over it.
// It is not safe for concurrent use.
type Engine struct {
	id       string
	store    *MockDataStore
	searcher rag.ExternalSearcher
	logger   log.Logger
	now      func() time.Time

	created   bool
	usage     UsageMetrics
	analytics QueryAnalytics
	history   []PerformanceRecord
	grounding []float64
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithDataStoreID sets the data store identifier
func WithDataStoreID(id string) EngineOption {
	return func(e *Engine) {
		e.id = id
	}
}

// WithSearcher routes queries to s instead of the local data store
func WithSearcher(s rag.ExternalSearcher) EngineOption {
	return func(e *Engine) {
		e.searcher = s
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine backed by an empty MockDataStore
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		id:    DefaultDataStoreID,
		store: NewMockDataStore(),
		now:   time.Now,
		analytics: QueryAnalytics{
			QueryFrequency: map[string]int{},
			Categories:     map[string]int{},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.searcher == nil {
		e.searcher = e.store
	}
	if e.logger == nil {
		e.logger = log.GetDefaultLogger()
	}
	return e
}

// Store returns the local data store
func (e *Engine) Store() *MockDataStore {
	return e.store
}

// CreateDataStore loads ds into the data store, replacing any previous content
func (e *Engine) CreateDataStore(ctx context.Context, ds *rag.Dataset) (DataStoreStatus, error) {
	if err := ctx.Err(); err != nil {
		return DataStoreStatus{}, err
	}
	if ds.RecordCount() == 0 {
		return DataStoreStatus{}, rag.ErrEmptyCorpus
	}

	e.store.Replace(DocumentsFromDataset(ds))
	e.created = true
	e.refreshDataSize()

	e.logger.Info("data store %s created with %d documents", e.id, e.store.Len())
	return DataStoreStatus{DataStoreID: e.id, Documents: e.store.Len(), Status: "created"}, nil
}

// UpdateDataStore reloads the data store from ds
func (e *Engine) UpdateDataStore(ctx context.Context, ds *rag.Dataset) (DataStoreStatus, error) {
	if !e.created {
		return DataStoreStatus{}, fmt.Errorf("update data store %s: %w", e.id, rag.ErrNotBuilt)
	}
	st, err := e.CreateDataStore(ctx, ds)
	if err != nil {
		return DataStoreStatus{}, err
	}
	st.Status = "updated"
	return st, nil
}

// DeleteDataStore clears the data store
func (e *Engine) DeleteDataStore() DataStoreStatus {
	e.store.Clear()
	e.created = false
	e.usage.DataSizeMB = 0
	return DataStoreStatus{DataStoreID: e.id, Status: "deleted"}
}

func (e *Engine) refreshDataSize() {
	data, err := json.Marshal(e.store.Documents())
	if err != nil {
		e.logger.Warn("measure data store size: %v", err)
		return
	}
	e.usage.DataSizeMB = float64(len(data)) / (1024 * 1024)
}

// Query searches the backend and assembles an answer. Failures are counted
// and reported through QueryResult.Error.
func (e *Engine) Query(ctx context.Context, req QueryRequest) QueryResult {
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if req.Mode == "" {
		req.Mode = ModeGrounded
	}

	start := e.now()
	e.usage.APICalls++
	e.analytics.TotalQueries++
	e.analytics.QueryFrequency[strings.ToLower(strings.TrimSpace(req.Query))]++
	e.analytics.Categories[category(req.Query)]++

	res, err := e.answer(ctx, req)
	elapsed := e.now().Sub(start)

	e.history = append(e.history, PerformanceRecord{
		Timestamp:    start,
		ResponseTime: elapsed,
		Query:        req.Query,
		Mode:         req.Mode,
		Success:      err == nil,
	})

	if err != nil {
		e.analytics.FailedQueries++
		e.logger.Warn("enterprise query %q failed: %v", req.Query, err)
		return QueryResult{
			Error:   err.Error(),
			Metrics: QueryMetrics{ResponseTime: elapsed, APICalls: 1},
		}
	}

	e.analytics.SuccessfulQueries++
	e.usage.TokensUsed += res.Metrics.TokensUsed
	if req.UseGrounding && len(res.Sources) > 0 {
		e.grounding = append(e.grounding, res.GroundingScore)
	}
	res.Metrics.ResponseTime = elapsed
	res.Metrics.APICalls = 1
	return res
}

func (e *Engine) answer(ctx context.Context, req QueryRequest) (QueryResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return QueryResult{}, fmt.Errorf("%w: empty query", rag.ErrInvalidArgument)
	}

	hits, err := e.searcher.Search(ctx, req.Query, req.MaxResults)
	if err != nil {
		return QueryResult{}, err
	}
	if len(hits) > req.MaxResults {
		hits = hits[:req.MaxResults]
	}

	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = Source{
			Title:     h.Name,
			Content:   truncate(h.Description, sourceSnippetLen),
			Relevance: math.Max(0, math.Round((0.9-0.1*float64(i))*10)/10),
			Metadata:  h.Metadata,
		}
	}

	res := QueryResult{
		Answer:      composeAnswer(req.Query, hits),
		Sources:     sources,
		SafetyScore: 1,
	}
	if req.IncludeCitations {
		for i, s := range sources[:min(len(sources), maxCitations)] {
			res.Citations = append(res.Citations, fmt.Sprintf("Source %d: %s", i+1, s.Title))
		}
	}
	if len(sources) > 0 {
		var sum float64
		for _, s := range sources {
			sum += s.Relevance
		}
		res.Confidence = 0.7 + 0.25*sum/float64(len(sources))
		if req.UseGrounding {
			res.GroundingScore = 0.75 + 0.2*sources[0].Relevance
		}
	}
	if req.FilterSafety {
		res.SafetyScore = 0.95
	}
	res.Metrics.TokensUsed = tokenEstimate(res.Answer, req.MaxTokens)
	return res, nil
}

// composeAnswer picks a template by the topic the query names
func composeAnswer(query string, hits []rag.ExternalResult) string {
	if len(hits) == 0 {
		return "I couldn't find specific information to answer your question in our HR knowledge base."
	}

	q := strings.ToLower(query)
	lead := truncate(hits[0].Description, answerSnippetLen)
	switch {
	case strings.Contains(q, "policy"):
		return fmt.Sprintf("Based on our HR policies, here's what I found: %s This information comes from %d relevant policy documents in our system.", lead, len(hits))
	case strings.Contains(q, "employee"):
		return fmt.Sprintf("I found information about employees in the following departments: %s. The relevant details include: %s", strings.Join(departments(hits), ", "), lead)
	case strings.Contains(q, "benefit"):
		return fmt.Sprintf("Regarding benefits, our HR documentation indicates: %s This is based on %d relevant documents from our benefits information.", lead, len(hits))
	default:
		return fmt.Sprintf("Based on the available HR information, I found %d relevant documents. Here's a summary: %s", len(hits), lead)
	}
}

func departments(hits []rag.ExternalResult) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range hits {
		d := rag.MetadataString(h.Metadata, "department")
		if d == "" || d == rag.AllValues || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// truncate cuts s to n runes and marks the cut with "..."
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// tokenEstimate approximates tokens as four characters each, clamped to
// [maxTokens/3, maxTokens]
func tokenEstimate(answer string, maxTokens int) int {
	return max(min(len(answer)/4, maxTokens), maxTokens/3)
}

func category(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "policy") || strings.Contains(q, "policies"):
		return "Policies"
	case strings.Contains(q, "benefit"):
		return "Benefits"
	case strings.Contains(q, "procedure") || strings.Contains(q, "form") || strings.Contains(q, "guide"):
		return "Procedures"
	case strings.Contains(q, "employee"):
		return "Employee Info"
	default:
		return "Other"
	}
}

// Upload is a file handed to Ingest
type Upload struct {
	Name    string
	Content []byte
}

// IngestResult reports the outcome for one upload
type IngestResult struct {
	FileName   string `json:"file_name"`
	DocumentID string `json:"document_id,omitempty"`
	Status     string `json:"status"`
	SizeBytes  int    `json:"size_bytes,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Ingest adds uploaded files to the data store under fresh UUIDs
func (e *Engine) Ingest(files []Upload) []IngestResult {
	results := make([]IngestResult, 0, len(files))
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" {
			results = append(results, IngestResult{Status: "failed", Error: "file name is required"})
			continue
		}

		id := uuid.NewString()
		content := strings.TrimSpace(string(f.Content))
		if content == "" {
			content = "Content from uploaded file: " + f.Name
		}
		e.store.Add(Document{
			ID:      id,
			Title:   f.Name,
			Content: content,
			Metadata: map[string]any{
				"type":        "uploaded_document",
				"file_name":   f.Name,
				"upload_date": e.now().Format(time.RFC3339),
			},
		})
		results = append(results, IngestResult{
			FileName:   f.Name,
			DocumentID: id,
			Status:     "ingested",
			SizeBytes:  len(f.Content),
		})
	}
	e.refreshDataSize()
	return results
}

// QualityIssue is a problem found by CheckDataQuality
type QualityIssue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// DataQuality summarizes data store health
type DataQuality struct {
	OverallScore    float64        `json:"overall_score"`
	TotalDocuments  int            `json:"total_documents"`
	Issues          []QualityIssue `json:"issues"`
	Recommendations []string       `json:"recommendations"`
}

// CheckDataQuality flags documents with blank content or no metadata
func (e *Engine) CheckDataQuality() (DataQuality, error) {
	if !e.created {
		return DataQuality{}, fmt.Errorf("check data quality: %w", rag.ErrNotBuilt)
	}

	docs := e.store.Documents()
	var empty, bare int
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			empty++
		}
		if len(d.Metadata) == 0 {
			bare++
		}
	}

	q := DataQuality{TotalDocuments: len(docs), Issues: []QualityIssue{}, Recommendations: []string{}}
	if empty > 0 {
		q.Issues = append(q.Issues, QualityIssue{"Empty Content", fmt.Sprintf("%d documents have empty or minimal content", empty)})
	}
	if bare > 0 {
		q.Issues = append(q.Issues, QualityIssue{"Missing Metadata", fmt.Sprintf("%d documents lack proper metadata", bare)})
	}
	for _, issue := range q.Issues {
		q.Recommendations = append(q.Recommendations, "Fix "+issue.Type)
	}
	q.OverallScore = math.Max(0, 1-float64(len(q.Issues))/float64(max(len(docs), 1)))
	return q, nil
}

type dataStoreExport struct {
	ExportTimestamp string     `json:"export_timestamp"`
	DataStoreID     string     `json:"data_store_id"`
	DocumentCount   int        `json:"document_count"`
	Documents       []Document `json:"documents"`
}

// ExportDataStore serializes the data store as indented JSON
func (e *Engine) ExportDataStore() ([]byte, error) {
	docs := e.store.Documents()
	if docs == nil {
		docs = []Document{}
	}
	return json.MarshalIndent(dataStoreExport{
		ExportTimestamp: e.now().Format(time.RFC3339),
		DataStoreID:     e.id,
		DocumentCount:   len(docs),
		Documents:       docs,
	}, "", "  ")
}

// ContentAnalysis counts stored documents by type
func (e *Engine) ContentAnalysis() map[string]int {
	counts := map[string]int{}
	for _, d := range e.store.Documents() {
		counts[rag.Or(rag.MetadataString(d.Metadata, "type"), "unknown")]++
	}
	return counts
}

// UsageMetrics returns the cumulative usage counters
func (e *Engine) UsageMetrics() UsageMetrics {
	return e.usage
}

// QueryAnalytics returns a copy of the query counters
func (e *Engine) QueryAnalytics() QueryAnalytics {
	a := e.analytics
	a.QueryFrequency = make(map[string]int, len(e.analytics.QueryFrequency))
	for k, v := range e.analytics.QueryFrequency {
		a.QueryFrequency[k] = v
	}
	a.Categories = make(map[string]int, len(e.analytics.Categories))
	for k, v := range e.analytics.Categories {
		a.Categories[k] = v
	}
	return a
}

// PerformanceHistory returns every recorded query, oldest first
func (e *Engine) PerformanceHistory() []PerformanceRecord {
	return append([]PerformanceRecord(nil), e.history...)
}

// PerformanceMetrics aggregates the history. Grounding accuracy is the mean
// grounding score of successful grounded queries.
func (e *Engine) PerformanceMetrics() PerformanceSummary {
	if len(e.history) == 0 {
		return PerformanceSummary{}
	}

	var total time.Duration
	for _, r := range e.history {
		total += r.ResponseTime
	}
	s := PerformanceSummary{
		AvgResponseTime: total / time.Duration(len(e.history)),
		SuccessRate:     float64(e.analytics.SuccessfulQueries) / float64(max(e.analytics.TotalQueries, 1)),
	}
	if len(e.grounding) > 0 {
		var sum float64
		for _, g := range e.grounding {
			sum += g
		}
		s.GroundingAccuracy = sum / float64(len(e.grounding))
	}
	return s
}
