package enterprise

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func hrDataset() *rag.Dataset {
	return &rag.Dataset{
		Employees: []rag.Employee{
			{ID: "emp_001", Name: "Alice Johnson", Email: "alice@example.com", Department: "Engineering", JobTitle: "Software Engineer"},
			{ID: "emp_002", Name: "Bob Smith", Email: "bob@example.com", Department: "HR", JobTitle: "HR Manager"},
		},
		Policies: []rag.Policy{
			{ID: "pol_001", Title: "Vacation Policy", Content: "Full-time employees accrue 20 vacation days per year.", Department: "All", Priority: "High"},
			{ID: "pol_002", Title: "Benefits Enrollment Policy", Content: "Employees enroll in health benefits within 30 days of hire."},
		},
		Documents: []rag.Document{
			{ID: "doc_001", Title: "Benefits Guide", Content: "How to choose a benefits plan.", DocType: "Guide", Department: "HR"},
		},
	}
}

func steppingClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithLogger(&log.NoOpLogger{}), WithClock(steppingClock())}, opts...)
	e := NewEngine(opts...)
	st, err := e.CreateDataStore(context.Background(), hrDataset())
	require.NoError(t, err)
	require.Equal(t, 5, st.Documents)
	return e
}

type brokenSearcher struct{}

func (brokenSearcher) Search(ctx context.Context, query string, limit int) ([]rag.ExternalResult, error) {
	return nil, errors.New("backend unavailable")
}

func TestDocumentsFromDataset(t *testing.T) {
	docs := DocumentsFromDataset(hrDataset())
	require.Len(t, docs, 5)

	assert.Equal(t, "emp_emp_001", docs[0].ID)
	assert.Equal(t, "Employee: Alice Johnson", docs[0].Title)
	assert.True(t, strings.HasPrefix(docs[0].Content, "Employee Name: Alice Johnson | Department: Engineering"))
	assert.Equal(t, "Software Engineer", docs[0].Metadata["job_title"])

	assert.Equal(t, "policy_pol_002", docs[3].ID)
	assert.Equal(t, "All", docs[3].Metadata["department"])
	assert.Equal(t, "Medium", docs[3].Metadata["priority"])

	assert.Equal(t, "doc_doc_001", docs[4].ID)
	assert.Equal(t, "Guide", docs[4].Metadata["doc_type"])

	assert.Nil(t, DocumentsFromDataset(nil))
}

func TestMockDataStoreSearch(t *testing.T) {
	ctx := context.Background()
	m := NewMockDataStore()
	m.Replace(DocumentsFromDataset(hrDataset()))

	tests := []struct {
		query string
		ids   []string
		conf  float64
	}{
		{"vacation", []string{"policy_pol_001"}, 5.0 / 6},
		{"BENEFITS", []string{"policy_pol_002", "doc_doc_001"}, 5.0 / 6},
		{"policy", []string{"policy_pol_001", "policy_pol_002"}, 4.0 / 6},
		{"engineering", []string{"emp_emp_001"}, 0.5},
		{"payroll", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := m.Search(ctx, tt.query, 10)
			require.NoError(t, err)
			require.Len(t, res, len(tt.ids))
			for i, id := range tt.ids {
				assert.Equal(t, id, res[i].ID)
				assert.Equal(t, SourceDataStore, res[i].Source)
			}
			if len(res) > 0 {
				assert.InDelta(t, tt.conf, res[0].Confidence, 1e-9)
			}
		})
	}

	t.Run("employee ranks titles first", func(t *testing.T) {
		res, err := m.Search(ctx, "employee", 10)
		require.NoError(t, err)
		require.Len(t, res, 4)
		assert.Equal(t, 1.0, res[0].Confidence)
		assert.Equal(t, "emp_emp_002", res[1].ID)
		assert.InDelta(t, 2.0/6, res[3].Confidence, 1e-9)
	})

	t.Run("limit", func(t *testing.T) {
		res, err := m.Search(ctx, "employee", 2)
		require.NoError(t, err)
		assert.Len(t, res, 2)
	})
}

func TestDataStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(WithLogger(&log.NoOpLogger{}), WithDataStoreID("hr-test"))

	_, err := e.UpdateDataStore(ctx, hrDataset())
	assert.ErrorIs(t, err, rag.ErrNotBuilt)
	_, err = e.CheckDataQuality()
	assert.ErrorIs(t, err, rag.ErrNotBuilt)
	_, err = e.CreateDataStore(ctx, &rag.Dataset{})
	assert.ErrorIs(t, err, rag.ErrEmptyCorpus)

	st, err := e.CreateDataStore(ctx, hrDataset())
	require.NoError(t, err)
	assert.Equal(t, DataStoreStatus{DataStoreID: "hr-test", Documents: 5, Status: "created"}, st)
	assert.Greater(t, e.UsageMetrics().DataSizeMB, 0.0)

	smaller := hrDataset()
	smaller.Documents = nil
	st, err = e.UpdateDataStore(ctx, smaller)
	require.NoError(t, err)
	assert.Equal(t, "updated", st.Status)
	assert.Equal(t, 4, st.Documents)

	st = e.DeleteDataStore()
	assert.Equal(t, "deleted", st.Status)
	assert.Equal(t, 0, e.Store().Len())
	assert.Equal(t, 0.0, e.UsageMetrics().DataSizeMB)
	_, err = e.UpdateDataStore(ctx, hrDataset())
	assert.ErrorIs(t, err, rag.ErrNotBuilt)
}

func TestEngineQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("policy template with citations", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Query(ctx, QueryRequest{
			Query:            "vacation policy",
			UseGrounding:     true,
			IncludeCitations: true,
			FilterSafety:     true,
		})

		require.Empty(t, res.Error)
		assert.Equal(t, "Based on our HR policies, here's what I found: Full-time employees accrue 20 vacation days per year. This information comes from 1 relevant policy documents in our system.", res.Answer)
		require.Len(t, res.Sources, 1)
		assert.Equal(t, 0.9, res.Sources[0].Relevance)
		assert.Equal(t, []string{"Source 1: Vacation Policy"}, res.Citations)
		assert.InDelta(t, 0.925, res.Confidence, 1e-9)
		assert.InDelta(t, 0.93, res.GroundingScore, 1e-9)
		assert.Equal(t, 0.95, res.SafetyScore)
		assert.Equal(t, DefaultMaxTokens/3, res.Metrics.TokensUsed)
		assert.Equal(t, time.Second, res.Metrics.ResponseTime)
		assert.Equal(t, 1, res.Metrics.APICalls)
	})

	t.Run("employee template lists departments", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Query(ctx, QueryRequest{Query: "employee", IncludeCitations: true})

		require.Empty(t, res.Error)
		assert.True(t, strings.HasPrefix(res.Answer, "I found information about employees in the following departments: Engineering, HR."))
		require.Len(t, res.Sources, 4)
		relevance := []float64{0.9, 0.8, 0.7, 0.6}
		for i, s := range res.Sources {
			assert.Equal(t, relevance[i], s.Relevance)
		}
		assert.Len(t, res.Citations, 3)
		assert.InDelta(t, 0.8875, res.Confidence, 1e-9)
		assert.Equal(t, 0.0, res.GroundingScore)
		assert.Equal(t, 1.0, res.SafetyScore)
	})

	t.Run("benefit template and max results", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Query(ctx, QueryRequest{Query: "benefits", MaxResults: 1})

		require.Empty(t, res.Error)
		assert.Contains(t, res.Answer, "Regarding benefits")
		assert.Contains(t, res.Answer, "based on 1 relevant documents")
		assert.Len(t, res.Sources, 1)
		assert.Empty(t, res.Citations)
	})

	t.Run("long content is truncated", func(t *testing.T) {
		e := NewEngine(WithLogger(&log.NoOpLogger{}))
		e.Store().Add(Document{ID: "x", Title: "Handbook", Content: strings.Repeat("a", 250), Metadata: map[string]any{"type": "document"}})

		res := e.Query(ctx, QueryRequest{Query: "handbook"})
		require.Len(t, res.Sources, 1)
		assert.Equal(t, strings.Repeat("a", 200)+"...", res.Sources[0].Content)
		assert.Contains(t, res.Answer, strings.Repeat("a", 150)+"...")
	})

	t.Run("no match", func(t *testing.T) {
		e := newTestEngine(t)
		res := e.Query(ctx, QueryRequest{Query: "payroll", IncludeCitations: true})

		assert.Empty(t, res.Error)
		assert.Contains(t, res.Answer, "couldn't find")
		assert.Empty(t, res.Sources)
		assert.Empty(t, res.Citations)
		assert.Equal(t, 0.0, res.Confidence)
	})

	t.Run("failures are reported in the result", func(t *testing.T) {
		e := newTestEngine(t, WithSearcher(brokenSearcher{}))

		res := e.Query(ctx, QueryRequest{Query: "vacation"})
		assert.Equal(t, "backend unavailable", res.Error)
		assert.Empty(t, res.Answer)

		res = e.Query(ctx, QueryRequest{Query: "  "})
		assert.Contains(t, res.Error, "empty query")

		a := e.QueryAnalytics()
		assert.Equal(t, 2, a.TotalQueries)
		assert.Equal(t, 2, a.FailedQueries)
		assert.Equal(t, 0, e.UsageMetrics().TokensUsed)
		assert.Equal(t, 2, e.UsageMetrics().APICalls)
	})
}

func TestEngineAnalytics(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	assert.Equal(t, PerformanceSummary{}, e.PerformanceMetrics())

	e.Query(ctx, QueryRequest{Query: "Vacation Policy", UseGrounding: true})
	e.Query(ctx, QueryRequest{Query: "vacation policy", UseGrounding: true})
	e.Query(ctx, QueryRequest{Query: "benefits"})
	e.Query(ctx, QueryRequest{Query: ""})

	a := e.QueryAnalytics()
	assert.Equal(t, 4, a.TotalQueries)
	assert.Equal(t, 3, a.SuccessfulQueries)
	assert.Equal(t, 1, a.FailedQueries)
	assert.Equal(t, 2, a.QueryFrequency["vacation policy"])
	assert.Equal(t, 2, a.Categories["Policies"])
	assert.Equal(t, 1, a.Categories["Benefits"])
	assert.Equal(t, 1, a.Categories["Other"])

	history := e.PerformanceHistory()
	require.Len(t, history, 4)
	assert.True(t, history[0].Success)
	assert.False(t, history[3].Success)
	assert.Equal(t, ModeGrounded, history[0].Mode)

	perf := e.PerformanceMetrics()
	assert.Equal(t, time.Second, perf.AvgResponseTime)
	assert.Equal(t, 0.75, perf.SuccessRate)
	assert.InDelta(t, 0.93, perf.GroundingAccuracy, 1e-9)

	usage := e.UsageMetrics()
	assert.Equal(t, 4, usage.APICalls)
	assert.Equal(t, 3*(DefaultMaxTokens/3), usage.TokensUsed)
}

func TestIngestQualityAndExport(t *testing.T) {
	e := newTestEngine(t)

	results := e.Ingest([]Upload{
		{Name: "handbook.txt", Content: []byte("Dress code and conduct rules.")},
		{Name: "empty.pdf"},
		{Name: " "},
	})
	require.Len(t, results, 3)
	assert.Equal(t, "ingested", results[0].Status)
	assert.Equal(t, 29, results[0].SizeBytes)
	assert.NotEmpty(t, results[0].DocumentID)
	assert.NotEqual(t, results[0].DocumentID, results[1].DocumentID)
	assert.Equal(t, "failed", results[2].Status)
	assert.Equal(t, 7, e.Store().Len())

	docs := e.Store().Documents()
	assert.Equal(t, "Content from uploaded file: empty.pdf", docs[6].Content)
	assert.Equal(t, "uploaded_document", docs[6].Metadata["type"])

	q, err := e.CheckDataQuality()
	require.NoError(t, err)
	assert.Equal(t, 1.0, q.OverallScore)
	assert.Equal(t, 7, q.TotalDocuments)
	assert.Empty(t, q.Issues)

	e.Store().Add(Document{ID: "blank", Title: "Blank"})
	q, err = e.CheckDataQuality()
	require.NoError(t, err)
	require.Len(t, q.Issues, 2)
	assert.Equal(t, "Empty Content", q.Issues[0].Type)
	assert.Equal(t, []string{"Fix Empty Content", "Fix Missing Metadata"}, q.Recommendations)
	assert.InDelta(t, 0.75, q.OverallScore, 1e-9)

	assert.Equal(t, map[string]int{
		"employee":          2,
		"policy":            2,
		"document":          1,
		"uploaded_document": 2,
		"unknown":           1,
	}, e.ContentAnalysis())

	data, err := e.ExportDataStore()
	require.NoError(t, err)
	var export struct {
		DataStoreID   string     `json:"data_store_id"`
		DocumentCount int        `json:"document_count"`
		Documents     []Document `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, DefaultDataStoreID, export.DataStoreID)
	assert.Equal(t, 8, export.DocumentCount)
	assert.Equal(t, "Vacation Policy", export.Documents[2].Title)
}

func TestVertexSearcher(t *testing.T) {
	ctx := context.Background()

	_, err := NewVertexSearcher(ctx, VertexConfig{}, nil)
	assert.ErrorIs(t, err, rag.ErrInvalidConfig)

	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "projects/p1/locations/global/collections/default_collection/engines/hr-search-engine/servingConfigs/default_search:search")

		if fail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":400,"message":"bad request"}}`))
			return
		}

		var req struct {
			Query string `json:"query"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "vacation", req.Query)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"id":"d1","document":{"id":"d1","structData":{"title":"Vacation Policy","content":"20 days","department":"All"}}},
			{"id":"d2","document":{"id":"d2","derivedStructData":{"snippets":[{"snippet":"vacation snippet"}]}}},
			{"id":"d3"}
		]}`))
	}))
	defer srv.Close()

	v, err := NewVertexSearcher(ctx, VertexConfig{ProjectID: "p1"}, &log.NoOpLogger{},
		option.WithAPIKey("test-key"),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)

	res, err := v.Search(ctx, "vacation", 5)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "Vacation Policy", res[0].Name)
	assert.Equal(t, "20 days", res[0].Description)
	assert.Equal(t, 1.0, res[0].Confidence)
	assert.Equal(t, "All", res[0].Metadata["department"])
	assert.Equal(t, SourceVertex, res[0].Source)

	assert.Equal(t, "d2", res[1].Name)
	assert.Equal(t, "vacation snippet", res[1].Description)
	assert.Equal(t, 0.5, res[1].Confidence)

	e := newTestEngine(t, WithSearcher(v))
	out := e.Query(ctx, QueryRequest{Query: "vacation", IncludeCitations: true})
	require.Empty(t, out.Error)
	assert.Equal(t, []string{"Source 1: Vacation Policy", "Source 2: d2"}, out.Citations)

	fail.Store(true)
	out = e.Query(ctx, QueryRequest{Query: "vacation"})
	assert.NotEmpty(t, out.Error)
	assert.Equal(t, 1, e.QueryAnalytics().FailedQueries)
}
