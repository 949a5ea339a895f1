package kg

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(results []rag.ExternalResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Name
	}
	return out
}

func TestMockSearcher(t *testing.T) {
	ctx := context.Background()
	m := NewMockSearcher()

	t.Run("scores name, description and types", func(t *testing.T) {
		results, err := m.Search(ctx, "employee", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"Employee Benefits", "Employment Law", "Remote Work"}, names(results))
		assert.Equal(t, 1.0, results[0].Confidence)
		assert.InDelta(t, 1.0/3, results[1].Confidence, 1e-9)
		assert.Equal(t, SourceMock, results[0].Source)
	})

	t.Run("type match", func(t *testing.T) {
		results, err := m.Search(ctx, "regulation", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "GDPR", results[0].Name)
		assert.InDelta(t, 2.0/3, results[0].Confidence, 1e-9)
	})

	t.Run("default limit and no match", func(t *testing.T) {
		results, err := m.Search(ctx, "concept", 0)
		require.NoError(t, err)
		assert.Len(t, results, 5)

		results, err = m.Search(ctx, "zebra", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("details and distribution", func(t *testing.T) {
		e, ok := m.EntityDetails("kg_entity_2")
		require.True(t, ok)
		assert.Equal(t, "GDPR", e.Name)

		_, ok = m.EntityDetails("missing")
		assert.False(t, ok)

		dist := m.TypeDistribution()
		assert.Equal(t, 7, dist["Thing"])
		assert.Equal(t, 5, dist["Concept"])
		assert.Equal(t, 1, dist["Organization"])
	})
}

func kgServer(t *testing.T, status *atomic.Int32, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/entities:search", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		if code := int(status.Load()); code != http.StatusOK {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": code, "message": "quota exceeded"},
			})
			return
		}

		assert.Equal(t, "employment law", r.URL.Query().Get("query"))
		assert.Equal(t, "en", r.URL.Query().Get("languages"))
		json.NewEncoder(w).Encode(map[string]any{
			"@type": "ItemList",
			"itemListElement": []any{
				map[string]any{
					"@type":       "EntitySearchResult",
					"resultScore": 1500.0,
					"result": map[string]any{
						"@id":         "kg:/m/012",
						"name":        "Employment law",
						"@type":       []string{"Thing"},
						"description": "Area of law",
						"url":         "https://example.org/employment-law",
						"detailedDescription": map[string]any{
							"articleBody": "Labour law mediates the relationship between workers and employers.",
						},
					},
				},
				map[string]any{
					"@type":       "EntitySearchResult",
					"resultScore": 250.0,
					"result":      map[string]any{"@id": "kg:/m/034", "name": "Labour Code", "@type": []string{"Thing"}},
				},
				map[string]any{
					"@type":       "EntitySearchResult",
					"resultScore": 20.0,
					"result":      map[string]any{"@id": "kg:/m/056", "name": "Obscure Act"},
				},
			},
		})
	}))
}

func TestGoogleSearcher(t *testing.T) {
	ctx := context.Background()
	var status, calls atomic.Int32
	status.Store(http.StatusOK)
	srv := kgServer(t, &status, &calls)
	defer srv.Close()

	_, err := NewGoogleSearcher(ctx, "")
	assert.ErrorIs(t, err, rag.ErrInvalidConfig)

	limiter := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10})
	g, err := NewGoogleSearcher(ctx, "test-key",
		WithEndpoint(srv.URL+"/"),
		WithRateLimiter(limiter),
		WithMinConfidence(0.1),
	)
	require.NoError(t, err)

	results, err := g.Search(ctx, "employment law", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Employment law", results[0].Name)
	assert.Equal(t, 1.0, results[0].Confidence)
	assert.Equal(t, "kg:/m/012", results[0].ID)
	assert.Contains(t, results[0].DetailedDescription, "Labour law")
	assert.Equal(t, SourceGoogle, results[0].Source)
	assert.InDelta(t, 0.25, results[1].Confidence, 1e-9)

	all, err := g.Lookup(ctx, Query{Text: "employment law", MinConfidence: 0.01})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	t.Run("rate limited response starts backoff", func(t *testing.T) {
		status.Store(http.StatusTooManyRequests)
		defer status.Store(http.StatusOK)

		_, err := g.Search(ctx, "employment law", 5)
		require.Error(t, err)
		assert.True(t, IsRateLimited(err))
		assert.False(t, limiter.Allow())
	})
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{})
	assert.True(t, l.Allow())

	l.RecordRateLimitError(time.Hour)
	assert.False(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)

	assert.False(t, IsRateLimited(errors.New("plain")))
}

type flakySearcher struct {
	calls int
	err   error
}

func (f *flakySearcher) Search(ctx context.Context, query string, limit int) ([]rag.ExternalResult, error) {
	return f.Lookup(ctx, Query{Text: query, Limit: limit})
}

func (f *flakySearcher) Lookup(ctx context.Context, q Query) ([]rag.ExternalResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []rag.ExternalResult{{ID: "x", Name: q.Text, Confidence: 0.9}}, nil
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("caches by query, types and languages", func(t *testing.T) {
		inner := &flakySearcher{}
		c := NewClient(inner, WithLogger(&log.NoOpLogger{}), WithClock(func() time.Time { return fixed }))

		_, err := c.Search(ctx, "gdpr", 5)
		require.NoError(t, err)
		_, err = c.Search(ctx, "gdpr", 5)
		require.NoError(t, err)
		_, err = c.Lookup(ctx, Query{Text: "gdpr", Limit: 5, Languages: []string{"de"}})
		require.NoError(t, err)

		assert.Equal(t, 2, inner.calls)
		assert.Equal(t, UsageStats{APICalls: 2, EntitiesFound: 2, CacheHits: 1}, c.UsageStats())
		assert.Equal(t, 2, c.CacheSize())

		data, err := c.ExportCache()
		require.NoError(t, err)
		var export map[string]any
		require.NoError(t, json.Unmarshal(data, &export))
		assert.Equal(t, "2024-01-02T03:04:05Z", export["export_timestamp"])
		assert.Equal(t, float64(2), export["cache_size"])
	})

	t.Run("falls back to mock on failure", func(t *testing.T) {
		inner := &flakySearcher{err: errors.New("connection refused")}
		c := NewClient(inner, WithLogger(&log.NoOpLogger{}))

		results, err := c.Search(ctx, "gdpr", 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, SourceMock, results[0].Source)

		stats := c.UsageStats()
		assert.Equal(t, 1, stats.Fallbacks)
		assert.Equal(t, 0, stats.EntitiesFound)
		assert.Equal(t, 0, c.CacheSize())
	})

	t.Run("cancellation is not masked", func(t *testing.T) {
		inner := &flakySearcher{err: context.Canceled}
		c := NewClient(inner, WithLogger(&log.NoOpLogger{}))
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.Search(cctx, "gdpr", 5)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("live searcher falls back after 429", func(t *testing.T) {
		var status, calls atomic.Int32
		status.Store(http.StatusTooManyRequests)
		srv := kgServer(t, &status, &calls)
		defer srv.Close()

		g, err := NewGoogleSearcher(ctx, "test-key", WithEndpoint(srv.URL+"/"))
		require.NoError(t, err)
		c := NewClient(g, WithLogger(&log.NoOpLogger{}))

		results, err := c.Search(ctx, "remote work", 3)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "Remote Work", results[0].Name)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("nil searcher uses mock", func(t *testing.T) {
		c := NewClient(nil, WithLogger(&log.NoOpLogger{}))
		results, err := c.Search(ctx, "diversity", 3)
		require.NoError(t, err)
		require.Len(t, results, 1)

		e, ok := c.EntityDetails("kg_entity_8")
		require.True(t, ok)
		assert.Equal(t, "Diversity and Inclusion", e.Name)
		assert.Equal(t, 5, c.TypeDistribution()["Concept"])
	})
}
