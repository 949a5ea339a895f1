package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/smallnest/hrrag/config"
	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer answers OpenAI-style /embeddings calls with vectors of
// length dim whose first component is the input length.
func embeddingServer(t *testing.T, dim int) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		models []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		models = append(models, req.Model)
		mu.Unlock()

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i, text := range req.Input {
			v := make([]float32, dim)
			v[0] = float32(len(text))
			data[i] = item{Object: "embedding", Embedding: v, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), models...)
	}
}

func TestNewEmbedder_LangChain(t *testing.T) {
	ctx := context.Background()
	srv, models := embeddingServer(t, 4)

	cfg := config.Default()
	cfg.Embedding.Provider = "langchain"
	cfg.Embedding.APIKey = "test-key"
	cfg.Embedding.BaseURL = srv.URL
	cfg.Embedding.Model = "text-embedding-3-small"
	cfg.Embedding.Dimension = 4
	require.NoError(t, cfg.Validate())

	emb, closeFn, err := NewEmbedder(cfg, &log.NoOpLogger{})
	require.NoError(t, err)
	defer closeFn()

	require.IsType(t, &rag.LangChainEmbedder{}, emb)
	assert.Equal(t, 4, emb.GetDimension())

	v, err := emb.EmbedDocument(ctx, "remote work")
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 0, 0, 0}, v)

	vs, err := emb.EmbedDocuments(ctx, []string{"pto", "benefits"})
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, float32(3), vs[0][0])
	assert.Equal(t, float32(8), vs[1][0])

	for _, m := range models() {
		assert.Equal(t, "text-embedding-3-small", m)
	}
}

func TestFromConfig_LangChainSuite(t *testing.T) {
	ctx := context.Background()
	srv, _ := embeddingServer(t, 8)

	cfg := config.Default()
	cfg.Embedding.Provider = "langchain"
	cfg.Embedding.APIKey = "test-key"
	cfg.Embedding.BaseURL = srv.URL
	cfg.Embedding.Dimension = 8

	s, err := FromConfig(ctx, cfg, &log.NoOpLogger{})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Build(ctx, testDataset(t))
	require.NoError(t, err)
	assert.Equal(t, 8, s.Stats().Index.Dimension)

	cmp, err := s.Compare(ctx, "Engineering", 3)
	require.NoError(t, err)
	assert.Len(t, cmp.Vector, 3)
}
