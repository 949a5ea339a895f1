package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 500, cfg.Index.ChunkSize)
	assert.Equal(t, 50, cfg.Index.ChunkOverlap)
	assert.Equal(t, 5, cfg.Index.TopK)
	assert.Equal(t, "hr_documents", cfg.Collection.Name)
	assert.Equal(t, 2, cfg.Graph.MaxDepth)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "hrrag.toml", `
[log]
level = "debug"
format = "charm"

[index]
chunk_size = 300
chunk_overlap = 30
top_k = 3

[snapshot]
backend = "sqlite"
path = "/tmp/hrrag.db"

[knowledge_graph]
languages = ["en", "de"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 300, cfg.Index.ChunkSize)
	assert.Equal(t, 30, cfg.Index.ChunkOverlap)
	assert.Equal(t, "sqlite", cfg.Snapshot.Backend)
	assert.Equal(t, []string{"en", "de"}, cfg.KnowledgeGraph.Languages)
	// untouched sections keep defaults
	assert.Equal(t, "hr_documents", cfg.Collection.Name)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.toml", "[index\nchunk_size = "))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "overlap.toml", "[index]\nchunk_size = 100\nchunk_overlap = 100\n"))
	assert.ErrorIs(t, err, rag.ErrInvalidConfig)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HRRAG_CHUNK_SIZE":         "800",
		"HRRAG_CHUNK_OVERLAP":      "80",
		"HRRAG_EMBEDDING_PROVIDER": "openai",
		"OPENAI_API_KEY":           "sk-test",
		"HRRAG_SEED":               "7",
		"HRRAG_KG_LIVE":            "true",
		"GOOGLE_API_KEY":           "g-key",
		"HRRAG_CACHE_TTL":          "90s",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, 800, cfg.Index.ChunkSize)
	assert.Equal(t, 80, cfg.Index.ChunkOverlap)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, int64(7), cfg.Generator.Seed)
	assert.True(t, cfg.KnowledgeGraph.Live)
	assert.Equal(t, "g-key", cfg.KnowledgeGraph.APIKey)
	assert.NoError(t, cfg.Validate())

	ttl, err := cfg.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", ttl.String())

	env["HRRAG_TOP_K"] = "many"
	assert.ErrorIs(t, Default().ApplyEnv(lookup), rag.ErrInvalidConfig)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "hrrag.toml", "[index]\ntop_k = 3\n")
	t.Setenv("HRRAG_TOP_K", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Index.TopK)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"provider", func(c *Config) { c.Embedding.Provider = "bert" }},
		{"openai key", func(c *Config) { c.Embedding.Provider = "openai" }},
		{"langchain key", func(c *Config) { c.Embedding.Provider = "langchain" }},
		{"ollama dimension", func(c *Config) { c.Embedding.Provider = "ollama"; c.Embedding.Dimension = 0 }},
		{"chunk size", func(c *Config) { c.Index.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.Index.ChunkOverlap = -1 }},
		{"top k", func(c *Config) { c.Index.TopK = 0 }},
		{"depth", func(c *Config) { c.Graph.MaxDepth = 0 }},
		{"ttl", func(c *Config) { c.Cache.TTL = "soon" }},
		{"snapshot backend", func(c *Config) { c.Snapshot.Backend = "s3" }},
		{"file path", func(c *Config) { c.Snapshot.Backend = "file" }},
		{"postgres dsn", func(c *Config) { c.Snapshot.Backend = "postgres" }},
		{"redis addr", func(c *Config) { c.Snapshot.Backend = "redis" }},
		{"kg key", func(c *Config) { c.KnowledgeGraph.Live = true }},
		{"enterprise project", func(c *Config) { c.Enterprise.Live = true }},
		{"confidence", func(c *Config) { c.KnowledgeGraph.MinConfidence = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.True(t, errors.Is(err, rag.ErrInvalidConfig))
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "HRRAG_TEST_DOTENV=from-file\nHRRAG_TEST_PRESET=from-file\n")
	t.Setenv("HRRAG_TEST_PRESET", "from-env")
	t.Setenv("HRRAG_TEST_DOTENV", "")
	os.Unsetenv("HRRAG_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "from-file", os.Getenv("HRRAG_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("HRRAG_TEST_PRESET"))
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)
	path := writeFile(t, "out.toml", string(data))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Index, cfg.Index)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"std", "golog", "charm"} {
		t.Run(format, func(t *testing.T) {
			cfg := Default()
			cfg.Log.Format = format
			cfg.Log.Level = "warn"
			l, err := cfg.NewLogger()
			require.NoError(t, err)
			assert.Implements(t, (*log.Logger)(nil), l)
		})
	}

	cfg := Default()
	cfg.Log.Level = "chatty"
	_, err := cfg.NewLogger()
	assert.Error(t, err)
}
