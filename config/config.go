// Package config loads hrrag settings from a TOML file, an optional .env file
// and HRRAG_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
)

// Config is the root configuration
type Config struct {
	Log            LogConfig            `toml:"log"`
	Embedding      EmbeddingConfig      `toml:"embedding"`
	Index          IndexConfig          `toml:"index"`
	Collection     CollectionConfig     `toml:"collection"`
	Graph          GraphConfig          `toml:"graph"`
	Cache          CacheConfig          `toml:"cache"`
	Snapshot       SnapshotConfig       `toml:"snapshot"`
	KnowledgeGraph KnowledgeGraphConfig `toml:"knowledge_graph"`
	Enterprise     EnterpriseConfig     `toml:"enterprise"`
	Generator      GeneratorConfig      `toml:"generator"`
}

// LogConfig selects the logger implementation and level
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error, off
	Format string `toml:"format"` // std, golog, charm
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider    string `toml:"provider"` // hash, openai, ollama, langchain
	Model       string `toml:"model"`
	Dimension   int    `toml:"dimension"`
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
	OllamaHost  string `toml:"ollama_host"`
	BatchSize   int    `toml:"batch_size"`
	Concurrency int    `toml:"concurrency"`
}

// IndexConfig holds chunked embedding index settings
type IndexConfig struct {
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`
	TopK         int `toml:"top_k"`
}

// CollectionConfig holds document store settings
type CollectionConfig struct {
	Name string `toml:"name"`
}

// GraphConfig holds property graph settings
type GraphConfig struct {
	Name     string `toml:"name"`
	MaxDepth int    `toml:"max_depth"`
}

// CacheConfig enables the Redis embedding cache when Addr is set
type CacheConfig struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	TTL           string `toml:"ttl"` // Go duration, empty for no expiry
}

// SnapshotConfig selects where index snapshots are persisted
type SnapshotConfig struct {
	Backend string `toml:"backend"` // memory, file, sqlite, postgres, redis
	Path    string `toml:"path"`    // directory for file, database path for sqlite
	DSN     string `toml:"dsn"`     // postgres connection string
	Addr    string `toml:"addr"`    // redis address
	Table   string `toml:"table"`
}

// KnowledgeGraphConfig configures the external knowledge graph capability
type KnowledgeGraphConfig struct {
	Live              bool     `toml:"live"`
	APIKey            string   `toml:"api_key"`
	Endpoint          string   `toml:"endpoint"`
	Languages         []string `toml:"languages"`
	MinConfidence     float64  `toml:"min_confidence"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
}

// EnterpriseConfig configures the managed enterprise search capability
type EnterpriseConfig struct {
	Live        bool   `toml:"live"`
	ProjectID   string `toml:"project_id"`
	Location    string `toml:"location"`
	DataStoreID string `toml:"data_store_id"`
	Endpoint    string `toml:"endpoint"`
}

// GeneratorConfig sizes the synthetic dataset
type GeneratorConfig struct {
	Seed      int64 `toml:"seed"`
	Employees int   `toml:"employees"`
	Policies  int   `toml:"policies"`
	Documents int   `toml:"documents"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "std"},
		Embedding: EmbeddingConfig{
			Provider:    "hash",
			Model:       "all-MiniLM-L6-v2",
			Dimension:   384,
			OllamaHost:  "http://localhost:11434",
			BatchSize:   100,
			Concurrency: 4,
		},
		Index:      IndexConfig{ChunkSize: 500, ChunkOverlap: 50, TopK: 5},
		Collection: CollectionConfig{Name: "hr_documents"},
		Graph:      GraphConfig{Name: "hr_knowledge_graph", MaxDepth: 2},
		Snapshot:   SnapshotConfig{Backend: "memory"},
		KnowledgeGraph: KnowledgeGraphConfig{
			Languages:         []string{"en"},
			MinConfidence:     0.1,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Enterprise: EnterpriseConfig{Location: "global", DataStoreID: "hr-data-store"},
		Generator:  GeneratorConfig{Seed: 42, Employees: 50, Policies: 20, Documents: 30},
	}
}

// LoadDotEnv loads variables from the given .env files (default ".env").
// Missing files are ignored; variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Debug("no %s file found, using process environment", f)
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as TOML
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// ApplyEnv overrides fields from environment variables returned by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", rag.ErrInvalidConfig, key, v)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", rag.ErrInvalidConfig, key, v)
		}
		*dst = b
		return nil
	}

	str("HRRAG_LOG_LEVEL", &c.Log.Level)
	str("HRRAG_LOG_FORMAT", &c.Log.Format)
	str("HRRAG_EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("HRRAG_EMBEDDING_MODEL", &c.Embedding.Model)
	str("OPENAI_API_KEY", &c.Embedding.APIKey)
	str("HRRAG_OPENAI_API_KEY", &c.Embedding.APIKey)
	str("HRRAG_OPENAI_BASE_URL", &c.Embedding.BaseURL)
	str("HRRAG_OLLAMA_HOST", &c.Embedding.OllamaHost)
	str("HRRAG_COLLECTION_NAME", &c.Collection.Name)
	str("HRRAG_GRAPH_NAME", &c.Graph.Name)
	str("HRRAG_REDIS_ADDR", &c.Cache.RedisAddr)
	str("HRRAG_REDIS_PASSWORD", &c.Cache.RedisPassword)
	str("HRRAG_CACHE_TTL", &c.Cache.TTL)
	str("HRRAG_SNAPSHOT_BACKEND", &c.Snapshot.Backend)
	str("HRRAG_SNAPSHOT_PATH", &c.Snapshot.Path)
	str("HRRAG_SNAPSHOT_DSN", &c.Snapshot.DSN)
	str("HRRAG_SNAPSHOT_ADDR", &c.Snapshot.Addr)
	str("GOOGLE_API_KEY", &c.KnowledgeGraph.APIKey)
	str("HRRAG_KG_API_KEY", &c.KnowledgeGraph.APIKey)
	str("GOOGLE_CLOUD_PROJECT", &c.Enterprise.ProjectID)
	str("HRRAG_ENTERPRISE_LOCATION", &c.Enterprise.Location)
	str("HRRAG_ENTERPRISE_DATA_STORE", &c.Enterprise.DataStoreID)

	for key, dst := range map[string]*int{
		"HRRAG_EMBEDDING_DIMENSION": &c.Embedding.Dimension,
		"HRRAG_CHUNK_SIZE":          &c.Index.ChunkSize,
		"HRRAG_CHUNK_OVERLAP":       &c.Index.ChunkOverlap,
		"HRRAG_TOP_K":               &c.Index.TopK,
		"HRRAG_GRAPH_MAX_DEPTH":     &c.Graph.MaxDepth,
		"HRRAG_REDIS_DB":            &c.Cache.RedisDB,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("HRRAG_SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: HRRAG_SEED=%q is not an integer", rag.ErrInvalidConfig, v)
		}
		c.Generator.Seed = seed
	}

	if err := flag("HRRAG_KG_LIVE", &c.KnowledgeGraph.Live); err != nil {
		return err
	}
	return flag("HRRAG_ENTERPRISE_LIVE", &c.Enterprise.Live)
}

// CacheTTL parses Cache.TTL; an empty value means no expiry
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("%w: cache ttl: %v", rag.ErrInvalidConfig, err)
	}
	return d, nil
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		bad("log.level: %v", err)
	}
	if !oneOf(c.Log.Format, "std", "golog", "charm") {
		bad("log.format %q must be std, golog or charm", c.Log.Format)
	}
	if !oneOf(c.Embedding.Provider, "hash", "openai", "ollama", "langchain") {
		bad("embedding.provider %q must be hash, openai, ollama or langchain", c.Embedding.Provider)
	}
	if oneOf(c.Embedding.Provider, "openai", "langchain") && c.Embedding.APIKey == "" {
		bad("embedding.api_key is required for the %s provider", c.Embedding.Provider)
	}
	if c.Embedding.Dimension < 0 {
		bad("embedding.dimension must not be negative")
	}
	if c.Embedding.Provider == "ollama" && c.Embedding.Dimension == 0 {
		bad("embedding.dimension is required for the ollama provider")
	}
	if c.Index.ChunkSize <= 0 {
		bad("index.chunk_size must be positive")
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		bad("index.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Index.TopK < 1 {
		bad("index.top_k must be at least 1")
	}
	if c.Collection.Name == "" {
		bad("collection.name is required")
	}
	if c.Graph.MaxDepth < 1 {
		bad("graph.max_depth must be at least 1")
	}
	if _, err := c.CacheTTL(); err != nil {
		bad("%v", err)
	}
	switch c.Snapshot.Backend {
	case "memory":
	case "file", "sqlite":
		if c.Snapshot.Path == "" {
			bad("snapshot.path is required for the %s backend", c.Snapshot.Backend)
		}
	case "postgres":
		if c.Snapshot.DSN == "" {
			bad("snapshot.dsn is required for the postgres backend")
		}
	case "redis":
		if c.Snapshot.Addr == "" {
			bad("snapshot.addr is required for the redis backend")
		}
	default:
		bad("snapshot.backend %q is not supported", c.Snapshot.Backend)
	}
	if c.KnowledgeGraph.Live && c.KnowledgeGraph.APIKey == "" {
		bad("knowledge_graph.api_key is required when live")
	}
	if c.KnowledgeGraph.MinConfidence < 0 || c.KnowledgeGraph.MinConfidence > 1 {
		bad("knowledge_graph.min_confidence must be in [0, 1]")
	}
	if c.Enterprise.Live && c.Enterprise.ProjectID == "" {
		bad("enterprise.project_id is required when live")
	}
	if c.Generator.Employees < 0 || c.Generator.Policies < 0 || c.Generator.Documents < 0 {
		bad("generator counts must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", rag.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
