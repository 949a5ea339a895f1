package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/hrrag/config"
	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
	"github.com/smallnest/hrrag/rag/embedder"
	"github.com/smallnest/hrrag/rag/enterprise"
	"github.com/smallnest/hrrag/rag/kg"
	snapstore "github.com/smallnest/hrrag/store"
	"github.com/smallnest/hrrag/store/file"
	"github.com/smallnest/hrrag/store/memory"
	"github.com/smallnest/hrrag/store/postgres"
	"github.com/smallnest/hrrag/store/redis"
	"github.com/smallnest/hrrag/store/sqlite"
	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/api/option"
)

// FromConfig assembles a Suite from cfg: the embedding provider with the
// optional Redis cache, the snapshot backend and the live or mock external
// capabilities. Close releases what it opened.
func FromConfig(ctx context.Context, cfg *config.Config, logger log.Logger) (*Suite, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		l, err := cfg.NewLogger()
		if err != nil {
			return nil, err
		}
		logger = l
	}

	var closers []func() error
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	emb, closeEmb, err := NewEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeEmb)

	snapshots, closeSnap, err := NewSnapshotStore(ctx, cfg.Snapshot)
	if err != nil {
		release()
		return nil, err
	}
	closers = append(closers, closeSnap)

	kgClient, err := NewKnowledgeGraph(ctx, cfg.KnowledgeGraph, logger)
	if err != nil {
		release()
		return nil, err
	}

	ent, err := NewEnterprise(ctx, cfg.Enterprise, logger)
	if err != nil {
		release()
		return nil, err
	}

	overlap := cfg.Index.ChunkOverlap
	suite, err := NewSuite(emb, Options{
		ModelName:      cfg.Embedding.Model,
		ChunkSize:      cfg.Index.ChunkSize,
		ChunkOverlap:   &overlap,
		CollectionName: cfg.Collection.Name,
		GraphName:      cfg.Graph.Name,
		TopK:           cfg.Index.TopK,
		MaxDepth:       cfg.Graph.MaxDepth,
		Snapshots:      snapshots,
		KnowledgeGraph: kgClient,
		Enterprise:     ent,
		Logger:         logger,
	})
	if err != nil {
		release()
		return nil, err
	}
	for _, c := range closers {
		suite.onClose(c)
	}
	return suite, nil
}

func noClose() error { return nil }

// NewEmbedder builds the configured embedding provider, wrapped in a Redis
// cache when cache.redis_addr is set.
func NewEmbedder(cfg *config.Config, logger log.Logger) (rag.Embedder, func() error, error) {
	ec := cfg.Embedding

	var emb rag.Embedder
	switch strings.ToLower(ec.Provider) {
	case "", "hash":
		emb = embedder.NewHashEmbedder(ec.Dimension)
	case "openai":
		opts := []embedder.OpenAIOption{
			embedder.WithOpenAIDimension(ec.Dimension),
			embedder.WithOpenAIBatching(ec.BatchSize, ec.Concurrency),
		}
		if ec.Model != "" {
			opts = append(opts, embedder.WithOpenAIModel(ec.Model))
		}
		if ec.BaseURL != "" {
			opts = append(opts, embedder.WithOpenAIBaseURL(ec.BaseURL))
		}
		e, err := embedder.NewOpenAIEmbedder(ec.APIKey, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", rag.ErrInvalidConfig, err)
		}
		emb = e
	case "langchain":
		e, err := newLangChainEmbedder(ec)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", rag.ErrInvalidConfig, err)
		}
		emb = e
	case "ollama":
		e, err := embedder.NewOllamaEmbedder(ec.OllamaHost, ec.Model, ec.Dimension)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", rag.ErrInvalidConfig, err)
		}
		emb = e
	default:
		return nil, nil, fmt.Errorf("%w: unknown embedding provider %q", rag.ErrInvalidConfig, ec.Provider)
	}

	if cfg.Cache.RedisAddr == "" {
		return emb, noClose, nil
	}

	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, nil, err
	}
	cache := embedder.NewRedisCache(emb, embedder.RedisCacheOptions{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		Model:    ec.Provider + ":" + ec.Model,
		TTL:      ttl,
		Logger:   logger,
	})
	logger.Debug("embedding cache enabled at %s", cfg.Cache.RedisAddr)
	return cache, cache.Close, nil
}

// newLangChainEmbedder embeds through langchaingo's OpenAI-compatible client
func newLangChainEmbedder(ec config.EmbeddingConfig) (*rag.LangChainEmbedder, error) {
	opts := []lcopenai.Option{lcopenai.WithToken(ec.APIKey)}
	if ec.Model != "" {
		opts = append(opts, lcopenai.WithEmbeddingModel(ec.Model))
	}
	if ec.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(ec.BaseURL))
	}
	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, err
	}

	var embOpts []embeddings.Option
	if ec.BatchSize > 0 {
		embOpts = append(embOpts, embeddings.WithBatchSize(ec.BatchSize))
	}
	lc, err := embeddings.NewEmbedder(llm, embOpts...)
	if err != nil {
		return nil, err
	}
	return rag.NewLangChainEmbedder(lc, ec.Dimension), nil
}

// NewSnapshotStore opens the configured snapshot backend
func NewSnapshotStore(ctx context.Context, sc config.SnapshotConfig) (snapstore.SnapshotStore, func() error, error) {
	switch strings.ToLower(sc.Backend) {
	case "", "memory":
		return memory.NewMemorySnapshotStore(), noClose, nil
	case "file":
		s, err := file.NewFileSnapshotStore(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, noClose, nil
	case "sqlite":
		s, err := sqlite.NewSqliteSnapshotStore(sqlite.SqliteOptions{Path: sc.Path, TableName: sc.Table})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "postgres":
		s, err := postgres.NewPostgresSnapshotStore(ctx, postgres.PostgresOptions{ConnString: sc.DSN, TableName: sc.Table})
		if err != nil {
			return nil, nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, func() error { s.Close(); return nil }, nil
	case "redis":
		s := redis.NewRedisSnapshotStore(redis.RedisOptions{Addr: sc.Addr})
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown snapshot backend %q", rag.ErrInvalidConfig, sc.Backend)
	}
}

// NewKnowledgeGraph returns a client over the Google Knowledge Graph when
// live, otherwise over the built-in mock entities.
func NewKnowledgeGraph(ctx context.Context, kc config.KnowledgeGraphConfig, logger log.Logger) (*kg.Client, error) {
	if !kc.Live {
		return kg.NewClient(nil, kg.WithLogger(logger)), nil
	}

	opts := []kg.GoogleOption{
		kg.WithRateLimiter(kg.NewRateLimiter(kg.RateLimitConfig{
			RequestsPerSecond: kc.RequestsPerSecond,
			BurstSize:         kc.Burst,
		})),
		kg.WithMinConfidence(kc.MinConfidence),
	}
	if len(kc.Languages) > 0 {
		opts = append(opts, kg.WithLanguages(kc.Languages...))
	}
	if kc.Endpoint != "" {
		opts = append(opts, kg.WithEndpoint(kc.Endpoint))
	}

	searcher, err := kg.NewGoogleSearcher(ctx, kc.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	return kg.NewClient(searcher, kg.WithLogger(logger)), nil
}

// NewEnterprise returns an engine searching Vertex AI Search when live,
// otherwise its local mirror. Live credentials come from the environment.
func NewEnterprise(ctx context.Context, ec config.EnterpriseConfig, logger log.Logger, clientOpts ...option.ClientOption) (*enterprise.Engine, error) {
	opts := []enterprise.EngineOption{enterprise.WithLogger(logger)}
	if ec.DataStoreID != "" {
		opts = append(opts, enterprise.WithDataStoreID(ec.DataStoreID))
	}
	if !ec.Live {
		return enterprise.NewEngine(opts...), nil
	}

	if ec.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(ec.Endpoint))
	}
	searcher, err := enterprise.NewVertexSearcher(ctx, enterprise.VertexConfig{
		ProjectID: ec.ProjectID,
		Location:  ec.Location,
	}, logger, clientOpts...)
	if err != nil {
		return nil, err
	}
	return enterprise.NewEngine(append(opts, enterprise.WithSearcher(searcher))...), nil
}
