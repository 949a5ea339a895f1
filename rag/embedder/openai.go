package embedder

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

// OpenAIEmbedder embeds text with the OpenAI embeddings API
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dimension   int
	batchSize   int
	concurrency int
}

// OpenAIOption configures an OpenAIEmbedder
type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	baseURL     string
	model       string
	dimension   int
	batchSize   int
	concurrency int
}

// WithOpenAIBaseURL points the client at a compatible endpoint
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) {
		c.baseURL = url
	}
}

// WithOpenAIModel sets the embedding model
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openaiConfig) {
		c.model = model
	}
}

// WithOpenAIDimension overrides the model dimension
func WithOpenAIDimension(dim int) OpenAIOption {
	return func(c *openaiConfig) {
		c.dimension = dim
	}
}

// WithOpenAIBatching sets how many texts go in one request and how many requests run at once
func WithOpenAIBatching(batchSize, concurrency int) OpenAIOption {
	return func(c *openaiConfig) {
		c.batchSize = batchSize
		c.concurrency = concurrency
	}
}

// NewOpenAIEmbedder creates an OpenAI embedder
func NewOpenAIEmbedder(apiKey string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	cfg := openaiConfig{
		model:       string(openai.SmallEmbedding3),
		batchSize:   100,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.dimension == 0 {
		cfg.dimension = 1536
		if cfg.model == string(openai.LargeEmbedding3) {
			cfg.dimension = 3072
		}
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = 100
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = 1
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}

	return &OpenAIEmbedder{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.model,
		dimension:   cfg.dimension,
		batchSize:   cfg.batchSize,
		concurrency: cfg.concurrency,
	}, nil
}

// EmbedDocument embeds a single text
func (e *OpenAIEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	res, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// EmbedDocuments embeds texts in batches; batches run concurrently and
// results keep input order.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		eg.Go(func() error {
			res, err := e.embedBatch(ectx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], res)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDimension returns the embedding dimension
func (e *OpenAIEmbedder) GetDimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedding index out of range: %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i := range d.Embedding {
			vec[i] = float32(d.Embedding[i])
		}
		out[d.Index] = vec
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return out, nil
}
