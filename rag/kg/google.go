package kg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/smallnest/hrrag/rag"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/kgsearch/v1"
	"google.golang.org/api/option"
)

// SourceGoogle tags results produced by GoogleSearcher
const SourceGoogle = "google_knowledge_graph"

// DefaultLimit is the number of entities requested when a query sets none
const DefaultLimit = 10

// Query is an entity search request
type Query struct {
	Text          string
	Limit         int
	Types         []string
	Languages     []string
	MinConfidence float64
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// EntitySearcher looks up entities for a Query
type EntitySearcher interface {
	rag.ExternalSearcher
	Lookup(ctx context.Context, q Query) ([]rag.ExternalResult, error)
}

// GoogleSearcher queries the Google Knowledge Graph Search API
type GoogleSearcher struct {
	svc           *kgsearch.Service
	limiter       *RateLimiter
	languages     []string
	types         []string
	minConfidence float64
}

// GoogleOption configures a GoogleSearcher
type GoogleOption func(*googleConfig)

type googleConfig struct {
	endpoint      string
	httpClient    *http.Client
	limiter       *RateLimiter
	languages     []string
	types         []string
	minConfidence float64
}

// WithEndpoint overrides the API base URL
func WithEndpoint(url string) GoogleOption {
	return func(c *googleConfig) {
		c.endpoint = url
	}
}

// WithHTTPClient sets the HTTP client used for API calls
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(c *googleConfig) {
		c.httpClient = client
	}
}

// WithRateLimiter sets the limiter shared by every request
func WithRateLimiter(l *RateLimiter) GoogleOption {
	return func(c *googleConfig) {
		c.limiter = l
	}
}

// WithLanguages sets the default result languages
func WithLanguages(langs ...string) GoogleOption {
	return func(c *googleConfig) {
		c.languages = langs
	}
}

// WithTypes restricts results to schema.org types by default
func WithTypes(types ...string) GoogleOption {
	return func(c *googleConfig) {
		c.types = types
	}
}

// WithMinConfidence drops results below the given confidence by default
func WithMinConfidence(threshold float64) GoogleOption {
	return func(c *googleConfig) {
		c.minConfidence = threshold
	}
}

// NewGoogleSearcher creates a searcher authenticated with an API key
func NewGoogleSearcher(ctx context.Context, apiKey string, opts ...GoogleOption) (*GoogleSearcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: knowledge graph api key is required", rag.ErrInvalidConfig)
	}

	cfg := googleConfig{languages: []string{"en"}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.limiter == nil {
		cfg.limiter = NewRateLimiter(DefaultRateLimit)
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if cfg.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.endpoint))
	}
	if cfg.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.httpClient))
	}

	svc, err := kgsearch.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create knowledge graph service: %w", err)
	}

	return &GoogleSearcher{
		svc:           svc,
		limiter:       cfg.limiter,
		languages:     cfg.languages,
		types:         cfg.types,
		minConfidence: cfg.minConfidence,
	}, nil
}

// Search implements rag.ExternalSearcher
func (g *GoogleSearcher) Search(ctx context.Context, query string, limit int) ([]rag.ExternalResult, error) {
	return g.Lookup(ctx, Query{Text: query, Limit: limit})
}

// Lookup calls entities:search. Query fields left empty use the searcher's
// defaults. A 429 response starts the limiter's backoff window.
func (g *GoogleSearcher) Lookup(ctx context.Context, q Query) ([]rag.ExternalResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	langs := q.Languages
	if len(langs) == 0 {
		langs = g.languages
	}
	types := q.Types
	if len(types) == 0 {
		types = g.types
	}
	threshold := q.MinConfidence
	if threshold <= 0 {
		threshold = g.minConfidence
	}

	call := g.svc.Entities.Search().Query(q.Text).Limit(int64(q.limit())).Context(ctx)
	if len(langs) > 0 {
		call = call.Languages(langs...)
	}
	if len(types) > 0 {
		call = call.Types(types...)
	}

	resp, err := call.Do()
	if err != nil {
		if IsRateLimited(err) {
			g.limiter.RecordRateLimitError(retryAfter(err))
		}
		return nil, fmt.Errorf("knowledge graph search %q: %w", q.Text, err)
	}

	return processResponse(resp, threshold)
}

type searchItem struct {
	ResultScore float64 `json:"resultScore"`
	Result      struct {
		ID                  string   `json:"@id"`
		Name                string   `json:"name"`
		Types               []string `json:"@type"`
		Description         string   `json:"description"`
		URL                 string   `json:"url"`
		DetailedDescription struct {
			ArticleBody string `json:"articleBody"`
		} `json:"detailedDescription"`
	} `json:"result"`
}

// processResponse converts resultScore to a confidence of score/1000 capped
// at 1 and keeps results at or above threshold.
func processResponse(resp *kgsearch.SearchResponse, threshold float64) ([]rag.ExternalResult, error) {
	var results []rag.ExternalResult
	for _, raw := range resp.ItemListElement {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("decode knowledge graph item: %w", err)
		}
		var item searchItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode knowledge graph item: %w", err)
		}

		confidence := min(item.ResultScore/1000, 1)
		if confidence < threshold {
			continue
		}
		results = append(results, rag.ExternalResult{
			ID:                  item.Result.ID,
			Name:                item.Result.Name,
			Description:         item.Result.Description,
			DetailedDescription: item.Result.DetailedDescription.ArticleBody,
			Types:               item.Result.Types,
			Confidence:          confidence,
			URL:                 item.Result.URL,
			Source:              SourceGoogle,
		})
	}
	return results, nil
}

// IsRateLimited reports whether err is a 429 from a Google API
func IsRateLimited(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests
	}
	return false
}

func retryAfter(err error) time.Duration {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0
	}
	secs, convErr := strconv.Atoi(gerr.Header.Get("Retry-After"))
	if convErr != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}
