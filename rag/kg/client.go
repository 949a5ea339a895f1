package kg

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
)

// UsageStats counts calls made through a Client
type UsageStats struct {
	APICalls      int `json:"api_calls"`
	EntitiesFound int `json:"entities_found"`
	CacheHits     int `json:"cache_hits"`
	Fallbacks     int `json:"fallbacks"`
}

// Client caches entity lookups and falls back to a MockSearcher when the
// underlying searcher fails. It is safe for concurrent use.
type Client struct {
	searcher EntitySearcher
	fallback *MockSearcher
	logger   log.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string][]rag.ExternalResult
	stats UsageStats
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the time source for exports
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient wraps searcher. A nil searcher uses the mock directly.
func NewClient(searcher EntitySearcher, opts ...ClientOption) *Client {
	c := &Client{
		searcher: searcher,
		fallback: NewMockSearcher(),
		now:      time.Now,
		cache:    make(map[string][]rag.ExternalResult),
	}
	if c.searcher == nil {
		c.searcher = c.fallback
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.GetDefaultLogger()
	}
	return c
}

// Search implements rag.ExternalSearcher
func (c *Client) Search(ctx context.Context, query string, limit int) ([]rag.ExternalResult, error) {
	return c.Lookup(ctx, Query{Text: query, Limit: limit})
}

// Lookup returns cached results when available, otherwise queries the
// searcher. Failures are logged and answered by the mock; only context
// cancellation is returned as an error.
func (c *Client) Lookup(ctx context.Context, q Query) ([]rag.ExternalResult, error) {
	key := cacheKey(q)

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.stats.CacheHits++
		c.mu.Unlock()
		return slices.Clone(cached), nil
	}
	c.mu.Unlock()

	results, err := c.searcher.Lookup(ctx, q)

	c.mu.Lock()
	c.stats.APICalls++
	c.mu.Unlock()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("knowledge graph lookup failed, using mock entities: %v", err)
		c.mu.Lock()
		c.stats.Fallbacks++
		c.mu.Unlock()
		return c.fallback.Lookup(ctx, q)
	}

	c.mu.Lock()
	c.cache[key] = slices.Clone(results)
	c.stats.EntitiesFound += len(results)
	c.mu.Unlock()

	c.logger.Debug("knowledge graph lookup %q: %d entities", q.Text, len(results))
	return results, nil
}

// EntityDetails returns a known entity by id
func (c *Client) EntityDetails(id string) (rag.ExternalResult, bool) {
	if d, ok := c.searcher.(interface {
		EntityDetails(string) (rag.ExternalResult, bool)
	}); ok {
		return d.EntityDetails(id)
	}
	return c.fallback.EntityDetails(id)
}

// TypeDistribution counts the mock entity catalog per type
func (c *Client) TypeDistribution() map[string]int {
	return c.fallback.TypeDistribution()
}

// UsageStats returns a copy of the usage counters
func (c *Client) UsageStats() UsageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// EntitiesFound is the number of entities returned by successful lookups
func (c *Client) EntitiesFound() int {
	return c.UsageStats().EntitiesFound
}

// CacheSize returns the number of cached lookups
func (c *Client) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

type cacheExport struct {
	ExportTimestamp string                          `json:"export_timestamp"`
	CacheSize       int                             `json:"cache_size"`
	CacheEntries    map[string][]rag.ExternalResult `json:"cache_entries"`
}

// ExportCache serializes every cached lookup as indented JSON
func (c *Client) ExportCache() ([]byte, error) {
	c.mu.Lock()
	export := cacheExport{
		ExportTimestamp: c.now().Format(time.RFC3339),
		CacheSize:       len(c.cache),
		CacheEntries:    make(map[string][]rag.ExternalResult, len(c.cache)),
	}
	for k, v := range c.cache {
		export.CacheEntries[k] = v
	}
	c.mu.Unlock()

	return json.MarshalIndent(export, "", "  ")
}

// cacheKey hashes every field of the query
func cacheKey(q Query) string {
	types := q.Types
	if types == nil {
		types = []string{}
	}
	langs := q.Languages
	if langs == nil {
		langs = []string{}
	}
	data, _ := json.Marshal(map[string]any{
		"query":        q.Text,
		"entity_types": types,
		"languages":    langs,
		"limit":        q.limit(),
		"min_conf":     q.MinConfidence,
	})
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
