package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
)

// RedisCache wraps an embedder and memoizes vectors in Redis keyed by model and text
type RedisCache struct {
	inner  rag.Embedder
	client *redis.Client
	model  string
	prefix string
	ttl    time.Duration
	logger log.Logger
}

// RedisCacheOptions configures a RedisCache
type RedisCacheOptions struct {
	Addr     string
	Password string
	DB       int
	Model    string        // Part of every key so models never share vectors
	Prefix   string        // Key prefix, default "hrrag:emb:"
	TTL      time.Duration // Expiration for cached vectors, default 0 (no expiration)
	Logger   log.Logger
}

// NewRedisCache creates a caching embedder
func NewRedisCache(inner rag.Embedder, opts RedisCacheOptions) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "hrrag:emb:"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	return &RedisCache{
		inner:  inner,
		client: client,
		model:  opts.Model,
		prefix: prefix,
		ttl:    opts.TTL,
		logger: logger,
	}
}

func (c *RedisCache) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return c.prefix + hex.EncodeToString(sum[:])
}

// EmbedDocument embeds a single text through the cache
func (c *RedisCache) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	res, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// EmbedDocuments returns cached vectors where present and embeds the rest in one
// call to the wrapped embedder. Cache read or write failures degrade to a miss.
func (c *RedisCache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("embedding cache read failed: %v", err)
		cached = make([]any, len(texts))
	}

	var missTexts []string
	var missIdx []int
	for i, v := range cached {
		if s, ok := v.(string); ok {
			var vec []float32
			if err := json.Unmarshal([]byte(s), &vec); err == nil {
				out[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, texts[i])
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		c.logger.Debug("embedding cache: %d hits", len(texts))
		return out, nil
	}

	fresh, err := c.inner.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	pipe := c.client.Pipeline()
	for j, vec := range fresh {
		out[missIdx[j]] = vec
		data, err := json.Marshal(vec)
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[missIdx[j]], data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("embedding cache write failed: %v", err)
	}

	c.logger.Debug("embedding cache: %d hits, %d misses", len(texts)-len(missTexts), len(missTexts))
	return out, nil
}

// GetDimension returns the wrapped embedder's dimension
func (c *RedisCache) GetDimension() int {
	return c.inner.GetDimension()
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
