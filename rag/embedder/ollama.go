package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaEmbedder embeds text with a local Ollama server
type OllamaEmbedder struct {
	client    *api.Client
	model     string
	dimension int
}

// NewOllamaEmbedder creates an embedder for the Ollama server at host.
// dimension is the model's output size and is used to zero-fill blank inputs.
func NewOllamaEmbedder(host, model string, dimension int) (*OllamaEmbedder, error) {
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	if model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}

	return &OllamaEmbedder{
		client:    api.NewClient(base, http.DefaultClient),
		model:     model,
		dimension: dimension,
	}, nil
}

// EmbedDocument embeds a single text
func (e *OllamaEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	res, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// EmbedDocuments embeds texts in one request. Blank inputs get a zero vector
// without a round trip.
func (e *OllamaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var inputs []string
	var idx []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, e.dimension)
			continue
		}
		inputs = append(inputs, t)
		idx = append(idx, i)
	}
	if len(inputs) == 0 {
		return out, nil
	}

	res, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(res.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(res.Embeddings), len(inputs))
	}

	for j, vec := range res.Embeddings {
		out[idx[j]] = vec
		if e.dimension == 0 {
			e.dimension = len(vec)
		}
	}
	return out, nil
}

// GetDimension returns the embedding dimension
func (e *OllamaEmbedder) GetDimension() int {
	return e.dimension
}
