package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size used by NewHashEmbedder when 0 is given
const DefaultHashDimension = 384

// HashEmbedder is a deterministic, offline embedder. It hashes lower-cased
// word unigrams and bigrams into a signed bag-of-features vector and
// L2-normalizes it, so texts sharing vocabulary get a positive inner product.
type HashEmbedder struct {
	Dimension int
}

// NewHashEmbedder creates a new HashEmbedder
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{
		Dimension: dimension,
	}
}

// EmbedDocument generates the embedding for a text
func (e *HashEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.generateEmbedding(text), nil
}

// EmbedDocuments generates embeddings for texts
func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.generateEmbedding(text)
	}
	return embeddings, nil
}

// GetDimension returns the embedding dimension
func (e *HashEmbedder) GetDimension() int {
	return e.Dimension
}

func (e *HashEmbedder) generateEmbedding(text string) []float32 {
	embedding := make([]float32, e.Dimension)

	tokens := Tokenize(text)
	for i, tok := range tokens {
		e.addFeature(embedding, tok, 1.0)
		if i > 0 {
			e.addFeature(embedding, tokens[i-1]+" "+tok, 0.5)
		}
	}

	return Normalize(embedding)
}

func (e *HashEmbedder) addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(len(vec)))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// Tokenize lower-cases text and splits it into letter/digit runs
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
