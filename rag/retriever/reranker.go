package retriever

import (
	"sort"
	"strings"
)

// SourceInternal tags hits from the internal HR records
const SourceInternal = "internal"

// Hit is one entry of a merged ranking across sources
type Hit struct {
	Source  string  `json:"source"`
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Reranker scores hits by query term frequency blended with their source score
type Reranker struct {
	// SourceWeight is the share of the final score taken from the source score
	SourceWeight float64
}

// NewReranker creates a Reranker weighting source scores at 0.7
func NewReranker() *Reranker {
	return &Reranker{SourceWeight: 0.7}
}

// Rerank returns hits ordered by blended score. Term frequency is normalized
// by content length so long texts do not dominate. Ties keep input order.
func (r *Reranker) Rerank(query string, hits []Hit) []Hit {
	terms := strings.Fields(strings.ToLower(query))

	out := make([]Hit, len(hits))
	for i, h := range hits {
		content := strings.ToLower(h.Content)

		var tf float64
		for _, term := range terms {
			tf += float64(strings.Count(content, term))
		}
		if len(content) > 0 {
			tf = tf / float64(len(content)) * 10
		}

		h.Score = r.SourceWeight*h.Score + (1-r.SourceWeight)*min(tf, 1)
		out[i] = h
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
