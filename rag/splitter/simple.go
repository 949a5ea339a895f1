package splitter

import (
	"fmt"
	"maps"
	"strings"
	"unicode"

	"github.com/smallnest/hrrag/rag"
)

const (
	// DefaultChunkSize is the window length in runes
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the number of runes shared by consecutive chunks
	DefaultChunkOverlap = 50
)

// WordWindowSplitter slides a fixed-size window over text, pulling each window
// end back to the previous space so words are not cut in half.
type WordWindowSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// Option configures a WordWindowSplitter
type Option func(*WordWindowSplitter)

// WithChunkSize sets the chunk size
func WithChunkSize(size int) Option {
	return func(s *WordWindowSplitter) {
		s.ChunkSize = size
	}
}

// WithChunkOverlap sets the chunk overlap
func WithChunkOverlap(overlap int) Option {
	return func(s *WordWindowSplitter) {
		s.ChunkOverlap = overlap
	}
}

// NewWordWindowSplitter creates a splitter. The overlap must be smaller than the chunk size.
func NewWordWindowSplitter(opts ...Option) (*WordWindowSplitter, error) {
	s := &WordWindowSplitter{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", rag.ErrInvalidConfig, s.ChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", rag.ErrInvalidConfig, s.ChunkOverlap, s.ChunkSize)
	}
	return s, nil
}

// Span is the rune range [Start, End) of one chunk in the source text
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Spans returns the rune ranges SplitText cuts from text. Whitespace-only
// windows are skipped.
func (s *WordWindowSplitter) Spans(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n <= s.ChunkSize {
		if isBlank(runes) {
			return nil
		}
		return []Span{{Start: 0, End: n}}
	}

	var spans []Span
	start := 0
	for start < n {
		end := min(start+s.ChunkSize, n)

		if end < n {
			if space := lastSpace(runes, start, end); space > start {
				end = space
			}
		}

		if !isBlank(runes[start:end]) {
			spans = append(spans, Span{Start: start, End: end})
		}

		if end >= n {
			break
		}

		// a window shorter than the overlap advances without sharing runes
		next := end - s.ChunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return spans
}

// SplitText splits text into overlapping chunks
func (s *WordWindowSplitter) SplitText(text string) []string {
	spans := s.Spans(text)
	if len(spans) == 0 {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, len(spans))
	for i, sp := range spans {
		chunks[i] = string(runes[sp.Start:sp.End])
	}
	return chunks
}

// SplitChunks splits text and tags every chunk with a copy of metadata
// plus its chunk_index.
func (s *WordWindowSplitter) SplitChunks(text string, metadata map[string]any) []rag.Chunk {
	pieces := s.SplitText(text)
	chunks := make([]rag.Chunk, len(pieces))
	for i, piece := range pieces {
		meta := make(map[string]any, len(metadata)+1)
		maps.Copy(meta, metadata)
		meta["chunk_index"] = i

		chunks[i] = rag.Chunk{Content: piece, Metadata: meta}
	}
	return chunks
}

// JoinText rebuilds the source text from chunks by dropping ChunkOverlap
// runes from every chunk after the first. It assumes each step shared the
// full overlap; use JoinSpans when a window was shorter than the overlap.
func (s *WordWindowSplitter) JoinText(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		r := []rune(c)
		if len(r) > s.ChunkOverlap {
			b.WriteString(string(r[s.ChunkOverlap:]))
		}
	}
	return b.String()
}

// JoinSpans rebuilds the covered text from chunks and the spans Spans
// reported for them, dropping only the runes each chunk actually shares
// with the previous one.
func JoinSpans(chunks []string, spans []Span) (string, error) {
	if len(chunks) != len(spans) {
		return "", fmt.Errorf("%w: %d chunks but %d spans", rag.ErrInvalidArgument, len(chunks), len(spans))
	}
	if len(chunks) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		shared := max(spans[i-1].End-spans[i].Start, 0)
		r := []rune(chunks[i])
		if shared < len(r) {
			b.WriteString(string(r[shared:]))
		}
	}
	return b.String(), nil
}

// lastSpace returns the index of the last space in runes[start:end], or -1
func lastSpace(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
