package splitter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/smallnest/hrrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWordWindowSplitter(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := NewWordWindowSplitter()
		require.NoError(t, err)
		assert.Equal(t, 500, s.ChunkSize)
		assert.Equal(t, 50, s.ChunkOverlap)
	})

	t.Run("rejects bad settings", func(t *testing.T) {
		cases := []struct {
			size, overlap int
		}{
			{0, 0},
			{-1, 0},
			{100, 100},
			{100, 150},
			{100, -1},
		}
		for _, c := range cases {
			_, err := NewWordWindowSplitter(WithChunkSize(c.size), WithChunkOverlap(c.overlap))
			assert.ErrorIs(t, err, rag.ErrInvalidConfig, "size=%d overlap=%d", c.size, c.overlap)
		}
	})
}

func TestWordWindowSplitter_SplitText(t *testing.T) {
	s, err := NewWordWindowSplitter(WithChunkSize(500), WithChunkOverlap(50))
	require.NoError(t, err)

	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := s.SplitText("Employee: Jane Smith | Department: HR")
		assert.Equal(t, []string{"Employee: Jane Smith | Department: HR"}, chunks)
	})

	t.Run("blank text yields nothing", func(t *testing.T) {
		assert.Empty(t, s.SplitText("   "))
		assert.Empty(t, s.SplitText(""))
	})

	t.Run("hand computed count just over twice the size", func(t *testing.T) {
		text := strings.Repeat("a", 1010)
		chunks := s.SplitText(text)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], 500)
		assert.Len(t, chunks[1], 500)
		assert.Len(t, chunks[2], 110)
	})

	t.Run("window ends on a word boundary", func(t *testing.T) {
		small, err := NewWordWindowSplitter(WithChunkSize(12), WithChunkOverlap(2))
		require.NoError(t, err)

		chunks := small.SplitText("alpha beta gamma delta")
		require.NotEmpty(t, chunks)
		assert.Equal(t, "alpha beta", chunks[0])
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), 12)
		}
	})

	t.Run("runes are not split", func(t *testing.T) {
		small, err := NewWordWindowSplitter(WithChunkSize(4), WithChunkOverlap(1))
		require.NoError(t, err)

		chunks := small.SplitText("日本語のテキスト")
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), 4)
			assert.True(t, strings.ToValidUTF8(c, "?") == c)
		}
	})
}

func TestWordWindowSplitter_RoundTrip(t *testing.T) {
	s, err := NewWordWindowSplitter(WithChunkSize(100), WithChunkOverlap(20))
	require.NoError(t, err)

	var b strings.Builder
	for i := 0; b.Len() < 1300; i++ {
		fmt.Fprintf(&b, "word%d ", i)
	}
	text := strings.TrimSpace(b.String())

	chunks := s.SplitText(text)
	assert.Greater(t, len(chunks), 10)
	assert.Equal(t, text, s.JoinText(chunks))

	hard := strings.Repeat("x", 1010)
	assert.Equal(t, hard, s.JoinText(s.SplitText(hard)))
}

func TestWordWindowSplitter_Spans(t *testing.T) {
	s, err := NewWordWindowSplitter(WithChunkSize(10), WithChunkOverlap(5))
	require.NoError(t, err)

	text := "ab cdefghijklmnop"
	spans := s.Spans(text)
	assert.Equal(t, []Span{{0, 2}, {2, 12}, {7, 17}}, spans)

	chunks := s.SplitText(text)
	assert.Equal(t, []string{"ab", " cdefghijk", "ghijklmnop"}, chunks)

	t.Run("join with spans keeps short windows", func(t *testing.T) {
		joined, err := JoinSpans(chunks, spans)
		require.NoError(t, err)
		assert.Equal(t, text, joined)
	})

	t.Run("join text assumes full overlap", func(t *testing.T) {
		assert.NotEqual(t, text, s.JoinText(chunks))
	})

	t.Run("mismatched lengths", func(t *testing.T) {
		_, err := JoinSpans(chunks, spans[:1])
		assert.ErrorIs(t, err, rag.ErrInvalidArgument)
	})

	t.Run("short and blank", func(t *testing.T) {
		assert.Equal(t, []Span{{0, 4}}, s.Spans("sick"))
		assert.Empty(t, s.Spans("   "))
		joined, err := JoinSpans(nil, nil)
		require.NoError(t, err)
		assert.Empty(t, joined)
	})
}

func TestWordWindowSplitter_SplitChunks(t *testing.T) {
	s, err := NewWordWindowSplitter(WithChunkSize(10), WithChunkOverlap(0))
	require.NoError(t, err)

	meta := map[string]any{"type": "policy", "id": "policy_001"}
	chunks := s.SplitChunks("1234567890abcdefghij", meta)

	require.Len(t, chunks, 2)
	assert.Equal(t, "1234567890", chunks[0].Content)
	assert.Equal(t, "abcdefghij", chunks[1].Content)
	for i, c := range chunks {
		assert.Equal(t, "policy", c.Metadata["type"])
		assert.Equal(t, i, c.Metadata["chunk_index"])
	}
	_, polluted := meta["chunk_index"]
	assert.False(t, polluted)
}
