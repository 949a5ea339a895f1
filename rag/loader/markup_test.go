package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guideMarkdown = `# Remote Work Guide

Employees may work **remotely** up to three days.

- Request approval
- Use the VPN

<script>alert(1)</script>

## Equipment

Laptops are provided by IT.
`

func TestMarkdownLoader(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "remote-work.md", guideMarkdown)

	docs, err := NewMarkdownLoader(path, WithDocType("Guide"), WithAuthor("HR Team")).Load(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d := docs[0]
	assert.Equal(t, "doc_remote_work", d.ID)
	assert.Equal(t, "Remote Work Guide", d.Title)
	assert.Equal(t, "Remote Work Guide\nEmployees may work remotely up to three days.\nRequest approval\nUse the VPN\nEquipment\nLaptops are provided by IT.", d.Content)
	assert.Equal(t, "Guide", d.DocType)
	assert.Equal(t, "HR Team", d.Author)
	assert.Equal(t, "md", d.FileType)
	assert.NotContains(t, d.Content, "alert")
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := string(RenderMarkdown([]byte("Photo:\n\n<img src=\"x.png\" onerror=\"alert(1)\">")))
	assert.NotContains(t, out, "onerror")
	assert.Contains(t, out, "Photo:")
}

func TestHTMLLoader(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("heading title", func(t *testing.T) {
		path := writeFile(t, dir, "benefits.html", `<html><head><title>Intranet</title><style>p{color:red}</style></head>
<body><h2>Benefits   Overview</h2><p>Health,   dental and vision.</p>
<ul><li><p>Enroll within 30 days</p></li></ul><script>track()</script></body></html>`)

		docs, err := NewHTMLLoader(path).Load(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Benefits Overview", docs[0].Title)
		assert.Equal(t, "Benefits Overview\nHealth, dental and vision.\nEnroll within 30 days", docs[0].Content)
		assert.Equal(t, "html", docs[0].FileType)
	})

	t.Run("page title fallback", func(t *testing.T) {
		path := writeFile(t, dir, "notice.htm", `<html><head><title>Office Notice</title></head><body><p>Closed Friday.</p></body></html>`)

		docs, err := NewHTMLLoader(path).Load(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Office Notice", docs[0].Title)
		assert.Equal(t, "Closed Friday.", docs[0].Content)
	})

	t.Run("no text", func(t *testing.T) {
		path := writeFile(t, dir, "empty.html", `<html><body><script>x()</script></body></html>`)
		docs, err := NewHTMLLoader(path).Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}
