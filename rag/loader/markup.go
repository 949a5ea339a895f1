package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
	"github.com/smallnest/hrrag/rag"
)

const (
	headings  = "h1, h2, h3, h4, h5, h6"
	textBlock = "h1, h2, h3, h4, h5, h6, p, li, pre, td, th, blockquote"
)

// MarkdownLoader loads a Markdown file. It renders the Markdown to HTML,
// sanitizes it and keeps the text of each block on its own line.
type MarkdownLoader struct {
	path string
	opts options
}

// NewMarkdownLoader creates a MarkdownLoader
func NewMarkdownLoader(path string, opts ...Option) *MarkdownLoader {
	return &MarkdownLoader{path: path, opts: newOptions(opts)}
}

// Load reads the file into one record titled by its first heading
func (l *MarkdownLoader) Load(ctx context.Context) ([]rag.Document, error) {
	data, modified, err := readFile(ctx, l.path)
	if err != nil {
		return nil, err
	}

	title, content, err := extractText(RenderMarkdown(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.path, err)
	}
	if content == "" {
		return nil, nil
	}
	return []rag.Document{l.opts.document(l.path, title, content, "md", modified)}, nil
}

// HTMLLoader loads an HTML file
type HTMLLoader struct {
	path string
	opts options
}

// NewHTMLLoader creates an HTMLLoader
func NewHTMLLoader(path string, opts ...Option) *HTMLLoader {
	return &HTMLLoader{path: path, opts: newOptions(opts)}
}

// Load reads the file into one record titled by its first heading, or by
// the <title> element when the body has no heading
func (l *HTMLLoader) Load(ctx context.Context) ([]rag.Document, error) {
	data, modified, err := readFile(ctx, l.path)
	if err != nil {
		return nil, err
	}

	raw, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.path, err)
	}
	pageTitle := collapse(raw.Find("title").First().Text())

	title, content, err := extractText(Sanitize(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.path, err)
	}
	if content == "" {
		return nil, nil
	}
	if title == "" {
		title = pageTitle
	}
	return []rag.Document{l.opts.document(l.path, title, content, "html", modified)}, nil
}

// RenderMarkdown converts Markdown to sanitized HTML
func RenderMarkdown(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return Sanitize(markdown.Render(doc, renderer))
}

// Sanitize strips scripts, styles and unsafe attributes from HTML
func Sanitize(page []byte) []byte {
	return bluemonday.UGCPolicy().SanitizeBytes(page)
}

// extractText returns the first heading and the newline-joined text of every
// block element. List items holding paragraphs are read through those paragraphs.
func extractText(page []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", "", err
	}

	title := collapse(doc.Find(headings).First().Text())

	var lines []string
	doc.Find(textBlock).Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li, pre").Length() > 0 {
			return
		}
		if text := collapse(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	return title, strings.Join(lines, "\n"), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
