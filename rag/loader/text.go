package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/hrrag/rag"
)

// TextLoader loads a plain text file. The first non-blank line is the title.
type TextLoader struct {
	path string
	opts options
}

// NewTextLoader creates a TextLoader
func NewTextLoader(path string, opts ...Option) *TextLoader {
	return &TextLoader{path: path, opts: newOptions(opts)}
}

// Load reads the file into one record, or one record per paragraph with
// WithParagraphs. Blank files yield no records.
func (l *TextLoader) Load(ctx context.Context) ([]rag.Document, error) {
	data, modified, err := readFile(ctx, l.path)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if content == "" {
		return nil, nil
	}
	title, _, _ := strings.Cut(content, "\n")
	title = strings.TrimSpace(title)

	if !l.opts.paragraphs {
		return []rag.Document{l.opts.document(l.path, title, content, "txt", modified)}, nil
	}

	var docs []rag.Document
	for _, p := range strings.Split(content, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		doc := l.opts.document(l.path, title, p, "txt", modified)
		n := len(docs) + 1
		doc.ID = fmt.Sprintf("%s_p%d", doc.ID, n)
		doc.Title = fmt.Sprintf("%s (part %d)", doc.Title, n)
		docs = append(docs, doc)
	}
	return docs, nil
}
