package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/hrrag/rag"
	"github.com/tmc/langchaingo/documentloaders"
)

// CSVLoader loads a CSV export with one record per row. Each record's
// content is the row as "column: value" lines; a "title" column, when
// present, becomes the title.
type CSVLoader struct {
	path    string
	columns []string
	opts    options
}

// NewCSVLoader creates a CSVLoader. Without columns every column is kept.
func NewCSVLoader(path string, columns []string, opts ...Option) *CSVLoader {
	return &CSVLoader{path: path, columns: columns, opts: newOptions(opts)}
}

// Load parses the file through langchaingo's CSV loader
func (l *CSVLoader) Load(ctx context.Context) ([]rag.Document, error) {
	data, modified, err := readFile(ctx, l.path)
	if err != nil {
		return nil, err
	}

	prefix := l.opts.id
	if prefix == "" {
		prefix = documentID(l.path)
	}
	lc := rag.NewLangChainDocumentLoader(
		documentloaders.NewCSV(bytes.NewReader(data), l.columns...),
		l.opts.docType, l.opts.department,
	).WithIDPrefix(prefix)

	rows, err := lc.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.path, err)
	}

	docs := make([]rag.Document, len(rows))
	for i, row := range rows {
		doc := l.opts.document(l.path, "", row.Content, "csv", modified)
		doc.ID = row.ID
		doc.Title = fmt.Sprintf("%s (row %d)", doc.Title, i+1)
		if title := columnValue(row.Content, "title"); title != "" {
			doc.Title = title
		}
		docs[i] = doc
	}
	return docs, nil
}

// columnValue finds the "name: value" line for a column
func columnValue(content, name string) string {
	for line := range strings.SplitSeq(content, "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if ok && strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
