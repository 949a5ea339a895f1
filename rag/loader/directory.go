package loader

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/smallnest/hrrag/rag"
)

// DirectoryLoader loads every Markdown, HTML, text and CSV file under a directory.
// Files are visited in lexical order; other extensions are skipped.
type DirectoryLoader struct {
	root string
	opts []Option
}

// NewDirectoryLoader creates a DirectoryLoader. opts apply to every file.
func NewDirectoryLoader(root string, opts ...Option) *DirectoryLoader {
	return &DirectoryLoader{root: root, opts: opts}
}

// Load walks the directory tree
func (l *DirectoryLoader) Load(ctx context.Context) ([]rag.Document, error) {
	var docs []rag.Document
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		loader := ForFile(path, l.opts...)
		if loader == nil {
			return nil
		}
		loaded, err := loader.Load(ctx)
		if err != nil {
			return err
		}
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load directory %s: %w", l.root, err)
	}
	return docs, nil
}

// ForFile picks a loader by file extension, or returns nil for unsupported files
func ForFile(path string, opts ...Option) Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return NewMarkdownLoader(path, opts...)
	case ".html", ".htm":
		return NewHTMLLoader(path, opts...)
	case ".txt":
		return NewTextLoader(path, opts...)
	case ".csv":
		return NewCSVLoader(path, nil, opts...)
	}
	return nil
}
