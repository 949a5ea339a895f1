package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smallnest/hrrag/rag"
)

// Loader produces HR document records from some source
type Loader interface {
	Load(ctx context.Context) ([]rag.Document, error)
}

// Option configures the records a loader produces
type Option func(*options)

type options struct {
	id         string
	docType    string
	department string
	author     string
	priority   string
	status     string
	tags       []string
	paragraphs bool
}

func newOptions(opts []Option) options {
	o := options{
		docType:    "Document",
		department: rag.AllValues,
		status:     "Active",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithID overrides the generated document id
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithDocType sets the document type, default "Document"
func WithDocType(docType string) Option {
	return func(o *options) {
		o.docType = docType
	}
}

// WithDepartment sets the owning department, default "All"
func WithDepartment(department string) Option {
	return func(o *options) {
		o.department = department
	}
}

// WithAuthor sets the author
func WithAuthor(author string) Option {
	return func(o *options) {
		o.author = author
	}
}

// WithPriority sets the priority
func WithPriority(priority string) Option {
	return func(o *options) {
		o.priority = priority
	}
}

// WithStatus sets the status, default "Active"
func WithStatus(status string) Option {
	return func(o *options) {
		o.status = status
	}
}

// WithTags sets the tags
func WithTags(tags ...string) Option {
	return func(o *options) {
		o.tags = tags
	}
}

// WithParagraphs makes TextLoader emit one record per blank-line separated paragraph
func WithParagraphs() Option {
	return func(o *options) {
		o.paragraphs = true
	}
}

// documentID derives "doc_<name>" from a file path, lowercased with
// non-alphanumerics folded to underscores
func documentID(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return "doc_" + b.String()
}

func (o options) document(path, title, content, fileType string, modified time.Time) rag.Document {
	id := o.id
	if id == "" {
		id = documentID(path)
	}
	date := modified.Format(time.DateOnly)
	return rag.Document{
		ID:          id,
		Title:       rag.Or(title, filepath.Base(path)),
		Content:     content,
		DocType:     o.docType,
		Department:  o.department,
		CreatedDate: date,
		LastUpdated: date,
		Author:      o.author,
		Priority:    o.priority,
		Status:      o.status,
		FileType:    fileType,
		Tags:        append([]string(nil), o.tags...),
	}
}

func readFile(ctx context.Context, path string) ([]byte, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read %s: %w", path, err)
	}
	return data, info.ModTime(), nil
}

// LoadDataset runs every loader and collects the records into a dataset.
// The first failure aborts the load.
func LoadDataset(ctx context.Context, loaders ...Loader) (*rag.Dataset, error) {
	ds := &rag.Dataset{}
	for _, l := range loaders {
		docs, err := l.Load(ctx)
		if err != nil {
			return nil, err
		}
		ds.Documents = append(ds.Documents, docs...)
	}
	return ds, nil
}
