package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
)

// LangChainEmbedder adapts langchaingo's embeddings.Embedder to our Embedder interface
type LangChainEmbedder struct {
	embedder embeddings.Embedder

	once      sync.Once
	dimension int
}

// NewLangChainEmbedder creates a new adapter for langchaingo embedders.
// dimension may be 0, in which case it is probed on first use.
func NewLangChainEmbedder(embedder embeddings.Embedder, dimension int) *LangChainEmbedder {
	return &LangChainEmbedder{
		embedder:  embedder,
		dimension: dimension,
	}
}

// EmbedDocument embeds a single text using the underlying langchaingo embedder
func (l *LangChainEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	embedding, err := l.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("langchain embed query: %w", err)
	}

	result := make([]float32, len(embedding))
	for i, val := range embedding {
		result[i] = float32(val)
	}
	return result, nil
}

// EmbedDocuments embeds multiple texts using the underlying langchaingo embedder
func (l *LangChainEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := l.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("langchain embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("langchain returned %d embeddings for %d texts", len(vectors), len(texts))
	}

	result := make([][]float32, len(vectors))
	for i, embedding := range vectors {
		result[i] = make([]float32, len(embedding))
		for j, val := range embedding {
			result[i][j] = float32(val)
		}
	}
	return result, nil
}

// GetDimension returns the embedding dimension, probing the model once if unknown
func (l *LangChainEmbedder) GetDimension() int {
	l.once.Do(func() {
		if l.dimension > 0 {
			return
		}
		probe, err := l.embedder.EmbedQuery(context.Background(), "dimension probe")
		if err == nil {
			l.dimension = len(probe)
		}
	})
	return l.dimension
}

// LangChainDocumentLoader turns the output of any langchaingo document loader
// into HR document records.
type LangChainDocumentLoader struct {
	loader     documentloaders.Loader
	docType    string
	department string
	idPrefix   string
}

// NewLangChainDocumentLoader creates a new adapter for langchaingo document loaders
func NewLangChainDocumentLoader(loader documentloaders.Loader, docType, department string) *LangChainDocumentLoader {
	return &LangChainDocumentLoader{
		loader:     loader,
		docType:    Or(docType, "Document"),
		department: Or(department, AllValues),
		idPrefix:   "lc",
	}
}

// WithIDPrefix sets the prefix of generated ids, default "lc"
func (l *LangChainDocumentLoader) WithIDPrefix(prefix string) *LangChainDocumentLoader {
	l.idPrefix = Or(prefix, "lc")
	return l
}

// Load loads documents using the underlying langchaingo loader
func (l *LangChainDocumentLoader) Load(ctx context.Context) ([]Document, error) {
	schemaDocs, err := l.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("langchain load: %w", err)
	}

	return l.convert(schemaDocs), nil
}

func (l *LangChainDocumentLoader) convert(schemaDocs []schema.Document) []Document {
	docs := make([]Document, 0, len(schemaDocs))
	for _, sd := range schemaDocs {
		content := strings.TrimSpace(sd.PageContent)
		if content == "" {
			continue
		}
		id := fmt.Sprintf("%s_%03d", l.idPrefix, len(docs)+1)

		title := MetadataString(sd.Metadata, "title")
		if title == "" {
			title = MetadataString(sd.Metadata, "source")
		}
		if title == "" {
			title = id
		}

		docs = append(docs, Document{
			ID:         id,
			Title:      title,
			Content:    content,
			DocType:    l.docType,
			Department: l.department,
			Status:     "Active",
			FileType:   "text",
		})
	}
	return docs
}
