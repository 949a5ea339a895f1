package enterprise

import (
	"context"
	"sort"
	"strings"

	"github.com/smallnest/hrrag/rag"
)

// SourceDataStore tags results produced by MockDataStore
const SourceDataStore = "mock_data_store"

// Document is a searchable entry of the enterprise data store
type Document struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// MockDataStore keeps documents in memory and scores them by substring
// matches: 3 for the title, 2 for the content and 1 per string metadata value.
type MockDataStore struct {
	docs []Document
}

// NewMockDataStore creates an empty data store
func NewMockDataStore() *MockDataStore {
	return &MockDataStore{}
}

// Replace swaps the stored documents for docs
func (m *MockDataStore) Replace(docs []Document) {
	m.docs = append([]Document(nil), docs...)
}

// Add appends documents
func (m *MockDataStore) Add(docs ...Document) {
	m.docs = append(m.docs, docs...)
}

// Clear removes every document
func (m *MockDataStore) Clear() {
	m.docs = nil
}

// Documents returns the stored documents in insertion order
func (m *MockDataStore) Documents() []Document {
	return append([]Document(nil), m.docs...)
}

// Len returns the number of stored documents
func (m *MockDataStore) Len() int {
	return len(m.docs)
}

// Search implements rag.ExternalSearcher. Confidence is the match score over 6,
// capped at 1. Equal scores keep insertion order.
func (m *MockDataStore) Search(ctx context.Context, query string, limit int) ([]rag.ExternalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	type scored struct {
		doc   Document
		score int
	}
	var hits []scored
	for _, d := range m.docs {
		score := 0
		if strings.Contains(strings.ToLower(d.Title), q) {
			score += 3
		}
		if strings.Contains(strings.ToLower(d.Content), q) {
			score += 2
		}
		for _, v := range d.Metadata {
			if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), q) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{d, score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]rag.ExternalResult, len(hits))
	for i, h := range hits {
		meta := make(map[string]any, len(h.doc.Metadata))
		for k, v := range h.doc.Metadata {
			meta[k] = v
		}
		results[i] = rag.ExternalResult{
			ID:          h.doc.ID,
			Name:        h.doc.Title,
			Description: h.doc.Content,
			Confidence:  min(float64(h.score)/6, 1),
			Source:      SourceDataStore,
			Metadata:    meta,
		}
	}
	return results, nil
}

// DocumentsFromDataset converts HR records into data store documents
func DocumentsFromDataset(ds *rag.Dataset) []Document {
	if ds == nil {
		return nil
	}

	docs := make([]Document, 0, ds.RecordCount())
	for _, e := range ds.Employees {
		docs = append(docs, Document{
			ID:      "emp_" + e.ID,
			Title:   "Employee: " + e.Name,
			Content: employeeContent(e),
			Metadata: map[string]any{
				"type":       "employee",
				"department": e.Department,
				"job_title":  e.JobTitle,
			},
		})
	}
	for _, p := range ds.Policies {
		docs = append(docs, Document{
			ID:      "policy_" + p.ID,
			Title:   p.Title,
			Content: p.Content,
			Metadata: map[string]any{
				"type":       "policy",
				"department": rag.Or(p.Department, rag.AllValues),
				"priority":   rag.Or(p.Priority, "Medium"),
			},
		})
	}
	for _, d := range ds.Documents {
		docs = append(docs, Document{
			ID:      "doc_" + d.ID,
			Title:   d.Title,
			Content: d.Content,
			Metadata: map[string]any{
				"type":       "document",
				"doc_type":   rag.Or(d.DocType, "Document"),
				"department": rag.Or(d.Department, rag.AllValues),
			},
		})
	}
	return docs
}

func employeeContent(e rag.Employee) string {
	return strings.Join([]string{
		"Employee Name: " + e.Name,
		"Department: " + e.Department,
		"Job Title: " + e.JobTitle,
		"Email: " + e.Email,
		"Location: " + e.Location,
		"Employment Type: " + e.EmploymentType,
		"Hire Date: " + e.HireDate,
		"Performance Rating: " + e.PerformanceRating,
	}, rag.FieldDelimiter)
}
