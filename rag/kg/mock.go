package kg

import (
	"context"
	"sort"
	"strings"

	"github.com/smallnest/hrrag/rag"
)

// SourceMock tags results produced by MockSearcher
const SourceMock = "mock_knowledge_graph"

var mockEntities = []rag.ExternalResult{
	{
		ID:          "kg_entity_1",
		Name:        "Employment Law",
		Description: "Legal framework governing employer-employee relationships",
		Types:       []string{"Thing", "Concept"},
		URL:         "https://example.com/employment-law",
	},
	{
		ID:          "kg_entity_2",
		Name:        "GDPR",
		Description: "General Data Protection Regulation for data privacy",
		Types:       []string{"Thing", "Regulation"},
		URL:         "https://example.com/gdpr",
	},
	{
		ID:          "kg_entity_3",
		Name:        "Remote Work",
		Description: "Work arrangement allowing employees to work from locations outside the office",
		Types:       []string{"Thing", "Concept"},
		URL:         "https://example.com/remote-work",
	},
	{
		ID:          "kg_entity_4",
		Name:        "Employee Benefits",
		Description: "Non-wage compensation provided to employees",
		Types:       []string{"Thing", "Concept"},
		URL:         "https://example.com/employee-benefits",
	},
	{
		ID:          "kg_entity_5",
		Name:        "Human Resources",
		Description: "Department responsible for managing employee relations and policies",
		Types:       []string{"Organization", "Department"},
		URL:         "https://example.com/human-resources",
	},
	{
		ID:          "kg_entity_6",
		Name:        "Performance Management",
		Description: "Process of ensuring employees meet organizational goals",
		Types:       []string{"Thing", "Process"},
		URL:         "https://example.com/performance-management",
	},
	{
		ID:          "kg_entity_7",
		Name:        "Workplace Safety",
		Description: "Practices and policies to ensure employee safety at work",
		Types:       []string{"Thing", "Concept"},
		URL:         "https://example.com/workplace-safety",
	},
	{
		ID:          "kg_entity_8",
		Name:        "Diversity and Inclusion",
		Description: "Organizational efforts to create an inclusive workplace",
		Types:       []string{"Thing", "Concept"},
		URL:         "https://example.com/diversity-inclusion",
	},
}

// MockSearcher is a deterministic, offline entity searcher
type MockSearcher struct {
	entities []rag.ExternalResult
}

// NewMockSearcher creates a mock over the built-in HR concepts
func NewMockSearcher() *MockSearcher {
	return &MockSearcher{entities: mockEntities}
}

// Search implements rag.ExternalSearcher
func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]rag.ExternalResult, error) {
	return m.Lookup(ctx, Query{Text: query, Limit: limit})
}

// Lookup scores entities by substring matches of the query: 2 for the name,
// 1 for the description and 1 per matching type. Confidence is score/3
// capped at 1. Types, languages and the confidence threshold are ignored.
func (m *MockSearcher) Lookup(ctx context.Context, q Query) ([]rag.ExternalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.ToLower(q.Text)
	var results []rag.ExternalResult
	for _, e := range m.entities {
		score := 0
		if strings.Contains(strings.ToLower(e.Name), text) {
			score += 2
		}
		if strings.Contains(strings.ToLower(e.Description), text) {
			score++
		}
		for _, t := range e.Types {
			if strings.Contains(strings.ToLower(t), text) {
				score++
			}
		}
		if score == 0 {
			continue
		}

		r := e
		r.Types = append([]string(nil), e.Types...)
		r.Confidence = min(float64(score)/3, 1)
		r.Source = SourceMock
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	if limit := q.limit(); len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// EntityDetails returns the entity with id
func (m *MockSearcher) EntityDetails(id string) (rag.ExternalResult, bool) {
	for _, e := range m.entities {
		if e.ID == id {
			e.Types = append([]string(nil), e.Types...)
			e.Source = SourceMock
			return e, true
		}
	}
	return rag.ExternalResult{}, false
}

// TypeDistribution counts entities per type
func (m *MockSearcher) TypeDistribution() map[string]int {
	counts := make(map[string]int)
	for _, e := range m.entities {
		for _, t := range e.Types {
			counts[t]++
		}
	}
	return counts
}
