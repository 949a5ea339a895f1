package store

import (
	"context"
	"errors"

	"github.com/smallnest/hrrag/rag"
	"github.com/smallnest/hrrag/rag/embedder"
)

// vocabEmbedder counts occurrences of a fixed vocabulary, one dimension per word
type vocabEmbedder struct {
	vocab []string
	calls int
}

func newVocabEmbedder() *vocabEmbedder {
	return &vocabEmbedder{vocab: []string{"vacation", "policy", "engineering", "remote", "employee", "hr"}}
}

func (v *vocabEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(v.vocab))
	for _, tok := range embedder.Tokenize(text) {
		for i, w := range v.vocab {
			if tok == w {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (v *vocabEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	v.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = v.EmbedDocument(ctx, t)
	}
	return out, nil
}

func (v *vocabEmbedder) GetDimension() int {
	return len(v.vocab)
}

type failingEmbedder struct {
	dim int
}

func (f *failingEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func (f *failingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func (f *failingEmbedder) GetDimension() int {
	return f.dim
}

// testDataset has three employees and two policies
func testDataset() *rag.Dataset {
	return &rag.Dataset{
		Employees: []rag.Employee{
			{ID: "emp_001", Name: "Alice Johnson", Email: "alice.johnson@company.com", Department: "Engineering",
				JobTitle: "Engineering Manager", HireDate: "2019-03-01", Location: "New York",
				EmploymentType: "Full-time", PerformanceRating: "Exceeds Expectations"},
			{ID: "emp_002", Name: "Bob Smith", Email: "bob.smith@company.com", Department: "Engineering",
				JobTitle: "Software Engineer", HireDate: "2021-06-15", ManagerID: "emp_001", Location: "Remote",
				EmploymentType: "Full-time", PerformanceRating: "Meets Expectations"},
			{ID: "emp_003", Name: "Carol White", Email: "carol.white@company.com", Department: "HR",
				JobTitle: "HR Specialist", HireDate: "2020-01-10", Location: "Chicago",
				EmploymentType: "Part-time", PerformanceRating: "Meets Expectations"},
		},
		Policies: []rag.Policy{
			{ID: "pol_001", Title: "Vacation Policy", Type: "Leave", Department: "All", Priority: "High",
				Content: "Employees receive 20 days of paid vacation each year. Vacation requests need manager approval."},
			{ID: "pol_002", Title: "Remote Work Policy", Type: "Work", Department: "Engineering",
				EffectiveDate: "2023-01-01",
				Content:       "Engineering staff may work remotely up to three days per week."},
		},
	}
}
