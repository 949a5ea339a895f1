package rag

import (
	"context"
)

// Employee is a synthetic employee record
type Employee struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Department        string `json:"department"`
	JobTitle          string `json:"job_title"`
	HireDate          string `json:"hire_date"`
	Salary            int    `json:"salary,omitempty"`
	ManagerID         string `json:"manager_id,omitempty"`
	Location          string `json:"location"`
	EmploymentType    string `json:"employment_type"`
	BenefitsEnrolled  bool   `json:"benefits_enrolled"`
	PerformanceRating string `json:"performance_rating"`
	LastUpdated       string `json:"last_updated,omitempty"`
}

// Policy is an HR policy record
type Policy struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Type           string   `json:"type"`
	Content        string   `json:"content"`
	Department     string   `json:"department"`
	EffectiveDate  string   `json:"effective_date,omitempty"`
	LastUpdated    string   `json:"last_updated,omitempty"`
	Version        string   `json:"version,omitempty"`
	ApprovalStatus string   `json:"approval_status,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	DocType        string   `json:"doc_type,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	AppliesTo      string   `json:"applies_to,omitempty"`
}

// Document is a general HR document such as a form, guide or procedure
type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	DocType     string   `json:"doc_type"`
	Department  string   `json:"department"`
	CreatedDate string   `json:"created_date,omitempty"`
	LastUpdated string   `json:"last_updated,omitempty"`
	Author      string   `json:"author,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Status      string   `json:"status,omitempty"`
	FileType    string   `json:"file_type,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Relationship is a directed, typed link between two record identifiers
type Relationship struct {
	From       string         `json:"from"`
	To         string         `json:"to"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Department names a department node
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Dataset bundles the records fed into the retrieval engines.
// Relationships and Departments are optional.
type Dataset struct {
	Employees     []Employee     `json:"employees"`
	Policies      []Policy       `json:"policies"`
	Documents     []Document     `json:"documents"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Departments   []Department   `json:"departments,omitempty"`
}

// RecordCount returns the number of employee, policy and document records
func (d *Dataset) RecordCount() int {
	if d == nil {
		return 0
	}
	return len(d.Employees) + len(d.Policies) + len(d.Documents)
}

// Chunk is a bounded slice of a record's text tagged with the record's metadata
type Chunk struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResult is a ranked hit from the embedding index
type SearchResult struct {
	Rank       int            `json:"rank"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Score      float64        `json:"score"`
	Similarity float64        `json:"similarity"`
}

// ExternalResult is an entity or document returned by an external search capability
type ExternalResult struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Description         string         `json:"description"`
	DetailedDescription string         `json:"detailed_description,omitempty"`
	Types               []string       `json:"types,omitempty"`
	Confidence          float64        `json:"confidence"`
	URL                 string         `json:"url,omitempty"`
	Source              string         `json:"source,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// Embedder converts text into fixed-dimension vectors
type Embedder interface {
	// EmbedDocument embeds a single text
	EmbedDocument(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments embeds a batch of texts, preserving order
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// GetDimension returns the vector dimension
	GetDimension() int
}

// ExternalSearcher is a search capability backed by a service outside the core,
// either a live API client or a deterministic mock.
type ExternalSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]ExternalResult, error)
}
