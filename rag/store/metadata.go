package store

import (
	"github.com/smallnest/hrrag/rag"
)

// Record type tags carried in every metadata map
const (
	TypeEmployee = "employee"
	TypePolicy   = "policy"
	TypeDocument = "document"
)

func employeeChunkMetadata(e rag.Employee) map[string]any {
	return map[string]any{
		"type":       TypeEmployee,
		"id":         e.ID,
		"name":       e.Name,
		"department": e.Department,
		"source":     "employee_data",
	}
}

func policyChunkMetadata(p rag.Policy) map[string]any {
	return map[string]any{
		"type":       TypePolicy,
		"id":         p.ID,
		"title":      p.Title,
		"department": rag.Or(p.Department, rag.AllValues),
		"priority":   rag.Or(p.Priority, "Medium"),
		"source":     "policy_document",
	}
}

func documentChunkMetadata(d rag.Document) map[string]any {
	return map[string]any{
		"type":       TypeDocument,
		"id":         d.ID,
		"title":      d.Title,
		"doc_type":   rag.Or(d.DocType, "Document"),
		"department": rag.Or(d.Department, rag.AllValues),
		"source":     "hr_document",
	}
}

func employeeEntryMetadata(e rag.Employee, now string) map[string]any {
	return map[string]any{
		"type":            TypeEmployee,
		"id":              e.ID,
		"name":            e.Name,
		"department":      e.Department,
		"job_title":       e.JobTitle,
		"location":        e.Location,
		"employment_type": e.EmploymentType,
		"source":          "employee_data",
		"last_updated":    rag.Or(e.LastUpdated, now),
	}
}

func policyEntryMetadata(p rag.Policy, now string) map[string]any {
	return map[string]any{
		"type":           TypePolicy,
		"id":             p.ID,
		"title":          p.Title,
		"policy_type":    p.Type,
		"department":     rag.Or(p.Department, rag.AllValues),
		"priority":       rag.Or(p.Priority, "Medium"),
		"doc_type":       "Policy",
		"effective_date": p.EffectiveDate,
		"version":        p.Version,
		"source":         "policy_document",
		"last_updated":   rag.Or(p.LastUpdated, now),
	}
}

func documentEntryMetadata(d rag.Document, now string) map[string]any {
	return map[string]any{
		"type":         TypeDocument,
		"id":           d.ID,
		"title":        d.Title,
		"doc_type":     rag.Or(d.DocType, "Document"),
		"department":   rag.Or(d.Department, rag.AllValues),
		"priority":     rag.Or(d.Priority, "Medium"),
		"author":       d.Author,
		"status":       rag.Or(d.Status, "Active"),
		"source":       "hr_document",
		"last_updated": rag.Or(d.LastUpdated, now),
	}
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
