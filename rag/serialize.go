package rag

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldDelimiter joins labeled fields in the text form of a record
const FieldDelimiter = " | "

// EmployeeText renders an employee as searchable text
func EmployeeText(e Employee) string {
	parts := []string{
		"Employee: " + e.Name,
		"Department: " + e.Department,
		"Job Title: " + e.JobTitle,
		"Email: " + e.Email,
		"Location: " + e.Location,
		"Employment Type: " + e.EmploymentType,
		"Hire Date: " + e.HireDate,
		"Performance Rating: " + e.PerformanceRating,
	}
	if e.Salary > 0 {
		parts = append(parts, "Salary: $"+groupThousands(e.Salary))
	}
	return strings.Join(parts, FieldDelimiter)
}

// PolicyText renders a policy as searchable text
func PolicyText(p Policy) string {
	return strings.Join([]string{
		"Policy: " + p.Title,
		"Type: " + p.Type,
		"Department: " + p.Department,
		"Priority: " + p.Priority,
		"Content: " + p.Content,
	}, FieldDelimiter)
}

// DocumentText renders a document as searchable text
func DocumentText(d Document) string {
	return strings.Join([]string{
		"Document: " + d.Title,
		"Type: " + d.DocType,
		"Department: " + d.Department,
		"Content: " + d.Content,
	}, FieldDelimiter)
}

// groupThousands formats n with comma separators, e.g. 85000 -> "85,000"
func groupThousands(n int) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

// Or returns value, or fallback when value is empty
func Or(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// MetadataString reads a string metadata value, formatting non-string values
func MetadataString(metadata map[string]any, key string) string {
	v, ok := metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
