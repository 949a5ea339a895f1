package generator

import (
	"strings"

	"github.com/smallnest/hrrag/rag"
)

// ComplianceDoc is a regulatory document
type ComplianceDoc struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Regulation string `json:"regulation"`
	Mandatory  bool   `json:"mandatory"`
}

// TrainingMaterial is a training course
type TrainingMaterial struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	DurationHours int    `json:"duration_hours"`
	Mandatory     bool   `json:"mandatory"`
}

// OrgUnit summarizes one department
type OrgUnit struct {
	HeadCount int      `json:"head_count"`
	ManagerID string   `json:"manager_id,omitempty"`
	Employees []string `json:"employees"`
}

// EnterpriseData extends the comprehensive dataset with compliance documents,
// training materials and an org structure
type EnterpriseData struct {
	*rag.Dataset
	Compliance   []ComplianceDoc    `json:"compliance_docs"`
	Training     []TrainingMaterial `json:"training_materials"`
	OrgStructure map[string]OrgUnit `json:"org_structure"`
}

// Enterprise generates comprehensive data plus enterprise extras
func (g *Generator) Enterprise(numEmployees, numPolicies int) (*EnterpriseData, error) {
	ds, err := g.Comprehensive(numEmployees, numPolicies)
	if err != nil {
		return nil, err
	}
	return &EnterpriseData{
		Dataset: ds,
		Compliance: []ComplianceDoc{
			{ID: "comp_001", Title: "GDPR Compliance Guide", Content: "Guidelines for handling personal data in compliance with GDPR regulations.", Regulation: "GDPR", Mandatory: true},
			{ID: "comp_002", Title: "SOX Compliance Procedures", Content: "Sarbanes-Oxley compliance procedures for financial reporting.", Regulation: "SOX", Mandatory: true},
		},
		Training: []TrainingMaterial{
			{ID: "train_001", Title: "Diversity and Inclusion Training", Content: "Comprehensive training on creating an inclusive workplace.", DurationHours: 4, Mandatory: true},
			{ID: "train_002", Title: "Cybersecurity Awareness", Content: "Training on identifying and preventing cybersecurity threats.", DurationHours: 2, Mandatory: true},
		},
		OrgStructure: orgStructure(ds.Employees),
	}, nil
}

// orgStructure groups employees by department. The manager is the first
// employee whose title contains "Manager".
func orgStructure(employees []rag.Employee) map[string]OrgUnit {
	units := make(map[string]OrgUnit, len(Departments))
	for _, d := range Departments {
		u := OrgUnit{Employees: []string{}}
		for _, e := range employees {
			if e.Department != d {
				continue
			}
			u.HeadCount++
			u.Employees = append(u.Employees, e.ID)
			if u.ManagerID == "" && strings.Contains(e.JobTitle, "Manager") {
				u.ManagerID = e.ID
			}
		}
		units[d] = u
	}
	return units
}

// AllDocuments returns the generated documents followed by the compliance
// documents and training materials as HR document records
func (d *EnterpriseData) AllDocuments() []rag.Document {
	docs := append([]rag.Document(nil), d.Documents...)
	for _, c := range d.Compliance {
		docs = append(docs, rag.Document{
			ID:         c.ID,
			Title:      c.Title,
			Content:    c.Content,
			DocType:    "Compliance",
			Department: rag.AllValues,
			Status:     "Active",
			Tags:       []string{"compliance", strings.ToLower(c.Regulation)},
		})
	}
	for _, t := range d.Training {
		docs = append(docs, rag.Document{
			ID:         t.ID,
			Title:      t.Title,
			Content:    t.Content,
			DocType:    "Training",
			Department: rag.AllValues,
			Status:     "Active",
			Tags:       []string{"training"},
		})
	}
	return docs
}
