// Package generator produces synthetic HR data for demos and tests. The same
// seed and clock always yield the same records.
package generator

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/smallnest/hrrag/rag"
)

// Departments lists the generated departments in a fixed order
var Departments = []string{"Engineering", "HR", "Finance", "Marketing", "Sales", "Operations", "Legal"}

var jobTitles = map[string][]string{
	"Engineering": {"Software Engineer", "Senior Engineer", "Tech Lead", "Engineering Manager", "DevOps Engineer"},
	"HR":          {"HR Specialist", "HR Manager", "Recruiter", "HR Director", "Benefits Coordinator"},
	"Finance":     {"Financial Analyst", "Accountant", "Finance Manager", "CFO", "Controller"},
	"Marketing":   {"Marketing Specialist", "Content Manager", "Marketing Director", "Brand Manager"},
	"Sales":       {"Sales Representative", "Account Manager", "Sales Director", "Business Development"},
	"Operations":  {"Operations Manager", "Project Manager", "Operations Director", "Coordinator"},
	"Legal":       {"Legal Counsel", "Paralegal", "Legal Director", "Compliance Officer"},
}

var (
	firstNames = []string{"John", "Jane", "Michael", "Sarah", "David", "Emily", "Robert", "Lisa",
		"James", "Maria", "William", "Jennifer", "Richard", "Patricia", "Charles"}
	lastNames = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez"}

	locations       = []string{"New York", "San Francisco", "Chicago", "Austin", "Remote"}
	employmentTypes = []string{"Full-time", "Part-time", "Contract"}
	ratings         = []string{"Exceeds", "Meets", "Below", "Outstanding"}
	priorities      = []string{"High", "Medium", "Low"}
	appliesTo       = []string{"All Employees", "Full-time Only", "Managers Only"}

	policyTypes = []string{"Vacation", "Sick Leave", "Remote Work", "Benefits", "Code of Conduct",
		"Safety", "Training", "Performance", "Compensation", "Diversity"}
	documentTypes = []string{"Policy", "Procedure", "Form", "Guide", "Manual"}
)

var policyContents = map[string]string{
	"Vacation":        "Employees are entitled to paid vacation time based on their length of service. New employees receive 10 days annually, increasing to 15 days after 2 years and 20 days after 5 years. Vacation requests must be submitted at least 2 weeks in advance and approved by the direct manager.",
	"Sick Leave":      "All employees are provided with sick leave benefits. Full-time employees accrue 8 hours of sick leave per month. Sick leave can be used for personal illness, medical appointments, or caring for immediate family members. A doctor's note may be required for absences exceeding 3 consecutive days.",
	"Remote Work":     "The company supports flexible work arrangements including remote work options. Employees may work remotely up to 3 days per week with manager approval. Remote work agreements must be documented and reviewed quarterly. All remote workers must maintain reliable internet and appropriate workspace.",
	"Benefits":        "The company provides comprehensive benefits including health insurance, dental, vision, 401(k) with company matching, life insurance, and disability coverage. Benefits enrollment occurs during the annual open enrollment period or within 30 days of hire. Contact HR for detailed benefit information.",
	"Code of Conduct": "All employees must maintain the highest standards of professional conduct. This includes treating colleagues with respect, maintaining confidentiality, avoiding conflicts of interest, and complying with all applicable laws and regulations. Violations may result in disciplinary action up to and including termination.",
	"Safety":          "Employee safety is our top priority. All employees must follow safety protocols, report hazards immediately, and participate in required safety training. Personal protective equipment will be provided where necessary. Emergency procedures are posted throughout the facility.",
	"Training":        "The company is committed to employee development through various training programs. All employees must complete mandatory compliance training annually. Professional development opportunities are available with manager approval. Training records are maintained by HR.",
	"Performance":     "Performance evaluations are conducted annually for all employees. Goals are set at the beginning of each year and progress is reviewed quarterly. Performance ratings directly impact compensation adjustments and career advancement opportunities.",
	"Compensation":    "Compensation is based on job responsibilities, performance, market rates, and internal equity. Salary reviews occur annually as part of the performance evaluation process. The company maintains a merit-based pay philosophy with opportunities for advancement.",
	"Diversity":       "The company is committed to fostering a diverse and inclusive workplace. We prohibit discrimination based on race, gender, age, religion, sexual orientation, or any other protected characteristic. Diversity training is mandatory for all employees and managers.",
}

var documentTemplates = map[string][]string{
	"Form": {
		"Time Off Request Form - Use this form to request vacation, sick leave, or personal time off.",
		"Expense Reimbursement Form - Submit business expenses for reimbursement using this form.",
		"Performance Review Form - Annual performance evaluation form for employees and managers.",
		"Training Request Form - Request approval for external training or conference attendance.",
		"IT Equipment Request - Request new computer equipment or software licenses.",
	},
	"Guide": {
		"New Employee Onboarding Guide - Complete guide for new hires covering first day procedures, benefits enrollment, and company culture.",
		"Manager's Handbook - Comprehensive guide for managers covering hiring, performance management, and employee relations.",
		"Benefits Enrollment Guide - Step-by-step guide for selecting and enrolling in company benefits.",
		"Remote Work Setup Guide - Instructions for setting up a productive home office environment.",
		"Emergency Procedures Guide - Safety procedures and emergency contact information.",
	},
	"Procedure": {
		"Hiring Procedure - Step-by-step process for recruiting, interviewing, and hiring new employees.",
		"Disciplinary Action Procedure - Guidelines for addressing performance and conduct issues.",
		"Grievance Procedure - Process for employees to file complaints and seek resolution.",
		"Promotion Procedure - Criteria and process for employee promotions and career advancement.",
		"Exit Interview Procedure - Process for conducting exit interviews with departing employees.",
	},
}

// Generator produces synthetic HR records. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// Option configures a Generator
type Option func(*Generator)

// WithClock sets the reference time for generated dates
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// New creates a generator seeded with seed
func New(seed uint64, opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) pick(values []string) string {
	return values[g.rng.IntN(len(values))]
}

// between returns a uniform integer in [lo, hi]
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) daysAgo(lo, hi int) string {
	return g.now().AddDate(0, 0, -g.between(lo, hi)).Format(time.RFC3339)
}

func validate(counts ...int) error {
	for _, n := range counts {
		if n < 0 {
			return fmt.Errorf("%w: negative record count %d", rag.ErrInvalidArgument, n)
		}
	}
	return nil
}

// Comprehensive generates employees, policies and twice as many documents as policies
func (g *Generator) Comprehensive(numEmployees, numPolicies int) (*rag.Dataset, error) {
	if err := validate(numEmployees, numPolicies); err != nil {
		return nil, err
	}
	return &rag.Dataset{
		Employees: g.Employees(numEmployees),
		Policies:  g.Policies(numPolicies),
		Documents: g.Documents(numPolicies * 2),
	}, nil
}

// Graph generates employees and policies together with department records
// and the WORKS_IN, MANAGES and APPLIES_TO relationships between them
func (g *Generator) Graph(numEmployees, numPolicies int) (*rag.Dataset, error) {
	if err := validate(numEmployees, numPolicies); err != nil {
		return nil, err
	}

	ds := &rag.Dataset{
		Employees: g.Employees(numEmployees),
		Policies:  g.Policies(numPolicies),
	}
	for _, d := range Departments {
		ds.Departments = append(ds.Departments, rag.Department{ID: DepartmentID(d), Name: d})
	}
	ds.Relationships = Relationships(ds.Employees, ds.Policies)
	return ds, nil
}

// DepartmentID returns the node id of a department, e.g. "dept_engineering"
func DepartmentID(name string) string {
	return "dept_" + strings.ToLower(name)
}

// Employees generates n employees. Employee i > 0 reports to a random
// earlier employee; the first has no manager.
func (g *Generator) Employees(n int) []rag.Employee {
	now := g.now().Format(time.RFC3339)
	out := make([]rag.Employee, 0, n)
	for i := range n {
		dept := g.pick(Departments)
		e := rag.Employee{
			ID:                fmt.Sprintf("emp_%03d", i+1),
			Name:              g.pick(firstNames) + " " + g.pick(lastNames),
			Email:             fmt.Sprintf("employee%d@company.com", i+1),
			Department:        dept,
			JobTitle:          g.pick(jobTitles[dept]),
			HireDate:          g.daysAgo(30, 1825),
			Salary:            g.between(50000, 150000),
			Location:          g.pick(locations),
			EmploymentType:    g.pick(employmentTypes),
			BenefitsEnrolled:  g.rng.IntN(2) == 1,
			PerformanceRating: g.pick(ratings),
			LastUpdated:       now,
		}
		if i > 0 {
			e.ManagerID = fmt.Sprintf("emp_%03d", g.between(1, i))
		}
		out = append(out, e)
	}
	return out
}

// Policies generates n policies with types drawn at random
func (g *Generator) Policies(n int) []rag.Policy {
	out := make([]rag.Policy, 0, n)
	for i := range n {
		pt := g.pick(policyTypes)
		out = append(out, rag.Policy{
			ID:             fmt.Sprintf("policy_%03d", i+1),
			Title:          pt + " Policy",
			Type:           pt,
			Content:        policyContents[pt],
			Department:     g.pick(append(Departments[:len(Departments):len(Departments)], rag.AllValues)),
			EffectiveDate:  g.daysAgo(30, 365),
			LastUpdated:    g.daysAgo(1, 30),
			Version:        fmt.Sprintf("v%d.%d", g.between(1, 5), g.between(0, 9)),
			ApprovalStatus: "Approved",
			Priority:       g.pick(priorities),
			DocType:        "Policy",
			Tags:           []string{strings.ToLower(pt), "hr", "policy"},
			AppliesTo:      g.pick(appliesTo),
		})
	}
	return out
}

// Documents generates n forms, guides, procedures, policies and manuals
func (g *Generator) Documents(n int) []rag.Document {
	out := make([]rag.Document, 0, n)
	for i := range n {
		dt := g.pick(documentTypes)

		content := fmt.Sprintf("This is a %s document containing important HR information and procedures.", strings.ToLower(dt))
		title := fmt.Sprintf("%s Document %d", dt, i+1)
		if templates, ok := documentTemplates[dt]; ok {
			content = g.pick(templates)
			title, _, _ = strings.Cut(content, " - ")
		}

		out = append(out, rag.Document{
			ID:          fmt.Sprintf("doc_%03d", i+1),
			Title:       title,
			Content:     content,
			DocType:     dt,
			Department:  g.pick(append(Departments[:len(Departments):len(Departments)], rag.AllValues)),
			CreatedDate: g.daysAgo(1, 365),
			LastUpdated: g.daysAgo(1, 30),
			Author:      "HR Team",
			Priority:    g.pick(priorities),
			Status:      "Active",
			FileType:    "text",
			Tags:        []string{strings.ToLower(dt), "hr", "documentation"},
		})
	}
	return out
}

// Relationships links employees to departments and managers, and policies to
// the department they apply to. Policies for "All" get no edge.
func Relationships(employees []rag.Employee, policies []rag.Policy) []rag.Relationship {
	var rels []rag.Relationship
	for _, e := range employees {
		rels = append(rels, rag.Relationship{
			From:       e.ID,
			To:         DepartmentID(e.Department),
			Type:       "WORKS_IN",
			Properties: map[string]any{"since": e.HireDate},
		})
	}
	for _, e := range employees {
		if e.ManagerID == "" {
			continue
		}
		rels = append(rels, rag.Relationship{
			From:       e.ManagerID,
			To:         e.ID,
			Type:       "MANAGES",
			Properties: map[string]any{"since": e.HireDate},
		})
	}
	for _, p := range policies {
		if p.Department == "" || p.Department == rag.AllValues {
			continue
		}
		rels = append(rels, rag.Relationship{
			From:       p.ID,
			To:         DepartmentID(p.Department),
			Type:       "APPLIES_TO",
			Properties: map[string]any{"effective_date": p.EffectiveDate},
		})
	}
	return rels
}
