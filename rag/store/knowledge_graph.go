package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
)

// Node types
const (
	NodeEmployee   = "Employee"
	NodePolicy     = "Policy"
	NodeDepartment = "Department"
)

// Heuristic relationship types
const (
	RelWorksIn   = "WORKS_IN"
	RelManages   = "MANAGES"
	RelAppliesTo = "APPLIES_TO"
)

// Node is a graph vertex. Attributes holds the direct fields (name, title,
// department, ...) and Properties the full source record.
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
	Properties map[string]any `json:"properties"`
}

// Edge is a directed, typed relationship between two nodes of the arena
type Edge struct {
	Source     int
	Target     int
	Type       string
	Properties map[string]any
}

// PropertyGraph is an in-memory directed multigraph over HR records.
// Nodes and edges live in flat slices and refer to each other by index.
type PropertyGraph struct {
	name   string
	logger log.Logger

	nodes []Node
	edges []Edge
	index map[string]int
	out   [][]int
	in    [][]int

	dropped int
	built   bool
}

// GraphOption configures a PropertyGraph
type GraphOption func(*PropertyGraph)

// WithGraphLogger sets the logger
func WithGraphLogger(logger log.Logger) GraphOption {
	return func(g *PropertyGraph) {
		g.logger = logger
	}
}

// NewPropertyGraph creates an unbuilt graph
func NewPropertyGraph(name string, opts ...GraphOption) *PropertyGraph {
	g := &PropertyGraph{name: name}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.GetDefaultLogger()
	}
	g.Reset()
	return g
}

// Name returns the graph name
func (g *PropertyGraph) Name() string {
	return g.name
}

// IsBuilt reports whether the graph can be queried
func (g *PropertyGraph) IsBuilt() bool {
	return g.built
}

// Reset drops every node and edge and returns the graph to unbuilt
func (g *PropertyGraph) Reset() {
	g.nodes = nil
	g.edges = nil
	g.index = make(map[string]int)
	g.out = nil
	g.in = nil
	g.dropped = 0
	g.built = false
}

// BuildGraph replaces the graph with nodes for every employee, policy and
// department in ds. Edges come from ds.Relationships when present, otherwise
// they are derived from the records. Edges whose endpoints do not exist are
// dropped.
func (g *PropertyGraph) BuildGraph(ds *rag.Dataset) error {
	if ds == nil {
		return rag.ErrEmptyCorpus
	}

	// build into a fresh graph so a failed build keeps the current one
	b := NewPropertyGraph(g.name, WithGraphLogger(g.logger))

	for _, e := range ds.Employees {
		b.addNode(Node{
			ID:   e.ID,
			Type: NodeEmployee,
			Name: e.Name,
			Attributes: map[string]any{
				"name":       e.Name,
				"department": e.Department,
				"job_title":  e.JobTitle,
				"email":      e.Email,
				"location":   e.Location,
			},
			Properties: employeeProperties(e),
		})
	}
	for _, p := range ds.Policies {
		b.addNode(Node{
			ID:   p.ID,
			Type: NodePolicy,
			Name: p.Title,
			Attributes: map[string]any{
				"title":       p.Title,
				"policy_type": p.Type,
				"department":  p.Department,
			},
			Properties: policyProperties(p),
		})
	}

	departments := make(map[string]int)
	addDepartment := func(id, name string) {
		if name == "" || name == rag.AllValues {
			return
		}
		key := strings.ToLower(name)
		if _, ok := departments[key]; ok {
			return
		}
		if id == "" {
			id = departmentID(name)
		}
		departments[key] = b.addNode(Node{
			ID:         id,
			Type:       NodeDepartment,
			Name:       name,
			Attributes: map[string]any{"name": name},
			Properties: map[string]any{"name": name},
		})
	}
	for _, d := range ds.Departments {
		addDepartment(d.ID, d.Name)
	}
	for _, e := range ds.Employees {
		addDepartment("", e.Department)
	}
	for _, p := range ds.Policies {
		addDepartment("", p.Department)
	}

	if len(b.nodes) == 0 {
		return rag.ErrEmptyCorpus
	}

	if len(ds.Relationships) > 0 {
		for _, r := range ds.Relationships {
			b.addEdgeByID(r.From, r.To, r.Type, r.Properties)
		}
	} else {
		b.deriveRelationships(ds, departments)
	}

	b.built = true
	*g = *b
	if b.dropped > 0 {
		g.logger.Debug("graph %s: dropped %d relationships with unknown endpoints", g.name, b.dropped)
	}
	g.logger.Info("built graph %s: %d nodes, %d relationships", g.name, len(b.nodes), len(b.edges))
	return nil
}

func (g *PropertyGraph) deriveRelationships(ds *rag.Dataset, departments map[string]int) {
	for _, e := range ds.Employees {
		dept, ok := departments[strings.ToLower(e.Department)]
		if !ok {
			continue
		}
		g.addEdgeByID(e.ID, g.nodes[dept].ID, RelWorksIn, map[string]any{"since": e.HireDate})
	}
	for _, e := range ds.Employees {
		if e.ManagerID == "" {
			continue
		}
		g.addEdgeByID(e.ManagerID, e.ID, RelManages, map[string]any{"since": e.HireDate})
	}
	for _, p := range ds.Policies {
		if p.Department == "" || p.Department == rag.AllValues {
			continue
		}
		dept, ok := departments[strings.ToLower(p.Department)]
		if !ok {
			continue
		}
		g.addEdgeByID(p.ID, g.nodes[dept].ID, RelAppliesTo, map[string]any{"effective_date": p.EffectiveDate})
	}
}

// addNode inserts n, or overwrites the node with the same id in place
func (g *PropertyGraph) addNode(n Node) int {
	if i, ok := g.index[n.ID]; ok {
		g.nodes[i] = n
		return i
	}
	i := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	g.index[n.ID] = i
	return i
}

func (g *PropertyGraph) addEdgeByID(from, to, relType string, props map[string]any) {
	s, ok := g.index[from]
	if !ok {
		g.dropped++
		return
	}
	t, ok := g.index[to]
	if !ok {
		g.dropped++
		return
	}
	if relType == "" {
		relType = "RELATED"
	}
	if props == nil {
		props = map[string]any{}
	}

	i := len(g.edges)
	g.edges = append(g.edges, Edge{Source: s, Target: t, Type: relType, Properties: props})
	g.out[s] = append(g.out[s], i)
	g.in[t] = append(g.in[t], i)
}

// GetNode returns the node with id
func (g *PropertyGraph) GetNode(id string) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	n := g.nodes[i]
	n.Attributes = copyMetadata(n.Attributes)
	n.Properties = copyMetadata(n.Properties)
	return &n, true
}

// NodeCount returns the number of nodes
func (g *PropertyGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of relationships
func (g *PropertyGraph) EdgeCount() int {
	return len(g.edges)
}

// other returns the endpoint of edge e that is not node i
func (g *PropertyGraph) other(e Edge, i int) int {
	if e.Source == i {
		return e.Target
	}
	return e.Source
}

// incident returns the indices of every edge touching node i, outgoing first
func (g *PropertyGraph) incident(i int) []int {
	edges := make([]int, 0, len(g.out[i])+len(g.in[i]))
	edges = append(edges, g.out[i]...)
	for _, e := range g.in[i] {
		if g.edges[e].Source != i {
			edges = append(edges, e)
		}
	}
	return edges
}

// resolve finds the first node whose name equals name, ignoring case
func (g *PropertyGraph) resolve(name string) (int, bool) {
	for i, n := range g.nodes {
		if strings.EqualFold(n.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// GraphContext is the neighborhood attached to a search hit
type GraphContext struct {
	Neighbors     []Neighbor            `json:"neighbors"`
	Relationships []ContextRelationship `json:"relationships"`
}

// Neighbor is a node reached while expanding a search hit
type Neighbor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Depth int    `json:"depth"`
}

// ContextRelationship is an edge seen while expanding a search hit
type ContextRelationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Depth  int    `json:"depth"`
}

// GraphResult is a scored node from SemanticSearch
type GraphResult struct {
	NodeID   string       `json:"node_id"`
	Content  string       `json:"content"`
	Score    float64      `json:"score"`
	NodeType string       `json:"node_type"`
	Context  GraphContext `json:"graph_context"`
}

// SemanticSearch scores nodes by case-insensitive substring matches of query.
// Each matching string property adds 1 and each matching name, title or
// content attribute adds 2; scores are divided by 10. Each hit carries the
// neighborhood within maxDepth hops.
func (g *PropertyGraph) SemanticSearch(query string, topK, maxDepth int) ([]GraphResult, error) {
	if !g.built {
		return nil, rag.ErrNotBuilt
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", rag.ErrInvalidArgument, topK)
	}
	if maxDepth < 1 {
		return nil, fmt.Errorf("%w: max_depth must be at least 1, got %d", rag.ErrInvalidArgument, maxDepth)
	}

	q := strings.ToLower(query)
	var results []GraphResult
	for i, n := range g.nodes {
		score := 0
		var parts []string

		for _, key := range sortedKeys(n.Properties) {
			v, ok := n.Properties[key].(string)
			if ok && strings.Contains(strings.ToLower(v), q) {
				score++
				parts = append(parts, key+": "+v)
			}
		}
		for _, key := range []string{"name", "title", "content"} {
			v, ok := n.Attributes[key].(string)
			if ok && strings.Contains(strings.ToLower(v), q) {
				score += 2
				parts = append(parts, key+": "+v)
			}
		}

		if score == 0 {
			continue
		}
		results = append(results, GraphResult{
			NodeID:   n.ID,
			Content:  strings.Join(parts, rag.FieldDelimiter),
			Score:    float64(score) / 10,
			NodeType: n.Type,
			Context:  g.context(i, maxDepth),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// context expands node start breadth-first up to maxDepth hops
func (g *PropertyGraph) context(start, maxDepth int) GraphContext {
	ctx := GraphContext{
		Neighbors:     []Neighbor{},
		Relationships: []ContextRelationship{},
	}

	depth := map[int]int{start: 0}
	seenEdge := make(map[int]bool)
	frontier := []int{start}
	for d := 1; d <= maxDepth && len(frontier) > 0; d++ {
		var next []int
		for _, i := range frontier {
			for _, ei := range g.incident(i) {
				if seenEdge[ei] {
					continue
				}
				seenEdge[ei] = true
				e := g.edges[ei]
				ctx.Relationships = append(ctx.Relationships, ContextRelationship{
					Source: g.nodes[e.Source].ID,
					Target: g.nodes[e.Target].ID,
					Type:   e.Type,
					Depth:  d,
				})

				j := g.other(e, i)
				if _, ok := depth[j]; ok {
					continue
				}
				depth[j] = d
				ctx.Neighbors = append(ctx.Neighbors, Neighbor{
					ID:    g.nodes[j].ID,
					Name:  g.nodes[j].Name,
					Type:  g.nodes[j].Type,
					Depth: d,
				})
				next = append(next, j)
			}
		}
		frontier = next
	}
	return ctx
}

// TraversalStep is one relationship recorded by TraverseRelationships,
// reported in its stored direction.
type TraversalStep struct {
	Start      string         `json:"start"`
	End        string         `json:"end"`
	StartName  string         `json:"start_name"`
	EndName    string         `json:"end_name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Depth      int            `json:"depth"`
}

// TraverseRelationships walks depth-first from the node named entityName,
// following edges of the given types in either direction for at most
// maxDepth hops. Each node is expanded once and each edge recorded once.
// An empty relTypes follows nothing.
func (g *PropertyGraph) TraverseRelationships(entityName string, relTypes []string, maxDepth int) ([]TraversalStep, error) {
	steps, _, err := g.traverse(entityName, relTypes, maxDepth)
	return steps, err
}

func (g *PropertyGraph) traverse(entityName string, relTypes []string, maxDepth int) ([]TraversalStep, []int, error) {
	if !g.built {
		return nil, nil, rag.ErrNotBuilt
	}
	if maxDepth < 1 {
		return nil, nil, fmt.Errorf("%w: max_depth must be at least 1, got %d", rag.ErrInvalidArgument, maxDepth)
	}
	start, ok := g.resolve(entityName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", rag.ErrEntityNotFound, entityName)
	}

	allowed := make(map[string]bool, len(relTypes))
	for _, t := range relTypes {
		allowed[t] = true
	}

	steps := []TraversalStep{}
	var expanded []int
	visited := make(map[int]bool)
	seenEdge := make(map[int]bool)

	var walk func(i, depth int)
	walk = func(i, depth int) {
		if depth > maxDepth || visited[i] {
			return
		}
		visited[i] = true
		expanded = append(expanded, i)

		for _, ei := range g.incident(i) {
			e := g.edges[ei]
			if !allowed[e.Type] || seenEdge[ei] {
				continue
			}
			seenEdge[ei] = true
			steps = append(steps, TraversalStep{
				Start:      g.nodes[e.Source].ID,
				End:        g.nodes[e.Target].ID,
				StartName:  g.nodes[e.Source].Name,
				EndName:    g.nodes[e.Target].Name,
				Type:       e.Type,
				Properties: copyMetadata(e.Properties),
				Depth:      depth,
			})
			walk(g.other(e, i), depth+1)
		}
	}
	walk(start, 1)

	return steps, expanded, nil
}

// PathNode is one hop of a shortest path
type PathNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// FindShortestPath returns the shortest path between the nodes named a and b,
// ignoring edge direction.
func (g *PropertyGraph) FindShortestPath(a, b string) ([]PathNode, error) {
	if !g.built {
		return nil, rag.ErrNotBuilt
	}
	src, ok := g.resolve(a)
	if !ok {
		return nil, fmt.Errorf("%w: %q", rag.ErrEntityNotFound, a)
	}
	dst, ok := g.resolve(b)
	if !ok {
		return nil, fmt.Errorf("%w: %q", rag.ErrEntityNotFound, b)
	}

	adj := g.undirected()
	parent := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}
	parent[src] = src
	queue := []int{src}
	for len(queue) > 0 && parent[dst] == -1 {
		i := queue[0]
		queue = queue[1:]
		for _, j := range adj[i] {
			if parent[j] == -1 {
				parent[j] = i
				queue = append(queue, j)
			}
		}
	}
	if parent[dst] == -1 {
		return nil, fmt.Errorf("%w: %q and %q", rag.ErrNoPath, a, b)
	}

	var rev []int
	for i := dst; i != src; i = parent[i] {
		rev = append(rev, i)
	}
	rev = append(rev, src)

	path := make([]PathNode, 0, len(rev))
	for k := len(rev) - 1; k >= 0; k-- {
		n := g.nodes[rev[k]]
		path = append(path, PathNode{ID: n.ID, Name: n.Name, Type: n.Type})
	}
	return path, nil
}

// undirected returns the simple undirected adjacency lists, without self
// loops, with neighbors in ascending index order.
func (g *PropertyGraph) undirected() [][]int {
	sets := make([]map[int]bool, len(g.nodes))
	for i := range sets {
		sets[i] = make(map[int]bool)
	}
	for _, e := range g.edges {
		if e.Source == e.Target {
			continue
		}
		sets[e.Source][e.Target] = true
		sets[e.Target][e.Source] = true
	}

	adj := make([][]int, len(g.nodes))
	for i, s := range sets {
		for j := range s {
			adj[i] = append(adj[i], j)
		}
		sort.Ints(adj[i])
	}
	return adj
}

// GraphStats summarizes the graph
type GraphStats struct {
	Status        string `json:"status"`
	Name          string `json:"name,omitempty"`
	Nodes         int    `json:"nodes"`
	Relationships int    `json:"relationships"`
	NodeTypes     int    `json:"node_types"`
	RelTypes      int    `json:"rel_types"`
	Dropped       int    `json:"dropped_relationships"`
}

// GetGraphStats reports counts. An unbuilt graph reports status "not_built".
func (g *PropertyGraph) GetGraphStats() GraphStats {
	if !g.built {
		return GraphStats{Status: "not_built", Name: g.name}
	}

	nodeTypes := make(map[string]bool)
	for _, n := range g.nodes {
		nodeTypes[n.Type] = true
	}
	relTypes := make(map[string]bool)
	for _, e := range g.edges {
		relTypes[e.Type] = true
	}
	return GraphStats{
		Status:        "built",
		Name:          g.name,
		Nodes:         len(g.nodes),
		Relationships: len(g.edges),
		NodeTypes:     len(nodeTypes),
		RelTypes:      len(relTypes),
		Dropped:       g.dropped,
	}
}

// PatternCount is the number of edges of one relationship type
type PatternCount struct {
	RelationshipType string `json:"relationship_type"`
	Count            int    `json:"count"`
}

// AnalyzeRelationshipPatterns counts edges per type, in first-seen order
func (g *PropertyGraph) AnalyzeRelationshipPatterns() ([]PatternCount, error) {
	if !g.built {
		return nil, rag.ErrNotBuilt
	}

	pos := make(map[string]int)
	var patterns []PatternCount
	for _, e := range g.edges {
		i, ok := pos[e.Type]
		if !ok {
			i = len(patterns)
			pos[e.Type] = i
			patterns = append(patterns, PatternCount{RelationshipType: e.Type})
		}
		patterns[i].Count++
	}
	return patterns, nil
}

func departmentID(name string) string {
	return "dept_" + strings.ToLower(name)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func employeeProperties(e rag.Employee) map[string]any {
	props := map[string]any{
		"id":                 e.ID,
		"name":               e.Name,
		"email":              e.Email,
		"department":         e.Department,
		"job_title":          e.JobTitle,
		"hire_date":          e.HireDate,
		"location":           e.Location,
		"employment_type":    e.EmploymentType,
		"benefits_enrolled":  e.BenefitsEnrolled,
		"performance_rating": e.PerformanceRating,
	}
	if e.Salary > 0 {
		props["salary"] = e.Salary
	}
	if e.ManagerID != "" {
		props["manager_id"] = e.ManagerID
	}
	return props
}

func policyProperties(p rag.Policy) map[string]any {
	props := map[string]any{
		"id":         p.ID,
		"title":      p.Title,
		"type":       p.Type,
		"content":    p.Content,
		"department": p.Department,
	}
	for k, v := range map[string]string{
		"effective_date":  p.EffectiveDate,
		"last_updated":    p.LastUpdated,
		"version":         p.Version,
		"approval_status": p.ApprovalStatus,
		"priority":        p.Priority,
		"applies_to":      p.AppliesTo,
	} {
		if v != "" {
			props[k] = v
		}
	}
	if len(p.Tags) > 0 {
		props["tags"] = p.Tags
	}
	return props
}
