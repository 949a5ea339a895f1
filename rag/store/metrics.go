package store

import (
	"sort"

	"github.com/smallnest/hrrag/rag"
)

// NetworkMetrics are whole-graph measures on the undirected view
type NetworkMetrics struct {
	Density    float64 `json:"density"`
	Clustering float64 `json:"clustering"`
	Diameter   int     `json:"diameter"`
}

// CalculateNetworkMetrics computes density, average clustering coefficient and
// diameter of the simple undirected graph. A disconnected graph has diameter 0.
func (g *PropertyGraph) CalculateNetworkMetrics() (NetworkMetrics, error) {
	if !g.built {
		return NetworkMetrics{}, rag.ErrNotBuilt
	}

	adj := g.undirected()
	n := len(adj)
	var m NetworkMetrics

	edges := 0
	for _, neighbors := range adj {
		edges += len(neighbors)
	}
	edges /= 2
	if n > 1 {
		m.Density = float64(edges) / (float64(n) * float64(n-1) / 2)
	}

	var sum float64
	for i := range adj {
		sum += clustering(adj, i)
	}
	if n > 0 {
		m.Clustering = sum / float64(n)
	}

	m.Diameter = diameter(adj)
	return m, nil
}

func clustering(adj [][]int, i int) float64 {
	d := len(adj[i])
	if d < 2 {
		return 0
	}
	neighbors := make(map[int]bool, d)
	for _, j := range adj[i] {
		neighbors[j] = true
	}
	links := 0
	for _, j := range adj[i] {
		for _, k := range adj[j] {
			if k > j && neighbors[k] {
				links++
			}
		}
	}
	return float64(links) / (float64(d) * float64(d-1) / 2)
}

// diameter is the longest shortest path, or 0 when the graph is disconnected
func diameter(adj [][]int) int {
	longest := 0
	dist := make([]int, len(adj))
	for s := range adj {
		for i := range dist {
			dist[i] = -1
		}
		dist[s] = 0
		queue := []int{s}
		reached := 1
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			for _, j := range adj[i] {
				if dist[j] == -1 {
					dist[j] = dist[i] + 1
					longest = max(longest, dist[j])
					reached++
					queue = append(queue, j)
				}
			}
		}
		if reached < len(adj) {
			return 0
		}
	}
	return longest
}

// Centrality is the degree centrality of one node
type Centrality struct {
	ID         string  `json:"id"`
	Node       string  `json:"node"`
	Centrality float64 `json:"centrality"`
}

// CalculateCentrality returns the ten nodes with the highest degree
// centrality, counting incoming and outgoing edges. Ties keep insertion order.
func (g *PropertyGraph) CalculateCentrality() ([]Centrality, error) {
	if !g.built {
		return nil, rag.ErrNotBuilt
	}

	n := len(g.nodes)
	scores := make([]Centrality, n)
	for i, node := range g.nodes {
		c := 1.0
		if n > 1 {
			c = float64(len(g.out[i])+len(g.in[i])) / float64(n-1)
		}
		scores[i] = Centrality{ID: node.ID, Node: node.Name, Centrality: c}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Centrality > scores[j].Centrality
	})
	if len(scores) > 10 {
		scores = scores[:10]
	}
	return scores, nil
}

// Visualization defaults and node colors by type
const (
	DefaultVisualNodes = 20
	DefaultVisualEdges = 30
	visualNodeSize     = 20
)

var nodeColors = map[string]string{
	NodeEmployee:   "#FF6B6B",
	NodeDepartment: "#4ECDC4",
	NodePolicy:     "#45B7D1",
}

const unknownNodeColor = "#96CEB4"

// VisualNode is a drawable node descriptor
type VisualNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
	Size  int    `json:"size"`
}

// VisualEdge is a drawable edge descriptor
type VisualEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// Visualization is a sample of the graph for a presentation layer
type Visualization struct {
	Nodes []VisualNode `json:"nodes"`
	Edges []VisualEdge `json:"edges"`
}

// VisualizationData returns the first maxNodes nodes and maxEdges edges in
// insertion order. Non-positive limits use the defaults.
func (g *PropertyGraph) VisualizationData(maxNodes, maxEdges int) (Visualization, error) {
	if !g.built {
		return Visualization{}, rag.ErrNotBuilt
	}
	if maxNodes <= 0 {
		maxNodes = DefaultVisualNodes
	}
	if maxEdges <= 0 {
		maxEdges = DefaultVisualEdges
	}

	v := Visualization{
		Nodes: make([]VisualNode, 0, min(maxNodes, len(g.nodes))),
		Edges: make([]VisualEdge, 0, min(maxEdges, len(g.edges))),
	}
	for _, n := range g.nodes[:min(maxNodes, len(g.nodes))] {
		color, ok := nodeColors[n.Type]
		if !ok {
			color = unknownNodeColor
		}
		label := n.Name
		if label == "" {
			label = n.ID
		}
		v.Nodes = append(v.Nodes, VisualNode{ID: n.ID, Label: label, Color: color, Size: visualNodeSize})
	}
	for _, e := range g.edges[:min(maxEdges, len(g.edges))] {
		v.Edges = append(v.Edges, VisualEdge{
			From:  g.nodes[e.Source].ID,
			To:    g.nodes[e.Target].ID,
			Label: e.Type,
		})
	}
	return v, nil
}
