package store

import (
	"sort"

	"github.com/smallnest/hrrag/rag"
)

// Community detection algorithms
const (
	Louvain             = "Louvain"
	LabelPropagation    = "Label Propagation"
	ConnectedComponents = "Connected Components"
)

const maxCommunityRounds = 100

// DetectCommunities groups node names with the named algorithm on the
// undirected graph. Groups are ordered by their first node and members keep
// insertion order. An unknown algorithm groups nodes by type.
func (g *PropertyGraph) DetectCommunities(algorithm string) ([][]string, error) {
	if !g.built {
		return nil, rag.ErrNotBuilt
	}

	var labels []int
	switch algorithm {
	case Louvain:
		labels = louvain(g.undirected())
	case LabelPropagation:
		labels = labelPropagation(g.undirected())
	case ConnectedComponents:
		labels = components(g.undirected())
	default:
		g.logger.Warn("unknown community algorithm %q, grouping by node type", algorithm)
		labels = g.typeLabels()
	}
	return g.groupNames(labels), nil
}

func (g *PropertyGraph) typeLabels() []int {
	ids := make(map[string]int)
	labels := make([]int, len(g.nodes))
	for i, n := range g.nodes {
		id, ok := ids[n.Type]
		if !ok {
			id = len(ids)
			ids[n.Type] = id
		}
		labels[i] = id
	}
	return labels
}

func (g *PropertyGraph) groupNames(labels []int) [][]string {
	pos := make(map[int]int)
	var groups [][]string
	for i, l := range labels {
		k, ok := pos[l]
		if !ok {
			k = len(groups)
			pos[l] = k
			groups = append(groups, nil)
		}
		name := g.nodes[i].Name
		if name == "" {
			name = g.nodes[i].ID
		}
		groups[k] = append(groups[k], name)
	}
	return groups
}

func components(adj [][]int) []int {
	labels := make([]int, len(adj))
	for i := range labels {
		labels[i] = -1
	}
	for s := range adj {
		if labels[s] != -1 {
			continue
		}
		labels[s] = s
		queue := []int{s}
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			for _, j := range adj[i] {
				if labels[j] == -1 {
					labels[j] = s
					queue = append(queue, j)
				}
			}
		}
	}
	return labels
}

// labelPropagation updates nodes in index order, adopting the most frequent
// neighbor label. A node keeps its label when it is among the most frequent,
// otherwise ties go to the smallest label.
func labelPropagation(adj [][]int) []int {
	labels := make([]int, len(adj))
	for i := range labels {
		labels[i] = i
	}

	for round := 0; round < maxCommunityRounds; round++ {
		changed := false
		for i, neighbors := range adj {
			if len(neighbors) == 0 {
				continue
			}
			counts := make(map[int]int)
			best := 0
			for _, j := range neighbors {
				counts[labels[j]]++
				best = max(best, counts[labels[j]])
			}
			if counts[labels[i]] == best {
				continue
			}
			next := -1
			for l, c := range counts {
				if c == best && (next == -1 || l < next) {
					next = l
				}
			}
			labels[i] = next
			changed = true
		}
		if !changed {
			break
		}
	}
	return labels
}

// weighted is a symmetric weighted graph; w[i][i] holds twice the internal
// weight of an aggregated community.
type weighted []map[int]float64

// louvain runs modularity-maximizing local moves followed by aggregation
// until no node changes community. Nodes are visited in index order and only
// move on a strict gain; equal gains go to the smallest community.
func louvain(adj [][]int) []int {
	n := len(adj)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}

	w := make(weighted, n)
	var m2 float64
	for i, neighbors := range adj {
		w[i] = make(map[int]float64, len(neighbors))
		for _, j := range neighbors {
			w[i][j] = 1
			m2++
		}
	}
	if m2 == 0 {
		return labels
	}

	for level := 0; level < maxCommunityRounds; level++ {
		comm, moved := louvainLevel(w, m2)
		if !moved {
			break
		}

		// renumber communities in order of first member
		renum := make(map[int]int)
		for _, c := range comm {
			if _, ok := renum[c]; !ok {
				renum[c] = len(renum)
			}
		}
		for i := range labels {
			labels[i] = renum[comm[labels[i]]]
		}

		next := make(weighted, len(renum))
		for c := range next {
			next[c] = make(map[int]float64)
		}
		for i, row := range w {
			ci := renum[comm[i]]
			for j, wt := range row {
				next[ci][renum[comm[j]]] += wt
			}
		}
		w = next
	}
	return labels
}

func louvainLevel(w weighted, m2 float64) ([]int, bool) {
	n := len(w)
	comm := make([]int, n)
	k := make([]float64, n)
	tot := make([]float64, n)
	for i, row := range w {
		comm[i] = i
		for _, wt := range row {
			k[i] += wt
		}
		tot[i] = k[i]
	}

	movedAny := false
	for pass := 0; pass < maxCommunityRounds; pass++ {
		moved := false
		for i := 0; i < n; i++ {
			ci := comm[i]
			tot[ci] -= k[i]

			links := make(map[int]float64)
			for j, wt := range w[i] {
				if j != i {
					links[comm[j]] += wt
				}
			}
			candidates := make([]int, 0, len(links))
			for c := range links {
				candidates = append(candidates, c)
			}
			sort.Ints(candidates)

			best := ci
			bestGain := links[ci] - tot[ci]*k[i]/m2
			for _, c := range candidates {
				if c == ci {
					continue
				}
				gain := links[c] - tot[c]*k[i]/m2
				if gain > bestGain {
					best, bestGain = c, gain
				}
			}

			comm[i] = best
			tot[best] += k[i]
			if best != ci {
				moved = true
				movedAny = true
			}
		}
		if !moved {
			break
		}
	}
	return comm, movedAny
}
