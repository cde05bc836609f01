package clustering

import "sort"

// Edge is an undirected weighted edge with A < B.
type Edge struct {
	A      int
	B      int
	Weight float64
}

func newEdge(a, b int, w float64) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b, Weight: w}
}

// edgeLess is the total order used for every tie: weight, then lower endpoint,
// then higher endpoint. Runs over the same input are therefore reproducible.
func edgeLess(x, y Edge) bool {
	if x.Weight != y.Weight {
		return x.Weight < y.Weight
	}
	if x.A != y.A {
		return x.A < y.A
	}
	return x.B < y.B
}

// MinimumSpanningTree runs Prim's algorithm over the dense reachability graph,
// starting from vertex 0. It returns n-1 edges in the order they joined the tree.
func MinimumSpanningTree(g *ReachabilityGraph) []Edge {
	n := g.Len()
	if n < 2 {
		return nil
	}

	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range from {
		from[i] = -1
	}

	edges := make([]Edge, 0, n-1)
	current := 0
	inTree[current] = true

	for len(edges) < n-1 {
		// Relax edges out of the vertex that just joined
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			candidate := newEdge(current, j, g.Weight(current, j))
			if from[j] < 0 || edgeLess(candidate, newEdge(from[j], j, best[j])) {
				best[j] = candidate.Weight
				from[j] = current
			}
		}

		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			if next < 0 || edgeLess(newEdge(from[j], j, best[j]), newEdge(from[next], next, best[next])) {
				next = j
			}
		}

		inTree[next] = true
		edges = append(edges, newEdge(from[next], next, best[next]))
		current = next
	}

	return edges
}

// sortEdges orders edges ascending by the edgeLess total order.
func sortEdges(edges []Edge) []Edge {
	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool {
		return edgeLess(sorted[i], sorted[j])
	})
	return sorted
}
