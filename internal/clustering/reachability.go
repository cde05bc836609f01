package clustering

// ReachabilityGraph is the complete graph over a point set weighted by mutual
// reachability distance. Weights are computed on demand so the graph costs O(n)
// memory beyond the points themselves.
type ReachabilityGraph struct {
	points [][]float64
	core   []float64
	dist   DistanceFunc
}

// NewReachabilityGraph builds the graph from points and their core distances.
func NewReachabilityGraph(points [][]float64, core []float64, dist DistanceFunc) *ReachabilityGraph {
	return &ReachabilityGraph{
		points: points,
		core:   core,
		dist:   dist,
	}
}

// Len returns the number of vertices.
func (g *ReachabilityGraph) Len() int {
	return len(g.points)
}

// Weight returns max(core(a), core(b), d(a, b)). The self-weight is zero.
func (g *ReachabilityGraph) Weight(a, b int) float64 {
	if a == b {
		return 0
	}
	return mutualReachability(g.core[a], g.core[b], g.dist(g.points[a], g.points[b]))
}
