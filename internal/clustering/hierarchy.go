package clustering

import (
	"math"
	"sort"
)

// MergeNode is one merge event of the single-linkage dendrogram. Node ids below
// the point count are leaves; merge i creates node n+i.
type MergeNode struct {
	Left     int
	Right    int
	Distance float64
	Size     int
}

// Dendrogram is the single-linkage merge tree built from a spanning tree.
type Dendrogram struct {
	NumPoints int
	Merges    []MergeNode
}

// unionFind tracks the current top-level dendrogram node of every component.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(nodes, points int) *unionFind {
	uf := &unionFind{
		parent: make([]int, nodes),
		size:   make([]int, nodes),
	}
	for i := range uf.parent {
		uf.parent[i] = i
		if i < points {
			uf.size[i] = 1
		}
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	root := x
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	// Path compression
	for uf.parent[x] != root {
		next := uf.parent[x]
		uf.parent[x] = root
		x = next
	}
	return root
}

// union attaches both roots under the new node id.
func (uf *unionFind) union(a, b, node int) {
	uf.parent[a] = node
	uf.parent[b] = node
	uf.size[node] = uf.size[a] + uf.size[b]
}

// SingleLinkage converts spanning-tree edges into a dendrogram. Edges are
// processed ascending by weight under the edgeLess total order.
func SingleLinkage(edges []Edge, n int) *Dendrogram {
	d := &Dendrogram{NumPoints: n}
	if n < 2 {
		return d
	}

	uf := newUnionFind(2*n-1, n)
	d.Merges = make([]MergeNode, 0, n-1)
	next := n
	for _, e := range sortEdges(edges) {
		left, right := uf.find(e.A), uf.find(e.B)
		if left == right {
			continue
		}
		uf.union(left, right, next)
		d.Merges = append(d.Merges, MergeNode{
			Left:     left,
			Right:    right,
			Distance: e.Weight,
			Size:     uf.size[next],
		})
		next++
	}
	return d
}

// Root returns the id of the top dendrogram node.
func (d *Dendrogram) Root() int {
	if d.NumPoints < 2 {
		return 0
	}
	return d.NumPoints + len(d.Merges) - 1
}

// Size returns the number of points under a node.
func (d *Dendrogram) Size(node int) int {
	if node < d.NumPoints {
		return 1
	}
	return d.Merges[node-d.NumPoints].Size
}

// Leaves returns the point ids under a node in left-to-right order.
func (d *Dendrogram) Leaves(node int) []int {
	var leaves []int
	stack := []int{node}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top < d.NumPoints {
			leaves = append(leaves, top)
			continue
		}
		m := d.Merges[top-d.NumPoints]
		stack = append(stack, m.Right, m.Left)
	}
	return leaves
}

// PointExit records the lambda at which a point leaves a condensed cluster.
type PointExit struct {
	Point  int
	Lambda float64
}

// CondensedCluster is a node of the condensed tree: a cluster that persists from
// BirthLambda until it splits into child clusters or runs out of points.
type CondensedCluster struct {
	ID          int
	Parent      int // -1 for the root
	BirthLambda float64
	Size        int
	Children    []int
	Points      []PointExit // points that fall out of this cluster directly
}

// CondensedTree is the dendrogram pruned of splits that produce branches
// smaller than MinClusterSize. Cluster ids are assigned top-down, so a child
// always has a larger id than its parent. The root has id 0.
type CondensedTree struct {
	NumPoints      int
	MinClusterSize int
	Clusters       []CondensedCluster
}

// lambdaOf converts a merge distance to lambda = 1/distance. Zero distance maps
// to the largest finite float so stability sums never produce NaN.
func lambdaOf(distance float64) float64 {
	if distance <= 0 {
		return math.MaxFloat64
	}
	return 1 / distance
}

// distanceOf is the inverse of lambdaOf.
func distanceOf(lambda float64) float64 {
	if lambda <= 0 {
		return math.Inf(1)
	}
	return 1 / lambda
}

// splitChildren returns the subtrees a node separates into at its own merge
// distance. Chained merges at exactly that distance happen at once, so they
// collapse into one multi-way split; the result then depends only on which
// points are connected below the distance and not on how ties were ordered.
func (d *Dendrogram) splitChildren(node int) []int {
	n := d.NumPoints
	distance := d.Merges[node-n].Distance

	var children []int
	stack := []int{node}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top >= n && d.Merges[top-n].Distance == distance {
			m := d.Merges[top-n]
			stack = append(stack, m.Right, m.Left)
			continue
		}
		children = append(children, top)
	}
	return children
}

// Condense walks the dendrogram top-down. A node splits into every component
// formed at its merge distance. Components with at least minClusterSize points
// are large; the points of the small ones fall out of the current cluster at
// that lambda. Two or more large components become child clusters, a single
// large component keeps the current cluster's identity, and with none left
// every point has fallen out.
func Condense(d *Dendrogram, minClusterSize int) *CondensedTree {
	n := d.NumPoints
	tree := &CondensedTree{
		NumPoints:      n,
		MinClusterSize: minClusterSize,
	}
	if n == 0 {
		return tree
	}

	tree.Clusters = append(tree.Clusters, CondensedCluster{ID: 0, Parent: -1, Size: n})

	root := d.Root()
	relabel := make([]int, n+len(d.Merges))
	for i := range relabel {
		relabel[i] = -1
	}
	relabel[root] = 0

	queue := []int{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		cluster := relabel[node]

		if node < n {
			// A cluster made of a single point
			tree.addPoint(cluster, node, tree.Clusters[cluster].BirthLambda)
			continue
		}

		lambda := lambdaOf(d.Merges[node-n].Distance)

		var large []int
		for _, child := range d.splitChildren(node) {
			if d.Size(child) >= minClusterSize {
				large = append(large, child)
				continue
			}
			for _, p := range d.Leaves(child) {
				tree.addPoint(cluster, p, lambda)
			}
		}

		switch len(large) {
		case 0:
		case 1:
			relabel[large[0]] = cluster
			queue = append(queue, large[0])
		default:
			for _, child := range large {
				relabel[child] = tree.addCluster(cluster, lambda, d.Size(child))
				queue = append(queue, child)
			}
		}
	}

	return tree
}

func (t *CondensedTree) addCluster(parent int, birth float64, size int) int {
	id := len(t.Clusters)
	t.Clusters = append(t.Clusters, CondensedCluster{
		ID:          id,
		Parent:      parent,
		BirthLambda: birth,
		Size:        size,
	})
	t.Clusters[parent].Children = append(t.Clusters[parent].Children, id)
	return id
}

func (t *CondensedTree) addPoint(cluster, point int, lambda float64) {
	t.Clusters[cluster].Points = append(t.Clusters[cluster].Points, PointExit{Point: point, Lambda: lambda})
}

// Stabilities returns the excess-of-mass stability of every condensed cluster:
// the sum over resident points of (lambda_exit - lambda_birth), where a child
// cluster counts as its size leaving at the child's birth lambda. Terms are
// summed in ascending order so the result does not depend on point order.
func (t *CondensedTree) Stabilities() []float64 {
	stability := make([]float64, len(t.Clusters))
	var terms []float64
	for i, c := range t.Clusters {
		terms = terms[:0]
		for _, p := range c.Points {
			terms = append(terms, p.Lambda-c.BirthLambda)
		}
		for _, childID := range c.Children {
			child := t.Clusters[childID]
			terms = append(terms, float64(child.Size)*(child.BirthLambda-c.BirthLambda))
		}
		sort.Float64s(terms)

		var s float64
		for _, term := range terms {
			s += term
		}
		stability[i] = s
	}
	return stability
}

// descendants returns every cluster id strictly below id.
func (t *CondensedTree) descendants(id int) []int {
	var out []int
	stack := append([]int(nil), t.Clusters[id].Children...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, top)
		stack = append(stack, t.Clusters[top].Children...)
	}
	return out
}
