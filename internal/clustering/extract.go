package clustering

import (
	"fmt"
	"sort"

	"watchtrail/internal/core"
)

// SelectionMethod picks the flat clustering out of the condensed tree.
type SelectionMethod string

const (
	SelectionExcessOfMass SelectionMethod = "excess_of_mass"
	SelectionEpsilon      SelectionMethod = "epsilon"
)

// ParseSelectionMethod accepts the canonical names plus the short "eom" alias.
func ParseSelectionMethod(s string) (SelectionMethod, error) {
	switch s {
	case "", string(SelectionExcessOfMass), "eom":
		return SelectionExcessOfMass, nil
	case string(SelectionEpsilon):
		return SelectionEpsilon, nil
	default:
		return "", fmt.Errorf("%w: unknown cluster selection method %q", ErrInvalidConfig, s)
	}
}

// rootSelectable reports whether the root may be returned as a cluster.
func (t *CondensedTree) rootSelectable(allowSingle bool) bool {
	return allowSingle && len(t.Clusters) > 0 && t.Clusters[0].Size >= t.MinClusterSize
}

// SelectExcessOfMass walks the tree bottom-up. A cluster is kept over its
// children when its own stability is at least the summed stability of the
// clusters selected beneath it; ties favour the parent. The root only competes
// when allowSingle is set.
func (t *CondensedTree) SelectExcessOfMass(allowSingle bool) []bool {
	selected := make([]bool, len(t.Clusters))
	stability := t.Stabilities()

	// Children always carry larger ids than their parent
	for id := len(t.Clusters) - 1; id >= 0; id-- {
		if id == 0 && !t.rootSelectable(allowSingle) {
			continue
		}
		c := t.Clusters[id]

		childSum := sumChildren(stability, c.Children)

		if len(c.Children) > 0 && childSum > stability[id] {
			stability[id] = childSum
			continue
		}

		selected[id] = true
		for _, sub := range t.descendants(id) {
			selected[sub] = false
		}
	}

	return selected
}

// sumChildren adds the children's stabilities smallest first, so sibling order
// never changes the comparison with the parent.
func sumChildren(stability []float64, children []int) float64 {
	values := make([]float64, len(children))
	for i, child := range children {
		values[i] = stability[child]
	}
	sort.Float64s(values)

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

// SelectEpsilon starts from the excess-of-mass selection and replaces every
// selected cluster born below the distance threshold with its nearest ancestor
// born at or above it. Clusters never merge into the root unless allowSingle is set.
func (t *CondensedTree) SelectEpsilon(epsilon float64, allowSingle bool) []bool {
	base := t.SelectExcessOfMass(allowSingle)
	if epsilon <= 0 {
		return base
	}

	selected := make([]bool, len(t.Clusters))
	processed := make([]bool, len(t.Clusters))

	for id := range t.Clusters {
		if !base[id] {
			continue
		}
		if distanceOf(t.Clusters[id].BirthLambda) >= epsilon {
			selected[id] = true
			continue
		}
		if processed[id] {
			continue
		}

		target := t.ancestorAtEpsilon(id, epsilon, allowSingle)
		selected[target] = true
		for _, sub := range t.descendants(target) {
			processed[sub] = true
		}
	}

	// Keep the selection an antichain
	for id := range t.Clusters {
		if !selected[id] {
			continue
		}
		for _, sub := range t.descendants(id) {
			selected[sub] = false
		}
	}

	return selected
}

// ancestorAtEpsilon climbs from id until it reaches a cluster whose birth
// distance is at least epsilon. It stops below the root unless allowSingle.
func (t *CondensedTree) ancestorAtEpsilon(id int, epsilon float64, allowSingle bool) int {
	for {
		parent := t.Clusters[id].Parent
		if parent <= 0 {
			if parent == 0 && t.rootSelectable(allowSingle) {
				return 0
			}
			return id
		}
		if distanceOf(t.Clusters[parent].BirthLambda) >= epsilon {
			return parent
		}
		id = parent
	}
}

// Label maps every point to the selected cluster containing it, or to noise.
// Selected clusters are numbered in ascending condensed-tree id order.
// The returned ids slice maps each label back to its condensed cluster.
func (t *CondensedTree) Label(selected []bool) (labels []int, ids []int) {
	labels = make([]int, t.NumPoints)
	for i := range labels {
		labels[i] = core.NoiseLabel
	}

	labelOf := make([]int, len(t.Clusters))
	for id := range t.Clusters {
		labelOf[id] = core.NoiseLabel
		if selected[id] {
			labelOf[id] = len(ids)
			ids = append(ids, id)
		}
	}

	// resolved[c] is the selected cluster at or above c, or -1
	resolved := make([]int, len(t.Clusters))
	for id, c := range t.Clusters {
		switch {
		case selected[id]:
			resolved[id] = id
		case c.Parent < 0:
			resolved[id] = -1
		default:
			resolved[id] = resolved[c.Parent]
		}
	}

	for id, c := range t.Clusters {
		owner := resolved[id]
		if owner < 0 {
			continue
		}
		for _, p := range c.Points {
			labels[p.Point] = labelOf[owner]
		}
	}

	return labels, ids
}
