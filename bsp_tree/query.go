package bsp_tree

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ar90n/spilltree"
	"github.com/cockroachdb/errors"
)

func (r *BspTree[T]) terminal(node *Node[T], minLeafSize int) bool {
	return node.IsLeaf() || len(node.Domain) < minLeafSize
}

// Explore returns the handles of the nodes where the descent for feature
// stops: leaves, or the first nodes holding fewer than minLeafSize members.
func (r *BspTree[T]) Explore(feature []T, minLeafSize int) ([]uint, error) {
	if len(feature) != r.Dim {
		return nil, errors.Wrapf(spilltree.ErrDimensionMismatch, "query of %d components on a %d dimensional tree", len(feature), r.Dim)
	}
	if len(r.Nodes) == 0 {
		return nil, nil
	}

	terminals := []uint{}
	queue := []uint{0}
	var route []int
	for 0 < len(queue) {
		h := queue[0]
		queue = queue[1:]

		node := &r.Nodes[h]
		if r.terminal(node, minLeafSize) {
			terminals = append(terminals, h)
			continue
		}

		route = node.CutPlane.Route(feature, route[:0])
		for _, slot := range route {
			queue = append(queue, node.Children[slot])
		}
	}

	return terminals, nil
}

// Query returns the candidate domain for feature. When the descent stops at
// several nodes the result is their union in ascending order.
func (r *BspTree[T]) Query(feature []T, minLeafSize int) ([]int, error) {
	terminals, err := r.Explore(feature, minLeafSize)
	if err != nil {
		return nil, err
	}

	switch len(terminals) {
	case 0:
		return []int{}, nil
	case 1:
		return slices.Clone(r.Nodes[terminals[0]].Domain), nil
	}

	bm := roaring.New()
	for _, h := range terminals {
		for _, idx := range r.Nodes[h].Domain {
			bm.Add(uint32(idx))
		}
	}

	result := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		result = append(result, int(it.Next()))
	}
	return result, nil
}

// walk visits every node with its depth, skipping the subtrees below nodes
// for which visit returns false.
func (r *BspTree[T]) walk(visit func(h uint, depth int) bool) {
	if len(r.Nodes) == 0 {
		return
	}

	type item struct {
		h     uint
		depth int
	}
	stack := []item{{0, 0}}
	for 0 < len(stack) {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !visit(it.h, it.depth) {
			continue
		}
		for _, c := range r.Nodes[it.h].Children {
			stack = append(stack, item{c, it.depth + 1})
		}
	}
}

// Leaves returns the number of leaf nodes.
func (r *BspTree[T]) Leaves() int {
	leaves := 0
	r.walk(func(h uint, _ int) bool {
		if r.Nodes[h].IsLeaf() {
			leaves++
		}
		return true
	})
	return leaves
}

// Depth returns the number of edges on the longest root to leaf path.
func (r *BspTree[T]) Depth() int {
	depth := 0
	r.walk(func(_ uint, d int) bool {
		depth = max(depth, d)
		return true
	})
	return depth
}

// SpaceBlowup is the total size of the domains a query with minLeafSize can
// stop at, relative to the root domain. It is 1 for trees without spill.
func (r *BspTree[T]) SpaceBlowup(minLeafSize int) float64 {
	if len(r.Nodes) == 0 || len(r.Nodes[0].Domain) == 0 {
		return 0
	}

	total := 0
	r.walk(func(h uint, _ int) bool {
		node := &r.Nodes[h]
		if r.terminal(node, minLeafSize) {
			total += len(node.Domain)
			return false
		}
		return true
	})
	return float64(total) / float64(len(r.Nodes[0].Domain))
}
