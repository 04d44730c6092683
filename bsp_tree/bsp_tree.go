package bsp_tree

import (
	"math/rand"
	"time"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/cut_plane"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

const defaultMinLeafSize = 16

// Points is the dataset view a tree is built over.
type Points[T linalg.Number] interface {
	cut_plane.Vectors[T]
	Domain() []int
	RootLen() int
}

// CutPlane decides which children a query descends into.
type CutPlane[T linalg.Number] interface {
	// Route appends the child slots feature belongs to.
	Route(feature []T, dst []int) []int
	encode(e *encoder)
	decode(d *decoder, dim int)
}

type Node[T linalg.Number] struct {
	CutPlane CutPlane[T]
	Domain   []int
	Children []uint
}

func (n *Node[T]) IsLeaf() bool {
	return len(n.Children) == 0
}

// BspTree keeps its nodes in an arena. The root has handle 0 and children are
// referenced by handle.
type BspTree[T linalg.Number] struct {
	Kind   Kind
	Dim    int
	Splits int
	Nodes  []Node[T]
}

type BspTreeBuilder[T linalg.Number] interface {
	Build(points Points[T], rng *rand.Rand) (*BspTree[T], error)
	Kind() Kind
	Splits() int
	GetParameterString() string
}

type splitFunc[T linalg.Number] func(domain []int) (CutPlane[T], [][]int, error)

func newBspTree[T linalg.Number](kind Kind, dim, splits int) *BspTree[T] {
	return &BspTree[T]{
		Kind:   kind,
		Dim:    dim,
		Splits: splits,
		Nodes:  []Node[T]{},
	}
}

func (r *BspTree[T]) addNode(node Node[T]) uint {
	nc := uint(len(r.Nodes))
	r.Nodes = append(r.Nodes, node)

	return nc
}

func (r *BspTree[T]) buildSubTree(domain []int, minLeafSize int, split splitFunc[T]) (uint, error) {
	curIdx := r.addNode(Node[T]{
		Domain: domain,
	})

	if len(domain) < minLeafSize {
		return curIdx, nil
	}

	cutPlane, children, err := split(domain)
	if err != nil {
		return 0, err
	}
	if cutPlane == nil {
		return curIdx, nil
	}
	r.Nodes[curIdx].CutPlane = cutPlane

	handles := make([]uint, len(children))
	for i, child := range children {
		if len(domain) <= len(child) {
			return 0, errors.Mark(
				errors.AssertionFailedf("child %d keeps %d of %d members", i, len(child), len(domain)),
				spilltree.ErrDegeneratePartition,
			)
		}

		h, err := r.buildSubTree(child, minLeafSize, split)
		if err != nil {
			return 0, err
		}
		handles[i] = h
	}
	r.Nodes[curIdx].Children = handles

	return curIdx, nil
}

func (r *BspTree[T]) build(points Points[T], minLeafSize int, split splitFunc[T]) error {
	domain := make([]int, len(points.Domain()))
	copy(domain, points.Domain())

	_, err := r.buildSubTree(domain, minLeafSize, split)
	return err
}

func (r *BspTree[T]) Root() *Node[T] {
	return &r.Nodes[0]
}

func (r *BspTree[T]) Node(handle uint) *Node[T] {
	return &r.Nodes[handle]
}

func (r *BspTree[T]) Len() int {
	return len(r.Nodes)
}

func ensureRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func validateMinLeafSize(minLeafSize int) error {
	if minLeafSize < 2 {
		return errors.Wrapf(spilltree.ErrInvalidParameter, "min leaf size %d must be at least 2", minLeafSize)
	}
	return nil
}

func axisValues[T linalg.Number](points Points[T], domain []int, axis int) []T {
	values := make([]T, len(domain))
	for i, idx := range domain {
		values[i] = points.Vector(idx)[axis]
	}
	return values
}

func projections[T linalg.Number](points Points[T], domain []int, dir []float64) []float64 {
	keys := make([]float64, len(domain))
	for i, idx := range domain {
		keys[i] = linalg.Dot(points.Vector(idx), dir)
	}
	return keys
}
