package bsp_tree

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ar90n/spilltree/collection"
	"github.com/ar90n/spilltree/cut_plane"
	"github.com/ar90n/spilltree/linalg"
)

var (
	_ CutPlane[float32] = (*projectionCutPlane[float32])(nil)
)

// projectionCutPlane splits on the projection onto Direction. Queries whose
// projection is at most Pivot go left.
type projectionCutPlane[T linalg.Number] struct {
	Direction []float64
	Pivot     float64
}

func (cp *projectionCutPlane[T]) Route(feature []T, dst []int) []int {
	if linalg.Dot(feature, cp.Direction) <= cp.Pivot {
		return append(dst, 0)
	}
	return append(dst, 1)
}

func (cp *projectionCutPlane[T]) encode(e *encoder) {
	e.floats(cp.Direction)
	e.f64(cp.Pivot)
}

func (cp *projectionCutPlane[T]) decode(d *decoder, dim int) {
	cp.Direction = d.floats(dim)
	cp.Pivot = d.f64()
}

// projectionSplit cuts domain at the median projection onto dir. Ties at the
// median are handed out in domain order so the left child gets exactly
// floor(n/2) members. The stored pivot is the largest projection sent left,
// so untied members route back to the child holding them. A positive spill
// factor shares the band around the median between both children.
func projectionSplit[T linalg.Number](points Points[T], domain []int, dir []float64, spillFactor float64, rng *rand.Rand) (CutPlane[T], [][]int, error) {
	keys := projections(points, domain, dir)
	median, err := newRankCut(keys, nil, len(domain)/2, rng)
	if err != nil {
		return nil, nil, err
	}
	cp := &projectionCutPlane[T]{
		Direction: dir,
		Pivot:     math.Inf(-1),
	}
	for i, key := range keys {
		if median.Below(i) {
			cp.Pivot = max(cp.Pivot, key)
		}
	}

	if 0 < spillFactor {
		children, err := spillSplit(domain, keys, nil, spillFactor, rng)
		if err != nil {
			return nil, nil, err
		}
		return cp, children, nil
	}

	left, right := collection.Split(domain, func(i int, _ int) bool { return median.Below(i) })
	return cp, [][]int{left, right}, nil
}

// PcaTreeBuilder splits along the principal direction of each node. With a
// spill factor it builds PCA spill trees.
type PcaTreeBuilder[T linalg.Number] struct {
	minLeafSize int
	sampleSize  int
	spillFactor float64
}

func NewPcaTreeBuilder[T linalg.Number]() *PcaTreeBuilder[T] {
	return &PcaTreeBuilder[T]{
		minLeafSize: defaultMinLeafSize,
		sampleSize:  cut_plane.DefaultPrincipalSampleSize,
	}
}

func (b *PcaTreeBuilder[T]) SetMinLeafSize(minLeafSize int) *PcaTreeBuilder[T] {
	b.minLeafSize = minLeafSize
	return b
}

// SetSampleSize bounds how many members feed the covariance estimate.
func (b *PcaTreeBuilder[T]) SetSampleSize(sampleSize int) *PcaTreeBuilder[T] {
	b.sampleSize = sampleSize
	return b
}

func (b *PcaTreeBuilder[T]) SetSpillFactor(spillFactor float64) *PcaTreeBuilder[T] {
	b.spillFactor = spillFactor
	return b
}

func (b *PcaTreeBuilder[T]) Kind() Kind {
	if 0 < b.spillFactor {
		return KindPcaSpill
	}
	return KindPca
}

func (b *PcaTreeBuilder[T]) Splits() int {
	return 2
}

func (b *PcaTreeBuilder[T]) GetParameterString() string {
	return fmt.Sprintf("minLeafSize=%d_sampleSize=%d_spillFactor=%g", b.minLeafSize, b.sampleSize, b.spillFactor)
}

func (b *PcaTreeBuilder[T]) Build(points Points[T], rng *rand.Rand) (*BspTree[T], error) {
	if err := validateMinLeafSize(b.minLeafSize); err != nil {
		return nil, err
	}
	if err := validateSpillFactor(b.spillFactor, 0.5); err != nil {
		return nil, err
	}
	rng = ensureRand(rng)

	tree := newBspTree[T](b.Kind(), points.Dim(), 2)
	err := tree.build(points, b.minLeafSize, func(domain []int) (CutPlane[T], [][]int, error) {
		dir, err := cut_plane.PrincipalDirection[T](points, domain, b.sampleSize, rng)
		if err != nil {
			return nil, nil, err
		}
		return projectionSplit(points, domain, dir, b.spillFactor, rng)
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}

// RpTreeBuilder splits along random directions: gaussian ones, or the
// difference of two random members when diff is set.
type RpTreeBuilder[T linalg.Number] struct {
	minLeafSize int
	diff        bool
}

func NewRpTreeBuilder[T linalg.Number]() *RpTreeBuilder[T] {
	return &RpTreeBuilder[T]{
		minLeafSize: defaultMinLeafSize,
	}
}

func (b *RpTreeBuilder[T]) SetMinLeafSize(minLeafSize int) *RpTreeBuilder[T] {
	b.minLeafSize = minLeafSize
	return b
}

func (b *RpTreeBuilder[T]) SetDiff(diff bool) *RpTreeBuilder[T] {
	b.diff = diff
	return b
}

func (b *RpTreeBuilder[T]) Kind() Kind {
	if b.diff {
		return KindRpDiff
	}
	return KindRp
}

func (b *RpTreeBuilder[T]) Splits() int {
	return 2
}

func (b *RpTreeBuilder[T]) GetParameterString() string {
	return fmt.Sprintf("minLeafSize=%d_diff=%t", b.minLeafSize, b.diff)
}

func (b *RpTreeBuilder[T]) direction(points Points[T], domain []int, rng *rand.Rand) []float64 {
	if !b.diff {
		return linalg.RandomDirection(points.Dim(), rng)
	}

	lhs := rng.Intn(len(domain))
	rhs := rng.Intn(len(domain) - 1)
	if lhs <= rhs {
		rhs++
	}
	return linalg.RandomDiff(points.Vector(domain[lhs]), points.Vector(domain[rhs]))
}

func (b *RpTreeBuilder[T]) Build(points Points[T], rng *rand.Rand) (*BspTree[T], error) {
	if err := validateMinLeafSize(b.minLeafSize); err != nil {
		return nil, err
	}
	rng = ensureRand(rng)

	tree := newBspTree[T](b.Kind(), points.Dim(), 2)
	err := tree.build(points, b.minLeafSize, func(domain []int) (CutPlane[T], [][]int, error) {
		return projectionSplit(points, domain, b.direction(points, domain, rng), 0, rng)
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}
