package bsp_tree

import (
	"fmt"
	"math/rand"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

const defaultSplits = 3

var (
	_ CutPlane[float32] = (*nSpillCutPlane[float32])(nil)
)

// nSpillCutPlane splits one coordinate into Splits ranges separated by
// Pivots. A query goes to the first range whose pivot it falls below, or to
// the last range.
type nSpillCutPlane[T linalg.Number] struct {
	Axis       int
	Splits     int
	Pivots     []T
	TieBreaker []float64
	TiePivots  []float64
}

func (cp *nSpillCutPlane[T]) Route(feature []T, dst []int) []int {
	v := feature[cp.Axis]

	tieKey, computed := 0.0, false
	lazyTieKey := func() float64 {
		if !computed {
			tieKey, computed = linalg.Dot(feature, cp.TieBreaker), true
		}
		return tieKey
	}

	for i, pivot := range cp.Pivots {
		if routeBelow(v, pivot, cp.TiePivots[i], lazyTieKey) {
			return append(dst, i)
		}
	}
	return append(dst, len(cp.Pivots))
}

func (cp *nSpillCutPlane[T]) encode(e *encoder) {
	e.u64(uint64(cp.Axis))
	e.u64(uint64(cp.Splits))
	for _, p := range cp.Pivots {
		writeValue(e, p)
	}
	e.floats(cp.TieBreaker)
	for _, p := range cp.TiePivots {
		e.f64(p)
	}
}

func (cp *nSpillCutPlane[T]) decode(d *decoder, dim int) {
	cp.Axis = d.axis(dim)
	cp.Splits = d.splits()

	pivots := max(cp.Splits-1, 0)
	cp.Pivots = make([]T, pivots)
	for i := range cp.Pivots {
		cp.Pivots[i] = readValue[T](d)
	}
	cp.TieBreaker = d.floats(dim)
	cp.TiePivots = make([]float64, pivots)
	for i := range cp.TiePivots {
		cp.TiePivots[i] = d.f64()
	}
}

// nSpillBounds returns, for every boundary between adjacent children, the
// ranks where the shared band starts, its centre and where it ends.
func nSpillBounds(n, splits int, spillFactor float64) (lower, centre, upper []int) {
	full := n / splits
	half := int(float64(n) * spillFactor)

	lower = make([]int, splits-1)
	centre = make([]int, splits-1)
	upper = make([]int, splits-1)
	for j := range centre {
		centre[j] = (j + 1) * full
		lower[j] = centre[j] - half
		upper[j] = centre[j] + half
	}
	return lower, centre, upper
}

// NSpillTreeBuilder builds trees whose nodes have splits children along one
// coordinate, adjacent children sharing the members around their boundary.
type NSpillTreeBuilder[T linalg.Number] struct {
	minLeafSize    int
	sampleFeatures int
	spillFactor    float64
	splits         int
}

func NewNSpillTreeBuilder[T linalg.Number]() *NSpillTreeBuilder[T] {
	return &NSpillTreeBuilder[T]{
		minLeafSize: defaultMinLeafSize,
		splits:      defaultSplits,
	}
}

func (b *NSpillTreeBuilder[T]) SetMinLeafSize(minLeafSize int) *NSpillTreeBuilder[T] {
	b.minLeafSize = minLeafSize
	return b
}

func (b *NSpillTreeBuilder[T]) SetSampleFeatures(sampleFeatures int) *NSpillTreeBuilder[T] {
	b.sampleFeatures = sampleFeatures
	return b
}

func (b *NSpillTreeBuilder[T]) SetSpillFactor(spillFactor float64) *NSpillTreeBuilder[T] {
	b.spillFactor = spillFactor
	return b
}

func (b *NSpillTreeBuilder[T]) SetSplits(splits int) *NSpillTreeBuilder[T] {
	b.splits = splits
	return b
}

func (b *NSpillTreeBuilder[T]) Kind() Kind {
	return KindNSpill
}

func (b *NSpillTreeBuilder[T]) Splits() int {
	return b.splits
}

func (b *NSpillTreeBuilder[T]) GetParameterString() string {
	return fmt.Sprintf("minLeafSize=%d_sampleFeatures=%d_spillFactor=%g_splits=%d", b.minLeafSize, b.sampleFeatures, b.spillFactor, b.splits)
}

func (b *NSpillTreeBuilder[T]) split(points Points[T], domain []int, rng *rand.Rand) (CutPlane[T], [][]int, error) {
	n := len(domain)
	if n < b.splits {
		return nil, nil, nil
	}

	axis, err := chooseAxis(points, domain, b.sampleFeatures, 0, rng)
	if err != nil {
		return nil, nil, err
	}
	s := newAxisSplit(points, domain, axis, rng)

	lowerRanks, centreRanks, upperRanks := nSpillBounds(n, b.splits, b.spillFactor)
	cp := &nSpillCutPlane[T]{
		Axis:       axis,
		Splits:     b.splits,
		Pivots:     make([]T, b.splits-1),
		TieBreaker: s.tieBreaker,
		TiePivots:  make([]float64, b.splits-1),
	}
	lowerCuts := make([]*rankCut[T], b.splits-1)
	upperCuts := make([]*rankCut[T], b.splits-1)
	for j := range centreRanks {
		centre, err := s.cut(centreRanks[j], rng)
		if err != nil {
			return nil, nil, err
		}
		cp.Pivots[j] = centre.Pivot
		cp.TiePivots[j] = centre.TiePivot

		if lowerCuts[j], err = s.cut(lowerRanks[j], rng); err != nil {
			return nil, nil, err
		}
		if upperCuts[j], err = s.cut(upperRanks[j], rng); err != nil {
			return nil, nil, err
		}
	}

	// child j holds the ranks in [lowerRanks[j-1], upperRanks[j])
	children := make([][]int, b.splits)
	for j := range children {
		begin, end := 0, n
		if 0 < j {
			begin = lowerRanks[j-1]
		}
		if j < b.splits-1 {
			end = upperRanks[j]
		}
		children[j] = make([]int, 0, end-begin)

		for i, idx := range domain {
			if 0 < j && lowerCuts[j-1].Below(i) {
				continue
			}
			if j < b.splits-1 && !upperCuts[j].Below(i) {
				continue
			}
			children[j] = append(children[j], idx)
		}

		if len(children[j]) != end-begin {
			return nil, nil, errors.Mark(
				errors.AssertionFailedf("child %d of %d holds %d members, want %d", j, n, len(children[j]), end-begin),
				spilltree.ErrDegeneratePartition,
			)
		}
	}

	return cp, children, nil
}

func (b *NSpillTreeBuilder[T]) Build(points Points[T], rng *rand.Rand) (*BspTree[T], error) {
	if err := validateMinLeafSize(b.minLeafSize); err != nil {
		return nil, err
	}
	if b.splits < 2 {
		return nil, errors.Wrapf(spilltree.ErrInvalidParameter, "splits %d must be at least 2", b.splits)
	}
	if err := validateSpillFactor(b.spillFactor, 1/float64(2*b.splits)); err != nil {
		return nil, err
	}
	rng = ensureRand(rng)

	tree := newBspTree[T](KindNSpill, points.Dim(), b.splits)
	err := tree.build(points, b.minLeafSize, func(domain []int) (CutPlane[T], [][]int, error) {
		return b.split(points, domain, rng)
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}
