package bsp_tree

import (
	"fmt"
	"math/rand"

	"github.com/ar90n/spilltree/collection"
	"github.com/ar90n/spilltree/cut_plane"
	"github.com/ar90n/spilltree/linalg"
)

var (
	_ CutPlane[float32] = (*kdCutPlane[float32])(nil)
)

// kdCutPlane splits on a single coordinate. Queries equal to the pivot are
// routed by their projection onto a random tie breaker.
type kdCutPlane[T linalg.Number] struct {
	Axis       int
	Pivot      T
	TiePivot   float64
	TieBreaker []float64
}

func (cp *kdCutPlane[T]) left(feature []T) bool {
	return routeBelow(feature[cp.Axis], cp.Pivot, cp.TiePivot, func() float64 {
		return linalg.Dot(feature, cp.TieBreaker)
	})
}

func (cp *kdCutPlane[T]) Route(feature []T, dst []int) []int {
	if cp.left(feature) {
		return append(dst, 0)
	}
	return append(dst, 1)
}

func (cp *kdCutPlane[T]) encode(e *encoder) {
	e.u64(uint64(cp.Axis))
	writeValue(e, cp.Pivot)
	e.f64(cp.TiePivot)
	e.floats(cp.TieBreaker)
}

func (cp *kdCutPlane[T]) decode(d *decoder, dim int) {
	cp.Axis = d.axis(dim)
	cp.Pivot = readValue[T](d)
	cp.TiePivot = d.f64()
	cp.TieBreaker = d.floats(dim)
}

// axisSplit holds what every cut of one node along one coordinate shares.
type axisSplit[T linalg.Number] struct {
	axis       int
	values     []T
	tieBreaker []float64
	tieKeys    []float64
}

func chooseAxis[T linalg.Number](points Points[T], domain []int, sampleFeatures, topKCandidates int, rng *rand.Rand) (int, error) {
	variances, err := cut_plane.Variances[T](points, domain, sampleFeatures, rng)
	if err != nil {
		return 0, err
	}
	return cut_plane.RandomizedAxis(variances, topKCandidates, rng)
}

func newAxisSplit[T linalg.Number](points Points[T], domain []int, axis int, rng *rand.Rand) *axisSplit[T] {
	tieBreaker := linalg.RandomDirection(points.Dim(), rng)
	return &axisSplit[T]{
		axis:       axis,
		values:     axisValues(points, domain, axis),
		tieBreaker: tieBreaker,
		tieKeys:    projections(points, domain, tieBreaker),
	}
}

func (s *axisSplit[T]) cut(rank int, rng *rand.Rand) (*rankCut[T], error) {
	return newRankCut(s.values, s.tieKeys, rank, rng)
}

func (s *axisSplit[T]) cutPlane(c *rankCut[T]) *kdCutPlane[T] {
	return &kdCutPlane[T]{
		Axis:       s.axis,
		Pivot:      c.Pivot,
		TiePivot:   c.TiePivot,
		TieBreaker: s.tieBreaker,
	}
}

// medianSplit halves domain along axis, the left half taking floor(n/2) members.
func medianSplit[T linalg.Number](points Points[T], domain []int, axis int, rng *rand.Rand) (*kdCutPlane[T], [][]int, error) {
	s := newAxisSplit(points, domain, axis, rng)
	c, err := s.cut(len(domain)/2, rng)
	if err != nil {
		return nil, nil, err
	}

	left, right := collection.Split(domain, func(i int, _ int) bool { return c.Below(i) })
	return s.cutPlane(c), [][]int{left, right}, nil
}

type KdTreeBuilder[T linalg.Number] struct {
	minLeafSize    int
	sampleFeatures int
	topKCandidates int
}

func NewKdTreeBuilder[T linalg.Number]() *KdTreeBuilder[T] {
	return &KdTreeBuilder[T]{
		minLeafSize: defaultMinLeafSize,
	}
}

func (ktb *KdTreeBuilder[T]) SetMinLeafSize(minLeafSize int) *KdTreeBuilder[T] {
	ktb.minLeafSize = minLeafSize
	return ktb
}

// SetSampleFeatures bounds how many members feed the variance estimate.
func (ktb *KdTreeBuilder[T]) SetSampleFeatures(sampleFeatures int) *KdTreeBuilder[T] {
	ktb.sampleFeatures = sampleFeatures
	return ktb
}

// SetTopKCandidates makes the builder pick the split axis at random among
// the topKCandidates highest variance coordinates.
func (ktb *KdTreeBuilder[T]) SetTopKCandidates(topKCandidates int) *KdTreeBuilder[T] {
	ktb.topKCandidates = topKCandidates
	return ktb
}

func (ktb *KdTreeBuilder[T]) Kind() Kind {
	if 1 < ktb.topKCandidates {
		return KindRkd
	}
	return KindKd
}

func (ktb *KdTreeBuilder[T]) Splits() int {
	return 2
}

func (ktb *KdTreeBuilder[T]) GetParameterString() string {
	return fmt.Sprintf("minLeafSize=%d_sampleFeatures=%d_topKCandidates=%d", ktb.minLeafSize, ktb.sampleFeatures, ktb.topKCandidates)
}

func (ktb *KdTreeBuilder[T]) Build(points Points[T], rng *rand.Rand) (*BspTree[T], error) {
	if err := validateMinLeafSize(ktb.minLeafSize); err != nil {
		return nil, err
	}
	rng = ensureRand(rng)

	tree := newBspTree[T](ktb.Kind(), points.Dim(), 2)
	err := tree.build(points, ktb.minLeafSize, func(domain []int) (CutPlane[T], [][]int, error) {
		axis, err := chooseAxis(points, domain, ktb.sampleFeatures, ktb.topKCandidates, rng)
		if err != nil {
			return nil, nil, err
		}
		return medianSplit(points, domain, axis, rng)
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}
