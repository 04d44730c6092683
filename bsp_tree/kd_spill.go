package bsp_tree

import (
	"fmt"
	"math/rand"

	"github.com/ar90n/spilltree/linalg"
)

const defaultSpillFactor = 0.1

// KdSpillTreeBuilder builds KD trees whose siblings share the members around
// the median.
type KdSpillTreeBuilder[T linalg.Number] struct {
	minLeafSize    int
	sampleFeatures int
	spillFactor    float64
}

func NewKdSpillTreeBuilder[T linalg.Number]() *KdSpillTreeBuilder[T] {
	return &KdSpillTreeBuilder[T]{
		minLeafSize: defaultMinLeafSize,
		spillFactor: defaultSpillFactor,
	}
}

func (b *KdSpillTreeBuilder[T]) SetMinLeafSize(minLeafSize int) *KdSpillTreeBuilder[T] {
	b.minLeafSize = minLeafSize
	return b
}

func (b *KdSpillTreeBuilder[T]) SetSampleFeatures(sampleFeatures int) *KdSpillTreeBuilder[T] {
	b.sampleFeatures = sampleFeatures
	return b
}

func (b *KdSpillTreeBuilder[T]) SetSpillFactor(spillFactor float64) *KdSpillTreeBuilder[T] {
	b.spillFactor = spillFactor
	return b
}

func (b *KdSpillTreeBuilder[T]) Kind() Kind {
	return KindKdSpill
}

func (b *KdSpillTreeBuilder[T]) Splits() int {
	return 2
}

func (b *KdSpillTreeBuilder[T]) GetParameterString() string {
	return fmt.Sprintf("minLeafSize=%d_sampleFeatures=%d_spillFactor=%g", b.minLeafSize, b.sampleFeatures, b.spillFactor)
}

func (b *KdSpillTreeBuilder[T]) Build(points Points[T], rng *rand.Rand) (*BspTree[T], error) {
	if err := validateMinLeafSize(b.minLeafSize); err != nil {
		return nil, err
	}
	if err := validateSpillFactor(b.spillFactor, 0.5); err != nil {
		return nil, err
	}
	rng = ensureRand(rng)

	tree := newBspTree[T](KindKdSpill, points.Dim(), 2)
	err := tree.build(points, b.minLeafSize, func(domain []int) (CutPlane[T], [][]int, error) {
		axis, err := chooseAxis(points, domain, b.sampleFeatures, 0, rng)
		if err != nil {
			return nil, nil, err
		}

		s := newAxisSplit(points, domain, axis, rng)
		median, err := s.cut(len(domain)/2, rng)
		if err != nil {
			return nil, nil, err
		}
		children, err := spillSplit(domain, s.values, s.tieKeys, b.spillFactor, rng)
		if err != nil {
			return nil, nil, err
		}

		return s.cutPlane(median), children, nil
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}
