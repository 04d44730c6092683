package bsp_tree

import (
	"fmt"
	"math/rand"

	"github.com/ar90n/spilltree/linalg"
)

var (
	_ CutPlane[float32] = (*virtualSpillCutPlane[float32])(nil)
)

// virtualSpillCutPlane stores a median split plus the value range around it.
// Queries inside [Lower, Upper] descend into both children; nothing is
// duplicated in storage.
type virtualSpillCutPlane[T linalg.Number] struct {
	kdCutPlane[T]
	Lower T
	Upper T
}

func (cp *virtualSpillCutPlane[T]) Route(feature []T, dst []int) []int {
	v := feature[cp.Axis]
	if cp.Lower <= v && v <= cp.Upper {
		return append(dst, 0, 1)
	}
	return cp.kdCutPlane.Route(feature, dst)
}

func (cp *virtualSpillCutPlane[T]) encode(e *encoder) {
	cp.kdCutPlane.encode(e)
	writeValue(e, cp.Lower)
	writeValue(e, cp.Upper)
}

func (cp *virtualSpillCutPlane[T]) decode(d *decoder, dim int) {
	cp.kdCutPlane.decode(d, dim)
	cp.Lower = readValue[T](d)
	cp.Upper = readValue[T](d)
}

type KdVirtualSpillTreeBuilder[T linalg.Number] struct {
	minLeafSize    int
	sampleFeatures int
	spillFactor    float64
}

func NewKdVirtualSpillTreeBuilder[T linalg.Number]() *KdVirtualSpillTreeBuilder[T] {
	return &KdVirtualSpillTreeBuilder[T]{
		minLeafSize: defaultMinLeafSize,
		spillFactor: defaultSpillFactor,
	}
}

func (b *KdVirtualSpillTreeBuilder[T]) SetMinLeafSize(minLeafSize int) *KdVirtualSpillTreeBuilder[T] {
	b.minLeafSize = minLeafSize
	return b
}

func (b *KdVirtualSpillTreeBuilder[T]) SetSampleFeatures(sampleFeatures int) *KdVirtualSpillTreeBuilder[T] {
	b.sampleFeatures = sampleFeatures
	return b
}

func (b *KdVirtualSpillTreeBuilder[T]) SetSpillFactor(spillFactor float64) *KdVirtualSpillTreeBuilder[T] {
	b.spillFactor = spillFactor
	return b
}

func (b *KdVirtualSpillTreeBuilder[T]) Kind() Kind {
	return KindKdVirtualSpill
}

func (b *KdVirtualSpillTreeBuilder[T]) Splits() int {
	return 2
}

func (b *KdVirtualSpillTreeBuilder[T]) GetParameterString() string {
	return fmt.Sprintf("minLeafSize=%d_sampleFeatures=%d_spillFactor=%g", b.minLeafSize, b.sampleFeatures, b.spillFactor)
}

func (b *KdVirtualSpillTreeBuilder[T]) Build(points Points[T], rng *rand.Rand) (*BspTree[T], error) {
	if err := validateMinLeafSize(b.minLeafSize); err != nil {
		return nil, err
	}
	if err := validateSpillFactor(b.spillFactor, 0.5); err != nil {
		return nil, err
	}
	rng = ensureRand(rng)

	tree := newBspTree[T](KindKdVirtualSpill, points.Dim(), 2)
	err := tree.build(points, b.minLeafSize, func(domain []int) (CutPlane[T], [][]int, error) {
		axis, err := chooseAxis(points, domain, b.sampleFeatures, 0, rng)
		if err != nil {
			return nil, nil, err
		}

		kd, children, err := medianSplit(points, domain, axis, rng)
		if err != nil {
			return nil, nil, err
		}

		n := len(domain)
		values := axisValues(points, domain, axis)
		lower, err := linalg.Selector(values, int(float64(n)*(0.5-b.spillFactor)), rng)
		if err != nil {
			return nil, nil, err
		}
		upper, err := linalg.Selector(values, min(int(float64(n)*(0.5+b.spillFactor)), n-1), rng)
		if err != nil {
			return nil, nil, err
		}

		return &virtualSpillCutPlane[T]{
			kdCutPlane: *kd,
			Lower:      lower,
			Upper:      upper,
		}, children, nil
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}
