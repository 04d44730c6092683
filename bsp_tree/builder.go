package bsp_tree

import (
	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

const defaultTopKCandidates = 5

// BuilderOptions configures NewBuilder. Zero fields take the builder defaults.
type BuilderOptions struct {
	MinLeafSize    int
	SpillFactor    float64
	Splits         int
	TopKCandidates int
	SampleFeatures int
}

// NewBuilder returns a builder for kind.
func NewBuilder[T linalg.Number](kind Kind, opts BuilderOptions) (BspTreeBuilder[T], error) {
	minLeafSize := opts.MinLeafSize
	if minLeafSize == 0 {
		minLeafSize = defaultMinLeafSize
	}
	spillFactor := opts.SpillFactor
	if spillFactor == 0 && kind.IsSpill() && kind != KindNSpill {
		spillFactor = defaultSpillFactor
	}

	switch kind {
	case KindKd:
		return NewKdTreeBuilder[T]().
			SetMinLeafSize(minLeafSize).
			SetSampleFeatures(opts.SampleFeatures), nil
	case KindRkd:
		topK := opts.TopKCandidates
		if topK == 0 {
			topK = defaultTopKCandidates
		}
		return NewKdTreeBuilder[T]().
			SetMinLeafSize(minLeafSize).
			SetSampleFeatures(opts.SampleFeatures).
			SetTopKCandidates(topK), nil
	case KindPca:
		return NewPcaTreeBuilder[T]().SetMinLeafSize(minLeafSize), nil
	case KindPcaSpill:
		return NewPcaTreeBuilder[T]().
			SetMinLeafSize(minLeafSize).
			SetSpillFactor(spillFactor), nil
	case KindRp:
		return NewRpTreeBuilder[T]().SetMinLeafSize(minLeafSize), nil
	case KindRpDiff:
		return NewRpTreeBuilder[T]().
			SetMinLeafSize(minLeafSize).
			SetDiff(true), nil
	case KindKdSpill:
		return NewKdSpillTreeBuilder[T]().
			SetMinLeafSize(minLeafSize).
			SetSampleFeatures(opts.SampleFeatures).
			SetSpillFactor(spillFactor), nil
	case KindKdVirtualSpill:
		return NewKdVirtualSpillTreeBuilder[T]().
			SetMinLeafSize(minLeafSize).
			SetSampleFeatures(opts.SampleFeatures).
			SetSpillFactor(spillFactor), nil
	case KindNSpill:
		b := NewNSpillTreeBuilder[T]().
			SetMinLeafSize(minLeafSize).
			SetSampleFeatures(opts.SampleFeatures).
			SetSpillFactor(spillFactor)
		if opts.Splits != 0 {
			b.SetSplits(opts.Splits)
		}
		return b, nil
	default:
		return nil, errors.Wrapf(spilltree.ErrUnknownKind, "%d", int(kind))
	}
}
