package bsp_tree

import (
	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

type Kind int

const (
	KindKd Kind = iota
	KindRkd
	KindPca
	KindRp
	KindRpDiff
	KindPcaSpill
	KindKdSpill
	KindKdVirtualSpill
	KindNSpill
)

var kindNames = [...]string{
	KindKd:             "kd-tree",
	KindRkd:            "rkd-tree",
	KindPca:            "pca-tree",
	KindRp:             "rp-tree",
	KindRpDiff:         "rp-diff-tree",
	KindPcaSpill:       "pca-spill-tree",
	KindKdSpill:        "kd-spill-tree",
	KindKdVirtualSpill: "kd-virtual-spill-tree",
	KindNSpill:         "n-spill-tree",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsSpill reports whether the kind takes a spill factor.
func (k Kind) IsSpill() bool {
	return k == KindPcaSpill || k == KindKdSpill || k == KindKdVirtualSpill || k == KindNSpill
}

// Kinds lists every tree kind.
func Kinds() []Kind {
	kinds := make([]Kind, len(kindNames))
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, errors.Wrapf(spilltree.ErrUnknownKind, "%q", name)
}

// defaultCutPlane returns the zero payload decoded for every node of kind.
func defaultCutPlane[T linalg.Number](kind Kind) (CutPlane[T], error) {
	switch kind {
	case KindKd, KindRkd, KindKdSpill:
		return &kdCutPlane[T]{}, nil
	case KindKdVirtualSpill:
		return &virtualSpillCutPlane[T]{}, nil
	case KindPca, KindRp, KindRpDiff, KindPcaSpill:
		return &projectionCutPlane[T]{}, nil
	case KindNSpill:
		return &nSpillCutPlane[T]{}, nil
	default:
		return nil, errors.Wrapf(spilltree.ErrUnknownKind, "%d", int(kind))
	}
}
