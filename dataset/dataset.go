package dataset

import (
	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

type storage[T linalg.Number, L comparable] struct {
	vectors [][]T
	labels  []L
	labeled bool
	dim     int
}

// Dataset is a view over a shared root store. The domain holds root indices,
// so every view resolves positions to the same underlying vectors.
type Dataset[T linalg.Number, L comparable] struct {
	root   *storage[T, L]
	domain []int
}

func newDataset[T linalg.Number, L comparable](vectors [][]T, dim int) *Dataset[T, L] {
	domain := make([]int, len(vectors))
	for i := range domain {
		domain[i] = i
	}

	return &Dataset[T, L]{
		root: &storage[T, L]{
			vectors: vectors,
			labels:  make([]L, len(vectors)),
			dim:     dim,
		},
		domain: domain,
	}
}

// FromVectors makes a root dataset over vectors without copying them.
func FromVectors[T linalg.Number, L comparable](vectors [][]T) (*Dataset[T, L], error) {
	dim := 0
	if 0 < len(vectors) {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, errors.Wrapf(spilltree.ErrDimensionMismatch, "vector %d has %d components, want %d", i, len(v), dim)
		}
	}

	return newDataset[T, L](vectors, dim), nil
}

// Subset returns a view over positions of this view.
func (d *Dataset[T, L]) Subset(indices []int) (*Dataset[T, L], error) {
	domain := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || len(d.domain) <= idx {
			return nil, errors.Wrapf(spilltree.ErrIndexOutOfRange, "position %d of %d", idx, len(d.domain))
		}
		domain[i] = d.domain[idx]
	}

	return &Dataset[T, L]{
		root:   d.root,
		domain: domain,
	}, nil
}

func (d *Dataset[T, L]) Len() int {
	return len(d.domain)
}

// RootLen is the number of vectors in the root store.
func (d *Dataset[T, L]) RootLen() int {
	return len(d.root.vectors)
}

func (d *Dataset[T, L]) Dim() int {
	return d.root.dim
}

// Domain returns the root indices of this view. The slice must not be modified.
func (d *Dataset[T, L]) Domain() []int {
	return d.domain
}

// At returns the vector at view position i.
func (d *Dataset[T, L]) At(i int) []T {
	return d.root.vectors[d.domain[i]]
}

// Vector returns the vector at root index idx.
func (d *Dataset[T, L]) Vector(idx int) []T {
	return d.root.vectors[idx]
}

func (d *Dataset[T, L]) Labeled() bool {
	return d.root.labeled
}

func (d *Dataset[T, L]) LabelAt(i int) (ret L, _ error) {
	return d.LabelOf(d.domain[i])
}

func (d *Dataset[T, L]) LabelOf(idx int) (ret L, _ error) {
	if !d.root.labeled {
		return ret, spilltree.ErrUnlabeled
	}
	if idx < 0 || len(d.root.labels) <= idx {
		return ret, errors.Wrapf(spilltree.ErrIndexOutOfRange, "label %d of %d", idx, len(d.root.labels))
	}
	return d.root.labels[idx], nil
}

// SetLabels attaches labels to the view's domain in order.
func (d *Dataset[T, L]) SetLabels(labels []L) error {
	if d.root.labeled {
		return spilltree.ErrAlreadyLabeled
	}
	if len(labels) != len(d.domain) {
		return errors.Wrapf(spilltree.ErrLabelCountMismatch, "%d labels for %d vectors", len(labels), len(d.domain))
	}

	for i, idx := range d.domain {
		d.root.labels[idx] = labels[i]
	}
	d.root.labeled = true
	return nil
}
