package index

import (
	"slices"

	"github.com/ar90n/spilltree/dataset"
	"github.com/ar90n/spilltree/linalg"
	"github.com/ar90n/spilltree/nn"
)

// FlatIndex scans the whole dataset. It is the exact baseline the trees are
// scored against.
type FlatIndex[T linalg.Number, L comparable] struct {
	Dataset *dataset.Dataset[T, L]
}

func NewFlatIndex[T linalg.Number, L comparable](ds *dataset.Dataset[T, L]) *FlatIndex[T, L] {
	return &FlatIndex[T, L]{
		Dataset: ds,
	}
}

// Candidates returns every member. minLeafSize is ignored.
func (fi *FlatIndex[T, L]) Candidates(query []T, _ int) ([]int, error) {
	return slices.Clone(fi.Dataset.Domain()), nil
}

func (fi *FlatIndex[T, L]) Search(query []T, _ int) (nn.Neighbor, error) {
	return nn.Nearest[T](fi.Dataset, query, fi.Dataset.Domain())
}

func (fi *FlatIndex[T, L]) Classify(query []T, minLeafSize int) (ret L, _ nn.Neighbor, _ error) {
	neighbor, err := fi.Search(query, minLeafSize)
	if err != nil {
		return ret, neighbor, err
	}

	label, err := fi.Dataset.LabelOf(neighbor.Index)
	if err != nil {
		return ret, neighbor, err
	}
	return label, neighbor, nil
}

func (fi *FlatIndex[T, L]) SpaceBlowup(int) float64 {
	if fi.Dataset.Len() == 0 {
		return 0
	}
	return 1
}
