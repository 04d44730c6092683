package index

import (
	"github.com/ar90n/spilltree/linalg"
	"github.com/ar90n/spilltree/nn"
)

type Index[T linalg.Number, L comparable] interface {
	Candidates(query []T, minLeafSize int) ([]int, error)
	Search(query []T, minLeafSize int) (nn.Neighbor, error)
	Classify(query []T, minLeafSize int) (L, nn.Neighbor, error)
	SpaceBlowup(minLeafSize int) float64
}

var (
	_ Index[float32, int] = (*BspTreeIndex[float32, int])(nil)
	_ Index[float32, int] = (*FlatIndex[float32, int])(nil)
)
