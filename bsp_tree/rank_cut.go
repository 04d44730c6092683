package bsp_tree

import (
	"math"
	"math/rand"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

// rankCut puts exactly rank members of a domain below it. Members strictly
// less than Pivot are below. Members equal to Pivot are ordered by their tie
// key, then by position, and the lowest ones fill the cut up to rank. A query
// equal to Pivot is below when its tie key is at most TiePivot.
type rankCut[K linalg.Number] struct {
	Pivot    K
	TiePivot float64
	below    []bool
}

// newRankCut cuts values at rank. A nil tieKeys orders ties by position only.
func newRankCut[K linalg.Number](values []K, tieKeys []float64, rank int, rng *rand.Rand) (*rankCut[K], error) {
	n := len(values)
	if rank < 0 || n < rank {
		return nil, errors.Wrapf(spilltree.ErrDegeneratePartition, "rank %d of %d", rank, n)
	}

	cut := &rankCut[K]{
		TiePivot: math.Inf(-1),
		below:    make([]bool, n),
	}
	if n == 0 {
		return cut, nil
	}

	pivot, err := linalg.Selector(values, min(rank, n-1), rng)
	if err != nil {
		return nil, err
	}
	cut.Pivot = pivot

	less := 0
	pool := []int{}
	for i, v := range values {
		switch {
		case v < pivot:
			cut.below[i] = true
			less++
		case v == pivot:
			pool = append(pool, i)
		}
	}

	k := rank - less
	if k < 0 || len(pool) < k {
		return nil, errors.Wrapf(spilltree.ErrDegeneratePartition, "tie pool of %d cannot supply %d members", len(pool), k)
	}

	keys := make([]float64, len(pool))
	if tieKeys != nil {
		for j, i := range pool {
			keys[j] = tieKeys[i]
		}
	}
	if 0 < k {
		if cut.TiePivot, err = linalg.Selector(keys, k-1, rng); err != nil {
			return nil, err
		}
	}

	filled := 0
	for j, i := range pool {
		if keys[j] < cut.TiePivot {
			cut.below[i] = true
			filled++
		}
	}
	for j, i := range pool {
		if filled == k {
			break
		}
		if keys[j] == cut.TiePivot {
			cut.below[i] = true
			filled++
		}
	}
	if filled != k {
		return nil, errors.Mark(
			errors.AssertionFailedf("filled %d of %d tied members", filled, k),
			spilltree.ErrDegeneratePartition,
		)
	}

	return cut, nil
}

// Below reports whether the member at pos lies below the cut.
func (c *rankCut[K]) Below(pos int) bool {
	return c.below[pos]
}

// routeBelow applies the cut to a query value whose tie key is computed lazily.
func routeBelow[K linalg.Number](v, pivot K, tiePivot float64, tieKey func() float64) bool {
	if v != pivot {
		return v < pivot
	}
	return tieKey() <= tiePivot
}
