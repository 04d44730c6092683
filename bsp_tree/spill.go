package bsp_tree

import (
	"math/rand"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

func validateSpillFactor(spillFactor, limit float64) error {
	if spillFactor < 0 || limit <= spillFactor {
		return errors.Wrapf(spilltree.ErrInvalidParameter, "spill factor %g outside [0, %g)", spillFactor, limit)
	}
	return nil
}

// spillSizes splits n members into a left exclusive band, a shared band and a
// right exclusive band. Exclusive bands keep at least one member each so
// that both children are smaller than their parent.
func spillSizes(n int, spillFactor float64) (leftExcl, spill, rightExcl int) {
	spill = int(float64(n) * spillFactor * 2)
	leftExcl = max(int(float64(n)*(0.5-spillFactor)), 1)
	rightExcl = n - leftExcl - spill
	if rightExcl < 1 {
		rightExcl = 1
		spill = n - leftExcl - rightExcl
	}
	return leftExcl, spill, rightExcl
}

// spillSplit assigns the lowest leftExcl members to the left child, the next
// spill members to both children and the rest to the right child.
func spillSplit[K linalg.Number](domain []int, values []K, tieKeys []float64, spillFactor float64, rng *rand.Rand) ([][]int, error) {
	leftExcl, spill, rightExcl := spillSizes(len(domain), spillFactor)

	lower, err := newRankCut(values, tieKeys, leftExcl, rng)
	if err != nil {
		return nil, err
	}
	upper, err := newRankCut(values, tieKeys, leftExcl+spill, rng)
	if err != nil {
		return nil, err
	}

	left := make([]int, 0, leftExcl+spill)
	right := make([]int, 0, rightExcl+spill)
	for i, idx := range domain {
		if upper.Below(i) {
			left = append(left, idx)
		}
		if !lower.Below(i) {
			right = append(right, idx)
		}
	}

	if len(left) != leftExcl+spill || len(right) != rightExcl+spill {
		return nil, errors.Mark(
			errors.AssertionFailedf("spill split of %d gave %d|%d, want %d|%d", len(domain), len(left), len(right), leftExcl+spill, rightExcl+spill),
			spilltree.ErrDegeneratePartition,
		)
	}

	return [][]int{left, right}, nil
}
