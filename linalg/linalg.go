package linalg

import (
	"math/rand"

	"github.com/ar90n/spilltree"
	"github.com/cockroachdb/errors"
)

// DistanceSquared returns the squared euclidean distance between x and y.
func DistanceSquared[T Number](x, y []T) (float64, error) {
	if len(x) != len(y) {
		return 0, errors.Wrapf(spilltree.ErrDimensionMismatch, "%d != %d", len(x), len(y))
	}

	dist := 0.0
	for i := range x {
		diff := float64(x[i]) - float64(y[i])
		dist += diff * diff
	}

	return dist, nil
}

// Dot returns the inner product over the shorter of the two lengths.
func Dot[T Number, U Number](x []T, y []U) float64 {
	n := min(len(x), len(y))

	dot := 0.0
	for i := 0; i < n; i++ {
		dot += float64(x[i]) * float64(y[i])
	}

	return dot
}

// RandomDirection draws a vector of i.i.d. standard normal components.
func RandomDirection(dim int, rng *rand.Rand) []float64 {
	dir := make([]float64, dim)
	for i := range dir {
		dir[i] = rng.NormFloat64()
	}
	return dir
}

// RandomDiff returns x - y.
func RandomDiff[T Number](x, y []T) []float64 {
	diff := make([]float64, min(len(x), len(y)))
	for i := range diff {
		diff[i] = float64(x[i]) - float64(y[i])
	}
	return diff
}

// Selector returns the element that would sit at 0-indexed rank k if values
// were sorted ascending. values is left untouched.
func Selector[T Number](values []T, k int, rng *rand.Rand) (ret T, _ error) {
	if k < 0 || len(values) <= k {
		return ret, errors.Wrapf(spilltree.ErrRankOutOfRange, "rank %d of %d", k, len(values))
	}

	buf := make([]T, len(values))
	copy(buf, values)

	lo, hi := 0, len(buf)
	for {
		if hi-lo == 1 {
			return buf[lo], nil
		}

		pivot := buf[lo+rng.Intn(hi-lo)]

		// three way partition of buf[lo:hi] into < pivot, == pivot, > pivot
		lt, i, gt := lo, lo, hi
		for i < gt {
			switch {
			case buf[i] < pivot:
				buf[lt], buf[i] = buf[i], buf[lt]
				lt++
				i++
			case pivot < buf[i]:
				gt--
				buf[gt], buf[i] = buf[i], buf[gt]
			default:
				i++
			}
		}

		switch {
		case k < lt:
			hi = lt
		case k < gt:
			return pivot, nil
		default:
			lo = gt
		}
	}
}
