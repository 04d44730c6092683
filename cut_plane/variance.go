package cut_plane

import (
	"math/rand"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

// Vectors resolves root indices to vectors.
type Vectors[T linalg.Number] interface {
	Vector(idx int) []T
	Dim() int
}

// Variances returns, per coordinate, the mean squared deviation from the
// coordinate's median over domain. A positive sampleSize limits the statistic
// to the first sampleSize members.
func Variances[T linalg.Number](vectors Vectors[T], domain []int, sampleSize int, rng *rand.Rand) ([]float64, error) {
	if len(domain) == 0 {
		return nil, spilltree.ErrEmptyDomain
	}
	if 0 < sampleSize && sampleSize < len(domain) {
		domain = domain[:sampleSize]
	}

	dim := vectors.Dim()
	variances := make([]float64, dim)
	values := make([]T, len(domain))
	for j := 0; j < dim; j++ {
		for i, idx := range domain {
			values[i] = vectors.Vector(idx)[j]
		}

		median, err := linalg.Selector(values, len(values)/2, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "median of coordinate %d", j)
		}

		acc := 0.0
		for _, v := range values {
			diff := float64(v) - float64(median)
			acc += diff * diff
		}
		variances[j] = acc / float64(len(values))
	}

	return variances, nil
}

// MaxVarianceAxis returns the first coordinate with the greatest variance.
func MaxVarianceAxis(variances []float64) int {
	axis := 0
	for i, v := range variances {
		if variances[axis] < v {
			axis = i
		}
	}
	return axis
}

// RandomizedAxis picks uniformly among the coordinates whose variance is at
// least the topK-th largest.
func RandomizedAxis(variances []float64, topK int, rng *rand.Rand) (int, error) {
	if topK <= 1 || len(variances) <= 1 {
		return MaxVarianceAxis(variances), nil
	}
	topK = min(topK, len(variances))

	threshold, err := linalg.Selector(variances, len(variances)-topK, rng)
	if err != nil {
		return 0, err
	}

	candidates := make([]int, 0, topK)
	for i, v := range variances {
		if threshold <= v {
			candidates = append(candidates, i)
		}
	}
	return candidates[rng.Intn(len(candidates))], nil
}
