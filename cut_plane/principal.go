package cut_plane

import (
	"math/rand"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const DefaultPrincipalSampleSize = 1000

// PrincipalDirection returns the eigenvector of the largest eigenvalue of the
// covariance of at most sampleSize randomly chosen domain members.
func PrincipalDirection[T linalg.Number](vectors Vectors[T], domain []int, sampleSize int, rng *rand.Rand) ([]float64, error) {
	if len(domain) == 0 {
		return nil, spilltree.ErrEmptyDomain
	}

	dim := vectors.Dim()
	samples := domain
	if 0 < sampleSize && sampleSize < len(domain) {
		samples = make([]int, sampleSize)
		for i, j := range rng.Perm(len(domain))[:sampleSize] {
			samples[i] = domain[j]
		}
	}
	if len(samples) < 2 || dim == 0 {
		return linalg.RandomDirection(dim, rng), nil
	}

	data := make([]float64, 0, len(samples)*dim)
	for _, idx := range samples {
		for _, v := range vectors.Vector(idx) {
			data = append(data, float64(v))
		}
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, mat.NewDense(len(samples), dim, data), nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, errors.Newf("eigen decomposition of %dx%d covariance failed", dim, dim)
	}

	// eigenvalues come back in ascending order
	var eigVectors mat.Dense
	eig.VectorsTo(&eigVectors)
	return mat.Col(nil, dim-1, &eigVectors), nil
}
