package nn

import (
	"cmp"
	"slices"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/collection"
	"github.com/ar90n/spilltree/cut_plane"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

// Neighbor is a root index with its squared distance to the query.
type Neighbor struct {
	Index    int
	Distance float64
}

func compareNeighbors(a, b Neighbor) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// Nearest scans domain for the member closest to query. Ties go to the
// earliest member.
func Nearest[T linalg.Number](points cut_plane.Vectors[T], query []T, domain []int) (Neighbor, error) {
	if len(domain) == 0 {
		return Neighbor{}, spilltree.ErrEmptyDomain
	}

	best := Neighbor{Index: -1}
	for _, idx := range domain {
		dist, err := linalg.DistanceSquared(query, points.Vector(idx))
		if err != nil {
			return Neighbor{}, err
		}
		if best.Index < 0 || dist < best.Distance {
			best = Neighbor{Index: idx, Distance: dist}
		}
	}

	return best, nil
}

// KNearest returns the k members closest to query in ascending distance.
func KNearest[T linalg.Number](points cut_plane.Vectors[T], query []T, domain []int, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, errors.Wrapf(spilltree.ErrInvalidParameter, "k = %d", k)
	}

	// max heap on distance holding the best k so far
	queue := collection.NewPriorityQueue[Neighbor](k + 1)
	for _, idx := range domain {
		dist, err := linalg.DistanceSquared(query, points.Vector(idx))
		if err != nil {
			return nil, err
		}

		queue.Push(Neighbor{Index: idx, Distance: dist}, -dist)
		if k < queue.Len() {
			if _, err := queue.Pop(); err != nil {
				return nil, err
			}
		}
	}

	neighbors := make([]Neighbor, 0, queue.Len())
	for 0 < queue.Len() {
		n, err := queue.Pop()
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, n)
	}
	slices.SortFunc(neighbors, compareNeighbors)

	return neighbors, nil
}

// CApproximate returns every member of domain whose squared distance to
// query is at most c times the squared distance of the nearest member.
func CApproximate[T linalg.Number](points cut_plane.Vectors[T], query []T, domain []int, c float64) ([]int, error) {
	nearest, err := Nearest(points, query, domain)
	if err != nil {
		return nil, err
	}

	bound := c * nearest.Distance
	result := []int{}
	for _, idx := range domain {
		dist, err := linalg.DistanceSquared(query, points.Vector(idx))
		if err != nil {
			return nil, err
		}
		if dist <= bound {
			result = append(result, idx)
		}
	}

	return result, nil
}
