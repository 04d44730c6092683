package nn

import (
	"context"

	"github.com/ar90n/spilltree/common"
	"github.com/ar90n/spilltree/cut_plane"
	"github.com/ar90n/spilltree/linalg"
	"golang.org/x/sync/errgroup"
)

type chunk struct {
	Begin int
	End   int
}

func getChunks(n, procs int) []chunk {
	procs = min(common.GetProcNum(procs), max(n, 1))
	bs := n / procs
	rem := n % procs

	chunks := make([]chunk, 0, procs)
	bi := 0
	for i := 0; i < procs; i++ {
		ei := bi + bs
		if i < rem {
			ei += 1
		}
		chunks = append(chunks, chunk{Begin: bi, End: ei})
		bi = ei
	}
	return chunks
}

// GroundTruth computes the exact k nearest members of domain for every
// query, spreading the queries over at most procs goroutines.
func GroundTruth[T linalg.Number](ctx context.Context, points cut_plane.Vectors[T], domain []int, queries [][]T, k, procs int) ([][]Neighbor, error) {
	truth := make([][]Neighbor, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range getChunks(len(queries), procs) {
		c := c
		g.Go(func() error {
			for i := c.Begin; i < c.End; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}

				neighbors, err := KNearest(points, queries[i], domain, k)
				if err != nil {
					return err
				}
				truth[i] = neighbors
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return truth, nil
}
