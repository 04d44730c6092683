package index

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/bsp_tree"
	"github.com/ar90n/spilltree/common"
	"github.com/ar90n/spilltree/dataset"
	"github.com/ar90n/spilltree/linalg"
	"github.com/ar90n/spilltree/nn"
	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultTrees = 1
	maxTrees     = 1 << 16
)

// BspTreeIndex is a forest of trees over one dataset. A query's candidates
// are the union of the domains every tree returns for it.
type BspTreeIndex[T linalg.Number, L comparable] struct {
	Dataset *dataset.Dataset[T, L]
	Trees   []*bsp_tree.BspTree[T]
}

// Candidates returns the union of the member trees' query results in
// ascending order.
func (bsp *BspTreeIndex[T, L]) Candidates(query []T, minLeafSize int) ([]int, error) {
	if len(bsp.Trees) == 1 {
		return bsp.Trees[0].Query(query, minLeafSize)
	}

	bms := make([]*roaring.Bitmap, 0, len(bsp.Trees))
	for i, tree := range bsp.Trees {
		domain, err := tree.Query(query, minLeafSize)
		if err != nil {
			return nil, errors.Wrapf(err, "query tree %d", i)
		}

		bm := roaring.New()
		for _, idx := range domain {
			bm.Add(uint32(idx))
		}
		bms = append(bms, bm)
	}

	merged := roaring.FastOr(bms...)
	candidates := make([]int, 0, merged.GetCardinality())
	it := merged.Iterator()
	for it.HasNext() {
		candidates = append(candidates, int(it.Next()))
	}
	return candidates, nil
}

// Search returns the nearest candidate to query.
func (bsp *BspTreeIndex[T, L]) Search(query []T, minLeafSize int) (nn.Neighbor, error) {
	candidates, err := bsp.Candidates(query, minLeafSize)
	if err != nil {
		return nn.Neighbor{}, err
	}
	return nn.Nearest[T](bsp.Dataset, query, candidates)
}

// Classify returns the label of the nearest candidate.
func (bsp *BspTreeIndex[T, L]) Classify(query []T, minLeafSize int) (ret L, _ nn.Neighbor, _ error) {
	neighbor, err := bsp.Search(query, minLeafSize)
	if err != nil {
		return ret, neighbor, err
	}

	label, err := bsp.Dataset.LabelOf(neighbor.Index)
	if err != nil {
		return ret, neighbor, err
	}
	return label, neighbor, nil
}

// SpaceBlowup sums the member trees' blowup at minLeafSize.
func (bsp *BspTreeIndex[T, L]) SpaceBlowup(minLeafSize int) float64 {
	total := 0.0
	for _, tree := range bsp.Trees {
		total += tree.SpaceBlowup(minLeafSize)
	}
	return total
}

// Save writes the tree count followed by every tree.
func (bsp *BspTreeIndex[T, L]) Save(w io.Writer) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(bsp.Trees)))
	if _, err := w.Write(buf[:]); err != nil {
		return errors.Wrap(err, "write tree count")
	}

	for i, tree := range bsp.Trees {
		if err := tree.Save(w); err != nil {
			return errors.Wrapf(err, "save tree %d", i)
		}
	}
	return nil
}

type BspTreeIndexBuilder[T linalg.Number, L comparable] struct {
	trees          int
	maxGoroutines  int
	seed           int64
	logger         *slog.Logger
	bspTreeBuilder bsp_tree.BspTreeBuilder[T]
}

func NewBspTreeIndexBuilder[T linalg.Number, L comparable](bspTreeBuilder bsp_tree.BspTreeBuilder[T]) *BspTreeIndexBuilder[T, L] {
	return &BspTreeIndexBuilder[T, L]{
		trees:          defaultTrees,
		seed:           time.Now().UnixNano(),
		logger:         slog.Default(),
		bspTreeBuilder: bspTreeBuilder,
	}
}

func (btib *BspTreeIndexBuilder[T, L]) SetTrees(trees int) *BspTreeIndexBuilder[T, L] {
	btib.trees = trees
	return btib
}

func (btib *BspTreeIndexBuilder[T, L]) SetMaxGoroutines(maxGoroutines int) *BspTreeIndexBuilder[T, L] {
	btib.maxGoroutines = maxGoroutines
	return btib
}

// SetSeed fixes the generators: tree i is built from seed+i.
func (btib *BspTreeIndexBuilder[T, L]) SetSeed(seed int64) *BspTreeIndexBuilder[T, L] {
	btib.seed = seed
	return btib
}

func (btib *BspTreeIndexBuilder[T, L]) SetLogger(logger *slog.Logger) *BspTreeIndexBuilder[T, L] {
	btib.logger = logger
	return btib
}

func (btib *BspTreeIndexBuilder[T, L]) GetParameterString() string {
	return fmt.Sprintf("kind=%s_trees=%d_%s", btib.bspTreeBuilder.Kind(), btib.trees, btib.bspTreeBuilder.GetParameterString())
}

func (btib *BspTreeIndexBuilder[T, L]) Build(ctx context.Context, ds *dataset.Dataset[T, L]) (*BspTreeIndex[T, L], error) {
	if btib.trees < 1 || maxTrees < btib.trees {
		return nil, errors.Wrapf(spilltree.ErrInvalidParameter, "%d trees", btib.trees)
	}

	trees := make([]*bsp_tree.BspTree[T], btib.trees)
	p := pool.New().WithMaxGoroutines(common.GetProcNum(btib.maxGoroutines)).WithErrors()
	for i := 0; i < btib.trees; i++ {
		i := i
		p.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			tree, err := btib.bspTreeBuilder.Build(ds, rand.New(rand.NewSource(btib.seed+int64(i))))
			if err != nil {
				return errors.Wrapf(err, "build tree %d", i)
			}
			trees[i] = tree

			btib.logger.Debug("built tree",
				"kind", tree.Kind.String(),
				"tree", i,
				"nodes", tree.Len(),
				"depth", tree.Depth(),
				"elapsed", time.Since(start),
			)
			return nil
		})
	}

	err := p.Wait()
	if err != nil {
		return nil, err
	}

	return &BspTreeIndex[T, L]{
		Dataset: ds,
		Trees:   trees,
	}, nil
}

// LoadBspTreeIndex reads an index written by Save over the dataset it was
// built from.
func LoadBspTreeIndex[T linalg.Number, L comparable](r io.Reader, kind bsp_tree.Kind, splits int, ds *dataset.Dataset[T, L]) (*BspTreeIndex[T, L], error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read tree count"), spilltree.ErrCorruptTree)
	}
	count := binary.LittleEndian.Uint64(buf[:])
	if count == 0 || maxTrees < count {
		return nil, errors.Wrapf(spilltree.ErrCorruptTree, "%d trees", count)
	}

	trees := make([]*bsp_tree.BspTree[T], count)
	for i := range trees {
		tree, err := bsp_tree.Load[T](r, kind, splits, ds)
		if err != nil {
			return nil, errors.Wrapf(err, "load tree %d", i)
		}
		trees[i] = tree
	}

	return &BspTreeIndex[T, L]{
		Dataset: ds,
		Trees:   trees,
	}, nil
}
