package bench

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/bsp_tree"
	"github.com/ar90n/spilltree/common"
	"github.com/ar90n/spilltree/dataset"
	"github.com/ar90n/spilltree/index"
	"github.com/ar90n/spilltree/linalg"
	"github.com/ar90n/spilltree/nn"
	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc/pool"
)

// Row is the outcome of one grid point at one query leaf size.
type Row struct {
	Variant     string
	Trees       int
	SpillFactor float64
	LeafSize    float64
	ErrorRate   float64
	TrueNN      float64
	Subdomain   float64
	SpaceBlowup float64
	Err         error
}

// Name identifies the index a row was measured on.
func (r Row) Name() string {
	switch {
	case 1 < r.Trees:
		return fmt.Sprintf("%s_%d", r.Variant, r.Trees)
	case 0 < r.SpillFactor:
		return fmt.Sprintf("%s_%g", r.Variant, r.SpillFactor)
	}
	return r.Variant
}

type point struct {
	flat        bool
	kind        bsp_tree.Kind
	trees       int
	spillFactor float64
}

type Runner[T linalg.Number, L comparable] struct {
	config Config
	train  *dataset.Dataset[T, L]
	test   *dataset.Dataset[T, L]
	logger *slog.Logger
}

// NewRunner scores indexes built over train against the labeled queries in
// test.
func NewRunner[T linalg.Number, L comparable](config Config, train, test *dataset.Dataset[T, L]) *Runner[T, L] {
	return &Runner[T, L]{
		config: config,
		train:  train,
		test:   test,
		logger: slog.Default(),
	}
}

func (r *Runner[T, L]) SetLogger(logger *slog.Logger) *Runner[T, L] {
	r.logger = logger
	return r
}

func (r *Runner[T, L]) points() ([]point, error) {
	points := []point{}
	for _, name := range r.config.Variants {
		if name == FlatVariant {
			points = append(points, point{flat: true, trees: 1})
			continue
		}
		kind, err := bsp_tree.ParseKind(name)
		if err != nil {
			return nil, err
		}

		switch {
		case randomized(kind):
			for _, trees := range r.config.Forests {
				points = append(points, point{kind: kind, trees: trees})
			}
		case kind.IsSpill():
			for _, f := range r.config.SpillFactors {
				points = append(points, point{kind: kind, trees: 1, spillFactor: f})
			}
		default:
			points = append(points, point{kind: kind, trees: 1})
		}
	}
	return points, nil
}

// Run sweeps the grid. A grid point that fails to build or query reports
// the failure in the Err of its rows and does not stop the others.
func (r *Runner[T, L]) Run(ctx context.Context) ([]Row, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	if !r.train.Labeled() || !r.test.Labeled() {
		return nil, errors.Wrap(spilltree.ErrUnlabeled, "benchmark datasets")
	}
	if r.train.Len() == 0 {
		return nil, errors.Wrap(spilltree.ErrEmptyDomain, "training set")
	}
	if r.train.Dim() != r.test.Dim() {
		return nil, errors.Wrapf(spilltree.ErrDimensionMismatch, "train %d, test %d", r.train.Dim(), r.test.Dim())
	}

	points, err := r.points()
	if err != nil {
		return nil, err
	}

	queries := make([][]T, r.test.Len())
	for i := range queries {
		queries[i] = r.test.At(i)
	}

	start := time.Now()
	truth, err := nn.GroundTruth[T](ctx, r.train, r.train.Domain(), queries, 1, r.config.MaxGoroutines)
	if err != nil {
		return nil, errors.Wrap(err, "ground truth")
	}
	r.logger.Info("computed ground truth", "queries", len(queries), "elapsed", time.Since(start))

	results := make([][]Row, len(points))
	p := pool.New().WithMaxGoroutines(common.GetProcNum(r.config.MaxGoroutines))
	for i, pt := range points {
		i, pt := i, pt
		p.Go(func() {
			results[i] = r.runPoint(ctx, pt, queries, truth)
		})
	}
	p.Wait()

	rows := []Row{}
	for _, rs := range results {
		rows = append(rows, rs...)
	}
	return rows, nil
}

func (r *Runner[T, L]) runPoint(ctx context.Context, pt point, queries [][]T, truth [][]nn.Neighbor) []Row {
	variant := FlatVariant
	if !pt.flat {
		variant = pt.kind.String()
	}

	rows := make([]Row, len(r.config.LeafSizes))
	for i, leaf := range r.config.LeafSizes {
		rows[i] = Row{
			Variant:     variant,
			Trees:       pt.trees,
			SpillFactor: pt.spillFactor,
			LeafSize:    leaf,
		}
	}
	fail := func(err error) []Row {
		r.logger.Warn("grid point failed", "index", rows[0].Name(), "err", err)
		for i := range rows {
			rows[i].Err = err
		}
		return rows
	}

	start := time.Now()
	idx, err := r.build(ctx, pt)
	if err != nil {
		return fail(err)
	}
	r.logger.Info("built index", "index", rows[0].Name(), "elapsed", time.Since(start))

	for i := range rows {
		if err := r.score(ctx, idx, &rows[i], queries, truth); err != nil {
			rows[i].Err = err
			r.logger.Warn("scoring failed", "index", rows[i].Name(), "leaf", rows[i].LeafSize, "err", err)
		}
	}
	return rows
}

func (r *Runner[T, L]) build(ctx context.Context, pt point) (index.Index[T, L], error) {
	if pt.flat {
		return index.NewFlatIndex(r.train), nil
	}

	builder, err := bsp_tree.NewBuilder[T](pt.kind, bsp_tree.BuilderOptions{
		MinLeafSize: max(int(r.config.MinLeaf*float64(r.train.Len())), 2),
		SpillFactor: pt.spillFactor,
		Splits:      r.config.Splits,
	})
	if err != nil {
		return nil, err
	}

	return index.NewBspTreeIndexBuilder[T, L](builder).
		SetTrees(pt.trees).
		SetSeed(r.config.Seed).
		SetMaxGoroutines(1).
		SetLogger(r.logger).
		Build(ctx, r.train)
}

func (r *Runner[T, L]) score(ctx context.Context, idx index.Index[T, L], row *Row, queries [][]T, truth [][]nn.Neighbor) error {
	leafSize := max(int(row.LeafSize*float64(r.train.Len())), 1)

	errorCount := 0
	trueNNCount := 0
	subdomain := 0
	for i, query := range queries {
		if err := ctx.Err(); err != nil {
			return err
		}

		candidates, err := idx.Candidates(query, leafSize)
		if err != nil {
			return err
		}
		neighbor, err := nn.Nearest[T](r.train, query, candidates)
		if err != nil {
			return err
		}

		predicted, err := r.train.LabelOf(neighbor.Index)
		if err != nil {
			return err
		}
		want, err := r.test.LabelAt(i)
		if err != nil {
			return err
		}
		if predicted != want {
			errorCount++
		}
		if neighbor.Index == truth[i][0].Index {
			trueNNCount++
		}
		subdomain += len(candidates)
	}

	if m := float64(len(queries)); 0 < m {
		row.ErrorRate = float64(errorCount) / m
		row.TrueNN = float64(trueNNCount) / m
		row.Subdomain = float64(subdomain) / m
	}
	row.SpaceBlowup = idx.SpaceBlowup(leafSize)
	return nil
}
