package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/bench"
	"github.com/ar90n/spilltree/bsp_tree"
	"github.com/ar90n/spilltree/dataset"
	"github.com/ar90n/spilltree/index"
	"github.com/ar90n/spilltree/linalg"
	"github.com/ar90n/spilltree/nn"
	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"
)

type label = uint8

func loadDataset[T linalg.Number](vectorPath, labelPath string) (*dataset.Dataset[T, label], error) {
	r, err := spilltree.Open(vectorPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	ds, err := dataset.Load[T, label](r)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", vectorPath)
	}

	if labelPath == "" {
		return ds, nil
	}
	lr, err := spilltree.Open(labelPath)
	if err != nil {
		return nil, err
	}
	defer lr.Close()

	if err := ds.Label(lr); err != nil {
		return nil, errors.Wrapf(err, "label %s", labelPath)
	}
	return ds, nil
}

func createBuilder[T linalg.Number](c *cli.Context) (*index.BspTreeIndexBuilder[T, label], error) {
	kind, err := bsp_tree.ParseKind(c.String("variant"))
	if err != nil {
		return nil, err
	}

	treeBuilder, err := bsp_tree.NewBuilder[T](kind, bsp_tree.BuilderOptions{
		MinLeafSize:    c.Int("min-leaf"),
		SpillFactor:    c.Float64("spill-factor"),
		Splits:         c.Int("splits"),
		TopKCandidates: c.Int("top-k"),
		SampleFeatures: c.Int("sample-features"),
	})
	if err != nil {
		return nil, err
	}

	builder := index.NewBspTreeIndexBuilder[T, label](treeBuilder).
		SetTrees(c.Int("trees")).
		SetMaxGoroutines(c.Int("goroutines"))
	if c.IsSet("seed") {
		builder.SetSeed(c.Int64("seed"))
	}
	return builder, nil
}

func build[T linalg.Number](c *cli.Context) error {
	ds, err := loadDataset[T](c.String("data"), "")
	if err != nil {
		return err
	}

	builder, err := createBuilder[T](c)
	if err != nil {
		return err
	}

	slog.Info("building index", "vectors", ds.Len(), "dim", ds.Dim(), "params", builder.GetParameterString())
	idx, err := builder.Build(c.Context, ds)
	if err != nil {
		return err
	}

	w, err := spilltree.Create(c.String("output"))
	if err != nil {
		return err
	}
	if err := idx.Save(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	slog.Info("saved index", "path", c.String("output"), "blowup", idx.SpaceBlowup(0))
	return nil
}

func loadIndex[T linalg.Number](c *cli.Context, ds *dataset.Dataset[T, label]) (*index.BspTreeIndex[T, label], error) {
	kind, err := bsp_tree.ParseKind(c.String("variant"))
	if err != nil {
		return nil, err
	}
	splits := 2
	if kind == bsp_tree.KindNSpill {
		splits = c.Int("splits")
	}

	r, err := spilltree.Open(c.String("index"))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return index.LoadBspTreeIndex[T, label](r, kind, splits, ds)
}

func query[T linalg.Number](c *cli.Context) error {
	ds, err := loadDataset[T](c.String("data"), c.String("labels"))
	if err != nil {
		return err
	}
	queries, err := loadDataset[T](c.String("queries"), "")
	if err != nil {
		return err
	}

	var idx index.Index[T, label]
	if c.String("variant") == bench.FlatVariant {
		idx = index.NewFlatIndex(ds)
	} else if idx, err = loadIndex[T](c, ds); err != nil {
		return err
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	leafSize := c.Int("leaf-size")
	for i := 0; i < queries.Len(); i++ {
		candidates, err := idx.Candidates(queries.At(i), leafSize)
		if err != nil {
			return errors.Wrapf(err, "query %d", i)
		}

		if !ds.Labeled() {
			neighbor, err := nn.Nearest[T](ds, queries.At(i), candidates)
			if err != nil {
				return errors.Wrapf(err, "query %d", i)
			}
			fmt.Fprintf(w, "%d\t%d\t%g\t%d\n", i, neighbor.Index, neighbor.Distance, len(candidates))
			continue
		}

		l, neighbor, err := idx.Classify(queries.At(i), leafSize)
		if err != nil {
			return errors.Wrapf(err, "query %d", i)
		}
		fmt.Fprintf(w, "%d\t%d\t%g\t%d\t%d\n", i, neighbor.Index, neighbor.Distance, len(candidates), l)
	}
	return nil
}

func truth[T linalg.Number](c *cli.Context) error {
	ds, err := loadDataset[T](c.String("data"), "")
	if err != nil {
		return err
	}
	queries, err := loadDataset[T](c.String("queries"), "")
	if err != nil {
		return err
	}

	features := make([][]T, queries.Len())
	for i := range features {
		features[i] = queries.At(i)
	}
	neighbors, err := nn.GroundTruth[T](c.Context, ds, ds.Domain(), features, c.Int("k"), c.Int("goroutines"))
	if err != nil {
		return err
	}

	indices := make([][]uint32, len(neighbors))
	for i, ns := range neighbors {
		indices[i] = make([]uint32, len(ns))
		for j, n := range ns {
			indices[i][j] = uint32(n.Index)
		}
	}

	w, err := spilltree.Create(c.String("output"))
	if err != nil {
		return err
	}
	if err := dataset.WriteVectors(w, indices); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func runBench[T linalg.Number](c *cli.Context) error {
	cfg := bench.DefaultConfig()
	if path := c.String("config"); path != "" {
		r, err := spilltree.Open(path)
		if err != nil {
			return err
		}
		cfg, err = bench.LoadConfig(r)
		r.Close()
		if err != nil {
			return err
		}
	}

	train, err := loadDataset[T](c.String("train"), c.String("train-labels"))
	if err != nil {
		return err
	}
	test, err := loadDataset[T](c.String("test"), c.String("test-labels"))
	if err != nil {
		return err
	}

	rows, err := bench.NewRunner(cfg, train, test).Run(c.Context)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if path := c.String("output"); path != "" {
		f, err := spilltree.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return bench.WriteDat(w, rows)
}

// withDtype dispatches an action on the component type named by --dtype.
func withDtype(f32, f64, u8 cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		switch dtype := c.String("dtype"); dtype {
		case "float32":
			return f32(c)
		case "float64":
			return f64(c)
		case "uint8":
			return u8(c)
		default:
			return errors.Newf("unknown dtype: %s", dtype)
		}
	}
}

var profileFile *os.File

func setup(c *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if path := c.String("profile-output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
		profileFile = f
	}
	return nil
}

func teardown(*cli.Context) error {
	if profileFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	return profileFile.Close()
}

func main() {
	dtypeFlag := &cli.StringFlag{
		Name:  "dtype",
		Value: "float32",
		Usage: "component type: float32, float64 or uint8",
	}
	variantFlag := &cli.StringFlag{
		Name:  "variant",
		Value: bsp_tree.KindKd.String(),
		Usage: "index variant: " + strings.Join(variantNames(), ", "),
	}
	splitsFlag := &cli.IntFlag{
		Name:  "splits",
		Value: 3,
		Usage: "children per node of n-spill-tree",
	}
	goroutinesFlag := &cli.IntFlag{
		Name:  "goroutines",
		Usage: "worker goroutines, 0 for one per CPU",
	}

	app := &cli.App{
		Name:     "spilltree",
		HelpName: "spilltree",
		Usage:    "build and query space partitioning trees for nearest neighbor search",
		Before:   setup,
		After:    teardown,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "profile-output",
				Usage: "cpu profile output file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "build an index over a vector file",
				UsageText: "spilltree build [command options]",
				Action:    withDtype(build[float32], build[float64], build[uint8]),
				Flags: []cli.Flag{
					dtypeFlag,
					variantFlag,
					splitsFlag,
					goroutinesFlag,
					&cli.StringFlag{Name: "data", Required: true, Usage: "vector file"},
					&cli.StringFlag{Name: "output", Value: "index.bin", Usage: "index file, compressed when ending in .zst or .lz4"},
					&cli.IntFlag{Name: "min-leaf", Value: 16, Usage: "nodes with fewer members become leaves"},
					&cli.Float64Flag{Name: "spill-factor", Usage: "spill factor of spill variants, 0 for the default"},
					&cli.IntFlag{Name: "top-k", Usage: "axis candidates of rkd-tree, 0 for the default"},
					&cli.IntFlag{Name: "sample-features", Usage: "members sampled for axis variances, 0 for all"},
					&cli.IntFlag{Name: "trees", Value: 1, Usage: "number of trees"},
					&cli.Int64Flag{Name: "seed", Usage: "random seed"},
				},
			},
			{
				Name:      "query",
				Usage:     "find the nearest neighbor of every query vector",
				UsageText: "spilltree query [command options]",
				Action:    withDtype(query[float32], query[float64], query[uint8]),
				Flags: []cli.Flag{
					dtypeFlag,
					variantFlag,
					splitsFlag,
					&cli.StringFlag{Name: "data", Required: true, Usage: "vector file the index was built over"},
					&cli.StringFlag{Name: "labels", Usage: "label file of the data"},
					&cli.StringFlag{Name: "index", Value: "index.bin", Usage: "index file"},
					&cli.StringFlag{Name: "queries", Required: true, Usage: "query vector file"},
					&cli.IntFlag{Name: "leaf-size", Usage: "stop descending at nodes with fewer members"},
				},
			},
			{
				Name:      "truth",
				Usage:     "compute exact k nearest neighbors",
				UsageText: "spilltree truth [command options]",
				Action:    withDtype(truth[float32], truth[float64], truth[uint8]),
				Flags: []cli.Flag{
					dtypeFlag,
					goroutinesFlag,
					&cli.StringFlag{Name: "data", Required: true, Usage: "vector file"},
					&cli.StringFlag{Name: "queries", Required: true, Usage: "query vector file"},
					&cli.IntFlag{Name: "k", Value: 1, Usage: "neighbors per query"},
					&cli.StringFlag{Name: "output", Value: "truth.bin", Usage: "neighbor index file"},
				},
			},
			{
				Name:      "bench",
				Usage:     "sweep a parameter grid and report accuracy",
				UsageText: "spilltree bench [command options]",
				Action:    withDtype(runBench[float32], runBench[float64], runBench[uint8]),
				Flags: []cli.Flag{
					dtypeFlag,
					&cli.StringFlag{Name: "config", Usage: "YAML grid config"},
					&cli.StringFlag{Name: "train", Required: true, Usage: "training vector file"},
					&cli.StringFlag{Name: "train-labels", Required: true, Usage: "training label file"},
					&cli.StringFlag{Name: "test", Required: true, Usage: "test vector file"},
					&cli.StringFlag{Name: "test-labels", Required: true, Usage: "test label file"},
					&cli.StringFlag{Name: "output", Usage: "dat file, stdout when empty"},
				},
			},
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		slog.Error("spilltree failed", "err", err)
		os.Exit(1)
	}
}

func variantNames() []string {
	names := []string{bench.FlatVariant}
	for _, kind := range bsp_tree.Kinds() {
		names = append(names, kind.String())
	}
	return names
}
