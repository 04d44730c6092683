package bench

import (
	"io"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/bsp_tree"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// FlatVariant names the exact linear scan baseline.
const FlatVariant = "flat"

// Config describes a benchmark grid. Leaf sizes are fractions of the
// training set size.
type Config struct {
	Variants      []string  `yaml:"variants"`
	MinLeaf       float64   `yaml:"min_leaf"`
	LeafSizes     []float64 `yaml:"leaf_sizes"`
	SpillFactors  []float64 `yaml:"spill_factors"`
	Splits        int       `yaml:"splits"`
	Forests       []int     `yaml:"forests"`
	Seed          int64     `yaml:"seed"`
	MaxGoroutines int       `yaml:"max_goroutines"`
}

func DefaultConfig() Config {
	variants := []string{FlatVariant}
	for _, kind := range bsp_tree.Kinds() {
		variants = append(variants, kind.String())
	}

	return Config{
		Variants:     variants,
		MinLeaf:      0.0001,
		LeafSizes:    []float64{0.001, 0.002, 0.004, 0.006, 0.008, 0.01, 0.015, 0.02, 0.03, 0.05},
		SpillFactors: []float64{0.05, 0.1},
		Splits:       3,
		Forests:      []int{2, 4, 8},
		Seed:         1,
	}
}

// LoadConfig reads a YAML config. Fields it leaves out keep their defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// kinds parses the tree variants, skipping the flat baseline.
func (c Config) kinds() ([]bsp_tree.Kind, error) {
	kinds := make([]bsp_tree.Kind, 0, len(c.Variants))
	for _, name := range c.Variants {
		if name == FlatVariant {
			continue
		}
		kind, err := bsp_tree.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func (c Config) Validate() error {
	kinds, err := c.kinds()
	if err != nil {
		return err
	}
	if len(c.Variants) == 0 {
		return errors.Wrap(spilltree.ErrInvalidParameter, "no variants")
	}

	if c.MinLeaf <= 0 || 1 <= c.MinLeaf {
		return errors.Wrapf(spilltree.ErrInvalidParameter, "min leaf %g", c.MinLeaf)
	}
	if len(c.LeafSizes) == 0 {
		return errors.Wrap(spilltree.ErrInvalidParameter, "no leaf sizes")
	}
	for _, l := range c.LeafSizes {
		if l <= 0 || 1 < l {
			return errors.Wrapf(spilltree.ErrInvalidParameter, "leaf size %g", l)
		}
	}

	for _, kind := range kinds {
		switch {
		case kind.IsSpill() && len(c.SpillFactors) == 0:
			return errors.Wrapf(spilltree.ErrInvalidParameter, "%s needs spill factors", kind)
		case randomized(kind) && len(c.Forests) == 0:
			return errors.Wrapf(spilltree.ErrInvalidParameter, "%s needs forest sizes", kind)
		}
	}
	for _, trees := range c.Forests {
		if trees < 1 {
			return errors.Wrapf(spilltree.ErrInvalidParameter, "forest of %d trees", trees)
		}
	}
	return nil
}

// randomized kinds are benchmarked as forests.
func randomized(kind bsp_tree.Kind) bool {
	switch kind {
	case bsp_tree.KindRkd, bsp_tree.KindRp, bsp_tree.KindRpDiff:
		return true
	}
	return false
}
