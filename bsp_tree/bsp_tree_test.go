package bsp_tree

import (
	"bytes"
	"math"
	"math/rand"
	"slices"
	"sort"
	"testing"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/dataset"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridDataset(t *testing.T) *dataset.Dataset[float32, uint8] {
	ds, err := dataset.FromVectors[float32, uint8]([][]float32{
		{0, 0}, {1, 0}, {2, 0}, {3, 0},
		{0, 1}, {1, 1}, {2, 1}, {3, 1},
	})
	require.NoError(t, err)
	return ds
}

func randomDataset(t *testing.T, n, dim int, seed int64) *dataset.Dataset[float32, uint8] {
	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		vectors[i] = v
	}

	ds, err := dataset.FromVectors[float32, uint8](vectors)
	require.NoError(t, err)
	return ds
}

func lineDataset(t *testing.T, n int) *dataset.Dataset[float64, uint8] {
	vectors := make([][]float64, n)
	for i := range vectors {
		vectors[i] = []float64{float64(i)}
	}

	ds, err := dataset.FromVectors[float64, uint8](vectors)
	require.NoError(t, err)
	return ds
}

func sorted(vs []int) []int {
	ret := slices.Clone(vs)
	sort.Ints(ret)
	return ret
}

func union(domains ...[]int) []int {
	set := map[int]struct{}{}
	for _, d := range domains {
		for _, idx := range d {
			set[idx] = struct{}{}
		}
	}

	ret := make([]int, 0, len(set))
	for idx := range set {
		ret = append(ret, idx)
	}
	sort.Ints(ret)
	return ret
}

// checkPartitions verifies the leaf size bound and that the children of every
// internal node cover its domain.
func checkPartitions[T float32 | float64](t *testing.T, tree *BspTree[T], minLeafSize int, disjoint bool) {
	for h := range tree.Nodes {
		node := tree.Node(uint(h))
		if node.IsLeaf() {
			assert.Less(t, len(node.Domain), minLeafSize, "leaf %d", h)
			continue
		}

		domains := [][]int{}
		total := 0
		for _, c := range node.Children {
			child := tree.Node(c).Domain
			domains = append(domains, child)
			total += len(child)
		}
		assert.Equal(t, sorted(node.Domain), union(domains...), "node %d", h)
		if disjoint {
			assert.Equal(t, len(node.Domain), total, "node %d", h)
			assert.Equal(t, len(node.Domain)/2, len(domains[0]), "node %d", h)
		}
	}
}

func Test_KdTreeGrid(t *testing.T) {
	ds := gridDataset(t)
	tree, err := NewKdTreeBuilder[float32]().SetMinLeafSize(2).Build(ds, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	root := tree.Root()
	require.Len(t, root.Children, 2)
	assert.Equal(t, []int{0, 1, 4, 5}, tree.Node(root.Children[0]).Domain)
	assert.Equal(t, []int{2, 3, 6, 7}, tree.Node(root.Children[1]).Domain)

	got, err := tree.Query([]float32{0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)
	assert.NotContains(t, got, 7)

	checkPartitions(t, tree, 2, true)
}

func Test_BinaryTreePartitions(t *testing.T) {
	ds := randomDataset(t, 200, 4, 11)
	for _, kind := range []Kind{KindKd, KindRkd, KindPca, KindRp, KindRpDiff} {
		builder, err := NewBuilder[float32](kind, BuilderOptions{MinLeafSize: 8})
		require.NoError(t, err)
		assert.Equal(t, kind, builder.Kind())

		tree, err := builder.Build(ds, rand.New(rand.NewSource(2)))
		require.NoError(t, err, kind.String())
		assert.Equal(t, 200, len(tree.Root().Domain))
		checkPartitions(t, tree, 8, true)
		assert.Equal(t, 1.0, tree.SpaceBlowup(8), kind.String())

		for i := 0; i < 20; i++ {
			got, err := tree.Query(ds.At(i), 8)
			require.NoError(t, err)
			assert.Less(t, len(got), 8, kind.String())
		}
	}
}

func Test_KdTreeHeavyTies(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	vectors := make([][]uint8, 101)
	for i := range vectors {
		vectors[i] = []uint8{uint8(rng.Intn(2)), uint8(rng.Intn(2)), 1}
	}
	ds, err := dataset.FromVectors[uint8, uint8](vectors)
	require.NoError(t, err)

	tree, err := NewKdTreeBuilder[uint8]().SetMinLeafSize(2).Build(ds, rng)
	require.NoError(t, err)

	for h := range tree.Nodes {
		node := tree.Node(uint(h))
		if node.IsLeaf() {
			assert.Less(t, len(node.Domain), 2)
			continue
		}
		left := tree.Node(node.Children[0]).Domain
		right := tree.Node(node.Children[1]).Domain
		assert.Equal(t, len(node.Domain)/2, len(left))
		assert.Equal(t, len(node.Domain)-len(node.Domain)/2, len(right))
	}
	assert.Equal(t, 101, tree.Leaves())
}

func Test_RankCut(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	values := []int{5, 5, 5, 5}
	keys := []float64{3, 1, 2, 1}

	type TestCase struct {
		Name     string
		Rank     int
		Below    []bool
		TiePivot float64
	}

	for _, tc := range []TestCase{
		{Name: "none", Rank: 0, Below: []bool{false, false, false, false}, TiePivot: math.Inf(-1)},
		{Name: "two", Rank: 2, Below: []bool{false, true, false, true}, TiePivot: 1},
		{Name: "three", Rank: 3, Below: []bool{false, true, true, true}, TiePivot: 2},
		{Name: "all", Rank: 4, Below: []bool{true, true, true, true}, TiePivot: 3},
	} {
		c, err := newRankCut(values, keys, tc.Rank, rng)
		require.NoError(t, err, tc.Name)
		assert.Equal(t, 5, c.Pivot, tc.Name)
		assert.Equal(t, tc.TiePivot, c.TiePivot, tc.Name)
		for i, want := range tc.Below {
			assert.Equal(t, want, c.Below(i), "%s: %d", tc.Name, i)
		}
	}

	_, err := newRankCut(values, keys, 5, rng)
	assert.True(t, errors.Is(err, spilltree.ErrDegeneratePartition))
}

func Test_RankCutPositionOrder(t *testing.T) {
	c, err := newRankCut([]float64{2, 1, 2, 2, 3}, nil, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 2.0, c.Pivot)
	assert.Equal(t, []bool{true, true, true, false, false}, c.below)
}

func Test_KdSpillTree(t *testing.T) {
	ds := lineDataset(t, 100)
	tree, err := NewKdSpillTreeBuilder[float64]().
		SetMinLeafSize(2).
		SetSpillFactor(0.25).
		Build(ds, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	root := tree.Root()
	left := tree.Node(root.Children[0]).Domain
	right := tree.Node(root.Children[1]).Domain
	assert.Len(t, left, 75)
	assert.Len(t, right, 75)
	assert.Contains(t, left, 50)
	assert.Contains(t, right, 50)

	for h := range tree.Nodes {
		node := tree.Node(uint(h))
		if node.IsLeaf() {
			assert.Less(t, len(node.Domain), 2)
			continue
		}
		leftExcl, spill, rightExcl := spillSizes(len(node.Domain), 0.25)
		assert.Len(t, tree.Node(node.Children[0]).Domain, leftExcl+spill)
		assert.Len(t, tree.Node(node.Children[1]).Domain, rightExcl+spill)
	}
	checkPartitions(t, tree, 2, false)
	assert.Greater(t, tree.SpaceBlowup(2), 1.0)
}

func Test_SpillSizes(t *testing.T) {
	type TestCase struct {
		N           int
		SpillFactor float64
		Want        [3]int
	}

	for _, tc := range []TestCase{
		{N: 100, SpillFactor: 0.25, Want: [3]int{25, 50, 25}},
		{N: 100, SpillFactor: 0, Want: [3]int{50, 0, 50}},
		{N: 7, SpillFactor: 0, Want: [3]int{3, 0, 4}},
		{N: 2, SpillFactor: 0.25, Want: [3]int{1, 0, 1}},
		{N: 3, SpillFactor: 0.45, Want: [3]int{1, 1, 1}},
	} {
		leftExcl, spill, rightExcl := spillSizes(tc.N, tc.SpillFactor)
		assert.Equal(t, tc.Want, [3]int{leftExcl, spill, rightExcl}, "%d %g", tc.N, tc.SpillFactor)
	}
}

func Test_PcaSpillTree(t *testing.T) {
	ds := randomDataset(t, 300, 3, 5)
	tree, err := NewPcaTreeBuilder[float32]().
		SetMinLeafSize(10).
		SetSpillFactor(0.1).
		Build(ds, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, KindPcaSpill, tree.Kind)

	for h := range tree.Nodes {
		node := tree.Node(uint(h))
		if node.IsLeaf() {
			continue
		}
		leftExcl, spill, rightExcl := spillSizes(len(node.Domain), 0.1)
		assert.Len(t, tree.Node(node.Children[0]).Domain, leftExcl+spill)
		assert.Len(t, tree.Node(node.Children[1]).Domain, rightExcl+spill)
	}
	checkPartitions(t, tree, 10, false)
}

func Test_KdVirtualSpillTree(t *testing.T) {
	ds := lineDataset(t, 100)
	tree, err := NewKdVirtualSpillTreeBuilder[float64]().
		SetMinLeafSize(2).
		SetSpillFactor(0.1).
		Build(ds, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	checkPartitions(t, tree, 2, true)

	root := tree.Root()
	cp, ok := root.CutPlane.(*virtualSpillCutPlane[float64])
	require.True(t, ok)
	assert.Equal(t, 50.0, cp.Pivot)
	assert.Equal(t, 40.0, cp.Lower)
	assert.Equal(t, 60.0, cp.Upper)

	got, err := tree.Query([]float64{cp.Pivot}, 2)
	require.NoError(t, err)
	assert.True(t, sort.IntsAreSorted(got))
	assert.Equal(t, union(got), got)
	assert.Subset(t, got, []int{50})

	left, right := 0, 0
	for _, idx := range got {
		if idx < 50 {
			left++
		} else {
			right++
		}
	}
	assert.Positive(t, left)
	assert.Positive(t, right)

	far, err := tree.Query([]float64{-100}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, far)
}

func Test_NSpillTree(t *testing.T) {
	ds := lineDataset(t, 120)
	tree, err := NewNSpillTreeBuilder[float64]().
		SetMinLeafSize(3).
		SetSplits(3).
		SetSpillFactor(0.1).
		Build(ds, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	root := tree.Root()
	require.Len(t, root.Children, 3)
	sizes := []int{}
	for _, c := range root.Children {
		sizes = append(sizes, len(tree.Node(c).Domain))
	}
	assert.Equal(t, []int{52, 64, 52}, sizes)
	assert.Equal(t, 51, slices.Max(tree.Node(root.Children[0]).Domain))
	assert.Equal(t, 28, slices.Min(tree.Node(root.Children[1]).Domain))
	checkPartitions(t, tree, 3, false)

	for _, h := range []uint{root.Children[0], root.Children[1], root.Children[2]} {
		assert.NotEmpty(t, tree.Node(h).Children)
	}

	terminals, err := tree.Explore([]float64{10}, 65)
	require.NoError(t, err)
	assert.Equal(t, []uint{root.Children[0]}, terminals)
	terminals, err = tree.Explore([]float64{60}, 65)
	require.NoError(t, err)
	assert.Equal(t, []uint{root.Children[1]}, terminals)
	terminals, err = tree.Explore([]float64{110}, 65)
	require.NoError(t, err)
	assert.Equal(t, []uint{root.Children[2]}, terminals)
}

func Test_NSpillTreeWithoutSpill(t *testing.T) {
	ds := randomDataset(t, 200, 3, 8)
	tree, err := NewNSpillTreeBuilder[float32]().
		SetMinLeafSize(4).
		SetSplits(4).
		Build(ds, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	for h := range tree.Nodes {
		node := tree.Node(uint(h))
		if node.IsLeaf() {
			continue
		}
		total := 0
		domains := [][]int{}
		for _, c := range node.Children {
			total += len(tree.Node(c).Domain)
			domains = append(domains, tree.Node(c).Domain)
		}
		assert.Equal(t, len(node.Domain), total)
		assert.Equal(t, sorted(node.Domain), union(domains...))
	}
	assert.Equal(t, 1.0, tree.SpaceBlowup(4))
}

func Test_InvalidParameters(t *testing.T) {
	ds := gridDataset(t)
	rng := rand.New(rand.NewSource(1))

	builders := []BspTreeBuilder[float32]{
		NewKdTreeBuilder[float32]().SetMinLeafSize(1),
		NewKdSpillTreeBuilder[float32]().SetSpillFactor(0.5),
		NewKdVirtualSpillTreeBuilder[float32]().SetSpillFactor(-0.1),
		NewPcaTreeBuilder[float32]().SetSpillFactor(0.7),
		NewNSpillTreeBuilder[float32]().SetSplits(1),
		NewNSpillTreeBuilder[float32]().SetSplits(3).SetSpillFactor(0.2),
	}
	for _, b := range builders {
		_, err := b.Build(ds, rng)
		assert.True(t, errors.Is(err, spilltree.ErrInvalidParameter), b.GetParameterString())
	}
}

func Test_EmptyDataset(t *testing.T) {
	ds, err := dataset.FromVectors[float32, uint8]([][]float32{})
	require.NoError(t, err)

	tree, err := NewKdTreeBuilder[float32]().Build(ds, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Len())
	assert.True(t, tree.Root().IsLeaf())

	got, err := tree.Query([]float32{}, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func Test_QueryDimensionMismatch(t *testing.T) {
	tree, err := NewKdTreeBuilder[float32]().SetMinLeafSize(2).Build(gridDataset(t), nil)
	require.NoError(t, err)

	_, err = tree.Query([]float32{0, 0, 0}, 2)
	assert.True(t, errors.Is(err, spilltree.ErrDimensionMismatch))
}

func Test_QueryStopsAtMinLeafSize(t *testing.T) {
	tree, err := NewKdTreeBuilder[float32]().SetMinLeafSize(2).Build(gridDataset(t), nil)
	require.NoError(t, err)

	got, err := tree.Query([]float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 4, 5}, got)

	got, err = tree.Query([]float32{0, 0}, 9)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, got)
}

func Test_BuildIsDeterministic(t *testing.T) {
	ds := randomDataset(t, 150, 4, 3)
	for _, kind := range Kinds() {
		builder, err := NewBuilder[float32](kind, BuilderOptions{MinLeafSize: 6})
		require.NoError(t, err)

		a, err := builder.Build(ds, rand.New(rand.NewSource(42)))
		require.NoError(t, err, kind.String())
		b, err := builder.Build(ds, rand.New(rand.NewSource(42)))
		require.NoError(t, err, kind.String())
		assert.Equal(t, a, b, kind.String())
	}
}

func Test_ParseKind(t *testing.T) {
	for _, kind := range Kinds() {
		got, err := ParseKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}

	_, err := ParseKind("ball-tree")
	assert.True(t, errors.Is(err, spilltree.ErrUnknownKind))
}

func Test_DepthAndLeaves(t *testing.T) {
	tree, err := NewKdTreeBuilder[float32]().SetMinLeafSize(2).Build(gridDataset(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 8, tree.Leaves())
	assert.Equal(t, 3, tree.Depth())
	assert.Equal(t, 15, tree.Len())
}

func Test_SaveLoadRoundTrip(t *testing.T) {
	ds := randomDataset(t, 300, 5, 9)
	for _, kind := range Kinds() {
		builder, err := NewBuilder[float32](kind, BuilderOptions{MinLeafSize: 10})
		require.NoError(t, err)
		tree, err := builder.Build(ds, rand.New(rand.NewSource(7)))
		require.NoError(t, err, kind.String())

		var buf bytes.Buffer
		require.NoError(t, tree.Save(&buf), kind.String())

		loaded, err := Load[float32](&buf, builder.Kind(), builder.Splits(), ds)
		require.NoError(t, err, kind.String())
		assert.Equal(t, tree, loaded, kind.String())
		assert.Zero(t, buf.Len(), kind.String())

		for i := 0; i < 10; i++ {
			want, err := tree.Query(ds.At(i), 10)
			require.NoError(t, err)
			got, err := loaded.Query(ds.At(i), 10)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func Test_SaveLoadUint8(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	vectors := make([][]uint8, 64)
	for i := range vectors {
		vectors[i] = []uint8{uint8(rng.Intn(256)), uint8(rng.Intn(4))}
	}
	ds, err := dataset.FromVectors[uint8, uint8](vectors)
	require.NoError(t, err)

	tree, err := NewKdVirtualSpillTreeBuilder[uint8]().SetMinLeafSize(4).Build(ds, rng)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tree.Save(&buf))
	loaded, err := Load[uint8](&buf, KindKdVirtualSpill, 0, ds)
	require.NoError(t, err)
	assert.Equal(t, tree, loaded)
}

func Test_LoadTruncated(t *testing.T) {
	ds := randomDataset(t, 100, 3, 9)
	tree, err := NewKdTreeBuilder[float32]().SetMinLeafSize(8).Build(ds, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tree.Save(&buf))
	data := buf.Bytes()

	for _, n := range []int{0, 1, 9, len(data) / 2, len(data) - 1} {
		_, err := Load[float32](bytes.NewReader(data[:n]), KindKd, 0, ds)
		assert.True(t, errors.Is(err, spilltree.ErrCorruptTree), "truncated at %d: %v", n, err)
	}
}

func Test_LoadCorrupt(t *testing.T) {
	ds := randomDataset(t, 100, 3, 9)
	tree, err := NewKdTreeBuilder[float32]().SetMinLeafSize(8).Build(ds, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tree.Save(&buf))

	// presence byte of the root
	data := slices.Clone(buf.Bytes())
	data[0] = 7
	_, err = Load[float32](bytes.NewReader(data), KindKd, 0, ds)
	assert.True(t, errors.Is(err, spilltree.ErrCorruptTree))

	// a dataset smaller than the one the tree was built over
	small := randomDataset(t, 10, 3, 9)
	_, err = Load[float32](bytes.NewReader(buf.Bytes()), KindKd, 0, small)
	assert.True(t, errors.Is(err, spilltree.ErrCorruptTree))

	// a dataset of a different width
	wide := randomDataset(t, 100, 4, 9)
	_, err = Load[float32](bytes.NewReader(buf.Bytes()), KindKd, 0, wide)
	assert.True(t, errors.Is(err, spilltree.ErrCorruptTree))

	_, err = Load[float32](bytes.NewReader(buf.Bytes()), Kind(99), 0, ds)
	assert.True(t, errors.Is(err, spilltree.ErrUnknownKind))
}

func Test_LoadSplitMismatch(t *testing.T) {
	ds := randomDataset(t, 100, 3, 9)
	tree, err := NewNSpillTreeBuilder[float32]().SetMinLeafSize(8).SetSplits(3).Build(ds, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tree.Save(&buf))

	_, err = Load[float32](&buf, KindNSpill, 4, ds)
	assert.True(t, errors.Is(err, spilltree.ErrTreeMismatch))
}
