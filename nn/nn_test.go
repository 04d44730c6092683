package nn

import (
	"context"
	"testing"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/dataset"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset(t *testing.T) *dataset.Dataset[float32, int32] {
	ds, err := dataset.FromVectors[float32, int32]([][]float32{
		{-0.662, -0.405, 0.508, -0.991, -0.614, -1.639, 0.637, 0.715},
		{0.44, -1.795, -0.243, -1.375, 1.154, 0.142, -0.219, -0.711},
		{0.22, -0.029, 0.7, -0.963, 0.257, 0.419, 0.491, -0.87},
		{0.906, 0.551, -1.198, 1.517, 1.616, 0.014, -1.358, -1.004},
		{0.687, 0.818, 0.868, 0.688, 0.428, 0.582, -0.352, -0.269},
		{-0.621, -0.586, -0.468, 0.494, 0.485, 0.407, 1.273, -1.1},
		{1.606, 1.256, -0.644, -0.858, 0.743, -0.063, 0.042, -1.539},
		{0.255, 1.018, -0.835, -0.288, 0.992, -0.17, 0.764, -1.0},
		{1.061, -0.506, -1.467, 0.043, 1.121, 1.03, 0.596, -1.747},
		{-0.269, -0.346, -0.076, -0.392, 0.301, -1.097, 0.139, 1.692},
		{-1.034, -1.709, -2.693, 1.539, -1.186, 0.29, -0.935, -0.546},
		{1.954, -1.708, -0.423, -2.241, 1.272, -0.253, -1.013, -0.382},
	})
	require.NoError(t, err)
	return ds
}

func Test_Nearest(t *testing.T) {
	ds := testDataset(t)

	for i := 0; i < ds.Len(); i++ {
		got, err := Nearest[float32](ds, ds.At(i), ds.Domain())
		require.NoError(t, err)
		assert.Equal(t, i, got.Index)
		assert.Zero(t, got.Distance)
	}

	got, err := Nearest[float32](ds, []float32{1.954, -1.708, -0.423, -2.241, 1.272, -0.253, -1.013, -0.382}, []int{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Index)

	_, err = Nearest[float32](ds, ds.At(0), []int{})
	assert.True(t, errors.Is(err, spilltree.ErrEmptyDomain))

	_, err = Nearest[float32](ds, []float32{1}, ds.Domain())
	assert.True(t, errors.Is(err, spilltree.ErrDimensionMismatch))
}

func Test_NearestTieGoesToFirst(t *testing.T) {
	ds, err := dataset.FromVectors[float64, uint8]([][]float64{{-1}, {1}, {1}})
	require.NoError(t, err)

	got, err := Nearest[float64](ds, []float64{0}, []int{1, 0, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Index)
}

func Test_KNearest(t *testing.T) {
	ds, err := dataset.FromVectors[float64, uint8]([][]float64{{0}, {5}, {1}, {3}, {-2}, {8}})
	require.NoError(t, err)

	type TestCase struct {
		Name string
		K    int
		Want []Neighbor
	}

	for _, tc := range []TestCase{
		{Name: "one", K: 1, Want: []Neighbor{{Index: 2, Distance: 0}}},
		{Name: "three", K: 3, Want: []Neighbor{{Index: 2, Distance: 0}, {Index: 0, Distance: 1}, {Index: 3, Distance: 4}}},
		{Name: "all", K: 10, Want: []Neighbor{
			{Index: 2, Distance: 0}, {Index: 0, Distance: 1}, {Index: 3, Distance: 4},
			{Index: 1, Distance: 16}, {Index: 4, Distance: 9}, {Index: 5, Distance: 49},
		}},
	} {
		got, err := KNearest[float64](ds, []float64{1}, ds.Domain(), tc.K)
		require.NoError(t, err, tc.Name)
		if tc.Name == "all" {
			assert.ElementsMatch(t, tc.Want, got, tc.Name)
			continue
		}
		assert.Equal(t, tc.Want, got, tc.Name)
	}

	_, err = KNearest[float64](ds, []float64{1}, ds.Domain(), 0)
	assert.True(t, errors.Is(err, spilltree.ErrInvalidParameter))
}

func Test_CApproximate(t *testing.T) {
	ds, err := dataset.FromVectors[float64, uint8]([][]float64{{1}, {2}, {3}, {-1}, {10}})
	require.NoError(t, err)

	// squared distances from 0: 1, 4, 9, 1, 100
	got, err := CApproximate[float64](ds, []float64{0}, ds.Domain(), 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, got)

	got, err = CApproximate[float64](ds, []float64{0}, ds.Domain(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, got)
}

func Test_GroundTruth(t *testing.T) {
	ds := testDataset(t)
	queries := [][]float32{}
	for i := 0; i < ds.Len(); i++ {
		queries = append(queries, ds.At(i))
	}

	for _, procs := range []int{0, 1, 5, 64} {
		truth, err := GroundTruth[float32](context.Background(), ds, ds.Domain(), queries, 3, procs)
		require.NoError(t, err)
		require.Len(t, truth, len(queries))
		for i, neighbors := range truth {
			require.Len(t, neighbors, 3)
			assert.Equal(t, i, neighbors[0].Index)

			want, err := KNearest[float32](ds, queries[i], ds.Domain(), 3)
			require.NoError(t, err)
			assert.Equal(t, want, neighbors)
		}
	}
}

func Test_GroundTruthCancelled(t *testing.T) {
	ds := testDataset(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GroundTruth[float32](ctx, ds, ds.Domain(), [][]float32{ds.At(0)}, 1, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}

func Test_GetChunks(t *testing.T) {
	assert.Equal(t, []chunk{{0, 4}, {4, 7}, {7, 10}}, getChunks(10, 3))
	assert.Equal(t, []chunk{{0, 1}, {1, 2}}, getChunks(2, 8))
	assert.Equal(t, []chunk{{0, 0}}, getChunks(0, 4))
}
