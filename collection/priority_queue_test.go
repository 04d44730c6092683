package collection

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PriorityQueue(t *testing.T) {
	pq := NewPriorityQueue[string](4)
	pq.Push("c", 3.0)
	pq.Push("a", 1.0)
	pq.Push("d", 4.0)
	pq.Push("b", 2.0)
	assert.Equal(t, 4, pq.Len())

	head, err := pq.PeekWithPriority()
	require.NoError(t, err)
	assert.Equal(t, "a", head.Item)
	assert.Equal(t, 4, pq.Len())

	got := []string{}
	for pq.Len() > 0 {
		item, err := pq.Pop()
		require.NoError(t, err)
		got = append(got, item)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func Test_PriorityQueueEmpty(t *testing.T) {
	pq := NewPriorityQueue[int](0)

	_, err := pq.Pop()
	assert.True(t, errors.Is(err, ErrEmptyPriorityQueue))

	_, err = pq.PeekWithPriority()
	assert.True(t, errors.Is(err, ErrEmptyPriorityQueue))
}

func Test_Split(t *testing.T) {
	buf := []int{5, 2, 8, 1, 9, 4}
	even, odd := Split(buf, func(_ int, v int) bool { return v%2 == 0 })
	assert.Equal(t, []int{2, 8, 4}, even)
	assert.Equal(t, []int{5, 1, 9}, odd)
	assert.Equal(t, []int{5, 2, 8, 1, 9, 4}, buf)

	head, tail := Split(buf, func(i int, _ int) bool { return i < 2 })
	assert.Equal(t, []int{5, 2}, head)
	assert.Equal(t, []int{8, 1, 9, 4}, tail)
}
