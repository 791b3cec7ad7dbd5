package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounded_PushPopFIFO(t *testing.T) {
	q := NewBounded[int](10)

	for i := 0; i < 5; i++ {
		require.True(t, q.Push(i), "Push(%d)", i)
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestBounded_RejectsNewestWhenFull(t *testing.T) {
	q := NewBounded[string](3)

	require.True(t, q.Push("a"))
	require.True(t, q.Push("b"))
	require.True(t, q.Push("c"))
	assert.False(t, q.Push("d"))

	assert.Equal(t, []string{"a", "b", "c"}, q.Drain())

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(3), stats.TotalPushed)
	assert.Equal(t, int64(3), stats.TotalDrained)
}

func TestBounded_DrainAfterWrap(t *testing.T) {
	q := NewBounded[int](4)

	for i := 0; i < 4; i++ {
		q.Push(i)
	}
	q.Pop()
	q.Pop()
	q.Push(4)
	q.Push(5)

	assert.Equal(t, []int{2, 3, 4, 5}, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Drain())

	// Usable again after a drain.
	require.True(t, q.Push(6))
	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 6, v)
}

func TestBounded_Clear(t *testing.T) {
	q := NewBounded[int](5)
	q.Push(1)
	q.Push(2)

	assert.Equal(t, 2, q.Clear())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Clear())
}

func TestBounded_MinimumCapacity(t *testing.T) {
	q := NewBounded[int](0)
	assert.Equal(t, 1, q.Cap())
	assert.True(t, q.Push(1))
	assert.False(t, q.Push(2))
}

func TestBounded_ConcurrentPush(t *testing.T) {
	q := NewBounded[int](DefaultCapacity)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	stats := q.Stats()
	assert.Equal(t, DefaultCapacity, stats.Count)
	assert.Equal(t, int64(1000), stats.Rejected)
}
