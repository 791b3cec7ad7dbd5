package queue

import "sync"

// DefaultCapacity is the bound used for pending messages and pending actions.
const DefaultCapacity = 1000

// Bounded is a thread-safe ring buffer with a fixed capacity.
type Bounded[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int

	// Stats
	totalPushed  int64
	totalDrained int64
	rejected     int64
}

// NewBounded creates a queue holding at most capacity items.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends item. Returns false, leaving the queue unchanged, when full.
func (q *Bounded[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == q.capacity {
		q.rejected++
		return false
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.totalPushed++
	return true
}

// Pop removes and returns the oldest item.
func (q *Bounded[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.count == 0 {
		return zero, false
	}

	item := q.buf[q.head]
	q.buf[q.head] = zero // Clear reference for GC
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.totalDrained++
	return item, true
}

// Drain removes all items in FIFO order.
func (q *Bounded[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	var zero T
	result := make([]T, q.count)
	for i := range result {
		result[i] = q.buf[q.head]
		q.buf[q.head] = zero
		q.head = (q.head + 1) % q.capacity
	}
	q.totalDrained += int64(q.count)
	q.count = 0
	q.head, q.tail = 0, 0
	return result
}

// Clear discards all items and returns how many were dropped.
func (q *Bounded[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	clear(q.buf)
	q.head, q.tail, q.count = 0, 0, 0
	return n
}

// Len returns the number of queued items.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed capacity.
func (q *Bounded[T]) Cap() int {
	return q.capacity
}

// Stats returns queue statistics.
func (q *Bounded[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Count:        q.count,
		Capacity:     q.capacity,
		TotalPushed:  q.totalPushed,
		TotalDrained: q.totalDrained,
		Rejected:     q.rejected,
	}
}

// Stats contains queue statistics.
type Stats struct {
	Count        int
	Capacity     int
	TotalPushed  int64
	TotalDrained int64
	Rejected     int64
}
