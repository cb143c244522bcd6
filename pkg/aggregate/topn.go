package aggregate

import (
	"container/heap"
	"sort"
)

// TopN retains the n largest values offered to it.
//
// When full, a value is admitted only if it is strictly larger than the
// current minimum, which is then evicted. Among equal sizes the earlier offer
// is kept.
type TopN[T any] struct {
	capacity int
	seq      uint64
	h        rankHeap[T]
}

type ranked[T any] struct {
	value T
	size  int64
	seq   uint64
}

// NewTopN creates a tracker retaining at most capacity values.
func NewTopN[T any](capacity int) *TopN[T] {
	if capacity < 0 {
		capacity = 0
	}

	return &TopN[T]{capacity: capacity, h: make(rankHeap[T], 0, capacity)}
}

// Offer considers v with the given size and reports whether it was retained.
func (t *TopN[T]) Offer(v T, size int64) bool {
	if t.capacity == 0 {
		return false
	}

	if len(t.h) >= t.capacity {
		if size <= t.h[0].size {
			return false
		}

		heap.Pop(&t.h)
	}

	t.seq++
	heap.Push(&t.h, ranked[T]{value: v, size: size, seq: t.seq})

	return true
}

// Len returns the number of retained values.
func (t *TopN[T]) Len() int {
	return len(t.h)
}

// Cap returns the capacity.
func (t *TopN[T]) Cap() int {
	return t.capacity
}

// Sorted returns the retained values, largest first.
func (t *TopN[T]) Sorted() []T {
	items := make([]ranked[T], len(t.h))
	copy(items, t.h)

	sort.Slice(items, func(i, j int) bool {
		if items[i].size != items[j].size {
			return items[i].size > items[j].size
		}

		return items[i].seq < items[j].seq
	})

	out := make([]T, len(items))
	for i := range items {
		out[i] = items[i].value
	}

	return out
}

// rankHeap is a min-heap on size; among equal sizes the latest offer sits on
// top so it is evicted first.
type rankHeap[T any] []ranked[T]

func (h rankHeap[T]) Len() int { return len(h) }

func (h rankHeap[T]) Less(i, j int) bool {
	if h[i].size != h[j].size {
		return h[i].size < h[j].size
	}

	return h[i].seq > h[j].seq
}

func (h rankHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *rankHeap[T]) Push(x any) { *h = append(*h, x.(ranked[T])) }

func (h *rankHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}
