// Package history provides the fixed-capacity ring buffer that backs every
// rolling window in the pipeline. A buffer has exactly one owner; consumers
// that need the contents get a copied snapshot, never a live reference.
package history

// Buffer is an ordered fixed-capacity sequence with ring semantics: once
// full, each append evicts the oldest element. Append is O(1). Not
// goroutine-safe; the owning component provides its own locking.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
}

// NewBuffer returns a buffer of the given capacity. Capacity must be
// positive; anything else is coerced to 1 so a misconfigured window still
// degrades instead of panicking.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

func (b *Buffer[T]) Len() int { return b.size }

func (b *Buffer[T]) Cap() int { return len(b.items) }

// Append adds v, evicting the oldest element when full.
func (b *Buffer[T]) Append(v T) {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
}

// Latest returns the most recently appended element.
func (b *Buffer[T]) Latest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[(b.head+b.size-1)%len(b.items)], true
}

// Oldest returns the element that would be evicted next.
func (b *Buffer[T]) Oldest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[b.head], true
}

// LastN returns up to n of the most recent elements in chronological
// order. The slice is a copy.
func (b *Buffer[T]) LastN(n int) []T {
	if n <= 0 || b.size == 0 {
		return nil
	}
	if n > b.size {
		n = b.size
	}
	out := make([]T, 0, n)
	start := b.size - n
	for i := start; i < b.size; i++ {
		out = append(out, b.items[(b.head+i)%len(b.items)])
	}
	return out
}

// Values materializes the full contents in chronological order as a copy.
func (b *Buffer[T]) Values() []T {
	return b.LastN(b.size)
}

// Filter returns a new buffer of the same capacity holding, in order, the
// elements for which keep returns true.
func (b *Buffer[T]) Filter(keep func(T) bool) *Buffer[T] {
	out := NewBuffer[T](len(b.items))
	for i := 0; i < b.size; i++ {
		v := b.items[(b.head+i)%len(b.items)]
		if keep(v) {
			out.Append(v)
		}
	}
	return out
}

// Clear empties the buffer without releasing its backing array.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}
