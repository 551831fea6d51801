// Package ring provides a fixed-capacity circular buffer that keeps the most
// recent samples of an unbounded stream, overwriting the oldest when full.
//
// A Buffer has no internal locking. It is meant to be owned by a single
// polling loop; callers that share one across goroutines must guard it.
package ring

import "errors"

var (
	// ErrInvalidCapacity is returned by New for a capacity <= 0.
	ErrInvalidCapacity = errors.New("ring: capacity must be positive")

	// ErrEmpty is returned by Pop and Peek on an empty buffer.
	ErrEmpty = errors.New("ring: buffer is empty")
)

// Buffer is a circular buffer of T values.
type Buffer[T any] struct {
	buf   []T
	head  int // oldest element
	tail  int // next write position
	count int
}

// New creates an empty buffer holding at most capacity values.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Buffer[T]{
		buf: make([]T, capacity),
	}, nil
}

// MustNew is like New but panics on an invalid capacity.
func MustNew[T any](capacity int) *Buffer[T] {
	b, err := New[T](capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// Append stores v as the newest value. When the buffer is full the oldest
// value is dropped first.
func (b *Buffer[T]) Append(v T) {
	if b.IsFull() {
		_, _ = b.Pop()
	}
	b.buf[b.tail] = v
	b.tail = (b.tail + 1) % len(b.buf)
	b.count++
}

// Pop removes and returns the oldest value.
func (b *Buffer[T]) Pop() (T, error) {
	var zero T
	if b.count == 0 {
		return zero, ErrEmpty
	}
	v := b.buf[b.head]
	b.buf[b.head] = zero
	b.head = (b.head + 1) % len(b.buf)
	b.count--
	return v, nil
}

// Peek returns the oldest value without removing it.
func (b *Buffer[T]) Peek() (T, error) {
	if b.count == 0 {
		var zero T
		return zero, ErrEmpty
	}
	return b.buf[b.head], nil
}

// Last returns the most recent value, or false if empty.
func (b *Buffer[T]) Last() (T, bool) {
	if b.count == 0 {
		var zero T
		return zero, false
	}
	idx := (b.tail - 1 + len(b.buf)) % len(b.buf)
	return b.buf[idx], true
}

// IsFull reports whether the next Append will evict.
func (b *Buffer[T]) IsFull() bool {
	return b.count == len(b.buf)
}

// IsEmpty reports whether the buffer holds no values.
func (b *Buffer[T]) IsEmpty() bool {
	return b.count == 0
}

// Len returns the number of stored values.
func (b *Buffer[T]) Len() int {
	return b.count
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.buf)
}

// Clear empties the buffer and drops references to stored values.
func (b *Buffer[T]) Clear() {
	clear(b.buf)
	b.head = 0
	b.tail = 0
	b.count = 0
}

// ToSlice returns the stored values in chronological order (oldest first).
// The result is a fresh slice; the buffer is not modified.
func (b *Buffer[T]) ToSlice() []T {
	result := make([]T, 0, b.count)
	b.Each(func(v T) {
		result = append(result, v)
	})
	return result
}

// Each calls fn for every stored value, oldest first.
func (b *Buffer[T]) Each(fn func(T)) {
	idx := b.head
	for i := 0; i < b.count; i++ {
		fn(b.buf[idx])
		idx = (idx + 1) % len(b.buf)
	}
}
