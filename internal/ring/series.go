package ring

import "time"

// Sample is a value stamped with a sequence number and arrival time. Seq is
// unique per Series and serves as a stable identity for rendering.
type Sample[T any] struct {
	Seq   uint64
	At    time.Time
	Value T
}

// Series is a Buffer of Samples that stamps each value on arrival.
type Series[T any] struct {
	buf *Buffer[Sample[T]]
	seq uint64
	now func() time.Time
}

// NewSeries creates a series keeping the last capacity samples.
func NewSeries[T any](capacity int) (*Series[T], error) {
	buf, err := New[Sample[T]](capacity)
	if err != nil {
		return nil, err
	}
	return &Series[T]{buf: buf, now: time.Now}, nil
}

// MustNewSeries is like NewSeries but panics on an invalid capacity.
func MustNewSeries[T any](capacity int) *Series[T] {
	return &Series[T]{buf: MustNew[Sample[T]](capacity), now: time.Now}
}

// Push appends v as the newest sample and returns it.
func (s *Series[T]) Push(v T) Sample[T] {
	s.seq++
	smp := Sample[T]{Seq: s.seq, At: s.now(), Value: v}
	s.buf.Append(smp)
	return smp
}

// Samples returns the stored samples, oldest first.
func (s *Series[T]) Samples() []Sample[T] {
	return s.buf.ToSlice()
}

// Values returns the stored payloads, oldest first.
func (s *Series[T]) Values() []T {
	out := make([]T, 0, s.buf.Len())
	s.buf.Each(func(smp Sample[T]) {
		out = append(out, smp.Value)
	})
	return out
}

// Last returns the newest sample.
func (s *Series[T]) Last() (Sample[T], bool) {
	return s.buf.Last()
}

// Len returns the number of stored samples.
func (s *Series[T]) Len() int {
	return s.buf.Len()
}

// Cap returns the series capacity.
func (s *Series[T]) Cap() int {
	return s.buf.Cap()
}

// Reset drops all samples. Sequence numbers keep increasing.
func (s *Series[T]) Reset() {
	s.buf.Clear()
}
