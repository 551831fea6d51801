package ring

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNewInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		b, err := New[int](capacity)
		if !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("New(%d) err = %v, want ErrInvalidCapacity", capacity, err)
		}
		if b != nil {
			t.Errorf("New(%d) returned non-nil buffer", capacity)
		}
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustNew(0) did not panic")
		}
	}()
	MustNew[int](0)
}

func TestFreshBuffer(t *testing.T) {
	for _, capacity := range []int{1, 2, 7, 100} {
		b := MustNew[string](capacity)
		if !b.IsEmpty() {
			t.Errorf("cap %d: fresh buffer not empty", capacity)
		}
		if b.IsFull() {
			t.Errorf("cap %d: fresh buffer reports full", capacity)
		}
		if b.Cap() != capacity {
			t.Errorf("Cap() = %d, want %d", b.Cap(), capacity)
		}
		if got := b.ToSlice(); len(got) != 0 {
			t.Errorf("cap %d: ToSlice() = %v, want empty", capacity, got)
		}
	}
}

func TestAppendWithinCapacity(t *testing.T) {
	const capacity = 5
	for n := 0; n <= capacity; n++ {
		b := MustNew[int](capacity)
		want := make([]int, 0, n)
		for i := 0; i < n; i++ {
			b.Append(i * 10)
			want = append(want, i*10)
		}
		if b.Len() != n {
			t.Errorf("n=%d: Len() = %d", n, b.Len())
		}
		if got := b.ToSlice(); !reflect.DeepEqual(got, want) {
			t.Errorf("n=%d: ToSlice() = %v, want %v", n, got, want)
		}
		if b.IsFull() != (n == capacity) {
			t.Errorf("n=%d: IsFull() = %v", n, b.IsFull())
		}
	}
}

func TestAppendOverflowKeepsNewest(t *testing.T) {
	tests := []struct {
		capacity int
		n        int
	}{
		{1, 2},
		{1, 10},
		{3, 4},
		{3, 7},
		{4, 9},
		{50, 137},
	}

	for _, tt := range tests {
		b := MustNew[int](tt.capacity)
		for i := 0; i < tt.n; i++ {
			b.Append(i)
		}
		want := make([]int, 0, tt.capacity)
		for i := tt.n - tt.capacity; i < tt.n; i++ {
			want = append(want, i)
		}
		if got := b.ToSlice(); !reflect.DeepEqual(got, want) {
			t.Errorf("cap=%d n=%d: ToSlice() = %v, want %v", tt.capacity, tt.n, got, want)
		}
		if b.Len() != tt.capacity {
			t.Errorf("cap=%d n=%d: Len() = %d", tt.capacity, tt.n, b.Len())
		}
		if !b.IsFull() {
			t.Errorf("cap=%d n=%d: not full", tt.capacity, tt.n)
		}
	}
}

func TestIndexInvariants(t *testing.T) {
	b := MustNew[int](4)
	for i := 0; i < 23; i++ {
		if i%3 == 2 {
			_, _ = b.Pop()
		} else {
			b.Append(i)
		}
		if b.count < 0 || b.count > len(b.buf) {
			t.Fatalf("step %d: count %d out of range", i, b.count)
		}
		if b.head < 0 || b.head >= len(b.buf) || b.tail < 0 || b.tail >= len(b.buf) {
			t.Fatalf("step %d: head=%d tail=%d out of range", i, b.head, b.tail)
		}
		if (b.head+b.count)%len(b.buf) != b.tail {
			t.Fatalf("step %d: head=%d count=%d tail=%d inconsistent", i, b.head, b.count, b.tail)
		}
	}
}

func TestPopPeekEmpty(t *testing.T) {
	b := MustNew[int](3)
	if _, err := b.Pop(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Pop() on empty err = %v, want ErrEmpty", err)
	}
	if _, err := b.Peek(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Peek() on empty err = %v, want ErrEmpty", err)
	}

	b.Append(1)
	if _, err := b.Pop(); err != nil {
		t.Fatalf("Pop() = %v", err)
	}
	if _, err := b.Pop(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Pop() after draining err = %v, want ErrEmpty", err)
	}
}

func TestPopOrder(t *testing.T) {
	b := MustNew[string](3)
	for _, s := range []string{"a", "b", "c", "d"} {
		b.Append(s)
	}

	peek, err := b.Peek()
	if err != nil || peek != "b" {
		t.Fatalf("Peek() = %q, %v; want b", peek, err)
	}
	if b.Len() != 3 {
		t.Errorf("Peek() changed Len to %d", b.Len())
	}

	var got []string
	for !b.IsEmpty() {
		v, err := b.Pop()
		if err != nil {
			t.Fatalf("Pop() = %v", err)
		}
		got = append(got, v)
	}
	if want := []string{"b", "c", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("pop order = %v, want %v", got, want)
	}
}

func TestClear(t *testing.T) {
	b := MustNew[*int](3)
	for i := 0; i < 5; i++ {
		v := i
		b.Append(&v)
	}
	b.Clear()

	if !b.IsEmpty() {
		t.Error("not empty after Clear")
	}
	for i, p := range b.buf {
		if p != nil {
			t.Errorf("slot %d still references a value after Clear", i)
		}
	}

	v := 42
	b.Append(&v)
	got := b.ToSlice()
	if len(got) != 1 || *got[0] != 42 {
		t.Errorf("ToSlice() after Clear+Append = %v", got)
	}
}

func TestPopReleasesSlot(t *testing.T) {
	b := MustNew[*int](2)
	v := 1
	b.Append(&v)
	if _, err := b.Pop(); err != nil {
		t.Fatal(err)
	}
	if b.buf[0] != nil {
		t.Error("popped slot still references the value")
	}
}

func TestToSliceIdempotent(t *testing.T) {
	b := MustNew[int](4)
	for i := 0; i < 6; i++ {
		b.Append(i)
	}
	first := b.ToSlice()
	second := b.ToSlice()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("ToSlice() not idempotent: %v vs %v", first, second)
	}

	first[0] = -1
	if b.ToSlice()[0] == -1 {
		t.Error("ToSlice() result aliases buffer storage")
	}
}

func TestLast(t *testing.T) {
	b := MustNew[int](2)
	if _, ok := b.Last(); ok {
		t.Error("Last() on empty returned ok")
	}
	for i := 1; i <= 5; i++ {
		b.Append(i)
		if v, ok := b.Last(); !ok || v != i {
			t.Errorf("Last() = %d, %v; want %d", v, ok, i)
		}
	}
}

func TestSeries(t *testing.T) {
	s, err := NewSeries[float64](3)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, v := range []float64{1, 2, 3, 4, 5} {
		s.Push(v)
	}

	if got, want := s.Values(), []float64{3, 4, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("Values() = %v, want %v", got, want)
	}

	samples := s.Samples()
	for i, smp := range samples {
		if smp.Seq != uint64(i+3) {
			t.Errorf("sample %d Seq = %d, want %d", i, smp.Seq, i+3)
		}
		if !smp.At.Equal(base.Add(time.Duration(i+3) * time.Second)) {
			t.Errorf("sample %d At = %v", i, smp.At)
		}
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len() after Reset = %d", s.Len())
	}
	smp := s.Push(9)
	if smp.Seq != 6 {
		t.Errorf("Seq after Reset = %d, want 6", smp.Seq)
	}
}

func TestNewSeriesInvalid(t *testing.T) {
	if _, err := NewSeries[int](0); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("NewSeries(0) err = %v", err)
	}
}

func TestMustNewSeries(t *testing.T) {
	s := MustNewSeries[float64](2)
	s.Push(1)
	s.Push(2)
	s.Push(3)
	if got := s.Values(); !reflect.DeepEqual(got, []float64{2, 3}) {
		t.Errorf("Values() = %v, want [2 3]", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustNewSeries(0) did not panic")
		}
	}()
	MustNewSeries[int](0)
}
