// Package poll turns fetch functions into bubbletea commands that run on a
// fixed interval. A failed fetch never surfaces as an error to the view: it
// produces a Result with OK false, and the next tick tries again.
package poll

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultTimeout bounds a fetch when Job.Timeout is zero.
const DefaultTimeout = 3 * time.Second

// FetchFunc loads one value.
type FetchFunc func(ctx context.Context) (any, error)

// Job describes one periodic fetch. Key routes the Result back to the widget
// that asked for it. Epoch is echoed in the Result so the caller can drop
// results that belong to a server it has since switched away from.
type Job struct {
	Key      string
	Interval time.Duration
	Timeout  time.Duration
	Epoch    uint64
	Fetch    FetchFunc
}

// Result is the message produced by Now and Every.
type Result struct {
	Key   string
	Epoch uint64
	Value any
	OK    bool
	Err   error
	At    time.Time
}

// Typed adapts a typed fetch function to FetchFunc.
func Typed[T any](f func(ctx context.Context) (T, error)) FetchFunc {
	return func(ctx context.Context) (any, error) {
		return f(ctx)
	}
}

// Run performs the fetch synchronously.
func (j Job) Run() Result {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res := Result{Key: j.Key, Epoch: j.Epoch}
	v, err := j.Fetch(ctx)
	res.At = time.Now()
	if err != nil {
		res.Err = err
		return res
	}
	res.Value, res.OK = v, true
	return res
}

// Now fetches immediately.
func Now(j Job) tea.Cmd {
	return func() tea.Msg {
		return j.Run()
	}
}

// Every waits one interval, then fetches. The caller schedules the next
// round when it handles the Result.
func Every(j Job) tea.Cmd {
	return tea.Tick(j.Interval, func(time.Time) tea.Msg {
		return j.Run()
	})
}

// Value extracts a typed value from r. It reports false when the fetch
// failed or the type does not match.
func Value[T any](r Result) (T, bool) {
	var zero T
	if !r.OK {
		return zero, false
	}
	v, ok := r.Value.(T)
	return v, ok
}
