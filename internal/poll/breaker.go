package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrOpen is returned by Breaker.Do while the circuit is open.
var ErrOpen = errors.New("poll: circuit open")

// State is the breaker state.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen skips calls until the backoff elapses.
	StateOpen
	// StateHalfOpen lets a single probe through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// Backoff is the first wait before a half-open probe.
	Backoff time.Duration
	// MaxBackoff caps the doubling backoff.
	MaxBackoff time.Duration
}

// Breaker stops hammering a server that is down. After Threshold consecutive
// failures it opens and returns ErrOpen without calling through. Once the
// backoff elapses the next call is a probe: success closes the circuit,
// failure reopens it with twice the backoff.
type Breaker struct {
	cfg BreakerConfig
	log *zap.Logger
	now func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	backoff     time.Duration
	skips       int
}

// NewBreaker returns a closed breaker. A nil logger discards events.
func NewBreaker(cfg BreakerConfig, log *zap.Logger) *Breaker {
	if cfg.Threshold < 1 {
		cfg.Threshold = 1
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = cfg.Backoff
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		backoff: cfg.Backoff,
	}
}

// Do calls fn unless the circuit is open.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if wait := b.backoff - b.now().Sub(b.lastFailure); wait > 0 {
			b.skips++
			b.mu.Unlock()
			return fmt.Errorf("%w: retry in %s", ErrOpen, wait.Truncate(time.Millisecond))
		}
		b.state = StateHalfOpen
		b.log.Debug("breaker half-open")
	}
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.state != StateClosed {
			b.log.Info("breaker closed", zap.Int("skipped", b.skips))
		}
		b.state = StateClosed
		b.failures = 0
		b.skips = 0
		b.backoff = b.cfg.Backoff
		return nil
	}

	b.failures++
	b.lastFailure = b.now()
	switch {
	case b.state == StateHalfOpen:
		b.backoff = min(b.backoff*2, b.cfg.MaxBackoff)
		b.state = StateOpen
		b.log.Warn("breaker reopened", zap.Int("failures", b.failures), zap.Duration("backoff", b.backoff), zap.Error(err))
	case b.failures >= b.cfg.Threshold:
		b.state = StateOpen
		b.backoff = b.cfg.Backoff
		b.log.Warn("breaker opened", zap.Int("failures", b.failures), zap.Error(err))
	}
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the circuit and clears the counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.skips = 0
	b.backoff = b.cfg.Backoff
}
