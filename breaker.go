package agentmem

import (
	"errors"
	"sync"
	"time"

	"github.com/holidaypeak/agentmem/tier"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a CircuitBreaker. The zero value gets defaults.
type BreakerConfig struct {
	FailureThreshold int           // consecutive transient failures to open; 0 => 5
	Cooldown         time.Duration // open duration before a trial; 0 => 30s
	MaxCooldown      time.Duration // doubling cap; 0 => 10x Cooldown
	Clock            func() time.Time
	OnStateChange    func(from, to BreakerState) // must be cheap and non-blocking
}

// CircuitBreaker shields a tier from cascading backend failures.
//
// Closed counts consecutive ErrThrottled/ErrUnavailable results and opens at
// the threshold. Open fails fast for a cooldown window, then admits exactly
// one trial call (half-open). A successful trial closes the breaker and
// resets the cooldown; a failed trial reopens it with the cooldown doubled,
// capped at MaxCooldown. An open caused by throttling starts at twice the
// base cooldown so an overloaded backend gets more headroom than a flaky one.
//
// Pure logic, no IO. Per-tier instance; state is never shared across
// processes.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         BreakerState
	failures      int
	threshold     int
	base          time.Duration
	max           time.Duration
	cur           time.Duration
	openedAt      time.Time
	trialInFlight bool
	now           func() time.Time
	onChange      func(from, to BreakerState)
}

// NewCircuitBreaker builds a breaker from cfg, applying defaults for zero
// fields.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	b := &CircuitBreaker{
		threshold: coalesce(cfg.FailureThreshold, 5),
		base:      coalesce(cfg.Cooldown, 30*time.Second),
		now:       cfg.Clock,
		onChange:  cfg.OnStateChange,
	}
	b.max = cfg.MaxCooldown
	if b.max == 0 {
		b.max = 10 * b.base
	}
	b.cur = b.base
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Allow reports whether a call may proceed. While open it returns false
// until the cooldown elapses, then transitions to half-open and admits
// exactly one trial; concurrent callers during the trial are rejected.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	var change [2]BreakerState
	notify := false

	allowed := false
	switch b.state {
	case BreakerClosed:
		allowed = true
	case BreakerOpen:
		if !b.now().Before(b.openedAt.Add(b.cur)) {
			change = [2]BreakerState{b.state, BreakerHalfOpen}
			notify = true
			b.state = BreakerHalfOpen
			b.trialInFlight = true
			allowed = true
		}
	case BreakerHalfOpen:
		if !b.trialInFlight {
			b.trialInFlight = true
			allowed = true
		}
	}
	b.mu.Unlock()

	if notify && b.onChange != nil {
		b.onChange(change[0], change[1])
	}
	return allowed
}

// Record feeds a call result back. Only transient errors (ErrThrottled,
// ErrUnavailable) count as failures; nil and non-transient errors prove the
// backend reachable and reset the failure count.
func (b *CircuitBreaker) Record(err error) {
	failed := tier.IsTransient(err)
	throttled := failed && errors.Is(err, tier.ErrThrottled)

	b.mu.Lock()
	var change [2]BreakerState
	notify := false

	switch b.state {
	case BreakerClosed:
		if !failed {
			b.failures = 0
			break
		}
		b.failures++
		if b.failures >= b.threshold {
			change = [2]BreakerState{b.state, BreakerOpen}
			notify = true
			b.state = BreakerOpen
			b.openedAt = b.now()
			b.cur = b.base
			if throttled {
				b.cur = minDuration(2*b.base, b.max)
			}
		}
	case BreakerHalfOpen:
		b.trialInFlight = false
		if failed {
			change = [2]BreakerState{b.state, BreakerOpen}
			notify = true
			b.state = BreakerOpen
			b.openedAt = b.now()
			b.cur = minDuration(2*b.cur, b.max)
		} else {
			change = [2]BreakerState{b.state, BreakerClosed}
			notify = true
			b.state = BreakerClosed
			b.failures = 0
			b.cur = b.base
		}
	case BreakerOpen:
		// Results can still arrive while open (deletes bypass Allow).
		// They neither extend nor shorten the cooldown.
	}
	b.mu.Unlock()

	if notify && b.onChange != nil {
		b.onChange(change[0], change[1])
	}
}

// State returns the current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
