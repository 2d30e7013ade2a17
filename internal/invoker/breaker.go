// Package invoker wraps every outbound downstream call with timeout, bounded
// retry, per-endpoint circuit breaking, and bounded connection pooling.
package invoker

import (
	"fmt"
	"sync"
	"time"

	"github.com/homepilot/homepilot/internal/domain"
)

// BreakerState is the circuit state for one endpoint.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// breaker tracks consecutive failures for a single endpoint.
// All fields are guarded by mu; each endpoint has its own lock so unrelated
// downstreams never serialize on each other.
type breaker struct {
	mu            sync.Mutex
	state         BreakerState
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

// BreakerSet holds one breaker per endpoint, created lazily.
// Process-wide: the only mutable state shared across concurrent requests.
type BreakerSet struct {
	mu        sync.RWMutex
	breakers  map[string]*breaker
	threshold int
	cooldown  time.Duration

	now          func() time.Time
	onTransition func(endpoint string, state BreakerState)
}

// NewBreakerSet creates a breaker set. After threshold consecutive failures
// an endpoint's circuit opens; after cooldown a single half-open trial call
// is allowed through.
func NewBreakerSet(threshold int, cooldown time.Duration) *BreakerSet {
	return &BreakerSet{
		breakers:  make(map[string]*breaker),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *BreakerSet) WithClock(now func() time.Time) *BreakerSet {
	s.now = now
	return s
}

// WithTransitionHook registers a callback invoked on every state transition.
func (s *BreakerSet) WithTransitionHook(fn func(endpoint string, state BreakerState)) *BreakerSet {
	s.onTransition = fn
	return s
}

func (s *BreakerSet) get(endpoint string) *breaker {
	s.mu.RLock()
	b, ok := s.breakers[endpoint]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.breakers[endpoint]; ok {
		return b
	}
	b = &breaker{}
	s.breakers[endpoint] = b
	return b
}

func (s *BreakerSet) transition(endpoint string, b *breaker, state BreakerState) {
	b.state = state
	if s.onTransition != nil {
		s.onTransition(endpoint, state)
	}
}

// Allow decides whether a call to endpoint may proceed. When the circuit is
// open and the cooldown has elapsed it admits exactly one half-open trial;
// every other call fails fast with ErrUnavailable and no network attempt.
func (s *BreakerSet) Allow(endpoint string) error {
	b := s.get(endpoint)
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if s.now().Sub(b.openedAt) < s.cooldown {
			return fmt.Errorf("circuit open for %s: %w", endpoint, domain.ErrUnavailable)
		}
		s.transition(endpoint, b, StateHalfOpen)
		b.trialInFlight = true
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			return fmt.Errorf("half-open trial in flight for %s: %w", endpoint, domain.ErrUnavailable)
		}
		b.trialInFlight = true
		return nil
	}
	return nil
}

// OnSuccess records a successful call: failures reset, and a successful
// half-open trial closes the circuit.
func (s *BreakerSet) OnSuccess(endpoint string) {
	b := s.get(endpoint)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateClosed {
		b.trialInFlight = false
		s.transition(endpoint, b, StateClosed)
	}
}

// OnFailure records a failed call. A failed half-open trial re-opens the
// circuit immediately; in the closed state the circuit opens once
// consecutive failures reach the threshold.
func (s *BreakerSet) OnFailure(endpoint string) {
	b := s.get(endpoint)
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.trialInFlight = false
		b.openedAt = s.now()
		s.transition(endpoint, b, StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= s.threshold {
			b.openedAt = s.now()
			s.transition(endpoint, b, StateOpen)
		}
	case StateOpen:
		// Already open; nothing to record.
	}
}

// State reports the current circuit state for endpoint. Used by routing to
// prefer healthy endpoints.
func (s *BreakerSet) State(endpoint string) BreakerState {
	b := s.get(endpoint)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
