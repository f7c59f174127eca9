// Package circuitbreaker protects chain RPC and relay endpoints from being
// hammered while they are failing. Each endpoint gets its own breaker; the
// pipeline fails fast instead of stacking timed-out attempts.
package circuitbreaker

import (
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a breaker.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int

	// SuccessThreshold is the consecutive-success count in half-open that
	// closes it again.
	SuccessThreshold int

	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration

	// OnStateChange, if set, is notified of every transition.
	OnStateChange func(from, to State)
}

// DefaultConfig matches the cadence of a flaky public RPC node: trip after a
// handful of failures, probe again after half a minute.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// Breaker is a single circuit breaker.
type Breaker struct {
	mu sync.RWMutex

	config Config
	state  State

	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureTime      time.Time
}

// New creates a breaker, filling zero config fields from DefaultConfig.
func New(config Config) *Breaker {
	def := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	return &Breaker{config: config, state: StateClosed}
}

// State returns the current state, observing cooldown expiry.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentState()
}

// currentState must be called with at least a read lock held.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && time.Since(b.lastFailureTime) >= b.config.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Allow reports whether a call should proceed. Half-open allows probes.
func (b *Breaker) Allow() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentState() != StateOpen
}

// RecordSuccess notes a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.consecutiveSuccesses++

	if b.currentState() == StateHalfOpen && b.consecutiveSuccesses >= b.config.SuccessThreshold {
		b.setState(StateClosed)
		b.consecutiveSuccesses = 0
	}
}

// RecordFailure notes a failed call. A failure during a half-open probe
// reopens the circuit immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveSuccesses = 0
	b.consecutiveFailures++
	b.lastFailureTime = time.Now()

	switch b.currentState() {
	case StateClosed:
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	}
}

// Reset forces the breaker closed and clears the counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.setState(StateClosed)
}

func (b *Breaker) setState(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(prev, next)
	}
}

// Stats is a point-in-time view of a breaker.
type Stats struct {
	State                State
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastFailureTime      time.Time
}

// Stats returns the current counters.
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		State:                b.currentState(),
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		LastFailureTime:      b.lastFailureTime,
	}
}

// Set is a lazily populated collection of breakers keyed by endpoint, one per
// chain ID in the pipeline's case.
type Set struct {
	mu       sync.Mutex
	config   Config
	breakers map[uint64]*Breaker
}

// NewSet creates a Set whose breakers all share config.
func NewSet(config Config) *Set {
	return &Set{config: config, breakers: make(map[uint64]*Breaker)}
}

// For returns the breaker for a key, creating it on first use.
func (s *Set) For(key uint64) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[key]
	if !ok {
		b = New(s.config)
		s.breakers[key] = b
	}
	return b
}
