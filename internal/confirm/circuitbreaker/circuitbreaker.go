// Package circuitbreaker guards outbound confirmation traffic. When the
// confirmation endpoint is failing consistently, the breaker opens and calls
// fail fast instead of waiting out transport timeouts. It never causes a
// retry; it only decides whether a single attempt is allowed to go out.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the state of one endpoint's circuit.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// Config tunes the breaker. Zero values fall back to defaults.
type Config struct {
	FailureThreshold         int           // consecutive failures to open the circuit
	OpenStateTimeout         time.Duration // time before Open transitions to HalfOpen
	HalfOpenSuccessThreshold int           // successes in HalfOpen to close again
}

const (
	defaultFailureThreshold         = 5
	defaultOpenStateTimeout         = 30 * time.Second
	defaultHalfOpenSuccessThreshold = 2
)

type endpointState struct {
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openUntil            time.Time
}

// CircuitBreaker tracks endpoint health in memory, keyed by endpoint name.
type CircuitBreaker struct {
	mu                       sync.RWMutex
	endpoints                map[string]*endpointState
	failureThreshold         int
	openStateTimeout         time.Duration
	halfOpenSuccessThreshold int
}

// New creates a CircuitBreaker from the given config.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenStateTimeout <= 0 {
		cfg.OpenStateTimeout = defaultOpenStateTimeout
	}
	if cfg.HalfOpenSuccessThreshold <= 0 {
		cfg.HalfOpenSuccessThreshold = defaultHalfOpenSuccessThreshold
	}
	return &CircuitBreaker{
		endpoints:                make(map[string]*endpointState),
		failureThreshold:         cfg.FailureThreshold,
		openStateTimeout:         cfg.OpenStateTimeout,
		halfOpenSuccessThreshold: cfg.HalfOpenSuccessThreshold,
	}
}

func (cb *CircuitBreaker) getEndpointState(name string) *endpointState {
	es, exists := cb.endpoints[name]
	if !exists {
		es = &endpointState{state: Closed}
		cb.endpoints[name] = es
	}
	return es
}

// Allow reports whether a request to the endpoint may go out. An expired
// Open circuit transitions to HalfOpen here.
func (cb *CircuitBreaker) Allow(name string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(name)
	switch es.state {
	case Closed:
		return true
	case Open:
		if time.Now().After(es.openUntil) {
			es.state = HalfOpen
			es.consecutiveSuccesses = 0
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		es.state = Closed
		return true
	}
}

// RecordFailure records a failed call to the endpoint.
func (cb *CircuitBreaker) RecordFailure(name string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(name)
	switch es.state {
	case Closed:
		es.consecutiveFailures++
		if es.consecutiveFailures >= cb.failureThreshold {
			es.state = Open
			es.openUntil = time.Now().Add(cb.openStateTimeout)
		}
	case HalfOpen:
		es.state = Open
		es.openUntil = time.Now().Add(cb.openStateTimeout)
		es.consecutiveFailures = 0
		es.consecutiveSuccesses = 0
	case Open:
		return
	}
}

// RecordSuccess records a successful call to the endpoint.
func (cb *CircuitBreaker) RecordSuccess(name string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(name)
	switch es.state {
	case Closed:
		es.consecutiveFailures = 0
	case HalfOpen:
		es.consecutiveSuccesses++
		if es.consecutiveSuccesses >= cb.halfOpenSuccessThreshold {
			es.state = Closed
			es.consecutiveFailures = 0
			es.consecutiveSuccesses = 0
		}
	case Open:
		return
	}
}

// GetState returns the endpoint's circuit state without side effects.
func (cb *CircuitBreaker) GetState(name string) State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	es, exists := cb.endpoints[name]
	if !exists {
		return Closed
	}
	return es.state
}
