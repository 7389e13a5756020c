// Package resilience keeps the voice pipeline answering when a backend
// misbehaves. Every remote provider the pipeline depends on (recognition,
// chat completion, synthesis) sits behind its own circuit breaker, and the
// fallback wrappers move the call to the next configured backend whenever
// the preferred one fails or its breaker is rejecting traffic.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxhive/voxhive/internal/observe"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// rejecting calls without touching the backend.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the breaker's position.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects every call until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets a bounded number of trial calls through to check
	// whether the backend recovered.
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

// CircuitBreakerConfig configures a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name identifies the guarded backend in logs and metrics.
	Name string
	// MaxFailures is the failure streak that trips the breaker. Defaults
	// to 5.
	MaxFailures int
	// ResetTimeout is how long the breaker stays open before it lets trial
	// calls through again. Defaults to 30s.
	ResetTimeout time.Duration
	// HalfOpenMax is both the trial budget while half-open and the number
	// of successful trials needed to close again. Defaults to 3.
	HalfOpenMax int
}

// CircuitBreaker guards calls to one backend. A streak of MaxFailures
// consecutive failures trips it open; after ResetTimeout it admits up to
// HalfOpenMax trial calls, and that many successes close it again. A single
// failed trial restarts the cooldown. Safe for concurrent use.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	now          func() time.Time

	mu           sync.Mutex
	state        State
	failStreak   int
	lastFail     time.Time
	trialsSent   int
	trialsFailed int
}

// NewCircuitBreaker creates a closed breaker, applying defaults for any
// zero-valued config field.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		now:          time.Now,
	}
}

// Execute runs fn if the breaker admits the call and records the outcome.
// Returns [ErrCircuitOpen] without calling fn when the breaker is open or
// the half-open trial budget is spent; otherwise returns fn's error.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.settle(err)
	return err
}

// admit decides whether a call may go through, moving the breaker from open
// to half-open once the cooldown has elapsed.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFail) < cb.resetTimeout {
			return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
		}
		cb.state = StateHalfOpen
		cb.trialsSent = 0
		cb.trialsFailed = 0
		slog.Info("cooldown over, trialing backend", "backend", cb.name)
		fallthrough
	case StateHalfOpen:
		if cb.trialsSent >= cb.halfOpenMax {
			return fmt.Errorf("%w: %s trial budget spent", ErrCircuitOpen, cb.name)
		}
		cb.trialsSent++
	}
	return nil
}

// settle records a call outcome and drives the state transitions.
func (cb *CircuitBreaker) settle(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.lastFail = cb.now()
		switch cb.state {
		case StateHalfOpen:
			cb.trialsFailed++
			cb.state = StateOpen
			cb.failStreak = cb.maxFailures
			slog.Warn("backend failed its trial call, breaker reopened", "backend", cb.name)
			cb.recordTrip()
		case StateClosed:
			cb.failStreak++
			if cb.failStreak >= cb.maxFailures {
				cb.state = StateOpen
				slog.Warn("breaker opened", "backend", cb.name, "failures", cb.failStreak)
				cb.recordTrip()
			}
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		if cb.trialsSent-cb.trialsFailed >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failStreak = 0
			slog.Info("backend recovered, breaker closed", "backend", cb.name)
		}
	case StateClosed:
		cb.failStreak = 0
	}
}

// recordTrip counts the transition to open in the provider error metric.
// Called with cb.mu held; the instrument does its own synchronization.
func (cb *CircuitBreaker) recordTrip() {
	observe.DefaultMetrics().RecordProviderError(context.Background(), cb.name, "circuit_open")
}

// State reports the breaker's position, surfacing half-open once an open
// breaker's cooldown has elapsed even though no trial call has been admitted yet.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.lastFail) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failStreak = 0
	cb.trialsSent = 0
	cb.trialsFailed = 0
	slog.Info("breaker reset", "backend", cb.name)
}
