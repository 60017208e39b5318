package upstream

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CircuitState is one of the three states of a CircuitBreaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreaker wraps upstream calls and fast-fails once a configurable
// number of consecutive failures has been observed, probing again after a
// recovery window. Supplemented from original_source/src/services/circuit_breaker.py
// (not present in the teacher; no pack dependency covers circuit breaking).
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           *slog.Logger

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(name string, failureThreshold int, recoveryTimeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		logger:           logger,
		state:            CircuitClosed,
	}
}

// Execute runs fn under circuit-breaker protection, fast-failing with
// ErrCircuitOpen if the circuit is currently open.
func (b *CircuitBreaker) Execute(fn func() error) error {
	b.checkStateTransition()

	b.mu.Lock()
	state := b.state
	b.mu.Unlock()

	if state == CircuitOpen {
		b.logger.Warn("circuit open, fast failing", "circuit", b.name)
		return fmt.Errorf("%w: %s", ErrCircuitOpen, b.name)
	}

	err := fn()
	if err != nil {
		b.handleFailure()
		return err
	}
	b.handleSuccess()
	return nil
}

// ErrCircuitOpen is returned by Execute when the breaker is fast-failing.
var ErrCircuitOpen = fmt.Errorf("circuit breaker open")

func (b *CircuitBreaker) checkStateTransition() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && time.Since(b.lastFailureTime) > b.recoveryTimeout {
		b.logger.Info("recovery timeout elapsed, moving to half_open", "circuit", b.name)
		b.state = CircuitHalfOpen
	}
}

func (b *CircuitBreaker) handleSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitHalfOpen {
		b.logger.Info("circuit recovered, moving to closed", "circuit", b.name)
		b.state = CircuitClosed
	}
	b.failureCount = 0
}

func (b *CircuitBreaker) handleFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailureTime = time.Now()

	switch {
	case b.state == CircuitHalfOpen:
		b.logger.Warn("circuit failed in half_open, moving back to open", "circuit", b.name)
		b.state = CircuitOpen
	case b.state == CircuitClosed && b.failureCount >= b.failureThreshold:
		b.logger.Warn("circuit reached failure threshold, moving to open", "circuit", b.name, "failures", b.failureCount)
		b.state = CircuitOpen
	}
}

// State reports the breaker's current state, for diagnostics.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
