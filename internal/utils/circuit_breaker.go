package utils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is returned by CircuitBreaker.Call while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int32

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreakerConfig holds configuration for circuit breaker
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int32
	ResetTimeout     time.Duration
	CallTimeout      time.Duration
}

// CircuitBreaker short-circuits calls to a dependency that keeps failing.
// The cache backends use it so a dead Redis degrades to store reads
// instead of adding a timeout to every lookup.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	state        atomic.Int32
	failures     atomic.Int32
	lastFailTime atomic.Int64

	totalRequests  atomic.Int64
	totalFailures  atomic.Int64
	totalRejected  atomic.Int64
	totalSuccesses atomic.Int64
}

// NewCircuitBreaker creates a new circuit breaker and registers it for
// GetCircuitBreakerMetrics.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 500 * time.Millisecond
	}
	cb := &CircuitBreaker{cfg: cfg}
	registry.add(cb)
	return cb
}

// Call executes fn with circuit breaker protection
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if !cb.canExecute() {
		cb.totalRejected.Add(1)
		return ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, cb.cfg.CallTimeout)
	defer cancel()

	cb.totalRequests.Add(1)
	if err := fn(callCtx); err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) canExecute() bool {
	switch cb.State() {
	case StateOpen:
		last := cb.lastFailTime.Load()
		if last != 0 && time.Since(time.Unix(0, last)) >= cb.cfg.ResetTimeout {
			// one probe gets through; concurrent callers stay rejected
			return cb.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen))
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.totalFailures.Add(1)
	cb.lastFailTime.Store(time.Now().UnixNano())

	if cb.State() == StateHalfOpen || cb.failures.Add(1) >= cb.cfg.FailureThreshold {
		if cb.state.Swap(int32(StateOpen)) != int32(StateOpen) {
			Warn("circuit breaker opened", "name", cb.cfg.Name, "failures", cb.failures.Load())
		}
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.totalSuccesses.Add(1)
	cb.failures.Store(0)
	if cb.state.CompareAndSwap(int32(StateHalfOpen), int32(StateClosed)) {
		Info("circuit breaker closed", "name", cb.cfg.Name)
	}
}

// State returns current circuit breaker state
func (cb *CircuitBreaker) State() CircuitBreakerState {
	return CircuitBreakerState(cb.state.Load())
}

// GetMetrics returns current circuit breaker metrics
func (cb *CircuitBreaker) GetMetrics() CircuitBreakerMetrics {
	return CircuitBreakerMetrics{
		State:           cb.State().String(),
		TotalRequests:   cb.totalRequests.Load(),
		TotalFailures:   cb.totalFailures.Load(),
		TotalRejected:   cb.totalRejected.Load(),
		TotalSuccesses:  cb.totalSuccesses.Load(),
		CurrentFailures: cb.failures.Load(),
	}
}

// CircuitBreakerMetrics holds circuit breaker performance metrics
type CircuitBreakerMetrics struct {
	State           string `json:"state"`
	TotalRequests   int64  `json:"total_requests"`
	TotalFailures   int64  `json:"total_failures"`
	TotalRejected   int64  `json:"total_rejected"`
	TotalSuccesses  int64  `json:"total_successes"`
	CurrentFailures int32  `json:"current_failures"`
}

type breakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

var registry = &breakerRegistry{breakers: make(map[string]*CircuitBreaker)}

func (r *breakerRegistry) add(cb *CircuitBreaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers[cb.cfg.Name] = cb
}

// GetCircuitBreakerMetrics returns metrics of every breaker created so far.
func GetCircuitBreakerMetrics() map[string]CircuitBreakerMetrics {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	metrics := make(map[string]CircuitBreakerMetrics, len(registry.breakers))
	for name, cb := range registry.breakers {
		metrics[name] = cb.GetMetrics()
	}
	return metrics
}
