package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Value is the gauge encoding used by circuit_breaker_state: 0=closed, 1=half-open, 2=open.
func (s State) Value() float64 {
	return float64(s)
}

// Config holds circuit breaker configuration
type Config struct {
	FailureThreshold uint32        // Consecutive failures before opening
	Timeout          time.Duration // Time to wait before transitioning to half-open
	MaxRequests      uint32        // Max requests allowed in half-open state
}

// ErrCircuitOpen is returned by Call when the breaker rejects fn without running it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker wraps sony/gobreaker with a state change hook
type CircuitBreaker struct {
	breaker       *gobreaker.CircuitBreaker
	config        Config
	onStateChange func(from, to State)
}

// New creates a new circuit breaker with the given configuration
func New(name string, config Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		config: config,
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    0, // counts are never cleared while closed
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if cb.onStateChange != nil {
				cb.onStateChange(convertState(from), convertState(to))
			}
		},
	}

	cb.breaker = gobreaker.NewCircuitBreaker(settings)

	return cb
}

// Call executes fn with circuit breaker protection. When the breaker is
// open fn is not run and ErrCircuitOpen is returned.
func (cb *CircuitBreaker) Call(fn func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the current circuit breaker state
func (cb *CircuitBreaker) State() State {
	return convertState(cb.breaker.State())
}

// OnStateChange registers a callback for state changes
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.onStateChange = fn
}

// IsOpen returns true if the circuit breaker is open
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

func convertState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// FailFastConfig opens on the first failure and stays open for the rest of
// a probe run, so every later step is rejected without touching the network.
func FailFastConfig() Config {
	return Config{
		FailureThreshold: 1,
		Timeout:          time.Hour,
		MaxRequests:      1,
	}
}

// MetricsCollector receives circuit breaker state changes
type MetricsCollector interface {
	SetCircuitBreakerState(service, component string, state float64)
	IncrementCircuitBreakerFailures(service, component string)
}

// NewFailFast creates the breaker guarding a probe run and reports its
// state to metricsCol, which may be nil.
func NewFailFast(service string, metricsCol MetricsCollector) *CircuitBreaker {
	cb := New(service, FailFastConfig())
	if metricsCol == nil {
		return cb
	}

	metricsCol.SetCircuitBreakerState(service, "probe", StateClosed.Value())
	cb.OnStateChange(func(from, to State) {
		metricsCol.SetCircuitBreakerState(service, "probe", to.Value())
		if to == StateOpen {
			metricsCol.IncrementCircuitBreakerFailures(service, "probe")
		}
	})
	return cb
}
