// Package circuitbreaker guards upstream API hosts: after repeated
// failures against one host the breaker opens and calls fail fast,
// preserving rate-limit budget for the fallback host.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/insights-engine/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means requests are allowed
	StateClosed State = "closed"
	// StateOpen means requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the breaker is probing whether the host recovered
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker implements a per-host circuit breaker
type CircuitBreaker struct {
	name             string
	maxConsecutive   int           // Consecutive failures before opening
	cooldown         time.Duration // Time to wait before probing half-open
	halfOpenMaxCalls int           // Successful probes needed to close again

	mu               sync.Mutex
	state            State
	consecutiveFails int
	halfOpenCalls    int
	halfOpenOKs      int
	lastStateChange  time.Time
}

// Config configures a circuit breaker
type Config struct {
	Name             string
	MaxConsecutive   int
	Cooldown         time.Duration
	HalfOpenMaxCalls int
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		MaxConsecutive:   5,
		Cooldown:         30 * time.Second,
		HalfOpenMaxCalls: 2,
	}
}

// New creates a new circuit breaker
func New(cfg *Config) *CircuitBreaker {
	return &CircuitBreaker{
		name:             cfg.Name,
		maxConsecutive:   cfg.MaxConsecutive,
		cooldown:         cfg.Cooldown,
		halfOpenMaxCalls: cfg.HalfOpenMaxCalls,
		state:            StateClosed,
		lastStateChange:  time.Now(),
	}
}

// Allow reports whether a request may proceed. Callers must pair every
// allowed request with a Record call.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastStateChange) > cb.cooldown {
			cb.setState(StateHalfOpen)
			logging.GetGlobalLogger().WithFields(map[string]interface{}{
				"breaker": cb.name,
				"state":   StateHalfOpen,
			}).Info("circuit breaker probing half-open")
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return ErrCircuitOpen
		}
		cb.halfOpenCalls++
		return nil
	default:
		return nil
	}
}

// Record feeds the result of an allowed request back into the breaker
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.consecutiveFails = 0
		if cb.state == StateHalfOpen {
			cb.halfOpenOKs++
			if cb.halfOpenOKs >= cb.halfOpenMaxCalls {
				cb.setState(StateClosed)
				logging.GetGlobalLogger().WithFields(map[string]interface{}{
					"breaker": cb.name,
					"state":   StateClosed,
				}).Info("circuit breaker closed after recovery")
			}
		}
		return
	}

	cb.consecutiveFails++

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFails >= cb.maxConsecutive {
			cb.setState(StateOpen)
			logging.GetGlobalLogger().WithFields(map[string]interface{}{
				"breaker":          cb.name,
				"state":            StateOpen,
				"consecutiveFails": cb.consecutiveFails,
			}).Warn("circuit breaker opened")
		}
	case StateHalfOpen:
		// Any failure during the probe reopens immediately
		cb.setState(StateOpen)
		logging.GetGlobalLogger().WithFields(map[string]interface{}{
			"breaker": cb.name,
			"state":   StateOpen,
		}).Warn("circuit breaker reopened after failed probe")
	}
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	cb.lastStateChange = time.Now()
	cb.halfOpenCalls = 0
	cb.halfOpenOKs = 0
}
