// Package circuitbreaker implements a sliding-window circuit breaker with
// atomic state, satisfying ports.CircuitBreaker. Used by the container's
// receive loop, when the supervisor is given one, to stop hammering a
// failing queue service; SendTemplate does not use it.
package circuitbreaker

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/sqskit/sqskit-go/ports"
)

// State is the circuit breaker's current mode.
type State int32

// Circuit breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String renders the state name used in ports.CircuitBreakerStats.State.
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

// ErrOpenState is returned by Execute while the breaker is open.
var ErrOpenState = errors.New("circuit breaker is open")

// ErrTooManyConcurrentRequests is returned when MaxConcurrentRequests is exceeded.
var ErrTooManyConcurrentRequests = errors.New("too many concurrent requests")

func nonNegIntToUint64(v int) uint64 {
	if v <= 0 {
		return 0
	}
	return uint64(v)
}

func clampIntToInt32(v int) int32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}

// CircuitBreaker implements ports.CircuitBreaker with a 10-bucket,
// one-minute sliding error-rate window.
type CircuitBreaker struct {
	name string

	errorThreshold          float64
	successThresholdU       uint64
	timeout                 time.Duration
	maxConcurrentRequests   int32
	requestVolumeThresholdU uint64

	state         atomic.Int32
	lastStateTime atomic.Int64
	generation    atomic.Uint64

	counts *window

	activeRequests atomic.Int32
}

var _ ports.CircuitBreaker = (*CircuitBreaker)(nil)

// New creates a CircuitBreaker. errorThreshold is a percentage [0,100];
// the breaker opens once at least requestVolumeThreshold requests have
// been observed in the current window and the failure rate reaches it.
func New(name string, errorThreshold float64, successThreshold int, timeout time.Duration, maxConcurrent int, volumeThreshold int) *CircuitBreaker {
	s := successThreshold
	if s < 0 {
		s = 0
	} else if s > math.MaxInt32 {
		s = math.MaxInt32
	}
	mc := maxConcurrent
	if mc < 0 {
		mc = 0
	} else if mc > math.MaxInt32 {
		mc = math.MaxInt32
	}
	vt := volumeThreshold
	if vt < 0 {
		vt = 0
	} else if vt > math.MaxInt32 {
		vt = math.MaxInt32
	}

	cb := &CircuitBreaker{
		name:                    name,
		errorThreshold:          errorThreshold,
		successThresholdU:       nonNegIntToUint64(s),
		timeout:                 timeout,
		maxConcurrentRequests:   clampIntToInt32(mc),
		requestVolumeThresholdU: nonNegIntToUint64(vt),
		counts:                  newWindow(10, time.Minute),
	}
	cb.state.Store(int32(StateClosed))
	cb.lastStateTime.Store(time.Now().UnixNano())
	return cb
}

// Execute runs fn if the breaker allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) (err error) {
	if fn == nil {
		return errors.New("circuitbreaker: function cannot be nil")
	}

	generation, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("circuitbreaker: panic: %v", r)
			cb.afterRequest(generation, err)
		}
	}()

	err = fn()
	cb.afterRequest(generation, err)
	return err
}

// GetState returns the current state name.
func (cb *CircuitBreaker) GetState() string {
	return State(cb.state.Load()).String()
}

// GetStats returns the current window statistics.
func (cb *CircuitBreaker) GetStats() ports.CircuitBreakerStats {
	counts := cb.counts.sum()
	return ports.CircuitBreakerStats{
		Requests:            counts.requests,
		TotalSuccess:        counts.successes,
		TotalFailure:        counts.failures,
		ConsecutiveFailures: counts.consecutiveFailures,
		State:               cb.GetState(),
	}
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	active := cb.activeRequests.Add(1)
	if cb.maxConcurrentRequests > 0 && active > cb.maxConcurrentRequests {
		cb.activeRequests.Add(-1)
		return 0, ErrTooManyConcurrentRequests
	}

	state := State(cb.state.Load())

	if state == StateOpen {
		lastStateTime := cb.lastStateTime.Load()
		if time.Now().UnixNano()-lastStateTime > cb.timeout.Nanoseconds() {
			if cb.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
				cb.toHalfOpen()
			}
		}
		if State(cb.state.Load()) == StateOpen {
			cb.activeRequests.Add(-1)
			return 0, ErrOpenState
		}
	}

	return cb.generation.Load(), nil
}

func (cb *CircuitBreaker) afterRequest(generation uint64, err error) {
	cb.activeRequests.Add(-1)

	if generation != cb.generation.Load() {
		return
	}

	if err == nil {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.counts.success()

	if State(cb.state.Load()) == StateHalfOpen {
		counts := cb.counts.sum()
		if counts.consecutiveSuccesses >= cb.successThresholdU {
			cb.toClosed()
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.counts.failure()

	switch State(cb.state.Load()) {
	case StateClosed:
		if cb.shouldOpen() {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) shouldOpen() bool {
	counts := cb.counts.sum()
	if counts.requests < cb.requestVolumeThresholdU {
		return false
	}
	errorRate := float64(counts.failures) / float64(counts.requests) * 100
	return errorRate >= cb.errorThreshold
}

func (cb *CircuitBreaker) toOpen() {
	swapped := cb.state.CompareAndSwap(int32(StateClosed), int32(StateOpen))
	if !swapped {
		swapped = cb.state.CompareAndSwap(int32(StateHalfOpen), int32(StateOpen))
	}
	if swapped {
		cb.lastStateTime.Store(time.Now().UnixNano())
		cb.generation.Add(1)
	}
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.lastStateTime.Store(time.Now().UnixNano())
	cb.generation.Add(1)
	cb.counts.reset()
}

func (cb *CircuitBreaker) toClosed() {
	if cb.state.CompareAndSwap(int32(StateHalfOpen), int32(StateClosed)) {
		cb.lastStateTime.Store(time.Now().UnixNano())
		cb.generation.Add(1)
		cb.counts.reset()
	}
}
