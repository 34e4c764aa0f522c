package circuitbreaker

import (
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// Allow returns true if the circuit breaker allows work to proceed.
func (cb *CircuitBreaker) Allow() bool {
	now := cb.now()

	cb.stateLock.Lock()
	allowed := cb.allowed
	shouldReset := false
	if !allowed && (cb.timeWindow <= 0 || now.Sub(cb.lastTripped) >= cb.timeWindow) {
		cb.allowed = true
		cb.errorCount = 0
		allowed = true
		shouldReset = true
	}
	cb.stateLock.Unlock()

	if shouldReset {
		cb.signalReset()
		cb.NotifyLoggers(types.InfoLevel, "Circuit breaker reset", "component", cb.snapshotMetadata(), "auto", true)
	}
	return allowed
}

// RecordError records a failure and trips the breaker when the threshold is reached.
func (cb *CircuitBreaker) RecordError() {
	now := cb.now()

	cb.stateLock.Lock()
	if cb.debounce > 0 && !cb.lastErrorTime.IsZero() && now.Sub(cb.lastErrorTime) < cb.debounce {
		cb.stateLock.Unlock()
		return
	}
	cb.lastErrorTime = now
	cb.errorCount++
	errorCount := cb.errorCount
	shouldTrip := cb.allowed && errorCount >= cb.errorThreshold
	var nextReset time.Time
	if shouldTrip {
		cb.allowed = false
		cb.lastTripped = now
		nextReset = now.Add(cb.timeWindow)
	}
	cb.stateLock.Unlock()

	metadata := cb.snapshotMetadata()
	cb.NotifyLoggers(types.DebugLevel, "Circuit breaker recorded error", "component", metadata, "errorCount", errorCount, "errorThreshold", cb.errorThreshold)
	if shouldTrip {
		cb.NotifyLoggers(types.WarnLevel, "Circuit breaker tripped", "component", metadata, "errorThreshold", cb.errorThreshold, "nextReset", nextReset)
	}
}

// RecordSuccess clears the error count of a closed breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.stateLock.Lock()
	if cb.allowed {
		cb.errorCount = 0
	}
	cb.stateLock.Unlock()
}

// Reset moves the breaker back to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.stateLock.Lock()
	if cb.allowed {
		cb.stateLock.Unlock()
		return
	}
	cb.allowed = true
	cb.errorCount = 0
	cb.stateLock.Unlock()

	cb.signalReset()
	cb.NotifyLoggers(types.InfoLevel, "Circuit breaker reset", "component", cb.snapshotMetadata(), "auto", false)
}

// Trip forces the breaker into the open state.
func (cb *CircuitBreaker) Trip() {
	now := cb.now()

	cb.stateLock.Lock()
	if !cb.allowed {
		cb.stateLock.Unlock()
		return
	}
	cb.allowed = false
	cb.lastTripped = now
	nextReset := now.Add(cb.timeWindow)
	cb.stateLock.Unlock()

	cb.NotifyLoggers(types.WarnLevel, "Circuit breaker tripped", "component", cb.snapshotMetadata(), "errorThreshold", cb.errorThreshold, "nextReset", nextReset)
}

// NextReset reports when an open breaker will let calls through again. It is the zero
// time while closed.
func (cb *CircuitBreaker) NextReset() time.Time {
	cb.stateLock.Lock()
	defer cb.stateLock.Unlock()
	if cb.allowed {
		return time.Time{}
	}
	return cb.lastTripped.Add(cb.timeWindow)
}

func (cb *CircuitBreaker) signalReset() {
	select {
	case cb.resetNotifyChan <- struct{}{}:
	default:
	}
}
