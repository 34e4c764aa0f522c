package circuitbreaker

import (
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// WithLogger attaches loggers to the breaker.
func WithLogger(loggers ...types.Logger) types.Option[*CircuitBreaker] {
	return func(cb *CircuitBreaker) {
		cb.ConnectLogger(loggers...)
	}
}

// WithDebounce ignores errors recorded within d of the previous one.
func WithDebounce(d time.Duration) types.Option[*CircuitBreaker] {
	return func(cb *CircuitBreaker) {
		cb.debounce = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) types.Option[*CircuitBreaker] {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata(name string, id string) types.Option[*CircuitBreaker] {
	return func(cb *CircuitBreaker) {
		cb.configLock.Lock()
		cb.componentMetadata.Name = name
		if id != "" {
			cb.componentMetadata.ID = id
		}
		cb.configLock.Unlock()
	}
}
