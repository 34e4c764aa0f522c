// Package circuitbreaker stops calls to a failing dependency, such as a remote model
// server, once a threshold of errors has been reached, and lets them through again after
// a cool-down window.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

// CircuitBreaker is closed (allowing calls) until errorThreshold errors are recorded, then
// open for timeWindow.
type CircuitBreaker struct {
	componentMetadata types.ComponentMetadata
	ctx               context.Context
	cancel            context.CancelFunc
	loggers           []types.Logger
	errorThreshold    int
	timeWindow        time.Duration
	debounce          time.Duration
	errorCount        int
	allowed           bool
	lastTripped       time.Time
	lastErrorTime     time.Time
	resetNotifyChan   chan struct{}
	now               func() time.Time
	stateLock         sync.Mutex
	configLock        sync.Mutex
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(ctx context.Context, errorThreshold int, timeWindow time.Duration, options ...types.Option[*CircuitBreaker]) *CircuitBreaker {
	ctx, cancel := context.WithCancel(ctx)
	if errorThreshold < 1 {
		errorThreshold = 1
	}
	cb := &CircuitBreaker{
		ctx:    ctx,
		cancel: cancel,
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "CIRCUIT_BREAKER",
		},
		errorThreshold:  errorThreshold,
		timeWindow:      timeWindow,
		allowed:         true,
		resetNotifyChan: make(chan struct{}, 1),
		now:             time.Now,
	}
	for _, option := range options {
		option(cb)
	}

	cb.NotifyLoggers(types.DebugLevel, "Circuit breaker created",
		"component", cb.snapshotMetadata(),
		"event", "Create",
		"errorThreshold", errorThreshold,
		"timeWindow", timeWindow,
	)
	return cb
}

// GetComponentMetadata returns the breaker identity.
func (cb *CircuitBreaker) GetComponentMetadata() types.ComponentMetadata {
	return cb.snapshotMetadata()
}

// ResetNotify fires after every transition back to closed.
func (cb *CircuitBreaker) ResetNotify() <-chan struct{} {
	return cb.resetNotifyChan
}

// Stop releases the breaker's context.
func (cb *CircuitBreaker) Stop() {
	cb.cancel()
}
