package predictor

import (
	"net/http"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/circuitbreaker"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) types.Option[*Remote] {
	return func(r *Remote) {
		r.httpClient = c
	}
}

// WithTimeout bounds each predict call.
func WithTimeout(d time.Duration) types.Option[*Remote] {
	return func(r *Remote) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHeader adds a request header, e.g. Authorization.
func WithHeader(key, value string) types.Option[*Remote] {
	return func(r *Remote) {
		r.headers[key] = value
	}
}

// WithCircuitBreaker guards the endpoint with cb.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) types.Option[*Remote] {
	return func(r *Remote) {
		r.breaker = cb
	}
}

// WithLogger attaches loggers.
func WithLogger(loggers ...types.Logger) types.Option[*Remote] {
	return func(r *Remote) {
		r.ConnectLogger(loggers...)
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata(name string, id string) types.Option[*Remote] {
	return func(r *Remote) {
		r.componentMetadata.Name = name
		if id != "" {
			r.componentMetadata.ID = id
		}
	}
}
