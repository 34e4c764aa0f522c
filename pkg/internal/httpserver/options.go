package httpserver

import (
	"crypto/tls"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// WithAddress sets the listen address, e.g. ":8080".
func WithAddress(address string) types.Option[*Server] {
	return func(s *Server) {
		if address != "" {
			s.address = address
		}
	}
}

// WithTimeout bounds response writes, including websocket replies.
func WithTimeout(timeout time.Duration) types.Option[*Server] {
	return func(s *Server) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithTLSConfig serves HTTPS using the certificates in cfg.
func WithTLSConfig(cfg *tls.Config) types.Option[*Server] {
	return func(s *Server) {
		s.tlsConfig = cfg
	}
}

// WithHeader adds a header to every response.
func WithHeader(key, value string) types.Option[*Server] {
	return func(s *Server) {
		s.headers[key] = value
	}
}

// WithMaxBodyBytes caps upload and websocket message sizes.
func WithMaxBodyBytes(n int64) types.Option[*Server] {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithPNGScale sets the default pixel scale of /v1/scalogram.png.
func WithPNGScale(scale int) types.Option[*Server] {
	return func(s *Server) {
		if scale > 0 {
			s.pngScale = scale
		}
	}
}

// WithLogger attaches loggers.
func WithLogger(loggers ...types.Logger) types.Option[*Server] {
	return func(s *Server) {
		s.ConnectLogger(loggers...)
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata(name string, id string) types.Option[*Server] {
	return func(s *Server) {
		s.componentMetadata.Name = name
		if id != "" {
			s.componentMetadata.ID = id
		}
	}
}
