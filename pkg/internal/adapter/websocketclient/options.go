package websocketclient

import (
	"crypto/tls"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// WithHeader adds a handshake header.
func WithHeader(key, value string) types.Option[*Client] {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithReadLimit caps the size of one reply.
func WithReadLimit(n int64) types.Option[*Client] {
	return func(c *Client) {
		c.readLimit = n
	}
}

// WithWriteTimeout bounds each request write.
func WithWriteTimeout(d time.Duration) types.Option[*Client] {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithTLSConfig dials wss:// endpoints with cfg.
func WithTLSConfig(cfg *tls.Config) types.Option[*Client] {
	return func(c *Client) {
		c.tlsConfig = cfg
	}
}

// WithLogger attaches loggers.
func WithLogger(loggers ...types.Logger) types.Option[*Client] {
	return func(c *Client) {
		c.ConnectLogger(loggers...)
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata(name string, id string) types.Option[*Client] {
	return func(c *Client) {
		c.componentMetadata.Name = name
		if id != "" {
			c.componentMetadata.ID = id
		}
	}
}
