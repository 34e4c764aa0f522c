package worker

import "github.com/joeydtaylor/scalogram/pkg/internal/types"

// WithLogger attaches loggers to the channel.
func WithLogger[Req any, Resp any](loggers ...types.Logger) types.Option[*Channel[Req, Resp]] {
	return func(c *Channel[Req, Resp]) {
		c.ConnectLogger(loggers...)
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata[Req any, Resp any](name string, id string) types.Option[*Channel[Req, Resp]] {
	return func(c *Channel[Req, Resp]) {
		c.componentMetadata.Name = name
		if id != "" {
			c.componentMetadata.ID = id
		}
	}
}
