// Package worker runs a handler on a dedicated goroutine behind a correlated
// request/reply channel. Requests are served one at a time in submission order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

// Handler serves one request.
type Handler[Req any, Resp any] func(ctx context.Context, req Req) (Resp, error)

type result[Resp any] struct {
	resp Resp
	err  error
}

type call[Req any, Resp any] struct {
	id    string
	ctx   context.Context
	req   Req
	reply chan result[Resp]
}

// Channel is a single-consumer request/reply queue.
type Channel[Req any, Resp any] struct {
	componentMetadata types.ComponentMetadata
	handler           Handler[Req, Resp]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	pending []*call[Req, Resp]
	closed  bool
	wake    chan struct{}

	inFlight int32
	served   uint64

	loggers    []types.Logger
	configLock sync.Mutex
}

// NewChannel starts the serving goroutine. It stops when ctx is cancelled or Close is called.
func NewChannel[Req any, Resp any](ctx context.Context, handler Handler[Req, Resp], options ...types.Option[*Channel[Req, Resp]]) *Channel[Req, Resp] {
	ctx, cancel := context.WithCancel(ctx)
	c := &Channel[Req, Resp]{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "WORKER_CHANNEL",
		},
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
	for _, option := range options {
		option(c)
	}
	go c.serve()
	return c
}

// Call enqueues req and waits for its reply. A handler error comes back as a
// *types.ChannelError carrying the handler's message and correlation id.
func (c *Channel[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	var zero Resp
	cl := &call[Req, Resp]{
		id:    uuid.NewString(),
		ctx:   ctx,
		req:   req,
		reply: make(chan result[Resp], 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, types.NewChannelError("worker.call", types.ErrChannelClosed)
	}
	c.pending = append(c.pending, cl)
	depth := len(c.pending)
	c.mu.Unlock()
	c.signal()

	c.NotifyLoggers(types.DebugLevel, "Request queued",
		"component", c.snapshotMetadata(), "event", "Call", "correlation_id", cl.id, "queue_depth", depth)

	select {
	case r := <-cl.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Pending returns the number of queued requests, excluding the one being served.
func (c *Channel[Req, Resp]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Busy reports whether a request is being served.
func (c *Channel[Req, Resp]) Busy() bool {
	return atomic.LoadInt32(&c.inFlight) == 1
}

// Served returns the number of completed requests.
func (c *Channel[Req, Resp]) Served() uint64 {
	return atomic.LoadUint64(&c.served)
}

// Ready reports whether the channel accepts requests.
func (c *Channel[Req, Resp]) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close stops the channel, rejects queued requests with ErrChannelClosed and cancels the
// request being served. It waits for the serving goroutine to exit.
func (c *Channel[Req, Resp]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	rejected := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, cl := range rejected {
		cl.reply <- result[Resp]{err: &types.ChannelError{
			CorrelationID: cl.id,
			Message:       types.ErrChannelClosed.Error(),
			Err:           types.ErrChannelClosed,
		}}
	}
	c.cancel()
	<-c.done

	c.NotifyLoggers(types.InfoLevel, "Channel closed",
		"component", c.snapshotMetadata(), "event", "Close", "rejected", len(rejected))
}

// GetComponentMetadata returns the channel identity.
func (c *Channel[Req, Resp]) GetComponentMetadata() types.ComponentMetadata {
	return c.snapshotMetadata()
}

func (c *Channel[Req, Resp]) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Channel[Req, Resp]) next() *call[Req, Resp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	cl := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	return cl
}

func (c *Channel[Req, Resp]) serve() {
	defer close(c.done)
	for {
		if c.ctx.Err() != nil {
			c.drain()
			return
		}
		cl := c.next()
		if cl == nil {
			select {
			case <-c.ctx.Done():
				c.drain()
				return
			case <-c.wake:
				continue
			}
		}
		c.run(cl)
	}
}

// drain rejects anything queued after the parent context ended.
func (c *Channel[Req, Resp]) drain() {
	c.mu.Lock()
	c.closed = true
	rejected := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, cl := range rejected {
		cl.reply <- result[Resp]{err: &types.ChannelError{
			CorrelationID: cl.id,
			Message:       types.ErrChannelClosed.Error(),
			Err:           types.ErrChannelClosed,
		}}
	}
}

func (c *Channel[Req, Resp]) run(cl *call[Req, Resp]) {
	if err := cl.ctx.Err(); err != nil {
		cl.reply <- result[Resp]{err: err}
		return
	}

	atomic.StoreInt32(&c.inFlight, 1)
	defer atomic.StoreInt32(&c.inFlight, 0)

	ctx, cancel := context.WithCancel(cl.ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	resp, err := c.invoke(ctx, cl.req)
	atomic.AddUint64(&c.served, 1)

	metadata := c.snapshotMetadata()
	if err != nil {
		c.NotifyLoggers(types.ErrorLevel, "Request failed",
			"component", metadata, "event", "Serve", "result", "FAILURE",
			"correlation_id", cl.id, "error", err)
		cl.reply <- result[Resp]{err: &types.ChannelError{CorrelationID: cl.id, Message: err.Error(), Err: err}}
		return
	}
	c.NotifyLoggers(types.DebugLevel, "Request served",
		"component", metadata, "event", "Serve", "result", "SUCCESS", "correlation_id", cl.id)
	cl.reply <- result[Resp]{resp: resp}
}

func (c *Channel[Req, Resp]) invoke(ctx context.Context, req Req) (resp Resp, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker handler panic: %v", r)
		}
	}()
	return c.handler(ctx, req)
}
