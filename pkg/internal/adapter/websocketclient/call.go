package websocketclient

import (
	"bytes"
	"context"
	"errors"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// Classify sends req and waits for the reply with the same correlation id. A reply that
// carries an error is returned together with a ChannelError whose kind matches the remote one.
func (c *Client) Classify(ctx context.Context, req types.ClassificationRequest) (types.ClassificationReply, error) {
	c.connMu.Lock()
	conn, done := c.conn, c.done
	c.connMu.Unlock()
	if conn == nil {
		return types.ClassificationReply{}, ErrNotConnected
	}

	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	ch := make(chan types.ClassificationReply, 1)
	c.pendingMu.Lock()
	if _, dup := c.pending[req.CorrelationID]; dup {
		c.pendingMu.Unlock()
		return types.ClassificationReply{}, types.NewInputError("websocketclient.classify", errors.New("duplicate correlation id "+req.CorrelationID))
	}
	c.pending[req.CorrelationID] = ch
	c.pendingMu.Unlock()
	defer c.forget(req.CorrelationID)

	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	c.writeMu.Lock()
	err := wsjson.Write(wctx, conn, req)
	c.writeMu.Unlock()
	cancel()
	if err != nil {
		return types.ClassificationReply{}, &types.ChannelError{CorrelationID: req.CorrelationID, Message: "write failed", Err: err}
	}

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return reply, &types.ChannelError{CorrelationID: reply.CorrelationID, Message: reply.Error, Err: replyError(reply)}
		}
		return reply, nil
	case <-done:
		return types.ClassificationReply{}, &types.ChannelError{CorrelationID: req.CorrelationID, Message: "connection closed", Err: c.closeErr()}
	case <-ctx.Done():
		return types.ClassificationReply{}, ctx.Err()
	}
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		c.connMu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.connMu.Unlock()
		close(done)
	}()

	decoder := codec.NewJSONDecoder[types.ClassificationReply]()
	for {
		_, payload, err := conn.Read(context.Background())
		if err != nil {
			c.setCloseErr(err)
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.NotifyLoggers(types.WarnLevel, "Websocket read failed",
					"component", c.componentMetadata, "event", "Read", "result", "FAILURE", "error", err)
			}
			return
		}
		reply, err := decoder.Decode(bytes.NewReader(payload))
		if err != nil {
			c.NotifyLoggers(types.WarnLevel, "Undecodable reply dropped",
				"component", c.componentMetadata, "event", "Read", "result", "FAILURE", "error", err)
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[reply.CorrelationID]
		c.pendingMu.Unlock()
		if !ok {
			c.NotifyLoggers(types.DebugLevel, "Reply without a waiting caller",
				"component", c.componentMetadata, "event", "Read", "correlation_id", reply.CorrelationID)
			continue
		}
		select {
		case ch <- reply:
		default:
		}
	}
}

func (c *Client) forget(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *Client) setCloseErr(err error) {
	c.connMu.Lock()
	c.connErr = err
	c.connMu.Unlock()
}

func (c *Client) closeErr() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.connErr != nil {
		return errors.Join(types.ErrChannelClosed, c.connErr)
	}
	return types.ErrChannelClosed
}

// replyError rebuilds a typed error from a reply's kind so callers can branch on it.
func replyError(reply types.ClassificationReply) error {
	err := errors.New(reply.Error)
	switch reply.Kind {
	case types.KindInput.String():
		return types.NewInputError("remote", err)
	case types.KindModelNotReady.String():
		return types.NewModelNotReadyError("remote", err)
	case types.KindNumerical.String():
		return types.NewNumericalError("remote", err)
	case types.KindBusy.String():
		return types.NewBusyError("remote", err)
	default:
		return types.NewChannelError("remote", err)
	}
}
