// Package websocketclient calls a classification websocket endpoint. Requests may be issued
// concurrently; replies are matched to callers by correlation id.
package websocketclient

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

// ErrNotConnected is returned by Classify before Connect or after Close.
var ErrNotConnected = errors.New("websocket client not connected")

// Client holds one connection and the calls awaiting replies on it.
type Client struct {
	componentMetadata types.ComponentMetadata

	url          string
	headers      map[string]string
	readLimit    int64
	writeTimeout time.Duration
	tlsConfig    *tls.Config

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	connErr error

	pendingMu sync.Mutex
	pending   map[string]chan types.ClassificationReply

	loggersLock sync.Mutex
	loggers     []types.Logger
}

// NewClient returns an unconnected client for url (ws:// or wss://).
func NewClient(url string, options ...types.Option[*Client]) *Client {
	c := &Client{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "WEBSOCKET_CLIENT",
		},
		url:          url,
		headers:      make(map[string]string),
		readLimit:    8 << 20,
		writeTimeout: 5 * time.Second,
		pending:      make(map[string]chan types.ClassificationReply),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Connect dials the endpoint and starts the reply loop. The loop runs until Close or until
// the connection fails; ctx bounds only the handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return nil
	}
	if c.url == "" {
		return errors.New("url not configured")
	}

	hdr := http.Header{}
	for k, v := range c.headers {
		hdr.Add(k, v)
	}
	opts := &websocket.DialOptions{HTTPHeader: hdr}
	if c.tlsConfig != nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: c.tlsConfig},
		}
	}

	conn, resp, err := websocket.Dial(ctx, c.url, opts)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.NotifyLoggers(types.ErrorLevel, "Websocket dial failed",
			"component", c.componentMetadata, "event", "Dial", "result", "FAILURE", "url", c.url, "error", err)
		return err
	}
	if c.readLimit > 0 {
		conn.SetReadLimit(c.readLimit)
	}

	c.conn = conn
	c.done = make(chan struct{})
	c.connErr = nil
	go c.readLoop(conn, c.done)

	c.NotifyLoggers(types.InfoLevel, "Websocket connected",
		"component", c.componentMetadata, "event", "Dial", "result", "SUCCESS", "url", c.url)
	return nil
}

// Close ends the connection and fails every pending call.
func (c *Client) Close() error {
	c.connMu.Lock()
	conn, done := c.conn, c.done
	c.connMu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "client shutdown")
	<-done
	return err
}

// Pending reports the number of calls awaiting a reply.
func (c *Client) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

// GetComponentMetadata returns the client identity.
func (c *Client) GetComponentMetadata() types.ComponentMetadata {
	return c.componentMetadata
}
