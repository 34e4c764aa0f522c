package builder

import (
	"github.com/joeydtaylor/scalogram/pkg/internal/adapter/websocketclient"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// WebSocketClient sends classification requests to a /v1/ws endpoint.
type WebSocketClient = websocketclient.Client

// NewWebSocketClient returns an unconnected client; call Connect before Classify.
func NewWebSocketClient(url string, options ...types.Option[*WebSocketClient]) *WebSocketClient {
	return websocketclient.NewClient(url, options...)
}

func WebSocketClientWithHeader(key, value string) types.Option[*WebSocketClient] {
	return websocketclient.WithHeader(key, value)
}

func WebSocketClientWithLogger(l ...types.Logger) types.Option[*WebSocketClient] {
	return websocketclient.WithLogger(l...)
}
