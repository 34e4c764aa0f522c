package websocketclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/joeydtaylor/scalogram/pkg/internal/adapter/websocketclient"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// reversingServer answers requests in reverse arrival order once it holds two of them.
func reversingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		var held []types.ClassificationRequest
		for {
			var req types.ClassificationRequest
			if err := wsjson.Read(r.Context(), conn, &req); err != nil {
				return
			}
			held = append(held, req)
			if len(held) < 2 {
				continue
			}
			for i := len(held) - 1; i >= 0; i-- {
				var reply types.ClassificationReply
				if len(held[i].Intensity) == 0 {
					reply = types.NewClassificationReply(held[i].CorrelationID, types.PredictionResult{},
						types.NewInputError("test", types.ErrEmptyDataset))
				} else {
					reply = types.NewClassificationReply(held[i].CorrelationID,
						types.PredictionResult{ModelID: held[i].ModelID, PredictedLabel: "Duha"}, nil)
				}
				if err := wsjson.Write(r.Context(), conn, reply); err != nil {
					return
				}
			}
			held = held[:0]
		}
	}))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestClassify_MatchesRepliesByCorrelationID(t *testing.T) {
	ts := reversingServer(t)
	defer ts.Close()

	c := websocketclient.NewClient(wsURL(ts))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	var okReply types.ClassificationReply
	var failErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		okReply, _ = c.Classify(ctx, types.ClassificationRequest{CorrelationID: "a", ModelID: "m1", RetentionTime: types.Samples{1}, Intensity: types.Samples{2}})
	}()
	go func() {
		defer wg.Done()
		_, failErr = c.Classify(ctx, types.ClassificationRequest{CorrelationID: "b", ModelID: "m2"})
	}()
	wg.Wait()

	if okReply.CorrelationID != "a" || okReply.Result == nil || okReply.Result.ModelID != "m1" {
		t.Fatalf("unexpected reply %+v", okReply)
	}
	if failErr == nil || !types.IsInput(failErr) {
		t.Fatalf("expected remote input error, got %v", failErr)
	}
	if c.Pending() != 0 {
		t.Fatalf("pending calls leaked: %d", c.Pending())
	}
}

func TestClassify_NotConnected(t *testing.T) {
	c := websocketclient.NewClient("ws://127.0.0.1:1/v1/ws")
	if _, err := c.Classify(context.Background(), types.ClassificationRequest{}); err != websocketclient.ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClassify_ServerGoesAway(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		var req types.ClassificationRequest
		_ = wsjson.Read(r.Context(), conn, &req)
		conn.Close(websocket.StatusGoingAway, "restarting")
	}))
	defer ts.Close()

	c := websocketclient.NewClient(wsURL(ts))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := c.Classify(ctx, types.ClassificationRequest{CorrelationID: "x"})
	if types.KindOf(err) != types.KindChannel {
		t.Fatalf("expected channel error, got %v", err)
	}
}
