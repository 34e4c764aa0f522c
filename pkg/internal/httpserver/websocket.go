package httpserver

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// handleWebSocket answers ClassificationRequest messages in arrival order. Each reply carries
// the correlation id of its request.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.NotifyLoggers(types.WarnLevel, "Websocket accept failed",
			"component", s.componentMetadata, "event", "Accept", "result", "FAILURE", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server error")
	conn.SetReadLimit(s.maxBodyBytes)

	s.NotifyLoggers(types.InfoLevel, "Websocket connected",
		"component", s.componentMetadata, "event", "Connect", "remote", r.RemoteAddr)

	ctx := r.Context()
	decoder := codec.NewJSONDecoder[types.ClassificationRequest]()
	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			if isNormalClose(err) {
				conn.Close(websocket.StatusNormalClosure, "")
				s.NotifyLoggers(types.InfoLevel, "Websocket disconnected",
					"component", s.componentMetadata, "event", "Disconnect")
				return
			}
			s.NotifyLoggers(types.WarnLevel, "Websocket read failed",
				"component", s.componentMetadata, "event", "Read", "result", "FAILURE", "error", err)
			return
		}

		req, err := decoder.Decode(bytes.NewReader(payload))
		if err != nil {
			reply := types.NewClassificationReply(req.CorrelationID, types.PredictionResult{},
				types.NewInputError("httpserver.ws.decode", err))
			if werr := s.writeReply(ctx, conn, reply); werr != nil {
				return
			}
			continue
		}

		if req.CorrelationID == "" {
			req.CorrelationID = uuid.NewString()
		}
		res, err := s.backend.ClassifyModel(ctx, s.modelFor(req.ModelID), req.Chromatogram())
		reply := types.NewClassificationReply(req.CorrelationID, res, err)
		if err != nil {
			s.NotifyLoggers(types.WarnLevel, "Websocket request failed",
				"component", s.componentMetadata, "event", "Classify", "result", "FAILURE",
				"correlation_id", req.CorrelationID, "error", err)
		}
		if err := s.writeReply(ctx, conn, reply); err != nil {
			s.NotifyLoggers(types.WarnLevel, "Websocket write failed",
				"component", s.componentMetadata, "event", "Write", "result", "FAILURE",
				"correlation_id", req.CorrelationID, "error", err)
			return
		}
	}
}

// modelFor resolves an empty model id to the profile selected when the request arrived.
func (s *Server) modelFor(id string) string {
	if id != "" {
		return id
	}
	if p, ok := s.backend.Profile(); ok {
		return p.ID
	}
	return ""
}

func (s *Server) writeReply(ctx context.Context, conn *websocket.Conn, reply types.ClassificationReply) error {
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return wsjson.Write(wctx, conn, reply)
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}
