package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch types.KindOf(err) {
	case types.KindInput:
		return http.StatusBadRequest
	case types.KindModelNotReady:
		return http.StatusServiceUnavailable
	case types.KindBusy:
		return http.StatusConflict
	case types.KindNumerical:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, event string, err error) {
	status := StatusFor(err)
	level := types.WarnLevel
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		level = types.ErrorLevel
	}
	s.NotifyLoggers(level, "Request failed",
		"component", s.componentMetadata, "event", event, "result", "FAILURE",
		"path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: types.KindOf(err).String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
