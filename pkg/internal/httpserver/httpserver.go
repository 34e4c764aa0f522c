// Package httpserver exposes a classification session over HTTP and a websocket.
package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/meter"
	"github.com/joeydtaylor/scalogram/pkg/internal/modelstore"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

// Backend is the session surface served over HTTP. *session.Session satisfies it.
type Backend interface {
	Registry() *modelstore.Registry
	Meter() *meter.Meter
	Profile() (types.ModelProfile, bool)
	SelectModel(ctx context.Context, id string) error
	Ready() bool
	ClassifyModel(ctx context.Context, id string, c types.Chromatogram) (types.PredictionResult, error)
	RenderScalogram(w io.Writer, scale int) error
}

// Server routes requests to a Backend.
type Server struct {
	componentMetadata types.ComponentMetadata
	backend           Backend

	address      string
	timeout      time.Duration
	tlsConfig    *tls.Config
	headers      map[string]string
	maxBodyBytes int64
	pngScale     int

	loggers     []types.Logger
	loggersLock sync.Mutex

	server   *http.Server
	serverMu sync.Mutex
}

// NewServer builds a server for backend. It does not listen until Serve.
func NewServer(backend Backend, options ...types.Option[*Server]) *Server {
	s := &Server{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "HTTP_SERVER",
		},
		backend:      backend,
		address:      ":8080",
		timeout:      60 * time.Second,
		headers:      make(map[string]string),
		maxBodyBytes: 64 << 20,
		pngScale:     2,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("POST /v1/models/select", s.handleSelect)
	mux.HandleFunc("POST /v1/classify", s.handleClassify)
	mux.HandleFunc("GET /v1/scalogram.png", s.handleScalogram)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/ws", s.handleWebSocket)
	return s.withHeaders(mux)
}

// Serve listens on the configured address until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	s.serverMu.Lock()
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.timeout,
		TLSConfig:         s.tlsConfig,
	}
	srv := s.server
	s.serverMu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.NotifyLoggers(types.InfoLevel, "HTTP server listening",
			"component", s.componentMetadata, "event", "Serve", "address", s.address, "tls", s.tlsConfig != nil)
		if s.tlsConfig != nil {
			errChan <- srv.ListenAndServeTLS("", "")
			return
		}
		errChan <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.NotifyLoggers(types.WarnLevel, "Context canceled; shutting down server",
			"component", s.componentMetadata, "event", "Serve")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
		return nil
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.NotifyLoggers(types.ErrorLevel, "Server error",
				"component", s.componentMetadata, "event", "Serve", "result", "FAILURE", "error", err)
			return err
		}
		return nil
	}
}

// GetComponentMetadata returns the server identity.
func (s *Server) GetComponentMetadata() types.ComponentMetadata {
	return s.componentMetadata
}

func (s *Server) withHeaders(next http.Handler) http.Handler {
	if len(s.headers) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range s.headers {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
