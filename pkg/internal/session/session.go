// Package session holds the state of one classification workspace: the uploaded
// chromatogram, the selected model profile with its loaded predictors, and the last
// scalogram and result. It replaces the page-level globals of an interactive client.
package session

import (
	"context"
	"sync"

	"github.com/joeydtaylor/scalogram/pkg/internal/classifier"
	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/meter"
	"github.com/joeydtaylor/scalogram/pkg/internal/modelstore"
	"github.com/joeydtaylor/scalogram/pkg/internal/scalogram"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
	"github.com/joeydtaylor/scalogram/pkg/internal/worker"
)

// ModelLoader resolves a model location into a predictor. *modelstore.Loader satisfies it.
type ModelLoader interface {
	LoadPredictor(ctx context.Context, location string) (types.Predictor, error)
}

type extractRequest struct {
	Signal []float64
	Mean   float64
	Std    float64
}

// Session is safe for concurrent use. At most one classification runs at a time.
type Session struct {
	componentMetadata types.ComponentMetadata
	ctx               context.Context
	cancel            context.CancelFunc

	registry  *modelstore.Registry
	loader    ModelLoader
	extractor *scalogram.Extractor
	worker    *worker.Channel[extractRequest, types.Scalogram]
	meter     *meter.Meter
	decoder   *codec.ChromatogramDecoder

	initialModel string

	// model state
	modelLock  sync.Mutex
	profile    *types.ModelProfile
	adapter    *classifier.Adapter
	generation uint64
	loadErr    error
	readyCh    chan struct{}
	loads      map[string]*modelLoad

	// data state
	dataLock      sync.Mutex
	chromatogram  *types.Chromatogram
	lastScalogram *types.Scalogram
	lastResult    *types.PredictionResult

	busy int32

	loggers    []types.Logger
	configLock sync.Mutex
}

// NewSession builds a session with the built-in registry, a default loader and a
// Morlet extractor. When WithInitialModel is given, that model starts loading at once.
func NewSession(ctx context.Context, options ...types.Option[*Session]) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "SESSION",
		},
		ctx:     ctx,
		cancel:  cancel,
		decoder: codec.NewChromatogramDecoder(),
		loads:   make(map[string]*modelLoad),
	}
	for _, option := range options {
		option(s)
	}

	loggers := s.snapshotLoggers()
	if s.registry == nil {
		s.registry = modelstore.NewRegistry()
	}
	if s.loader == nil {
		s.loader = modelstore.NewLoader(modelstore.WithLogger(loggers...))
	}
	if s.meter == nil {
		s.meter = meter.NewMeter(meter.WithLogger(loggers...))
	}
	if s.extractor == nil {
		ex, err := scalogram.NewExtractor(scalogram.WithLogger(loggers...))
		if err != nil {
			cancel()
			return nil, err
		}
		s.extractor = ex
	}
	s.worker = worker.NewChannel(ctx, s.extractOnWorker,
		worker.WithLogger[extractRequest, types.Scalogram](loggers...),
		worker.WithComponentMetadata[extractRequest, types.Scalogram]("extraction-worker", ""),
	)

	s.NotifyLoggers(types.InfoLevel, "Session created",
		"component", s.snapshotMetadata(), "event", "Create", "models", s.registry.IDs())

	if s.initialModel != "" {
		if err := s.SelectModel(ctx, s.initialModel); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) extractOnWorker(ctx context.Context, req extractRequest) (types.Scalogram, error) {
	return s.extractor.Extract(ctx, req.Signal, req.Mean, req.Std)
}

// Registry returns the profile table.
func (s *Session) Registry() *modelstore.Registry {
	return s.registry
}

// Meter returns the session counters.
func (s *Session) Meter() *meter.Meter {
	return s.meter
}

// Extractor returns the scalogram extractor.
func (s *Session) Extractor() *scalogram.Extractor {
	return s.extractor
}

// GetComponentMetadata returns the session identity.
func (s *Session) GetComponentMetadata() types.ComponentMetadata {
	return s.snapshotMetadata()
}

// Close stops the worker and abandons any model load in progress.
func (s *Session) Close() {
	s.cancel()
	s.worker.Close()
	s.NotifyLoggers(types.InfoLevel, "Session closed", "component", s.snapshotMetadata(), "event", "Close")
}
