package session

import (
	"context"
	"fmt"
	"reflect"

	"github.com/joeydtaylor/scalogram/pkg/internal/classifier"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// modelLoad is one load of a profile's predictors. adapter and err are set before done
// is closed.
type modelLoad struct {
	profile types.ModelProfile
	done    chan struct{}
	adapter *classifier.Adapter
	err     error
}

func (ml *modelLoad) failed() bool {
	select {
	case <-ml.done:
		return ml.err != nil
	default:
		return false
	}
}

// SelectModel switches to profile id and starts loading its predictors in the background.
// The session is not ready until the load completes; a classification requested in the
// meantime fails with types.ErrModelNotReady.
func (s *Session) SelectModel(ctx context.Context, id string) error {
	p, err := s.registry.Get(id)
	if err != nil {
		return err
	}

	s.modelLock.Lock()
	s.generation++
	gen := s.generation
	s.profile = &p
	s.adapter = nil
	s.loadErr = nil
	s.releaseWaitersLocked()
	s.readyCh = make(chan struct{})
	s.modelLock.Unlock()

	s.NotifyLoggers(types.InfoLevel, "Model selected",
		"component", s.snapshotMetadata(), "event", "SelectModel", "model", p.ID, "policy", p.Policy.Name)

	go s.awaitSelected(gen, s.acquireLoad(p))
	return nil
}

// releaseWaitersLocked wakes WaitReady callers parked on the current generation so they
// re-read the selection.
func (s *Session) releaseWaitersLocked() {
	if s.readyCh == nil {
		return
	}
	select {
	case <-s.readyCh:
	default:
		close(s.readyCh)
	}
}

// acquireLoad returns the load of p, starting one unless a load of the same profile is
// in flight or has succeeded.
func (s *Session) acquireLoad(p types.ModelProfile) *modelLoad {
	s.modelLock.Lock()
	defer s.modelLock.Unlock()
	if ml, ok := s.loads[p.ID]; ok && !ml.failed() && reflect.DeepEqual(ml.profile, p) {
		return ml
	}
	ml := &modelLoad{profile: p, done: make(chan struct{})}
	s.loads[p.ID] = ml
	go s.runLoad(ml)
	return ml
}

func (s *Session) runLoad(ml *modelLoad) {
	ml.adapter, ml.err = s.buildAdapter(s.ctx, ml.profile)

	metadata := s.snapshotMetadata()
	if ml.err != nil {
		s.meter.IncrementCount(types.MetricModelLoadErrors)
		s.NotifyLoggers(types.ErrorLevel, "Model load failed",
			"component", metadata, "event", "LoadModel", "result", "FAILURE", "model", ml.profile.ID, "error", ml.err)
	} else {
		s.meter.IncrementCount(types.MetricModelLoadCount)
		s.NotifyLoggers(types.InfoLevel, "Model loaded",
			"component", metadata, "event", "LoadModel", "result", "SUCCESS", "model", ml.profile.ID)
	}
	close(ml.done)
}

func (s *Session) awaitSelected(gen uint64, ml *modelLoad) {
	select {
	case <-ml.done:
	case <-s.ctx.Done():
		return
	}

	s.modelLock.Lock()
	defer s.modelLock.Unlock()
	if gen != s.generation {
		return
	}
	s.adapter = ml.adapter
	s.loadErr = ml.err
	close(s.readyCh)
}

func (s *Session) buildAdapter(ctx context.Context, p types.ModelProfile) (*classifier.Adapter, error) {
	clf, err := s.loader.LoadPredictor(ctx, p.ClassifierLocation)
	if err != nil {
		return nil, types.NewModelNotReadyError("session.load_classifier", fmt.Errorf("%s: %w", p.ID, err))
	}
	opts := []types.Option[*classifier.Adapter]{classifier.WithLogger(s.snapshotLoggers()...)}
	if p.Policy.UseRegressor {
		reg, err := s.loader.LoadPredictor(ctx, p.RegressorLocation)
		if err != nil {
			return nil, types.NewModelNotReadyError("session.load_regressor", fmt.Errorf("%s: %w", p.ID, err))
		}
		opts = append(opts, classifier.WithRegressor(reg))
	}
	return classifier.NewAdapter(p, clf, opts...)
}

// UsePredictors installs already-loaded predictors for profile id, bypassing the loader.
func (s *Session) UsePredictors(id string, clf, reg types.Predictor) error {
	p, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	opts := []types.Option[*classifier.Adapter]{classifier.WithLogger(s.snapshotLoggers()...)}
	if reg != nil {
		opts = append(opts, classifier.WithRegressor(reg))
	}
	adapter, err := classifier.NewAdapter(p, clf, opts...)
	if err != nil {
		return err
	}

	ml := &modelLoad{profile: p, done: make(chan struct{}), adapter: adapter}
	close(ml.done)

	s.modelLock.Lock()
	s.generation++
	s.profile = &p
	s.adapter = adapter
	s.loadErr = nil
	s.releaseWaitersLocked()
	s.readyCh = ml.done
	s.loads[p.ID] = ml
	s.modelLock.Unlock()
	return nil
}

// Ready reports whether a model is loaded and the extraction worker is serving.
func (s *Session) Ready() bool {
	s.modelLock.Lock()
	loaded := s.adapter != nil
	s.modelLock.Unlock()
	return loaded && s.worker.Ready()
}

// WaitReady blocks until the selected model finished loading. It returns the load error,
// if any, and follows model switches made while waiting.
func (s *Session) WaitReady(ctx context.Context) error {
	for {
		s.modelLock.Lock()
		ch, gen := s.readyCh, s.generation
		s.modelLock.Unlock()
		if ch == nil {
			return types.NewModelNotReadyError("session.wait_ready", fmt.Errorf("%w: no model selected", types.ErrModelNotReady))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ctx.Done():
			return types.NewChannelError("session.wait_ready", types.ErrChannelClosed)
		case <-ch:
		}

		s.modelLock.Lock()
		if gen != s.generation {
			s.modelLock.Unlock()
			continue
		}
		err := s.loadErr
		s.modelLock.Unlock()
		return err
	}
}

// Profile returns the selected profile.
func (s *Session) Profile() (types.ModelProfile, bool) {
	s.modelLock.Lock()
	defer s.modelLock.Unlock()
	if s.profile == nil {
		return types.ModelProfile{}, false
	}
	return *s.profile, true
}

func (s *Session) snapshotModel() (types.ModelProfile, *classifier.Adapter, error) {
	s.modelLock.Lock()
	defer s.modelLock.Unlock()
	if s.adapter == nil {
		if s.loadErr != nil {
			return types.ModelProfile{}, nil, s.loadErr
		}
		return types.ModelProfile{}, nil, types.NewModelNotReadyError("session.classify", types.ErrModelNotReady)
	}
	return *s.profile, s.adapter, nil
}

// ClassifyModel classifies c with profile id without changing the selected model. The
// profile's predictors are loaded on first use and shared with later calls; an empty id
// uses the selected profile.
func (s *Session) ClassifyModel(ctx context.Context, id string, c types.Chromatogram) (types.PredictionResult, error) {
	if id == "" {
		return s.Classify(ctx, c)
	}
	p, err := s.registry.Get(id)
	if err != nil {
		return types.PredictionResult{}, err
	}

	ml := s.acquireLoad(p)
	select {
	case <-ml.done:
	case <-ctx.Done():
		return types.PredictionResult{}, ctx.Err()
	case <-s.ctx.Done():
		return types.PredictionResult{}, types.NewChannelError("session.classify_model", types.ErrChannelClosed)
	}
	if ml.err != nil {
		return types.PredictionResult{}, ml.err
	}
	return s.classify(ctx, c, func() (types.ModelProfile, *classifier.Adapter, error) {
		return ml.profile, ml.adapter, nil
	})
}
