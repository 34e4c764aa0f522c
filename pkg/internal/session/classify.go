package session

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/classifier"
	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/visualize"
)

// Upload decodes a CSV chromatogram from r and makes it the session dataset. name is the
// file name; a compression extension (".gz", ".zst", ...) selects a decompressor. It
// returns the number of rows kept.
func (s *Session) Upload(ctx context.Context, r io.Reader, name string) (int, error) {
	metadata := s.snapshotMetadata()
	if r == nil {
		return 0, types.NewInputError("session.upload", types.ErrNoFile)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rc, err := codec.NewDecompressingReader(r, codec.AlgorithmFromName(name))
	if err != nil {
		return 0, types.NewInputError("session.upload", err)
	}
	defer rc.Close()

	c, err := s.decoder.Decode(rc)
	if err != nil {
		s.NotifyLoggers(types.WarnLevel, "Upload rejected",
			"component", metadata, "event", "Upload", "result", "FAILURE", "file", name, "error", err)
		return 0, err
	}
	c.Name = codec.TrimCompressionExt(name)

	s.dataLock.Lock()
	s.chromatogram = &c
	s.dataLock.Unlock()

	s.meter.IncrementCount(types.MetricUploadCount)
	s.meter.AddCount(types.MetricUploadRowCount, uint64(c.Len()))
	s.NotifyLoggers(types.InfoLevel, "Dataset uploaded",
		"component", metadata, "event", "Upload", "result", "SUCCESS", "file", c.Name, "rows", c.Len())
	return c.Len(), nil
}

// Dataset returns the uploaded chromatogram.
func (s *Session) Dataset() (types.Chromatogram, bool) {
	s.dataLock.Lock()
	defer s.dataLock.Unlock()
	if s.chromatogram == nil {
		return types.Chromatogram{}, false
	}
	return *s.chromatogram, true
}

// ClassifyUploaded classifies the uploaded dataset.
func (s *Session) ClassifyUploaded(ctx context.Context) (types.PredictionResult, error) {
	c, ok := s.Dataset()
	if !ok || c.Len() == 0 {
		return types.PredictionResult{}, types.NewInputError("session.classify", types.ErrEmptyDataset)
	}
	return s.Classify(ctx, c)
}

// Classify extracts the scalogram of c and runs the selected model on it. Under a policy
// that off-loads extraction the transform runs on the session worker; otherwise inline.
// A second call while one is running fails with types.ErrBusy.
func (s *Session) Classify(ctx context.Context, c types.Chromatogram) (types.PredictionResult, error) {
	return s.classify(ctx, c, s.snapshotModel)
}

func (s *Session) classify(ctx context.Context, c types.Chromatogram, model func() (types.ModelProfile, *classifier.Adapter, error)) (types.PredictionResult, error) {
	if c.Len() == 0 {
		return types.PredictionResult{}, types.NewInputError("session.classify", types.ErrEmptyDataset)
	}
	if err := c.Validate(); err != nil {
		return types.PredictionResult{}, err
	}
	if !atomic.CompareAndSwapInt32(&s.busy, 0, 1) {
		return types.PredictionResult{}, types.NewBusyError("session.classify", types.ErrBusy)
	}
	defer atomic.StoreInt32(&s.busy, 0)

	profile, adapter, err := model()
	if err != nil {
		return types.PredictionResult{}, err
	}

	s.meter.IncrementCount(types.MetricClassifySubmitted)
	metadata := s.snapshotMetadata()
	start := time.Now()

	sg, err := s.extract(ctx, profile, c.Intensity)
	extracted := time.Now()
	s.meter.ObserveDuration(types.MetricExtractionNanos, extracted.Sub(start))
	if err != nil {
		return types.PredictionResult{}, s.classifyFailed(metadata, profile, "Extract", err)
	}

	res, err := adapter.Classify(ctx, sg)
	s.meter.ObserveDuration(types.MetricClassifyNanos, time.Since(extracted))
	if err != nil {
		return types.PredictionResult{}, s.classifyFailed(metadata, profile, "Classify", err)
	}
	res.Duration = time.Since(start)

	s.dataLock.Lock()
	s.lastScalogram = &sg
	s.lastResult = &res
	s.dataLock.Unlock()

	s.meter.IncrementCount(types.MetricClassifyCompleted)
	if res.Regression != nil {
		s.meter.IncrementCount(types.MetricRegressionCount)
	}
	s.NotifyLoggers(types.InfoLevel, "Dataset classified",
		"component", metadata, "event", "Classify", "result", "SUCCESS",
		"model", profile.ID, "predicted", res.PredictedLabel, "concentration", res.Concentration,
		"samples", c.Len(), "duration", res.Duration)
	return res, nil
}

func (s *Session) extract(ctx context.Context, profile types.ModelProfile, signal []float64) (types.Scalogram, error) {
	if profile.Policy.OffloadExtraction {
		return s.worker.Call(ctx, extractRequest{Signal: signal, Mean: profile.Mean, Std: profile.Std})
	}
	return s.extractor.Extract(ctx, signal, profile.Mean, profile.Std)
}

func (s *Session) classifyFailed(metadata types.ComponentMetadata, profile types.ModelProfile, event string, err error) error {
	s.meter.IncrementCount(types.MetricClassifyErrors)
	s.NotifyLoggers(types.ErrorLevel, "Classification failed",
		"component", metadata, "event", event, "result", "FAILURE",
		"model", profile.ID, "kind", types.KindOf(err).String(), "error", err)
	return err
}

// LastScalogram returns the scalogram of the last successful classification.
func (s *Session) LastScalogram() (types.Scalogram, bool) {
	s.dataLock.Lock()
	defer s.dataLock.Unlock()
	if s.lastScalogram == nil {
		return types.Scalogram{}, false
	}
	return *s.lastScalogram, true
}

// LastResult returns the last successful classification.
func (s *Session) LastResult() (types.PredictionResult, bool) {
	s.dataLock.Lock()
	defer s.dataLock.Unlock()
	if s.lastResult == nil {
		return types.PredictionResult{}, false
	}
	return *s.lastResult, true
}

// RenderScalogram writes the last scalogram as a min-max normalized grayscale PNG.
func (s *Session) RenderScalogram(w io.Writer, scale int) error {
	sg, ok := s.LastScalogram()
	if !ok {
		return types.NewInputError("session.render", types.ErrEmptyDataset)
	}
	return visualize.Render(w, sg, scale)
}

// Clear drops the dataset and the last result.
func (s *Session) Clear() {
	s.dataLock.Lock()
	s.chromatogram = nil
	s.lastScalogram = nil
	s.lastResult = nil
	s.dataLock.Unlock()

	s.NotifyLoggers(types.DebugLevel, "Session cleared", "component", s.snapshotMetadata(), "event", "Clear")
}
