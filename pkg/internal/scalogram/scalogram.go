// Package scalogram turns a raw intensity trace into the fixed-size wavelet scalogram the
// pretrained classifiers consume: z-score, Morlet CWT over scales 1..127 at unit sampling
// period, real part, first 127 samples.
package scalogram

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/cwt"
	"github.com/joeydtaylor/scalogram/pkg/internal/preprocess"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

// Extractor computes scalograms with a precomputed wavelet plan. It is safe for
// concurrent use.
type Extractor struct {
	componentMetadata types.ComponentMetadata
	wavelet           cwt.Wavelet
	method            cwt.Method
	plan              *cwt.Plan
	loggers           []types.Logger
	configLock        sync.Mutex
}

// NewExtractor builds an extractor for the model contract. Options may change the
// convolution method or attach loggers.
func NewExtractor(options ...types.Option[*Extractor]) (*Extractor, error) {
	e := &Extractor{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "EXTRACTOR",
		},
		wavelet: cwt.Morlet,
		method:  cwt.MethodConv,
	}
	for _, option := range options {
		option(e)
	}

	plan, err := cwt.NewPlan(
		e.wavelet,
		cwt.IntegerScales(1, types.ScalogramScales),
		types.SamplingPeriod,
		cwt.WithMethod(e.method),
		cwt.WithColumns(types.ScalogramColumns),
	)
	if err != nil {
		return nil, err
	}
	e.plan = plan

	e.NotifyLoggers(types.DebugLevel, "Extractor created",
		"component", e.snapshotMetadata(),
		"event", "Create",
		"wavelet", e.wavelet.Name,
		"method", e.method.String(),
	)
	return e, nil
}

// Extract normalizes signal with (mean, std) and returns its 127×127 scalogram.
// Signals shorter than 127 samples fail with types.ErrUndersized; missing (NaN) or
// infinite samples fail with types.ErrNonFinite.
func (e *Extractor) Extract(ctx context.Context, signal []float64, mean, std float64) (types.Scalogram, error) {
	start := time.Now()
	metadata := e.snapshotMetadata()

	for i, v := range signal {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			err := types.NewNumericalError("scalogram.extract", fmt.Errorf("%w: sample %d is %v", types.ErrNonFinite, i, v))
			e.notifyFailure(metadata, len(signal), err)
			return types.Scalogram{}, err
		}
	}

	normalized, err := preprocess.ZScore(signal, mean, std)
	if err != nil {
		e.notifyFailure(metadata, len(signal), err)
		return types.Scalogram{}, err
	}

	grid, err := e.plan.Apply(ctx, normalized)
	if err != nil {
		e.notifyFailure(metadata, len(signal), err)
		return types.Scalogram{}, err
	}

	e.NotifyLoggers(types.DebugLevel, "Scalogram extracted",
		"component", metadata,
		"event", "Extract",
		"result", "SUCCESS",
		"samples", len(signal),
		"duration", time.Since(start),
	)
	return types.Scalogram{Scales: e.plan.Scales(), Grid: grid}, nil
}

// Frequencies returns the pseudo-frequency of every scale row.
func (e *Extractor) Frequencies() []float64 {
	return e.plan.Frequencies()
}

// GetComponentMetadata returns the extractor's identity.
func (e *Extractor) GetComponentMetadata() types.ComponentMetadata {
	return e.snapshotMetadata()
}

func (e *Extractor) notifyFailure(metadata types.ComponentMetadata, samples int, err error) {
	e.NotifyLoggers(types.WarnLevel, "Scalogram extraction failed",
		"component", metadata,
		"event", "Extract",
		"result", "FAILURE",
		"samples", samples,
		"error", err,
	)
}
