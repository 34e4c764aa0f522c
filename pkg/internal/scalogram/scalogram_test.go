package scalogram_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/joeydtaylor/scalogram/pkg/internal/cwt"
	"github.com/joeydtaylor/scalogram/pkg/internal/internallogger"
	"github.com/joeydtaylor/scalogram/pkg/internal/scalogram"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func constantSignal(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rampSignal(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(float64(i)/7) * 1e6
	}
	return out
}

func TestExtract_Shape(t *testing.T) {
	e, err := scalogram.NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor error: %v", err)
	}
	for _, n := range []int{127, 128, 500} {
		sg, err := e.Extract(context.Background(), rampSignal(n), 0, 1e6)
		if err != nil {
			t.Fatalf("N=%d: Extract error: %v", n, err)
		}
		if r, c := sg.Dims(); r != 127 || c != 127 {
			t.Fatalf("N=%d: expected 127x127, got %dx%d", n, r, c)
		}
		if len(sg.Scales) != 127 || sg.Scales[0] != 1 || sg.Scales[126] != 127 {
			t.Fatalf("N=%d: unexpected scales", n)
		}
	}
}

func TestExtract_Undersized(t *testing.T) {
	e, err := scalogram.NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor error: %v", err)
	}
	for _, n := range []int{1, 50, 126} {
		_, err := e.Extract(context.Background(), rampSignal(n), 0, 1)
		if !errors.Is(err, types.ErrUndersized) {
			t.Fatalf("N=%d: expected ErrUndersized, got %v", n, err)
		}
		if !types.IsNumerical(err) {
			t.Fatalf("N=%d: expected numerical error kind", n)
		}
	}
	if _, err := e.Extract(context.Background(), nil, 0, 1); !errors.Is(err, types.ErrEmptySignal) {
		t.Fatalf("expected ErrEmptySignal, got %v", err)
	}
	withGap := rampSignal(200)
	withGap[40] = math.NaN()
	if _, err := e.Extract(context.Background(), withGap, 0, 1); !errors.Is(err, types.ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
	if _, err := e.Extract(context.Background(), rampSignal(200), 0, 0); !errors.Is(err, types.ErrZeroStd) {
		t.Fatalf("expected ErrZeroStd, got %v", err)
	}
}

func TestExtract_ConstantSignalMatchesTransformOfOnes(t *testing.T) {
	e, err := scalogram.NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor error: %v", err)
	}
	sg, err := e.Extract(context.Background(), constantSignal(200, 110), 100, 10)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	want, _, err := cwt.Transform(context.Background(), constantSignal(200, 1),
		cwt.IntegerScales(1, 127), cwt.Morlet, 1, cwt.WithColumns(127))
	if err != nil {
		t.Fatalf("Transform error: %v", err)
	}
	for i := 0; i < 127; i++ {
		for j := 0; j < 127; j++ {
			got := sg.Grid.At(i, j)
			if math.IsNaN(got) || got != want.At(i, j) {
				t.Fatalf("(%d,%d): expected %v, got %v", i, j, want.At(i, j), got)
			}
		}
	}

	again, err := e.Extract(context.Background(), constantSignal(200, 110), 100, 10)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	flatA, flatB := sg.Flatten(), again.Flatten()
	for i := range flatA {
		if flatA[i] != flatB[i] {
			t.Fatalf("extraction is not deterministic at %d", i)
		}
	}
}

func TestExtract_FFTMethod(t *testing.T) {
	direct, err := scalogram.NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor error: %v", err)
	}
	viaFFT, err := scalogram.NewExtractor(scalogram.WithMethod(cwt.MethodFFT))
	if err != nil {
		t.Fatalf("NewExtractor error: %v", err)
	}
	signal := rampSignal(300)
	a, err := direct.Extract(context.Background(), signal, 0, 1e6)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	b, err := viaFFT.Extract(context.Background(), signal, 0, 1e6)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	fa, fb := a.Flatten(), b.Flatten()
	for i := range fa {
		if math.Abs(fa[i]-fb[i]) > 1e-7 {
			t.Fatalf("index %d: conv %v fft %v", i, fa[i], fb[i])
		}
	}
}

func TestExtract_Cancelled(t *testing.T) {
	e, err := scalogram.NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Extract(ctx, rampSignal(200), 0, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExtract_Logs(t *testing.T) {
	core, obs := observer.New(zapcore.DebugLevel)
	logger := internallogger.NewLoggerWithCore(core, internallogger.LoggerWithLevel("debug"))

	e, err := scalogram.NewExtractor(
		scalogram.WithLogger(logger),
		scalogram.WithComponentMetadata("extractor", "x-1"),
	)
	if err != nil {
		t.Fatalf("NewExtractor error: %v", err)
	}
	if e.GetComponentMetadata().ID != "x-1" {
		t.Fatalf("expected id x-1, got %q", e.GetComponentMetadata().ID)
	}

	if _, err := e.Extract(context.Background(), rampSignal(10), 0, 1); err == nil {
		t.Fatalf("expected error")
	}
	failures := obs.FilterMessage("Scalogram extraction failed").All()
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure entry, got %d", len(failures))
	}
	if failures[0].ContextMap()["result"] != "FAILURE" {
		t.Fatalf("unexpected result field %v", failures[0].ContextMap()["result"])
	}
}

func TestFrequencies(t *testing.T) {
	e, err := scalogram.NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor error: %v", err)
	}
	freqs := e.Frequencies()
	if len(freqs) != 127 {
		t.Fatalf("expected 127 frequencies, got %d", len(freqs))
	}
	if math.Abs(freqs[0]-0.8125) > 1e-12 {
		t.Fatalf("expected 0.8125 at scale 1, got %v", freqs[0])
	}
}
