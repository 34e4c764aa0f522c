package scalogram

import (
	"github.com/joeydtaylor/scalogram/pkg/internal/cwt"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// WithLogger attaches loggers to the extractor.
func WithLogger(loggers ...types.Logger) types.Option[*Extractor] {
	return func(e *Extractor) {
		e.ConnectLogger(loggers...)
	}
}

// WithMethod selects direct or FFT convolution.
func WithMethod(m cwt.Method) types.Option[*Extractor] {
	return func(e *Extractor) {
		e.method = m
	}
}

// WithWavelet overrides the mother wavelet. Only Morlet matches the shipped models.
func WithWavelet(w cwt.Wavelet) types.Option[*Extractor] {
	return func(e *Extractor) {
		e.wavelet = w
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata(name string, id string) types.Option[*Extractor] {
	return func(e *Extractor) {
		e.SetComponentMetadata(name, id)
	}
}
