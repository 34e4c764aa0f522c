package cwt

import (
	"fmt"
	"strings"
)

// Method selects how each scale's convolution is evaluated.
type Method int

const (
	// MethodConv evaluates the convolution directly, only at the samples that are kept.
	MethodConv Method = iota
	// MethodFFT evaluates the full convolution through the frequency domain.
	MethodFFT
)

func (m Method) String() string {
	if m == MethodFFT {
		return "fft"
	}
	return "conv"
}

// ParseMethod resolves "conv" or "fft".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "conv":
		return MethodConv, nil
	case "fft":
		return MethodFFT, nil
	default:
		return MethodConv, fmt.Errorf("cwt: unknown method %q", s)
	}
}

// Options configure a Plan.
type Options struct {
	Method    Method
	Columns   int
	Precision int
}

// Option mutates Options.
type Option func(*Options)

// WithMethod selects the convolution method.
func WithMethod(m Method) Option {
	return func(o *Options) { o.Method = m }
}

// WithColumns keeps only the first n time samples of every row. Signals shorter than n
// are rejected instead of producing a narrower grid. Zero keeps every sample.
func WithColumns(n int) Option {
	return func(o *Options) { o.Columns = n }
}

// WithPrecision overrides the wavelet sampling precision.
func WithPrecision(p int) Option {
	return func(o *Options) { o.Precision = p }
}
