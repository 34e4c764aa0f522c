package cwt

import (
	"context"
	"fmt"
	"math"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/mat"
)

// Plan holds the per-scale resampled kernels for one wavelet and scale set so repeated
// transforms skip the wavelet integration.
type Plan struct {
	wavelet Wavelet
	scales  []float64
	period  float64
	opts    Options
	kernels [][]float64
	offsets []int
}

// NewPlan integrates the wavelet once and prepares the reversed kernel of every scale.
func NewPlan(w Wavelet, scales []float64, samplingPeriod float64, opts ...Option) (*Plan, error) {
	o := Options{Method: MethodConv, Precision: DefaultPrecision}
	for _, opt := range opts {
		opt(&o)
	}
	if w.Psi == nil {
		return nil, fmt.Errorf("cwt: wavelet %q has no function", w.Name)
	}
	if len(scales) == 0 {
		return nil, fmt.Errorf("cwt: at least one scale is required")
	}
	if samplingPeriod <= 0 || math.IsNaN(samplingPeriod) {
		return nil, fmt.Errorf("cwt: sampling period must be positive, got %v", samplingPeriod)
	}
	if o.Precision < 2 {
		return nil, fmt.Errorf("cwt: precision must be at least 2, got %d", o.Precision)
	}
	if o.Columns < 0 {
		return nil, fmt.Errorf("cwt: columns must not be negative, got %d", o.Columns)
	}

	intPsi, x := IntegrateWavelet(w, o.Precision)
	step := x[1] - x[0]
	span := x[len(x)-1] - x[0]

	p := &Plan{
		wavelet: w,
		scales:  append([]float64(nil), scales...),
		period:  samplingPeriod,
		opts:    o,
		kernels: make([][]float64, len(scales)),
		offsets: make([]int, len(scales)),
	}

	for i, s := range scales {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("cwt: scale %v must be positive and finite", s)
		}
		n := int(math.Ceil(s*span + 1))
		kernel := make([]float64, 0, n)
		for k := 0; k < n; k++ {
			j := int(float64(k) / (s * step))
			if j >= len(intPsi) {
				break
			}
			kernel = append(kernel, intPsi[j])
		}
		if len(kernel) < 2 {
			return nil, fmt.Errorf("cwt: selected scale of %v too small", s)
		}
		for l, r := 0, len(kernel)-1; l < r; l, r = l+1, r-1 {
			kernel[l], kernel[r] = kernel[r], kernel[l]
		}
		p.kernels[i] = kernel
		p.offsets[i] = (len(kernel) - 2) / 2
	}
	return p, nil
}

// Scales returns a copy of the plan's scales.
func (p *Plan) Scales() []float64 {
	return append([]float64(nil), p.scales...)
}

// Frequencies returns the pseudo-frequency of every scale.
func (p *Plan) Frequencies() []float64 {
	return Frequencies(p.wavelet, p.scales, p.period)
}

// Apply transforms signal into a len(scales)×cols coefficient grid, checking ctx between
// scales.
func (p *Plan) Apply(ctx context.Context, signal []float64) (*mat.Dense, error) {
	n := len(signal)
	if n == 0 {
		return nil, types.NewNumericalError("cwt.apply", types.ErrEmptySignal)
	}
	cols := n
	if p.opts.Columns > 0 {
		if n < p.opts.Columns {
			return nil, types.NewNumericalError("cwt.apply",
				fmt.Errorf("%w: %d samples, need at least %d", types.ErrUndersized, n, p.opts.Columns))
		}
		cols = p.opts.Columns
	}

	out := mat.NewDense(len(p.scales), cols, nil)
	for i, s := range p.scales {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := out.RawRowView(i)
		kernel := p.kernels[i]
		offset := p.offsets[i]
		factor := -math.Sqrt(s)

		switch p.opts.Method {
		case MethodFFT:
			needed := offset + cols + 1
			if needed > n {
				needed = n
			}
			conv := fftConvolve(signal[:needed], kernel)
			for t := 0; t < cols; t++ {
				row[t] = factor * (at(conv, offset+t+1) - at(conv, offset+t))
			}
		default:
			prev := convolveAt(signal, kernel, offset)
			for t := 0; t < cols; t++ {
				next := convolveAt(signal, kernel, offset+t+1)
				row[t] = factor * (next - prev)
				prev = next
			}
		}
	}
	return out, nil
}

// Transform computes the coefficients and pseudo-frequencies of signal in one call.
func Transform(ctx context.Context, signal []float64, scales []float64, w Wavelet, samplingPeriod float64, opts ...Option) (*mat.Dense, []float64, error) {
	plan, err := NewPlan(w, scales, samplingPeriod, opts...)
	if err != nil {
		return nil, nil, err
	}
	coefs, err := plan.Apply(ctx, signal)
	if err != nil {
		return nil, nil, err
	}
	return coefs, plan.Frequencies(), nil
}

// IntegerScales returns [from, from+1, ..., to].
func IntegerScales(from, to int) []float64 {
	if to < from {
		return nil
	}
	out := make([]float64, 0, to-from+1)
	for s := from; s <= to; s++ {
		out = append(out, float64(s))
	}
	return out
}

// convolveAt evaluates the full linear convolution of signal and kernel at index idx.
func convolveAt(signal, kernel []float64, idx int) float64 {
	lo := idx - len(kernel) + 1
	if lo < 0 {
		lo = 0
	}
	hi := idx
	if hi > len(signal)-1 {
		hi = len(signal) - 1
	}
	var sum float64
	for m := lo; m <= hi; m++ {
		sum += signal[m] * kernel[idx-m]
	}
	return sum
}

func fftConvolve(signal, kernel []float64) []float64 {
	length := len(signal) + len(kernel) - 1
	size := 1
	for size < length {
		size <<= 1
	}
	a := make([]complex128, size)
	for i, v := range signal {
		a[i] = complex(v, 0)
	}
	b := make([]complex128, size)
	for i, v := range kernel {
		b[i] = complex(v, 0)
	}

	fa := fft.FFT(a)
	fb := fft.FFT(b)
	for i := range fa {
		fa[i] *= fb[i]
	}
	res := fft.IFFT(fa)

	out := make([]float64, length)
	for i := range out {
		out[i] = real(res[i])
	}
	return out
}

func at(v []float64, i int) float64 {
	if i < 0 || i >= len(v) {
		return 0
	}
	return v[i]
}
