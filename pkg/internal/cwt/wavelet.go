// Package cwt implements the continuous wavelet transform used to turn a chromatogram into
// a scalogram. The numerics follow the integrated-wavelet formulation: the mother wavelet
// is sampled on its support, integrated by cumulative sum, resampled per scale and
// convolved with the signal; the scaled derivative of that convolution is the coefficient.
package cwt

import (
	"fmt"
	"math"
	"strings"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// DefaultPrecision is the sampling precision of the mother wavelet: 2^10 points.
const DefaultPrecision = 10

// Wavelet is a real continuous mother wavelet with compact effective support.
type Wavelet struct {
	Name       string
	LowerBound float64
	UpperBound float64
	Psi        func(x float64) float64
}

// Morlet is the real Morlet wavelet exp(-x²/2)·cos(5x) on [-8, 8].
var Morlet = Wavelet{
	Name:       types.WaveletMorlet,
	LowerBound: -8,
	UpperBound: 8,
	Psi: func(x float64) float64 {
		return math.Cos(5*x) * math.Exp(-(x*x)/2)
	},
}

// MexicanHat is the negative normalized second derivative of a Gaussian on [-8, 8].
var MexicanHat = Wavelet{
	Name:       "mexh",
	LowerBound: -8,
	UpperBound: 8,
	Psi: func(x float64) float64 {
		return (1 - x*x) * math.Exp(-(x*x)/2) * 2 / (math.Sqrt(3) * math.Sqrt(math.Sqrt(math.Pi)))
	},
}

// WaveletByName resolves a wavelet family name.
func WaveletByName(name string) (Wavelet, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "morl", "morlet":
		return Morlet, nil
	case "mexh", "mexican_hat":
		return MexicanHat, nil
	default:
		return Wavelet{}, fmt.Errorf("cwt: unsupported wavelet %q", name)
	}
}

// Wavefun samples the wavelet on 2^precision evenly spaced points of its support,
// both ends included. It returns psi and the sample positions.
func (w Wavelet) Wavefun(precision int) (psi, x []float64) {
	x = linspace(w.LowerBound, w.UpperBound, 1<<uint(precision))
	psi = make([]float64, len(x))
	for i, v := range x {
		psi[i] = w.Psi(v)
	}
	return psi, x
}

// IntegrateWavelet returns the running integral of psi (cumulative sum times the grid
// step) along with the sample positions.
func IntegrateWavelet(w Wavelet, precision int) (intPsi, x []float64) {
	psi, x := w.Wavefun(precision)
	step := x[1] - x[0]
	intPsi = make([]float64, len(psi))
	var acc float64
	for i, v := range psi {
		acc += v
		intPsi[i] = acc * step
	}
	return intPsi, x
}

// linspace matches the usual numeric convention: x[i] = i*step + start, with the last
// point pinned to stop.
func linspace(start, stop float64, num int) []float64 {
	out := make([]float64, num)
	if num == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(num-1)
	for i := range out {
		out[i] = float64(i)*step + start
	}
	out[num-1] = stop
	return out
}
