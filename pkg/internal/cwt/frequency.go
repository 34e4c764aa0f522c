package cwt

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// CentralFrequency estimates the dominant frequency of the wavelet from the peak of the
// spectrum of its sampled form. For the Morlet wavelet this is 0.8125.
func CentralFrequency(w Wavelet, precision int) float64 {
	psi, x := w.Wavefun(precision)
	domain := x[len(x)-1] - x[0]

	spectrum := fft.FFTReal(psi)
	mag := make([]float64, len(spectrum)-1)
	for i, c := range spectrum[1:] {
		mag[i] = cmplx.Abs(c)
	}

	index := floats.MaxIdx(mag) + 2
	if float64(index) > float64(len(psi))/2 {
		index = len(psi) - index + 2
	}
	return 1.0 / (domain / float64(index-1))
}

// Frequencies converts scales into pseudo-frequencies for the given sampling period.
func Frequencies(w Wavelet, scales []float64, samplingPeriod float64) []float64 {
	cf := CentralFrequency(w, DefaultPrecision)
	out := make([]float64, len(scales))
	for i, s := range scales {
		out[i] = cf / s / samplingPeriod
	}
	return out
}
