package types

import "gonum.org/v1/gonum/mat"

// Scalogram contract constants shared with the pretrained models.
const (
	ScalogramScales  = 127
	ScalogramColumns = 127
	SamplingPeriod   = 1.0
	WaveletMorlet    = "morl"
)

// Scalogram is the real part of a continuous wavelet transform: one row per scale, one column
// per time sample.
type Scalogram struct {
	Scales []float64
	Grid   *mat.Dense
}

// Dims returns (rows, columns).
func (s Scalogram) Dims() (int, int) {
	if s.Grid == nil {
		return 0, 0
	}
	return s.Grid.Dims()
}

// Flatten returns a row-major copy of the grid.
func (s Scalogram) Flatten() []float64 {
	r, c := s.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, s.Grid.RawRowView(i)...)
	}
	return out
}
