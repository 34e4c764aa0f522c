// Package preprocess z-score normalizes raw intensity traces with the constants of the
// active model profile.
package preprocess

import (
	"fmt"
	"math"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ZScore returns a new slice holding (v-mean)/std for every v. NaN readings stay NaN.
func ZScore(values []float64, mean, std float64) ([]float64, error) {
	if err := checkStd(std); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	copy(out, values)
	floats.AddConst(-mean, out)
	for i := range out {
		out[i] /= std
	}
	return out, nil
}

// Fit returns the population mean and standard deviation of values, ignoring NaN readings.
// It is how the normalization constants of a new profile are derived from a reference set.
func Fit(values []float64) (mean, std float64, err error) {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0, 0, types.NewNumericalError("preprocess.fit", types.ErrEmptySignal)
	}
	mean, variance := stat.PopMeanVariance(clean, nil)
	std = math.Sqrt(variance)
	if err := checkStd(std); err != nil {
		return mean, std, err
	}
	return mean, std, nil
}

func checkStd(std float64) error {
	if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		return types.NewNumericalError("preprocess.zscore", fmt.Errorf("%w: got %v", types.ErrZeroStd, std))
	}
	return nil
}
