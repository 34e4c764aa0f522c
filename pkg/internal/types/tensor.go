package types

import (
	"context"
	"fmt"
)

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor validates that len(data) matches the product of shape.
func NewTensor(shape []int, data []float32) (Tensor, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return Tensor{}, fmt.Errorf("tensor: invalid dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	if n != len(data) {
		return Tensor{}, fmt.Errorf("tensor: shape %v needs %d values, got %d", shape, n, len(data))
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Size returns the number of elements.
func (t Tensor) Size() int {
	return len(t.Data)
}

// Predictor is an opaque pretrained model: classifiers return one probability per class,
// regressors return a single scalar.
type Predictor interface {
	Predict(ctx context.Context, in Tensor) (Tensor, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, in Tensor) (Tensor, error)

func (f PredictorFunc) Predict(ctx context.Context, in Tensor) (Tensor, error) {
	return f(ctx, in)
}
