// Package predictor holds the concrete model backends behind types.Predictor: an in-process
// dense layer evaluated with gonum, and a remote model server reached over its REST API.
package predictor

import (
	"context"
	"errors"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

var (
	// ErrCircuitOpen is returned while the remote breaker refuses calls.
	ErrCircuitOpen = errors.New("remote predictor unavailable: circuit open")
	// ErrInputShape is returned when a tensor does not match the model's input size.
	ErrInputShape = errors.New("input tensor does not match model input size")
)

// Func adapts a plain function to types.Predictor.
type Func func(ctx context.Context, in types.Tensor) (types.Tensor, error)

// Predict calls f.
func (f Func) Predict(ctx context.Context, in types.Tensor) (types.Tensor, error) {
	return f(ctx, in)
}

// Constant returns a predictor that always answers with values, shaped [1, len(values)].
func Constant(values ...float32) types.Predictor {
	return Func(func(ctx context.Context, in types.Tensor) (types.Tensor, error) {
		if err := ctx.Err(); err != nil {
			return types.Tensor{}, err
		}
		out := append([]float32(nil), values...)
		return types.Tensor{Shape: []int{1, len(out)}, Data: out}, nil
	})
}

var (
	_ types.Predictor = Func(nil)
	_ types.Predictor = (*Dense)(nil)
	_ types.Predictor = (*Remote)(nil)
)
