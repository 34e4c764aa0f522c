package predictor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Activation is applied to the dense layer output.
type Activation string

const (
	ActivationLinear  Activation = "linear"
	ActivationSoftmax Activation = "softmax"
	ActivationSigmoid Activation = "sigmoid"
)

// ParseActivation resolves an activation name; empty means linear.
func ParseActivation(name string) (Activation, error) {
	switch Activation(strings.ToLower(strings.TrimSpace(name))) {
	case "", ActivationLinear:
		return ActivationLinear, nil
	case ActivationSoftmax:
		return ActivationSoftmax, nil
	case ActivationSigmoid:
		return ActivationSigmoid, nil
	default:
		return "", fmt.Errorf("unsupported activation %q", name)
	}
}

// Dense is a single fully connected layer y = act(W·x + b) over the flattened input.
type Dense struct {
	weights    *mat.Dense
	bias       *mat.VecDense
	activation Activation
}

// NewDense builds a layer from row-major weights (outputs × inputs) and a bias per output.
func NewDense(weights [][]float64, bias []float64, activation Activation) (*Dense, error) {
	rows := len(weights)
	if rows == 0 {
		return nil, fmt.Errorf("dense: no weight rows")
	}
	cols := len(weights[0])
	if cols == 0 {
		return nil, fmt.Errorf("dense: empty weight row")
	}
	if len(bias) != rows {
		return nil, fmt.Errorf("dense: %d outputs but %d bias values", rows, len(bias))
	}
	flat := make([]float64, 0, rows*cols)
	for i, row := range weights {
		if len(row) != cols {
			return nil, fmt.Errorf("dense: weight row %d has %d values, want %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	if activation == "" {
		activation = ActivationLinear
	}
	return &Dense{
		weights:    mat.NewDense(rows, cols, flat),
		bias:       mat.NewVecDense(rows, append([]float64(nil), bias...)),
		activation: activation,
	}, nil
}

// Dims returns (outputs, inputs).
func (d *Dense) Dims() (int, int) {
	return d.weights.Dims()
}

// Predict evaluates the layer. The output is shaped [1, outputs].
func (d *Dense) Predict(ctx context.Context, in types.Tensor) (types.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return types.Tensor{}, err
	}
	rows, cols := d.weights.Dims()
	if in.Size() != cols {
		return types.Tensor{}, fmt.Errorf("%w: got %d values, want %d", ErrInputShape, in.Size(), cols)
	}

	x := make([]float64, cols)
	for i, v := range in.Data {
		x[i] = float64(v)
	}

	var y mat.VecDense
	y.MulVec(d.weights, mat.NewVecDense(cols, x))
	y.AddVec(&y, d.bias)

	out := make([]float64, rows)
	for i := range out {
		out[i] = y.AtVec(i)
	}
	activate(d.activation, out)

	data := make([]float32, rows)
	for i, v := range out {
		data[i] = float32(v)
	}
	return types.Tensor{Shape: []int{1, rows}, Data: data}, nil
}

func activate(a Activation, v []float64) {
	switch a {
	case ActivationSoftmax:
		softmax(v)
	case ActivationSigmoid:
		for i, x := range v {
			v[i] = 1 / (1 + math.Exp(-x))
		}
	}
}

func softmax(v []float64) {
	if len(v) == 0 {
		return
	}
	floats.AddConst(-floats.Max(v), v)
	for i, x := range v {
		v[i] = math.Exp(x)
	}
	floats.Scale(1/floats.Sum(v), v)
}
