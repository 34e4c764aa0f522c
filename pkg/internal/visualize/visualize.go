// Package visualize rescales scalograms to [0,1] and renders them as grayscale PNGs.
package visualize

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"
)

// MinMax returns a copy of sg with every value mapped to (v-min)/(max-min). A grid with
// no dynamic range, or with NaN or infinite values, fails with types.ErrDegenerateRange.
func MinMax(sg types.Scalogram) (types.Scalogram, error) {
	rows, cols := sg.Dims()
	if rows == 0 || cols == 0 {
		return types.Scalogram{}, types.NewNumericalError("visualize.minmax", types.ErrEmptySignal)
	}
	for r := 0; r < rows; r++ {
		for _, v := range sg.Grid.RawRowView(r) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return types.Scalogram{}, types.NewNumericalError("visualize.minmax",
					fmt.Errorf("%w: grid holds non-finite values", types.ErrDegenerateRange))
			}
		}
	}

	lo, hi := mat.Min(sg.Grid), mat.Max(sg.Grid)
	if hi == lo {
		return types.Scalogram{}, types.NewNumericalError("visualize.minmax",
			fmt.Errorf("%w: every value is %v", types.ErrDegenerateRange, lo))
	}

	span := hi - lo
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		return (v - lo) / span
	}, sg.Grid)

	return types.Scalogram{Scales: append([]float64(nil), sg.Scales...), Grid: out}, nil
}

// ToGray maps a [0,1] grid onto 8-bit gray levels, row 0 at the top. Values outside
// [0,1] are clamped.
func ToGray(sg types.Scalogram) *image.Gray {
	rows, cols := sg.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c, v := range sg.Grid.RawRowView(r) {
			img.SetGray(c, r, color.Gray{Y: level(v)})
		}
	}
	return img
}

// Render normalizes sg and writes it as a PNG enlarged scale times with nearest-neighbour
// sampling.
func Render(w io.Writer, sg types.Scalogram, scale int) error {
	normalized, err := MinMax(sg)
	if err != nil {
		return err
	}
	return RenderNormalized(w, normalized, scale)
}

// RenderNormalized writes an already-normalized grid as a PNG.
func RenderNormalized(w io.Writer, normalized types.Scalogram, scale int) error {
	if scale < 1 {
		scale = 1
	}
	src := ToGray(normalized)
	b := src.Bounds()
	if b.Empty() {
		return types.NewNumericalError("visualize.render", types.ErrEmptySignal)
	}

	var img image.Image = src
	if scale > 1 {
		dst := image.NewGray(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		img = dst
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("visualize: encode png: %w", err)
	}
	return nil
}

func level(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(math.Round(v * 255))
	}
}
