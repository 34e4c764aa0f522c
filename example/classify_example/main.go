package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/joeydtaylor/scalogram/pkg/builder"
)

// syntheticCSV builds a chromatogram with two Gaussian peaks on a flat baseline.
func syntheticCSV(n int) string {
	var b strings.Builder
	b.WriteString("rt,intensity\n")
	for i := 0; i < n; i++ {
		rt := float64(i) * 0.05
		v := 4e6 + 9e7*math.Exp(-math.Pow(rt-3.2, 2)/0.02) + 4e7*math.Exp(-math.Pow(rt-6.8, 2)/0.05)
		fmt.Fprintf(&b, "%.2f,%.0f\n", rt, v)
	}
	return b.String()
}

func main() {
	ctx := context.Background()
	logger := builder.NewLogger(builder.LoggerWithLevel("info"))
	defer logger.Flush()

	profile, err := builder.NewRegistry().Get(builder.ModelSidaguriDuha)
	if err != nil {
		panic(err)
	}

	chrom, err := builder.DecodeChromatogram(strings.NewReader(syntheticCSV(400)), "synthetic.csv")
	if err != nil {
		panic(err)
	}

	// Stand-in classifier: favours class 3 ("Sidaguri").
	clf := builder.NewPredictorFunc(func(ctx context.Context, in builder.Tensor) (builder.Tensor, error) {
		return builder.Tensor{Shape: []int{1, 5}, Data: []float32{0.05, 0.05, 0.1, 0.7, 0.1}}, nil
	})

	res, sg, err := builder.Classify(ctx, chrom, profile, clf, nil, builder.SessionWithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "classify: %v (kind %s)\n", err, builder.KindOf(err))
		os.Exit(1)
	}

	fmt.Printf("model=%s predicted=%s\n", res.ModelID, res.PredictedLabel)
	for _, c := range res.Classes {
		fmt.Printf("  %-14s %s%%\n", c.Label, c.Percentage)
	}

	var png bytes.Buffer
	if err := builder.RenderScalogramPNG(&png, sg, 2); err != nil {
		panic(err)
	}
	if err := os.WriteFile("scalogram.png", png.Bytes(), 0o644); err != nil {
		panic(err)
	}
	fmt.Println("wrote scalogram.png")
}
