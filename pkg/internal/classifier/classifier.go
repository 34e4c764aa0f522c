// Package classifier runs the pretrained classifier, and under the second-generation policy
// the adulteration regressor, on a scalogram and turns their raw outputs into a
// PredictionResult.
package classifier

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

// InputShape is the NHWC tensor shape the models expect.
var InputShape = []int{1, types.ScalogramScales, types.ScalogramColumns, 1}

// Adapter binds a model profile to its classifier and optional regressor.
type Adapter struct {
	componentMetadata types.ComponentMetadata
	profile           types.ModelProfile
	classifier        types.Predictor
	regressor         types.Predictor
	loggers           []types.Logger
	configLock        sync.Mutex
}

// NewAdapter validates the profile and checks that every model the policy needs is present.
func NewAdapter(profile types.ModelProfile, classifier types.Predictor, options ...types.Option[*Adapter]) (*Adapter, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	a := &Adapter{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "CLASSIFIER",
			Name: profile.ID,
		},
		profile:    profile,
		classifier: classifier,
	}
	for _, option := range options {
		option(a)
	}

	if a.classifier == nil {
		return nil, types.NewModelNotReadyError("classifier.new", fmt.Errorf("%w: %s: classifier missing", types.ErrModelNotReady, profile.ID))
	}
	if profile.Policy.UseRegressor && a.regressor == nil {
		return nil, types.NewModelNotReadyError("classifier.new", fmt.Errorf("%w: %s: policy %s needs a regressor", types.ErrModelNotReady, profile.ID, profile.Policy.Name))
	}
	return a, nil
}

// Profile returns the bound model profile.
func (a *Adapter) Profile() types.ModelProfile {
	return a.profile
}

// Classify predicts class probabilities for sg and, when the policy asks for it and the
// predicted class is the adulterated one, the adulteration percentage.
func (a *Adapter) Classify(ctx context.Context, sg types.Scalogram) (types.PredictionResult, error) {
	start := time.Now()
	metadata := a.snapshotMetadata()

	input, err := ToTensor(sg)
	if err != nil {
		return types.PredictionResult{}, err
	}

	out, err := a.classifier.Predict(ctx, input)
	if err != nil {
		a.notifyFailure(metadata, "Predict", err)
		return types.PredictionResult{}, types.NewChannelError("classifier.predict", err)
	}
	if len(out.Data) != a.profile.ClassCount() {
		err := types.NewNumericalError("classifier.predict",
			fmt.Errorf("%w: got %d probabilities for %d classes", types.ErrOutputShape, len(out.Data), a.profile.ClassCount()))
		a.notifyFailure(metadata, "Predict", err)
		return types.PredictionResult{}, err
	}

	probs := make([]float64, len(out.Data))
	for i, v := range out.Data {
		probs[i] = float64(v)
	}
	predicted := ArgMax(probs)

	result := types.PredictionResult{
		ModelID:        a.profile.ID,
		Policy:         a.profile.Policy.Name,
		Classes:        make([]types.ClassProbability, len(probs)),
		Predicted:      predicted,
		PredictedLabel: a.profile.Label(predicted),
	}
	for i, p := range probs {
		result.Classes[i] = types.ClassProbability{
			Index:       i,
			Label:       a.profile.Label(i),
			Probability: p,
			Percentage:  utils.FormatFixed(p*100, a.profile.Policy.ProbabilityDecimals),
			IsTarget:    i == predicted,
		}
	}

	if a.profile.Policy.UseRegressor {
		if err := a.regress(ctx, metadata, input, &result); err != nil {
			return types.PredictionResult{}, err
		}
	}

	result.Duration = time.Since(start)
	a.NotifyLoggers(types.InfoLevel, "Classification complete",
		"component", metadata,
		"event", "Classify",
		"result", "SUCCESS",
		"model", a.profile.ID,
		"predicted", result.PredictedLabel,
		"concentration", result.Concentration,
		"duration", result.Duration,
	)
	return result, nil
}

func (a *Adapter) regress(ctx context.Context, metadata types.ComponentMetadata, input types.Tensor, result *types.PredictionResult) error {
	if result.Predicted != a.profile.AdulteratedClass {
		result.Concentration = types.NotApplicable
		return nil
	}

	out, err := a.regressor.Predict(ctx, input)
	if err != nil {
		a.notifyFailure(metadata, "Regress", err)
		return types.NewChannelError("regressor.predict", err)
	}
	if len(out.Data) != 1 {
		err := types.NewNumericalError("regressor.predict",
			fmt.Errorf("%w: regressor returned %d values, want 1", types.ErrOutputShape, len(out.Data)))
		a.notifyFailure(metadata, "Regress", err)
		return err
	}

	value := float64(out.Data[0])
	result.Regression = &value
	result.Concentration = utils.FormatFixed(value, types.RegressionDecimals) + "%"
	return nil
}

// ToTensor reshapes a 127×127 scalogram into a [1,127,127,1] float32 tensor, row-major.
func ToTensor(sg types.Scalogram) (types.Tensor, error) {
	rows, cols := sg.Dims()
	if rows != types.ScalogramScales || cols != types.ScalogramColumns {
		return types.Tensor{}, types.NewNumericalError("classifier.tensor",
			fmt.Errorf("%w: scalogram is %dx%d, want %dx%d", types.ErrUndersized, rows, cols, types.ScalogramScales, types.ScalogramColumns))
	}
	data := make([]float32, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for _, v := range sg.Grid.RawRowView(r) {
			data = append(data, float32(v))
		}
	}
	return types.NewTensor(InputShape, data)
}

// ArgMax returns the index of the largest value; ties go to the lowest index and NaN
// entries never win. An all-NaN slice yields 0 and an empty slice -1.
func ArgMax(values []float64) int {
	best := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || v > values[best] {
			best = i
		}
	}
	if best < 0 && len(values) > 0 {
		return 0
	}
	return best
}
