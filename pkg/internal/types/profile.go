package types

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DecisionPolicy captures the behaviour that differs between the two generations of the
// classifier: output precision, whether the regression branch exists and whether scalogram
// extraction is off-loaded to the worker channel.
type DecisionPolicy struct {
	Name                string `json:"name"`
	ProbabilityDecimals int    `json:"probability_decimals"`
	UseRegressor        bool   `json:"use_regressor"`
	OffloadExtraction   bool   `json:"offload_extraction"`
}

var (
	// PolicyV1 is the first generation: classification only, 2 decimals, worker off-load.
	PolicyV1 = DecisionPolicy{Name: "v1", ProbabilityDecimals: 2, UseRegressor: false, OffloadExtraction: true}
	// PolicyV2 adds the adulteration regressor, 4 decimals, inline extraction.
	PolicyV2 = DecisionPolicy{Name: "v2", ProbabilityDecimals: 4, UseRegressor: true, OffloadExtraction: false}
)

// RegressionDecimals is the fixed precision of the adulteration percentage.
const RegressionDecimals = 4

// PolicyByName resolves "v1"/"v2" (case-insensitive).
func PolicyByName(name string) (DecisionPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "v1", "1":
		return PolicyV1, true
	case "v2", "2":
		return PolicyV2, true
	default:
		return DecisionPolicy{}, false
	}
}

// ModelProfile is the immutable configuration of one classification task.
type ModelProfile struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	ClassifierLocation string         `json:"classifier"`
	RegressorLocation  string         `json:"regressor,omitempty"`
	Mean               float64        `json:"mean"`
	Std                float64        `json:"std"`
	ClassMap           map[int]string `json:"class_map"`
	AdulteratedClass   int            `json:"adulterated_class"`
	Policy             DecisionPolicy `json:"policy"`
}

// ClassCount returns the number of configured output classes.
func (p ModelProfile) ClassCount() int {
	return len(p.ClassMap)
}

// Label returns the human-readable label of class index i.
func (p ModelProfile) Label(i int) string {
	if l, ok := p.ClassMap[i]; ok {
		return l
	}
	return fmt.Sprintf("class %d", i)
}

// Labels returns the class labels ordered by index.
func (p ModelProfile) Labels() []string {
	idx := make([]int, 0, len(p.ClassMap))
	for i := range p.ClassMap {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]string, len(idx))
	for n, i := range idx {
		out[n] = p.ClassMap[i]
	}
	return out
}

// Validate checks normalization constants and that class indices are contiguous from zero.
func (p ModelProfile) Validate() error {
	if p.ID == "" {
		return NewInputError("profile.validate", fmt.Errorf("%w: missing id", ErrInvalidProfile))
	}
	if p.Std == 0 || math.IsNaN(p.Std) || math.IsInf(p.Std, 0) {
		return NewInputError("profile.validate", fmt.Errorf("%w: %s: %v", ErrInvalidProfile, p.ID, ErrZeroStd))
	}
	if len(p.ClassMap) == 0 {
		return NewInputError("profile.validate", fmt.Errorf("%w: %s: empty class map", ErrInvalidProfile, p.ID))
	}
	for i := 0; i < len(p.ClassMap); i++ {
		if _, ok := p.ClassMap[i]; !ok {
			return NewInputError("profile.validate", fmt.Errorf("%w: %s: class index %d missing", ErrInvalidProfile, p.ID, i))
		}
	}
	if _, ok := p.ClassMap[p.AdulteratedClass]; !ok {
		return NewInputError("profile.validate", fmt.Errorf("%w: %s: adulterated class %d not in class map", ErrInvalidProfile, p.ID, p.AdulteratedClass))
	}
	return nil
}
