package types

import "time"

// NotApplicable is reported instead of a concentration when the predicted class is not the
// adulterated class.
const NotApplicable = "not applicable"

// ClassProbability is one row of a classification result.
type ClassProbability struct {
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Percentage  string  `json:"percentage"`
	IsTarget    bool    `json:"is_target"`
}

// PredictionResult is the outcome of one classification request.
type PredictionResult struct {
	ModelID        string             `json:"model_id"`
	Policy         string             `json:"policy"`
	Classes        []ClassProbability `json:"classes"`
	Predicted      int                `json:"predicted"`
	PredictedLabel string             `json:"predicted_label"`
	Concentration  string             `json:"concentration,omitempty"`
	Regression     *float64           `json:"regression,omitempty"`
	Duration       time.Duration      `json:"duration_ns,omitempty"`
}

// Probabilities returns the raw probability vector in class order.
func (r PredictionResult) Probabilities() []float64 {
	out := make([]float64, len(r.Classes))
	for i, c := range r.Classes {
		out[i] = c.Probability
	}
	return out
}
