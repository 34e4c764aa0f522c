package predictor

import (
	"fmt"
	"io"
	"strings"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// Artifact kinds.
const (
	KindDense  = "dense"
	KindRemote = "remote"
)

// Artifact is the JSON document a model location resolves to.
type Artifact struct {
	Kind       string            `json:"kind"`
	Input      []int             `json:"input,omitempty"`
	Weights    [][]float64       `json:"weights,omitempty"`
	Bias       []float64         `json:"bias,omitempty"`
	Activation string            `json:"activation,omitempty"`
	URL        string            `json:"url,omitempty"`
	Timeout    string            `json:"timeout,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// DecodeArtifact reads one artifact document.
func DecodeArtifact(r io.Reader) (Artifact, error) {
	a, err := codec.NewJSONDecoder[Artifact]().Decode(r)
	if err != nil {
		return Artifact{}, fmt.Errorf("decode model artifact: %w", err)
	}
	return a, nil
}

// Build turns the artifact into a predictor. remoteOptions apply only to remote artifacts.
func (a Artifact) Build(remoteOptions ...types.Option[*Remote]) (types.Predictor, error) {
	switch strings.ToLower(a.Kind) {
	case KindDense:
		act, err := ParseActivation(a.Activation)
		if err != nil {
			return nil, err
		}
		d, err := NewDense(a.Weights, a.Bias, act)
		if err != nil {
			return nil, err
		}
		if len(a.Input) > 0 {
			want := 1
			for _, n := range a.Input {
				want *= n
			}
			if _, cols := d.Dims(); cols != want {
				return nil, fmt.Errorf("dense: input %v needs %d weights per row, got %d", a.Input, want, cols)
			}
		}
		return d, nil
	case KindRemote:
		if a.URL == "" {
			return nil, fmt.Errorf("remote artifact: missing url")
		}
		opts := make([]types.Option[*Remote], 0, len(a.Headers)+1+len(remoteOptions))
		if a.Timeout != "" {
			d, err := parseDuration(a.Timeout)
			if err != nil {
				return nil, fmt.Errorf("remote artifact: %w", err)
			}
			opts = append(opts, WithTimeout(d))
		}
		for k, v := range a.Headers {
			opts = append(opts, WithHeader(k, v))
		}
		opts = append(opts, remoteOptions...)
		return NewRemote(a.URL, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported model artifact kind %q", a.Kind)
	}
}
