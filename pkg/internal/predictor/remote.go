package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/circuitbreaker"
	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

const defaultRemoteTimeout = 30 * time.Second

type predictRequest struct {
	Instances []interface{} `json:"instances"`
}

type predictResponse struct {
	Predictions json.RawMessage `json:"predictions"`
	Error       string          `json:"error,omitempty"`
}

// Remote calls a model server speaking the TensorFlow Serving REST predict API.
type Remote struct {
	componentMetadata types.ComponentMetadata
	endpoint          string
	httpClient        *http.Client
	timeout           time.Duration
	headers           map[string]string
	breaker           *circuitbreaker.CircuitBreaker
	loggers           []types.Logger
	configLock        sync.Mutex
}

// NewRemote returns a predictor that POSTs to endpoint, e.g. http://host:8501/v1/models/m:predict.
func NewRemote(endpoint string, options ...types.Option[*Remote]) *Remote {
	r := &Remote{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "REMOTE_PREDICTOR",
		},
		endpoint: endpoint,
		timeout:  defaultRemoteTimeout,
		headers:  map[string]string{"Content-Type": "application/json"},
	}
	for _, option := range options {
		option(r)
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{}
	}
	return r
}

// Endpoint returns the predict URL.
func (r *Remote) Endpoint() string {
	return r.endpoint
}

// GetComponentMetadata returns the predictor identity.
func (r *Remote) GetComponentMetadata() types.ComponentMetadata {
	return r.snapshotMetadata()
}

// Predict sends the batch as nested instances and flattens the predictions. The output
// keeps the batch dimension: [batch, values per instance].
func (r *Remote) Predict(ctx context.Context, in types.Tensor) (types.Tensor, error) {
	metadata := r.snapshotMetadata()
	if r.breaker != nil && !r.breaker.Allow() {
		r.NotifyLoggers(types.WarnLevel, "Remote predict rejected",
			"component", metadata, "event", "Predict", "result", "FAILURE",
			"error", ErrCircuitOpen, "nextReset", r.breaker.NextReset())
		return types.Tensor{}, ErrCircuitOpen
	}

	out, err := r.predict(ctx, in)
	if err != nil {
		if r.breaker != nil && ctx.Err() == nil {
			r.breaker.RecordError()
		}
		r.NotifyLoggers(types.ErrorLevel, "Remote predict failed",
			"component", metadata, "event", "Predict", "result", "FAILURE",
			"endpoint", r.endpoint, "error", err)
		return types.Tensor{}, err
	}
	if r.breaker != nil {
		r.breaker.RecordSuccess()
	}
	r.NotifyLoggers(types.DebugLevel, "Remote predict complete",
		"component", metadata, "event", "Predict", "result", "SUCCESS",
		"endpoint", r.endpoint, "outputs", out.Size())
	return out, nil
}

func (r *Remote) predict(ctx context.Context, in types.Tensor) (types.Tensor, error) {
	instances, batch, err := instancesOf(in)
	if err != nil {
		return types.Tensor{}, err
	}
	body, err := json.Marshal(predictRequest{Instances: instances})
	if err != nil {
		return types.Tensor{}, fmt.Errorf("encode predict request: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return types.Tensor{}, fmt.Errorf("create predict request: %w", err)
	}
	for key, value := range r.headers {
		req.Header.Set(key, value)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return types.Tensor{}, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.Tensor{}, fmt.Errorf("predict request failed with status code %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	decoded, err := codec.NewJSONDecoder[predictResponse]().Decode(resp.Body)
	if err != nil {
		return types.Tensor{}, fmt.Errorf("decode predict response: %w", err)
	}
	if decoded.Error != "" {
		return types.Tensor{}, fmt.Errorf("model server: %s", decoded.Error)
	}

	var raw interface{}
	if err := json.Unmarshal(decoded.Predictions, &raw); err != nil {
		return types.Tensor{}, fmt.Errorf("decode predictions: %w", err)
	}
	values, err := flattenNumbers(raw, nil)
	if err != nil {
		return types.Tensor{}, err
	}
	if len(values) == 0 || len(values)%batch != 0 {
		return types.Tensor{}, fmt.Errorf("%w: %d predictions for batch of %d", types.ErrOutputShape, len(values), batch)
	}
	return types.Tensor{Shape: []int{batch, len(values) / batch}, Data: values}, nil
}

// instancesOf splits the leading batch dimension off t and nests the rest.
func instancesOf(t types.Tensor) ([]interface{}, int, error) {
	if len(t.Shape) < 2 {
		return nil, 0, fmt.Errorf("%w: shape %v has no batch dimension", ErrInputShape, t.Shape)
	}
	batch := t.Shape[0]
	per := len(t.Data) / batch
	instances := make([]interface{}, batch)
	for b := 0; b < batch; b++ {
		instances[b] = nest(t.Data[b*per:(b+1)*per], t.Shape[1:])
	}
	return instances, batch, nil
}

func nest(data []float32, shape []int) interface{} {
	if len(shape) == 1 {
		return data
	}
	step := len(data) / shape[0]
	out := make([]interface{}, shape[0])
	for i := range out {
		out[i] = nest(data[i*step:(i+1)*step], shape[1:])
	}
	return out
}

func flattenNumbers(v interface{}, dst []float32) ([]float32, error) {
	switch x := v.(type) {
	case float64:
		return append(dst, float32(x)), nil
	case []interface{}:
		var err error
		for _, item := range x {
			if dst, err = flattenNumbers(item, dst); err != nil {
				return nil, err
			}
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("%w: unexpected prediction value %T", types.ErrOutputShape, v)
	}
}
