package predictor_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/circuitbreaker"
	"github.com/joeydtaylor/scalogram/pkg/internal/predictor"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

func TestDense_SoftmaxSumsToOne(t *testing.T) {
	d, err := predictor.NewDense([][]float64{{1, 0}, {0, 1}, {1, 1}}, []float64{0, 0, 0}, predictor.ActivationSoftmax)
	if err != nil {
		t.Fatalf("NewDense: %v", err)
	}
	in, _ := types.NewTensor([]int{1, 2}, []float32{1, 2})
	out, err := d.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(out.Data) != 3 || out.Shape[1] != 3 {
		t.Fatalf("unexpected output %v", out)
	}
	var sum float64
	for _, v := range out.Data {
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("softmax sum = %v", sum)
	}
	if !(out.Data[2] > out.Data[1] && out.Data[1] > out.Data[0]) {
		t.Fatalf("unexpected ordering %v", out.Data)
	}
}

func TestDense_Linear(t *testing.T) {
	d, err := predictor.NewDense([][]float64{{2, 3}}, []float64{1}, "")
	if err != nil {
		t.Fatalf("NewDense: %v", err)
	}
	in, _ := types.NewTensor([]int{1, 2}, []float32{1, 1})
	out, err := d.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if out.Data[0] != 6 {
		t.Fatalf("expected 6, got %v", out.Data[0])
	}

	bad, _ := types.NewTensor([]int{1, 3}, []float32{1, 1, 1})
	if _, err := d.Predict(context.Background(), bad); !errors.Is(err, predictor.ErrInputShape) {
		t.Fatalf("expected ErrInputShape, got %v", err)
	}
}

func TestNewDense_Validation(t *testing.T) {
	if _, err := predictor.NewDense(nil, nil, ""); err == nil {
		t.Fatalf("expected error for empty weights")
	}
	if _, err := predictor.NewDense([][]float64{{1, 2}, {1}}, []float64{0, 0}, ""); err == nil {
		t.Fatalf("expected error for ragged weights")
	}
	if _, err := predictor.NewDense([][]float64{{1}}, []float64{0, 0}, ""); err == nil {
		t.Fatalf("expected error for bias mismatch")
	}
	if _, err := predictor.ParseActivation("relu6"); err == nil {
		t.Fatalf("expected error for unknown activation")
	}
}

func TestArtifact_BuildDense(t *testing.T) {
	doc := `{"kind":"dense","input":[2,1],"weights":[[1,1]],"bias":[0.5],"activation":"linear"}`
	a, err := predictor.DecodeArtifact(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeArtifact: %v", err)
	}
	p, err := a.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	in, _ := types.NewTensor([]int{1, 2, 1}, []float32{1, 2})
	out, err := p.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if out.Data[0] != 3.5 {
		t.Fatalf("expected 3.5, got %v", out.Data[0])
	}

	mismatch := predictor.Artifact{Kind: "dense", Input: []int{3}, Weights: [][]float64{{1, 1}}, Bias: []float64{0}}
	if _, err := mismatch.Build(); err == nil {
		t.Fatalf("expected input size mismatch error")
	}
	if _, err := (predictor.Artifact{Kind: "onnx"}).Build(); err == nil {
		t.Fatalf("expected unsupported kind error")
	}
	if _, err := (predictor.Artifact{Kind: "remote"}).Build(); err == nil {
		t.Fatalf("expected missing url error")
	}
}

func TestRemote_Predict(t *testing.T) {
	var gotInstances [][][]float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing header")
		}
		var req struct {
			Instances [][][]float64 `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		gotInstances = req.Instances
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predictions":[[0.1,0.2,0.7]]}`))
	}))
	defer srv.Close()

	a := predictor.Artifact{Kind: "remote", URL: srv.URL + "/v1/models/m:predict", Timeout: "2s", Headers: map[string]string{"X-Api-Key": "secret"}}
	p, err := a.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	in, _ := types.NewTensor([]int{1, 2, 2}, []float32{1, 2, 3, 4})
	out, err := p.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(out.Data) != 3 || out.Shape[0] != 1 || out.Shape[1] != 3 {
		t.Fatalf("unexpected output %+v", out)
	}
	if len(gotInstances) != 1 || len(gotInstances[0]) != 2 || gotInstances[0][1][0] != 3 {
		t.Fatalf("unexpected instances %v", gotInstances)
	}
}

func TestRemote_CircuitBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := circuitbreaker.NewCircuitBreaker(context.Background(), 2, time.Hour)
	defer cb.Stop()
	r := predictor.NewRemote(srv.URL, predictor.WithCircuitBreaker(cb), predictor.WithTimeout(time.Second))

	in, _ := types.NewTensor([]int{1, 1}, []float32{1})
	for i := 0; i < 2; i++ {
		if _, err := r.Predict(context.Background(), in); err == nil || !strings.Contains(err.Error(), "500") {
			t.Fatalf("expected status error, got %v", err)
		}
	}
	if _, err := r.Predict(context.Background(), in); !errors.Is(err, predictor.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 server calls, got %d", calls)
	}
}

func TestRemote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	in, _ := types.NewTensor([]int{1, 1}, []float32{1})
	_, err := predictor.NewRemote(srv.URL).Predict(context.Background(), in)
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected model server error, got %v", err)
	}
}

func TestConstant(t *testing.T) {
	out, err := predictor.Constant(0.25, 0.75).Predict(context.Background(), types.Tensor{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if out.Data[1] != 0.75 {
		t.Fatalf("unexpected %v", out.Data)
	}
}
