package modelstore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/internallogger"
	"github.com/joeydtaylor/scalogram/pkg/internal/modelstore"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const denseArtifact = `{"kind":"dense","input":[2],"weights":[[1,0],[0,1]],"bias":[0,0],"activation":"softmax"}`

func TestRegistry_Builtins(t *testing.T) {
	r := modelstore.NewRegistry()
	ids := r.IDs()
	if len(ids) != 2 || ids[0] != modelstore.KejibelingSirih || ids[1] != modelstore.SidaguriDuha {
		t.Fatalf("unexpected ids %v", ids)
	}
	p, err := r.Get(modelstore.SidaguriDuha)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Mean != 30488685.23260185 || p.Std != 78338321.0455869 {
		t.Fatalf("unexpected normalization %v %v", p.Mean, p.Std)
	}
	if p.Label(3) != "Sidaguri" || p.ClassCount() != 5 || p.Policy.Name != "v1" {
		t.Fatalf("unexpected profile %+v", p)
	}
	for _, p := range r.Profiles() {
		if err := p.Validate(); err != nil {
			t.Fatalf("builtin %s invalid: %v", p.ID, err)
		}
	}

	if _, err := r.Get("nope"); !errors.Is(err, types.ErrUnknownModel) || !types.IsInput(err) {
		t.Fatalf("expected unknown model input error, got %v", err)
	}
}

func TestRegistry_LoadProfiles(t *testing.T) {
	doc := `[{"id":"custom","name":"Custom","classifier":"c.json","regressor":"r.json",
		"mean":1,"std":2,"class_map":{"0":"adulterated","1":"pure"},"adulterated_class":0,
		"policy":{"name":"v2"}}]`
	r := modelstore.NewRegistry()
	n, err := r.LoadProfiles(strings.NewReader(doc))
	if err != nil || n != 1 {
		t.Fatalf("LoadProfiles = %d, %v", n, err)
	}
	p, err := r.Get("custom")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Policy != types.PolicyV2 || p.Label(1) != "pure" {
		t.Fatalf("unexpected profile %+v", p)
	}

	if _, err := r.LoadProfiles(strings.NewReader(`[{"id":"bad","std":0,"class_map":{"0":"x"}}]`)); !errors.Is(err, types.ErrInvalidProfile) {
		t.Fatalf("expected invalid profile error, got %v", err)
	}
	if _, err := r.LoadProfiles(strings.NewReader(`{`)); !types.IsInput(err) {
		t.Fatalf("expected input error for malformed JSON, got %v", err)
	}
}

func TestLoader_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	if err := os.WriteFile(path, []byte(denseArtifact), 0o600); err != nil {
		t.Fatal(err)
	}

	l := modelstore.NewLoader()
	p, err := l.LoadPredictor(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadPredictor: %v", err)
	}
	in, _ := types.NewTensor([]int{1, 2}, []float32{5, 0})
	out, err := p.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if out.Data[0] <= out.Data[1] {
		t.Fatalf("unexpected output %v", out.Data)
	}

	if _, err := l.LoadPredictor(context.Background(), "file://"+filepath.ToSlash(path)); err != nil {
		t.Fatalf("file URL: %v", err)
	}
}

func TestLoader_CompressedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json.zst")
	packed, err := codec.CompressBytes([]byte(denseArtifact), types.CompressZstd)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, packed, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := modelstore.NewLoader().LoadPredictor(context.Background(), path); err != nil {
		t.Fatalf("LoadPredictor: %v", err)
	}
}

func TestLoader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(denseArtifact))
	}))
	defer srv.Close()

	l := modelstore.NewLoader(modelstore.WithHTTPClient(srv.Client()))
	if _, err := l.LoadPredictor(context.Background(), srv.URL+"/model.json"); err != nil {
		t.Fatalf("LoadPredictor: %v", err)
	}
	if _, err := l.LoadPredictor(context.Background(), srv.URL+"/missing.json"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

type fakeOpener map[string]string

func (f fakeOpener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	body, ok := f[location]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(bytes.NewReader([]byte(body))), nil
}

func TestLoader_S3AndLogging(t *testing.T) {
	core, obs := observer.New(zapcore.DebugLevel)
	logger := internallogger.NewLoggerWithCore(core, internallogger.LoggerWithLevel("debug"))

	l := modelstore.NewLoader(
		modelstore.WithObjectOpener(fakeOpener{"s3://models/a.json": denseArtifact}),
		modelstore.WithLogger(logger),
	)
	if _, err := l.LoadPredictor(context.Background(), "s3://models/a.json"); err != nil {
		t.Fatalf("LoadPredictor: %v", err)
	}
	if _, err := l.LoadPredictor(context.Background(), "s3://models/b.json"); err == nil {
		t.Fatalf("expected missing object error")
	}
	if obs.FilterMessage("Model loaded").Len() != 1 || obs.FilterMessage("Model load failed").Len() != 1 {
		t.Fatalf("unexpected log entries %v", obs.All())
	}

	if _, err := modelstore.NewLoader().LoadPredictor(context.Background(), "s3://models/a.json"); err == nil {
		t.Fatalf("expected error without S3 client")
	}
	if _, err := modelstore.NewLoader().LoadPredictor(context.Background(), "ftp://x/y"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}
