package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/httpserver"
	"github.com/joeydtaylor/scalogram/pkg/internal/modelstore"
	"github.com/joeydtaylor/scalogram/pkg/internal/predictor"
	"github.com/joeydtaylor/scalogram/pkg/internal/session"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

type mapLoader map[string]types.Predictor

func (m mapLoader) LoadPredictor(_ context.Context, location string) (types.Predictor, error) {
	p, ok := m[location]
	if !ok {
		return nil, fmt.Errorf("no artifact at %s", location)
	}
	return p, nil
}

func csvBody(n int) string {
	var b strings.Builder
	b.WriteString("rt,intensity\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d.25,%d\n", i, 500+(i%11)*300)
	}
	return b.String()
}

func newTestServer(t *testing.T, initial string) (*httptest.Server, *session.Session) {
	t.Helper()
	reg := modelstore.NewRegistry()
	sd, _ := reg.Get(modelstore.SidaguriDuha)
	ks, _ := reg.Get(modelstore.KejibelingSirih)
	loader := mapLoader{
		sd.ClassifierLocation: predictor.Constant(0.05, 0.05, 0.1, 0.2, 0.6),
		ks.ClassifierLocation: predictor.Constant(0.9, 0.025, 0.025, 0.025, 0.025),
	}

	opts := []types.Option[*session.Session]{session.WithRegistry(reg), session.WithLoader(loader)}
	if initial != "" {
		opts = append(opts, session.WithInitialModel(initial))
	}
	s, err := session.NewSession(context.Background(), opts...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)

	srv := httpserver.NewServer(s, httpserver.WithHeader("X-Service", "scalogram"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, s
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		types.NewInputError("op", types.ErrMalformedCSV):          http.StatusBadRequest,
		types.NewModelNotReadyError("op", types.ErrModelNotReady): http.StatusServiceUnavailable,
		types.NewBusyError("op", types.ErrBusy):                   http.StatusConflict,
		types.NewNumericalError("op", types.ErrDegenerateRange):   http.StatusUnprocessableEntity,
		types.NewChannelError("op", types.ErrChannelClosed):       http.StatusInternalServerError,
		fmt.Errorf("plain"):                                       http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := httpserver.StatusFor(err); got != want {
			t.Errorf("StatusFor(%v) = %d, want %d", err, got, want)
		}
	}
}

func TestModelsAndSelect(t *testing.T) {
	ts, s := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/v1/models")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Service") != "scalogram" {
		t.Fatalf("missing default header")
	}
	var models struct {
		Models []struct {
			ID       string `json:"id"`
			Selected bool   `json:"selected"`
		} `json:"models"`
		Ready bool `json:"ready"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		t.Fatal(err)
	}
	if len(models.Models) != 2 || models.Ready {
		t.Fatalf("unexpected models response %+v", models)
	}

	resp2, err := http.Post(ts.URL+"/v1/models/select", "application/json", strings.NewReader(`{"id":"kejibeling_sirih"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusAccepted {
		t.Fatalf("select status %d", resp2.StatusCode)
	}
	if err := s.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}

	resp3, err := http.Post(ts.URL+"/v1/models/select?id=nope", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown model should be 400, got %d", resp3.StatusCode)
	}
}

func TestClassifyAndScalogram(t *testing.T) {
	ts, _ := newTestServer(t, modelstore.SidaguriDuha)

	resp, err := http.Post(ts.URL+"/v1/classify?name=run.csv", "text/csv", strings.NewReader(csvBody(180)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("classify status %d", resp.StatusCode)
	}
	var out struct {
		Rows   int                    `json:"rows"`
		Result types.PredictionResult `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Rows != 180 || out.Result.PredictedLabel != "Duha" || out.Result.ModelID != modelstore.SidaguriDuha {
		t.Fatalf("unexpected classify response %+v", out)
	}

	img, err := http.Get(ts.URL + "/v1/scalogram.png?scale=1")
	if err != nil {
		t.Fatal(err)
	}
	defer img.Body.Close()
	if img.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", img.Header.Get("Content-Type"))
	}
	decoded, err := png.Decode(img.Body)
	if err != nil || decoded.Bounds().Dx() != 127 {
		t.Fatalf("unexpected png: %v", err)
	}
}

func TestClassifyCompressedWithModelOverride(t *testing.T) {
	ts, sess := newTestServer(t, modelstore.SidaguriDuha)

	body, err := codec.CompressBytes([]byte(csvBody(140)), types.CompressZstd)
	if err != nil {
		t.Fatal(err)
	}
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/classify?model=kejibeling_sirih", bytes.NewReader(body))
	req.Header.Set("Content-Encoding", "zstd")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("classify status %d", resp.StatusCode)
	}
	var out struct {
		Result types.PredictionResult `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Result.ModelID != modelstore.KejibelingSirih || out.Result.Predicted != 0 {
		t.Fatalf("unexpected result %+v", out.Result)
	}
	if out.Result.Concentration != "" {
		t.Fatalf("v1 profile must not report a concentration")
	}
	if p, _ := sess.Profile(); p.ID != modelstore.SidaguriDuha {
		t.Fatalf("a per-request model must not change the selection, got %s", p.ID)
	}
}

// interleavingBackend runs another request the first time it is asked to classify.
type interleavingBackend struct {
	*session.Session
	fired  int32
	during func()

	mu   sync.Mutex
	seen []int
}

func (b *interleavingBackend) ClassifyModel(ctx context.Context, id string, c types.Chromatogram) (types.PredictionResult, error) {
	if atomic.CompareAndSwapInt32(&b.fired, 0, 1) {
		b.during()
	}
	b.mu.Lock()
	b.seen = append(b.seen, c.Len())
	b.mu.Unlock()
	return b.Session.ClassifyModel(ctx, id, c)
}

func TestClassifyKeepsRequestData(t *testing.T) {
	_, sess := newTestServer(t, modelstore.SidaguriDuha)
	if err := sess.WaitReady(context.Background()); err != nil {
		t.Fatal(err)
	}
	backend := &interleavingBackend{Session: sess}
	ts := httptest.NewServer(httpserver.NewServer(backend).Handler())
	defer ts.Close()

	var other struct {
		Rows   int                    `json:"rows"`
		Result types.PredictionResult `json:"result"`
	}
	backend.during = func() {
		resp, err := http.Post(ts.URL+"/v1/classify?model=kejibeling_sirih", "text/csv", strings.NewReader(csvBody(300)))
		if err != nil {
			t.Error(err)
			return
		}
		defer resp.Body.Close()
		_ = json.NewDecoder(resp.Body).Decode(&other)
	}

	resp, err := http.Post(ts.URL+"/v1/classify", "text/csv", strings.NewReader(csvBody(200)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Rows   int                    `json:"rows"`
		Result types.PredictionResult `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}

	if other.Rows != 300 || other.Result.ModelID != modelstore.KejibelingSirih {
		t.Fatalf("unexpected interleaved response %+v", other)
	}
	if out.Rows != 200 || out.Result.ModelID != modelstore.SidaguriDuha || out.Result.PredictedLabel != "Duha" {
		t.Fatalf("request was answered with foreign state: %+v", out)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.seen) != 2 || backend.seen[0] != 300 || backend.seen[1] != 200 {
		t.Fatalf("expected each request to classify its own rows, got %v", backend.seen)
	}
}

func TestClassifyErrors(t *testing.T) {
	ts, _ := newTestServer(t, modelstore.SidaguriDuha)

	cases := []struct {
		name   string
		url    string
		body   string
		status int
		kind   string
	}{
		{"empty body", "/v1/classify", "", http.StatusBadRequest, "input"},
		{"undersized", "/v1/classify", csvBody(20), http.StatusUnprocessableEntity, "numerical"},
		{"bad compression", "/v1/classify?compression=rar", csvBody(10), http.StatusBadRequest, "input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+tc.url, "text/csv", strings.NewReader(tc.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			var body struct {
				Error string `json:"error"`
				Kind  string `json:"kind"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&body)
			if resp.StatusCode != tc.status || body.Kind != tc.kind || body.Error == "" {
				t.Fatalf("got %d %+v", resp.StatusCode, body)
			}
		})
	}
}

func TestScalogramBeforeClassify(t *testing.T) {
	ts, _ := newTestServer(t, modelstore.SidaguriDuha)
	resp, err := http.Get(ts.URL + "/v1/scalogram.png")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 before any classification, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts, s := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a model, got %d", resp.StatusCode)
	}

	live, err := http.Get(ts.URL + "/v1/health?probe=live")
	if err != nil {
		t.Fatal(err)
	}
	live.Body.Close()
	if live.StatusCode != http.StatusOK {
		t.Fatalf("liveness check should pass, got %d", live.StatusCode)
	}

	if err := s.SelectModel(context.Background(), modelstore.SidaguriDuha); err != nil {
		t.Fatal(err)
	}
	if err := s.WaitReady(context.Background()); err != nil {
		t.Fatal(err)
	}
	ready, err := http.Get(ts.URL + "/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	defer ready.Body.Close()
	var h struct {
		Ready bool   `json:"ready"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(ready.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if ready.StatusCode != http.StatusOK || !h.Ready || h.Model != modelstore.SidaguriDuha {
		t.Fatalf("unexpected health %d %+v", ready.StatusCode, h)
	}
}

func TestWebSocketCorrelatedReplies(t *testing.T) {
	ts, _ := newTestServer(t, modelstore.SidaguriDuha)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	c, err := codec.NewChromatogramDecoder().Decode(strings.NewReader(csvBody(160)))
	if err != nil {
		t.Fatal(err)
	}
	good := types.ClassificationRequest{
		CorrelationID: "req-1",
		RetentionTime: c.RetentionTime,
		Intensity:     c.Intensity,
	}
	bad := types.ClassificationRequest{
		CorrelationID: "req-2",
		RetentionTime: types.Samples{1, 2},
		Intensity:     types.Samples{1},
	}

	for _, req := range []types.ClassificationRequest{good, bad} {
		if err := wsjson.Write(ctx, conn, req); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	var first, second types.ClassificationReply
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &second); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if first.CorrelationID != "req-1" || first.Result == nil || first.Result.PredictedLabel != "Duha" {
		t.Fatalf("unexpected first reply %+v", first)
	}
	if second.CorrelationID != "req-2" || second.Result != nil || second.Kind != "input" {
		t.Fatalf("unexpected second reply %+v", second)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("{broken")); err != nil {
		t.Fatal(err)
	}
	var third types.ClassificationReply
	if err := wsjson.Read(ctx, conn, &third); err != nil {
		t.Fatalf("Read after bad payload: %v", err)
	}
	if third.Kind != "input" {
		t.Fatalf("unexpected decode reply %+v", third)
	}
}
