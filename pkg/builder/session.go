package builder

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/adapter/s3client"
	"github.com/joeydtaylor/scalogram/pkg/internal/circuitbreaker"
	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/httpserver"
	"github.com/joeydtaylor/scalogram/pkg/internal/modelstore"
	"github.com/joeydtaylor/scalogram/pkg/internal/predictor"
	"github.com/joeydtaylor/scalogram/pkg/internal/preprocess"
	"github.com/joeydtaylor/scalogram/pkg/internal/session"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/visualize"
)

type (
	Session          = session.Session
	Registry         = modelstore.Registry
	ModelLoader      = modelstore.Loader
	ModelProfile     = types.ModelProfile
	DecisionPolicy   = types.DecisionPolicy
	Chromatogram     = types.Chromatogram
	Scalogram        = types.Scalogram
	PredictionResult = types.PredictionResult
	Predictor        = types.Predictor
	Tensor           = types.Tensor
	HTTPServer       = httpserver.Server
)

// Built-in profile identifiers.
const (
	ModelSidaguriDuha    = modelstore.SidaguriDuha
	ModelKejibelingSirih = modelstore.KejibelingSirih
	DefaultModelID       = modelstore.DefaultModelID
)

var (
	PolicyV1 = types.PolicyV1
	PolicyV2 = types.PolicyV2
)

// PolicyByName resolves "v1" or "v2".
func PolicyByName(name string) (DecisionPolicy, bool) {
	return types.PolicyByName(name)
}

// NewRegistry returns a registry holding the built-in profiles.
func NewRegistry() *Registry {
	return modelstore.NewRegistry()
}

// NewSession creates a classification session.
func NewSession(ctx context.Context, options ...types.Option[*Session]) (*Session, error) {
	return session.NewSession(ctx, options...)
}

func SessionWithLogger(l ...types.Logger) types.Option[*Session] {
	return session.WithLogger(l...)
}

func SessionWithRegistry(r *Registry) types.Option[*Session] {
	return session.WithRegistry(r)
}

func SessionWithLoader(l session.ModelLoader) types.Option[*Session] {
	return session.WithLoader(l)
}

func SessionWithInitialModel(id string) types.Option[*Session] {
	return session.WithInitialModel(id)
}

func SessionWithComponentMetadata(name, id string) types.Option[*Session] {
	return session.WithComponentMetadata(name, id)
}

// NewModelLoader returns a loader for file, HTTP(S) and, with LoaderWithS3, s3:// artifacts.
func NewModelLoader(options ...types.Option[*ModelLoader]) *ModelLoader {
	return modelstore.NewLoader(options...)
}

func LoaderWithS3(store *s3client.Client) types.Option[*ModelLoader] {
	return modelstore.WithObjectOpener(store)
}

func LoaderWithHTTPClient(c *http.Client) types.Option[*ModelLoader] {
	return modelstore.WithHTTPClient(c)
}

func LoaderWithLogger(l ...types.Logger) types.Option[*ModelLoader] {
	return modelstore.WithLogger(l...)
}

// LoaderWithRemoteTimeout bounds calls made by remote predictors built by the loader.
func LoaderWithRemoteTimeout(d time.Duration) types.Option[*ModelLoader] {
	return modelstore.WithRemoteOptions(predictor.WithTimeout(d))
}

// LoaderWithRemoteCircuitBreaker gives every remote predictor built by the loader its own
// breaker: errorThreshold failures inside window open it until the window elapses.
func LoaderWithRemoteCircuitBreaker(ctx context.Context, errorThreshold int, window time.Duration) types.Option[*ModelLoader] {
	return modelstore.WithRemoteOptions(func(r *predictor.Remote) {
		cb := circuitbreaker.NewCircuitBreaker(ctx, errorThreshold, window)
		predictor.WithCircuitBreaker(cb)(r)
	})
}

// NewPredictorFunc adapts a function into a Predictor.
func NewPredictorFunc(f func(ctx context.Context, in Tensor) (Tensor, error)) Predictor {
	return predictor.Func(f)
}

// DecodeChromatogram parses a two-column CSV. name selects decompression by extension.
func DecodeChromatogram(r io.Reader, name string) (Chromatogram, error) {
	algo := codec.AlgorithmFromName(name)
	if algo != types.CompressNone {
		dec, err := codec.NewDecompressingReader(r, algo)
		if err != nil {
			return Chromatogram{}, types.NewInputError("builder.decode", err)
		}
		defer dec.Close()
		r = dec
	}
	c, err := codec.NewChromatogramDecoder().Decode(r)
	if err != nil {
		return Chromatogram{}, err
	}
	c.Name = codec.TrimCompressionExt(name)
	return c, nil
}

// FitNormalization derives a profile's mean and std from a reference chromatogram's intensities.
func FitNormalization(c Chromatogram) (mean, std float64, err error) {
	return preprocess.Fit(c.Intensity)
}

// RenderScalogramPNG writes sg as a grayscale PNG scaled by scale.
func RenderScalogramPNG(w io.Writer, sg Scalogram, scale int) error {
	return visualize.Render(w, sg, scale)
}

// Classify runs one chromatogram through profile with already-built predictors.
// reg may be nil for profiles whose policy has no regression step.
func Classify(ctx context.Context, c Chromatogram, profile ModelProfile, clf, reg Predictor, options ...types.Option[*Session]) (PredictionResult, Scalogram, error) {
	registry := modelstore.NewRegistry()
	if err := registry.Register(profile); err != nil {
		return PredictionResult{}, Scalogram{}, err
	}
	options = append([]types.Option[*Session]{session.WithRegistry(registry)}, options...)
	s, err := session.NewSession(ctx, options...)
	if err != nil {
		return PredictionResult{}, Scalogram{}, err
	}
	defer s.Close()

	if err := s.UsePredictors(profile.ID, clf, reg); err != nil {
		return PredictionResult{}, Scalogram{}, err
	}
	res, err := s.Classify(ctx, c)
	if err != nil {
		return PredictionResult{}, Scalogram{}, err
	}
	sg, _ := s.LastScalogram()
	return res, sg, nil
}

// NewHTTPServer serves backend over HTTP and websocket.
func NewHTTPServer(backend httpserver.Backend, options ...types.Option[*HTTPServer]) *HTTPServer {
	return httpserver.NewServer(backend, options...)
}

func HTTPServerWithAddress(addr string) types.Option[*HTTPServer] {
	return httpserver.WithAddress(addr)
}

func HTTPServerWithTimeout(d time.Duration) types.Option[*HTTPServer] {
	return httpserver.WithTimeout(d)
}

func HTTPServerWithHeader(key, value string) types.Option[*HTTPServer] {
	return httpserver.WithHeader(key, value)
}

func HTTPServerWithLogger(l ...types.Logger) types.Option[*HTTPServer] {
	return httpserver.WithLogger(l...)
}
