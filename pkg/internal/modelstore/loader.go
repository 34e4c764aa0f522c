package modelstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/predictor"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

// ObjectOpener resolves s3:// locations. *s3client.Client satisfies it.
type ObjectOpener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Loader fetches model artifacts from local files, HTTP(S) or S3.
type Loader struct {
	componentMetadata types.ComponentMetadata
	httpClient        *http.Client
	objects           ObjectOpener
	remoteOptions     []types.Option[*predictor.Remote]
	loggers           []types.Logger
	configLock        sync.Mutex
}

// NewLoader returns a loader with http.DefaultClient and no S3 access.
func NewLoader(options ...types.Option[*Loader]) *Loader {
	l := &Loader{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "MODEL_LOADER",
		},
		httpClient: http.DefaultClient,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Open returns the raw bytes behind location. Compressed artifacts (".gz", ".zst", ...)
// are decompressed transparently.
func (l *Loader) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	rc, err := l.open(ctx, location)
	if err != nil {
		return nil, err
	}
	algo := codec.AlgorithmFromName(location)
	if algo == types.CompressNone {
		return rc, nil
	}
	dec, err := codec.NewDecompressingReader(rc, algo)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return &stackedCloser{ReadCloser: dec, under: rc}, nil
}

func (l *Loader) open(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// bare path, including Windows drive letters
		return os.Open(filepath.Clean(location))
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return os.Open(filepath.FromSlash(u.Path))
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status code %d", location, resp.StatusCode)
		}
		return resp.Body, nil
	case "s3":
		if l.objects == nil {
			return nil, fmt.Errorf("fetch %s: no S3 client configured", location)
		}
		return l.objects.Open(ctx, location)
	default:
		return nil, fmt.Errorf("unsupported model location scheme %q", u.Scheme)
	}
}

// LoadPredictor opens location and builds the predictor its artifact describes.
func (l *Loader) LoadPredictor(ctx context.Context, location string) (types.Predictor, error) {
	metadata := l.snapshotMetadata()
	if strings.TrimSpace(location) == "" {
		err := fmt.Errorf("empty model location")
		l.notifyFailure(metadata, location, err)
		return nil, err
	}

	rc, err := l.Open(ctx, location)
	if err != nil {
		l.notifyFailure(metadata, location, err)
		return nil, err
	}
	defer rc.Close()

	artifact, err := predictor.DecodeArtifact(rc)
	if err != nil {
		l.notifyFailure(metadata, location, err)
		return nil, err
	}
	p, err := artifact.Build(l.remoteOptions...)
	if err != nil {
		l.notifyFailure(metadata, location, err)
		return nil, err
	}

	l.NotifyLoggers(types.InfoLevel, "Model loaded",
		"component", metadata, "event", "LoadPredictor", "result", "SUCCESS",
		"location", location, "kind", artifact.Kind)
	return p, nil
}

func (l *Loader) notifyFailure(metadata types.ComponentMetadata, location string, err error) {
	l.NotifyLoggers(types.ErrorLevel, "Model load failed",
		"component", metadata, "event", "LoadPredictor", "result", "FAILURE",
		"location", location, "error", err)
}

type stackedCloser struct {
	io.ReadCloser
	under io.Closer
}

func (s *stackedCloser) Close() error {
	err := s.ReadCloser.Close()
	if uerr := s.under.Close(); err == nil {
		err = uerr
	}
	return err
}
