package modelstore

import (
	"net/http"

	"github.com/joeydtaylor/scalogram/pkg/internal/predictor"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// WithHTTPClient sets the client used for http(s) locations.
func WithHTTPClient(c *http.Client) types.Option[*Loader] {
	return func(l *Loader) {
		if c != nil {
			l.httpClient = c
		}
	}
}

// WithObjectOpener enables s3:// locations.
func WithObjectOpener(o ObjectOpener) types.Option[*Loader] {
	return func(l *Loader) {
		l.objects = o
	}
}

// WithRemoteOptions are applied to every remote predictor the loader builds.
func WithRemoteOptions(opts ...types.Option[*predictor.Remote]) types.Option[*Loader] {
	return func(l *Loader) {
		l.remoteOptions = append(l.remoteOptions, opts...)
	}
}

// WithLogger attaches loggers.
func WithLogger(loggers ...types.Logger) types.Option[*Loader] {
	return func(l *Loader) {
		l.ConnectLogger(loggers...)
	}
}
