package classifier

import "github.com/joeydtaylor/scalogram/pkg/internal/types"

// WithRegressor attaches the adulteration regressor used under policies that need it.
func WithRegressor(p types.Predictor) types.Option[*Adapter] {
	return func(a *Adapter) {
		a.regressor = p
	}
}

// WithLogger attaches loggers to the adapter.
func WithLogger(loggers ...types.Logger) types.Option[*Adapter] {
	return func(a *Adapter) {
		a.ConnectLogger(loggers...)
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata(name string, id string) types.Option[*Adapter] {
	return func(a *Adapter) {
		a.configLock.Lock()
		a.componentMetadata.Name = name
		if id != "" {
			a.componentMetadata.ID = id
		}
		a.configLock.Unlock()
	}
}
