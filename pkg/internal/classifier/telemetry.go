package classifier

import "github.com/joeydtaylor/scalogram/pkg/internal/types"

// ConnectLogger attaches loggers to the adapter.
func (a *Adapter) ConnectLogger(loggers ...types.Logger) {
	a.configLock.Lock()
	for _, l := range loggers {
		if l != nil {
			a.loggers = append(a.loggers, l)
		}
	}
	a.configLock.Unlock()
}

// NotifyLoggers emits a log entry to all configured loggers.
func (a *Adapter) NotifyLoggers(level types.LogLevel, msg string, keysAndValues ...interface{}) {
	a.configLock.Lock()
	loggers := append([]types.Logger(nil), a.loggers...)
	a.configLock.Unlock()

	for _, logger := range loggers {
		if logger.GetLevel() > level {
			continue
		}
		switch level {
		case types.DebugLevel:
			logger.Debug(msg, keysAndValues...)
		case types.InfoLevel:
			logger.Info(msg, keysAndValues...)
		case types.WarnLevel:
			logger.Warn(msg, keysAndValues...)
		default:
			logger.Error(msg, keysAndValues...)
		}
	}
}

func (a *Adapter) notifyFailure(metadata types.ComponentMetadata, event string, err error) {
	a.NotifyLoggers(types.ErrorLevel, "Model call failed",
		"component", metadata,
		"event", event,
		"result", "FAILURE",
		"model", a.profile.ID,
		"error", err,
	)
}

func (a *Adapter) snapshotMetadata() types.ComponentMetadata {
	a.configLock.Lock()
	metadata := a.componentMetadata
	a.configLock.Unlock()
	return metadata
}
