package predictor

import "github.com/joeydtaylor/scalogram/pkg/internal/types"

// ConnectLogger attaches loggers to the remote predictor.
func (r *Remote) ConnectLogger(loggers ...types.Logger) {
	r.configLock.Lock()
	defer r.configLock.Unlock()
	for _, l := range loggers {
		if l != nil {
			r.loggers = append(r.loggers, l)
		}
	}
}

// NotifyLoggers emits a log entry to all configured loggers.
func (r *Remote) NotifyLoggers(level types.LogLevel, msg string, keysAndValues ...interface{}) {
	r.configLock.Lock()
	loggers := append([]types.Logger(nil), r.loggers...)
	r.configLock.Unlock()

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

func (r *Remote) snapshotMetadata() types.ComponentMetadata {
	r.configLock.Lock()
	defer r.configLock.Unlock()
	return r.componentMetadata
}
