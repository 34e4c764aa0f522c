package modelstore

import "github.com/joeydtaylor/scalogram/pkg/internal/types"

// ConnectLogger attaches loggers to the loader.
func (l *Loader) ConnectLogger(loggers ...types.Logger) {
	l.configLock.Lock()
	defer l.configLock.Unlock()
	for _, lg := range loggers {
		if lg != nil {
			l.loggers = append(l.loggers, lg)
		}
	}
}

// NotifyLoggers emits a log entry to all configured loggers.
func (l *Loader) NotifyLoggers(level types.LogLevel, msg string, keysAndValues ...interface{}) {
	l.configLock.Lock()
	loggers := append([]types.Logger(nil), l.loggers...)
	l.configLock.Unlock()

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

func (l *Loader) snapshotMetadata() types.ComponentMetadata {
	l.configLock.Lock()
	defer l.configLock.Unlock()
	return l.componentMetadata
}
