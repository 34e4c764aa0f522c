package session

import "github.com/joeydtaylor/scalogram/pkg/internal/types"

// ConnectLogger attaches loggers to the session.
func (s *Session) ConnectLogger(loggers ...types.Logger) {
	s.configLock.Lock()
	defer s.configLock.Unlock()
	for _, l := range loggers {
		if l != nil {
			s.loggers = append(s.loggers, l)
		}
	}
}

// NotifyLoggers emits a log entry to all configured loggers.
func (s *Session) NotifyLoggers(level types.LogLevel, msg string, keysAndValues ...interface{}) {
	type levelChecker interface {
		IsLevelEnabled(types.LogLevel) bool
	}

	for _, logger := range s.snapshotLoggers() {
		if lc, ok := logger.(levelChecker); ok {
			if !lc.IsLevelEnabled(level) {
				continue
			}
		} else if logger.GetLevel() > level {
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

func (s *Session) snapshotLoggers() []types.Logger {
	s.configLock.Lock()
	defer s.configLock.Unlock()
	return append([]types.Logger(nil), s.loggers...)
}

func (s *Session) snapshotMetadata() types.ComponentMetadata {
	s.configLock.Lock()
	defer s.configLock.Unlock()
	return s.componentMetadata
}
