package circuitbreaker

import "github.com/joeydtaylor/scalogram/pkg/internal/types"

// ConnectLogger attaches loggers to the circuit breaker.
func (cb *CircuitBreaker) ConnectLogger(loggers ...types.Logger) {
	cb.configLock.Lock()
	for _, l := range loggers {
		if l != nil {
			cb.loggers = append(cb.loggers, l)
		}
	}
	cb.configLock.Unlock()
}

// NotifyLoggers emits a log entry to all configured loggers.
func (cb *CircuitBreaker) NotifyLoggers(level types.LogLevel, msg string, keysAndValues ...interface{}) {
	loggers := cb.snapshotLoggers()
	if len(loggers) == 0 {
		return
	}

	type levelChecker interface {
		IsLevelEnabled(types.LogLevel) bool
	}

	for _, logger := range loggers {
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

func (cb *CircuitBreaker) snapshotLoggers() []types.Logger {
	cb.configLock.Lock()
	loggers := append([]types.Logger(nil), cb.loggers...)
	cb.configLock.Unlock()
	return loggers
}

func (cb *CircuitBreaker) snapshotMetadata() types.ComponentMetadata {
	cb.configLock.Lock()
	metadata := cb.componentMetadata
	cb.configLock.Unlock()
	return metadata
}
