package internallogger

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/logschema"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log writes msg with keysAndValues as fields. Non-string keys and a trailing
// key without a value are dropped.
func (z *ZapLoggerAdapter) Log(level types.LogLevel, msg string, keysAndValues ...interface{}) {
	z.mu.Lock()
	logger := z.logger
	z.mu.Unlock()
	if logger == nil {
		return
	}

	ce := logger.Check(ConvertLevel(level), msg)
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = appendField(fields, key, keysAndValues[i+1])
	}
	ce.Write(fields...)
}

// appendField encodes the scalogram.log.v1 keys with fixed types so log
// pipelines can index them.
func appendField(fields []zap.Field, key string, value interface{}) []zap.Field {
	switch key {
	case logschema.FieldCorrelationID:
		if value == nil {
			return fields
		}
		return append(fields, zap.String(key, fmt.Sprint(value)))
	case logschema.FieldModel:
		switch v := value.(type) {
		case types.ModelProfile:
			return append(fields, zap.String(key, v.ID))
		case *types.ModelProfile:
			if v != nil {
				return append(fields, zap.String(key, v.ID))
			}
			return fields
		}
	case logschema.FieldDuration:
		if v, ok := value.(time.Duration); ok {
			return append(fields, zap.Duration(key, v))
		}
	}

	switch v := value.(type) {
	case types.ComponentMetadata:
		return append(fields, zap.Object(key, componentField(v)))
	case *types.ComponentMetadata:
		if v == nil {
			return fields
		}
		return append(fields, zap.Object(key, componentField(*v)))
	case error:
		fields = append(fields, zap.NamedError(key, v))
		if kind := types.KindOf(v); kind != types.KindUnknown {
			fields = append(fields, zap.String(key+"_kind", kind.String()))
		}
		return fields
	}
	return append(fields, zap.Any(key, value))
}

type componentField types.ComponentMetadata

func (c componentField) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("type", c.Type)
	enc.AddString("id", c.ID)
	if c.Name != "" {
		enc.AddString("name", c.Name)
	}
	return nil
}

func (z *ZapLoggerAdapter) Debug(msg string, keysAndValues ...interface{}) {
	z.Log(types.DebugLevel, msg, keysAndValues...)
}

func (z *ZapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	z.Log(types.InfoLevel, msg, keysAndValues...)
}

func (z *ZapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	z.Log(types.WarnLevel, msg, keysAndValues...)
}

func (z *ZapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	z.Log(types.ErrorLevel, msg, keysAndValues...)
}

func (z *ZapLoggerAdapter) DPanic(msg string, keysAndValues ...interface{}) {
	z.Log(types.DPanicLevel, msg, keysAndValues...)
}

// Panic logs and then panics via zap.
func (z *ZapLoggerAdapter) Panic(msg string, keysAndValues ...interface{}) {
	z.Log(types.PanicLevel, msg, keysAndValues...)
}

// Fatal logs and then exits the process via zap.
func (z *ZapLoggerAdapter) Fatal(msg string, keysAndValues ...interface{}) {
	z.Log(types.FatalLevel, msg, keysAndValues...)
}

func (z *ZapLoggerAdapter) GetLevel() types.LogLevel {
	return convertZapLevel(z.level.Level())
}

// SetLevel changes the level for the base output and every sink at once.
func (z *ZapLoggerAdapter) SetLevel(level types.LogLevel) {
	z.level.SetLevel(ConvertLevel(level))
}

// Flush syncs all outputs. Terminals and pipes reject fsync; those errors are
// not reported.
func (z *ZapLoggerAdapter) Flush() error {
	z.mu.Lock()
	logger := z.logger
	z.mu.Unlock()
	if logger == nil {
		return nil
	}

	err := logger.Sync()
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}
