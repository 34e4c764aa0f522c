package internallogger

import (
	"os"
	"sync"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/logschema"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip hides Log and the level helper so caller points at the component.
const callerSkip = 2

type loggerConfig struct {
	level   zapcore.Level
	console bool
	service string
}

// LoggerOption configures NewLogger.
type LoggerOption func(*loggerConfig)

// LoggerWithLevel sets the starting level. Unknown names fall back to info.
func LoggerWithLevel(level string) LoggerOption {
	return func(cfg *loggerConfig) {
		cfg.level = ConvertLevel(parseLogLevel(level))
	}
}

// LoggerWithService stamps every line with the emitting binary's name.
func LoggerWithService(name string) LoggerOption {
	return func(cfg *loggerConfig) {
		cfg.service = name
	}
}

// LoggerWithConsole switches the base output to human-readable lines on stderr,
// leaving stdout to command results.
func LoggerWithConsole(enabled bool) LoggerOption {
	return func(cfg *loggerConfig) {
		cfg.console = enabled
	}
}

// ZapLoggerAdapter implements types.Logger on top of zap with a dynamic set of sinks.
type ZapLoggerAdapter struct {
	mu       sync.Mutex
	logger   *zap.Logger
	level    zap.AtomicLevel
	baseCore zapcore.Core
	fields   []zap.Field
	sinks    map[string]sinkEntry
}

// NewLogger builds a JSON logger on stdout in the scalogram.log.v1 schema.
func NewLogger(options ...LoggerOption) *ZapLoggerAdapter {
	cfg := loggerConfig{level: zapcore.InfoLevel}
	for _, option := range options {
		option(&cfg)
	}

	z := &ZapLoggerAdapter{
		level:  zap.NewAtomicLevelAt(cfg.level),
		fields: []zap.Field{zap.String(logschema.FieldSchema, logschema.SchemaID)},
		sinks:  make(map[string]sinkEntry),
	}
	if cfg.service != "" {
		z.fields = append(z.fields, zap.String("service", cfg.service))
	}
	if cfg.console {
		z.baseCore = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stderr), z.level)
	} else {
		z.baseCore = zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.Lock(os.Stdout), z.level)
	}

	z.mu.Lock()
	z.rebuildLocked()
	z.mu.Unlock()
	return z
}

// NewLoggerWithCore is NewLogger writing to core instead of stdout. Sinks added later
// are teed alongside it.
func NewLoggerWithCore(core zapcore.Core, options ...LoggerOption) *ZapLoggerAdapter {
	z := NewLogger(options...)
	z.mu.Lock()
	z.baseCore = core
	z.rebuildLocked()
	z.mu.Unlock()
	return z
}

// IsLevelEnabled reports whether entries at level would be written.
func (z *ZapLoggerAdapter) IsLevelEnabled(level types.LogLevel) bool {
	return z.level.Enabled(ConvertLevel(level))
}

func (z *ZapLoggerAdapter) rebuildLocked() {
	cores := []zapcore.Core{z.baseCore}
	for _, id := range z.sinkIDsLocked() {
		cores = append(cores, z.sinks[id].core)
	}
	z.logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(callerSkip)).With(z.fields...)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:       logschema.FieldTimestamp,
		LevelKey:      logschema.FieldLevel,
		NameKey:       logschema.FieldLogger,
		CallerKey:     logschema.FieldCaller,
		MessageKey:    logschema.FieldMessage,
		StacktraceKey: logschema.FieldStack,
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.UTC().Format(time.RFC3339Nano))
		},
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

var _ types.Logger = (*ZapLoggerAdapter)(nil)
