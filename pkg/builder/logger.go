package builder

import (
	internalLogger "github.com/joeydtaylor/scalogram/pkg/internal/internallogger"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/logschema"
)

type LoggerOption = internalLogger.LoggerOption

type SinkConfig = types.SinkConfig

type SinkType = types.SinkType

type Logger = types.Logger

const (
	FileSink   SinkType = types.FileSink
	StdoutSink SinkType = types.StdoutSink
	StderrSink SinkType = types.StderrSink
)

func NewLogger(options ...internalLogger.LoggerOption) types.Logger {
	return internalLogger.NewLogger(options...)
}

// LoggerWithLevel configures the logger to use the specified log level.
func LoggerWithLevel(levelStr string) LoggerOption {
	return internalLogger.LoggerWithLevel(levelStr)
}

// LoggerWithService stamps every line with the emitting binary's name.
func LoggerWithService(name string) LoggerOption {
	return internalLogger.LoggerWithService(name)
}

// LoggerWithConsole writes human-readable lines to stderr instead of JSON to stdout.
func LoggerWithConsole(enabled bool) LoggerOption {
	return internalLogger.LoggerWithConsole(enabled)
}

// Log schema constants for the standard scalogram log format.
const (
	LogSchemaID    = logschema.SchemaID
	LogSchemaField = logschema.FieldSchema
)

// LogLevel is exported from the internal types package.
type LogLevel = types.LogLevel

const (
	DebugLevel  = types.DebugLevel
	InfoLevel   = types.InfoLevel
	WarnLevel   = types.WarnLevel
	ErrorLevel  = types.ErrorLevel
	DPanicLevel = types.DPanicLevel
	PanicLevel  = types.PanicLevel
	FatalLevel  = types.FatalLevel
)
