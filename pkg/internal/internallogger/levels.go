package internallogger

import (
	"strings"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"go.uber.org/zap/zapcore"
)

var levelTable = [...]struct {
	level types.LogLevel
	zap   zapcore.Level
}{
	{types.DebugLevel, zapcore.DebugLevel},
	{types.InfoLevel, zapcore.InfoLevel},
	{types.WarnLevel, zapcore.WarnLevel},
	{types.ErrorLevel, zapcore.ErrorLevel},
	{types.DPanicLevel, zapcore.DPanicLevel},
	{types.PanicLevel, zapcore.PanicLevel},
	{types.FatalLevel, zapcore.FatalLevel},
}

// parseLogLevel accepts zap's level names plus "warning", as used in
// SCALOGRAM_LOG_LEVEL. Anything else is info.
func parseLogLevel(name string) types.LogLevel {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return types.InfoLevel
	}
	return convertZapLevel(lvl)
}

// ConvertLevel converts a types.LogLevel to a zap level.
func ConvertLevel(level types.LogLevel) zapcore.Level {
	for _, row := range levelTable {
		if row.level == level {
			return row.zap
		}
	}
	return zapcore.InfoLevel
}

func convertZapLevel(level zapcore.Level) types.LogLevel {
	for _, row := range levelTable {
		if row.zap == level {
			return row.level
		}
	}
	return types.InfoLevel
}
