package internallogger

import (
	"testing"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLog_WritesFields(t *testing.T) {
	logger := NewLogger()
	core, obs := observer.New(zapcore.DebugLevel)

	logger.mu.Lock()
	logger.logger = zap.New(core)
	logger.mu.Unlock()

	logger.Log(types.InfoLevel, "msg", "a", "b", "c", 3, "orphan")

	entries := obs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].Context
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}

	if fields[0].Key != "a" || fields[1].Key != "c" {
		t.Fatalf("unexpected field keys: %v, %v", fields[0].Key, fields[1].Key)
	}
}

func TestLog_IgnoresNonStringKeys(t *testing.T) {
	logger := NewLogger()
	core, obs := observer.New(zapcore.DebugLevel)

	logger.mu.Lock()
	logger.logger = zap.New(core)
	logger.mu.Unlock()

	logger.Log(types.InfoLevel, "msg", 123, "skip", "k", "v")

	entries := obs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].Context
	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if fields[0].Key != "k" {
		t.Fatalf("expected field key 'k', got %q", fields[0].Key)
	}
}

func TestLog_RespectsCoreLevel(t *testing.T) {
	logger := NewLogger()
	core, obs := observer.New(zapcore.WarnLevel)

	logger.mu.Lock()
	logger.logger = zap.New(core)
	logger.mu.Unlock()

	logger.Log(types.InfoLevel, "info")
	logger.Log(types.WarnLevel, "warn")

	entries := obs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn entry, got %v", entries[0].Entry.Level)
	}
}

func TestLog_NilLoggerNoPanic(t *testing.T) {
	logger := NewLogger()
	logger.mu.Lock()
	logger.logger = nil
	logger.mu.Unlock()

	logger.Log(types.InfoLevel, "msg")
}

func TestFlush_NilLogger(t *testing.T) {
	logger := NewLogger()
	logger.mu.Lock()
	logger.logger = nil
	logger.mu.Unlock()

	if err := logger.Flush(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestConvertLevel_Defaults(t *testing.T) {
	if got := ConvertLevel(types.LogLevel(99)); got != zapcore.InfoLevel {
		t.Fatalf("expected default zapcore.InfoLevel, got %v", got)
	}
	if got := convertZapLevel(zapcore.Level(99)); got != types.InfoLevel {
		t.Fatalf("expected default types.InfoLevel, got %v", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]types.LogLevel{
		"debug":  types.DebugLevel,
		"info":   types.InfoLevel,
		"warn":   types.WarnLevel,
		"error":  types.ErrorLevel,
		"dpanic": types.DPanicLevel,
		"panic":  types.PanicLevel,
		"fatal":  types.FatalLevel,
		"bogus":  types.InfoLevel,
	}

	for input, expect := range cases {
		if got := parseLogLevel(input); got != expect {
			t.Fatalf("parseLogLevel(%q) = %v, expected %v", input, got, expect)
		}
	}
}

func TestRebuild_AttachesSchemaField(t *testing.T) {
	logger := NewLogger(LoggerWithService("scalogram-classify"))
	core, obs := observer.New(zapcore.DebugLevel)

	logger.mu.Lock()
	logger.baseCore = core
	logger.rebuildLocked()
	logger.mu.Unlock()

	logger.Info("ready")

	entries := obs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["log_schema"] != "scalogram.log.v1" {
		t.Fatalf("expected schema field, got %v", ctx["log_schema"])
	}
	if ctx["service"] != "scalogram-classify" {
		t.Fatalf("expected service field, got %v", ctx["service"])
	}
}

func TestLog_ComponentMetadataAndErrors(t *testing.T) {
	logger := NewLogger()
	core, obs := observer.New(zapcore.DebugLevel)

	logger.mu.Lock()
	logger.logger = zap.New(core)
	logger.mu.Unlock()

	meta := types.ComponentMetadata{ID: "abc", Type: "SESSION"}
	logger.Log(types.ErrorLevel, "failed", "component", meta, "error", types.ErrBusy)

	entries := obs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	component, ok := ctx["component"].(map[string]interface{})
	if !ok || component["type"] != "SESSION" {
		t.Fatalf("unexpected component field: %#v", ctx["component"])
	}
	if ctx["error"] != types.ErrBusy.Error() {
		t.Fatalf("unexpected error field: %#v", ctx["error"])
	}
	if _, ok := ctx["error_kind"]; ok {
		t.Fatalf("bare sentinel should carry no kind: %#v", ctx["error_kind"])
	}
}

func TestLog_DomainFields(t *testing.T) {
	logger := NewLogger()
	core, obs := observer.New(zapcore.DebugLevel)

	logger.mu.Lock()
	logger.logger = zap.New(core)
	logger.mu.Unlock()

	profile := types.ModelProfile{ID: "sidaguri_duha", Name: "Sidaguri Duha"}
	logger.Log(types.WarnLevel, "Classifier busy",
		"correlation_id", 42,
		"model", profile,
		"duration", 1500*time.Millisecond,
		"error", types.NewBusyError("session.classify", types.ErrBusy),
		"component", (*types.ComponentMetadata)(nil),
	)

	entries := obs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["correlation_id"] != "42" {
		t.Fatalf("correlation_id should be a string, got %#v", ctx["correlation_id"])
	}
	if ctx["model"] != "sidaguri_duha" {
		t.Fatalf("model should be the profile id, got %#v", ctx["model"])
	}
	if ctx["duration"] != 1500*time.Millisecond {
		t.Fatalf("unexpected duration %#v", ctx["duration"])
	}
	if ctx["error_kind"] != "busy" {
		t.Fatalf("unexpected error_kind %#v", ctx["error_kind"])
	}
	if _, ok := ctx["component"]; ok {
		t.Fatalf("nil component should be dropped")
	}

	logger.Log(types.InfoLevel, "selected", "model", "kejibeling_sirih")
	if got := obs.All()[1].ContextMap()["model"]; got != "kejibeling_sirih" {
		t.Fatalf("string model id should pass through, got %#v", got)
	}
}

func TestParseLogLevel_Aliases(t *testing.T) {
	for _, name := range []string{"WARNING", " warn ", "Warn"} {
		if got := parseLogLevel(name); got != types.WarnLevel {
			t.Fatalf("parseLogLevel(%q) = %v", name, got)
		}
	}
	if got := parseLogLevel(""); got != types.InfoLevel {
		t.Fatalf("empty level should be info, got %v", got)
	}
}
