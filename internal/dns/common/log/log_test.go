package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type recordingLogger struct {
	entries []string
}

func (l *recordingLogger) record(level, msg string) {
	l.entries = append(l.entries, level+":"+msg)
}

func (l *recordingLogger) Info(_ map[string]any, msg string)  { l.record("INFO", msg) }
func (l *recordingLogger) Error(_ map[string]any, msg string) { l.record("ERROR", msg) }
func (l *recordingLogger) Debug(_ map[string]any, msg string) { l.record("DEBUG", msg) }
func (l *recordingLogger) Warn(_ map[string]any, msg string)  { l.record("WARN", msg) }
func (l *recordingLogger) Panic(_ map[string]any, msg string) { l.record("PANIC", msg) }
func (l *recordingLogger) Fatal(_ map[string]any, msg string) { l.record("FATAL", msg) }

func swapLogger(t *testing.T, l Logger) {
	t.Helper()
	orig := GetLogger()
	t.Cleanup(func() { SetLogger(orig) })
	SetLogger(l)
}

func TestGlobalFunctionsUseCurrentLogger(t *testing.T) {
	rec := &recordingLogger{}
	swapLogger(t, rec)

	Info(nil, "info msg")
	Error(map[string]any{"code": 2}, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	assert.Equal(t, []string{
		"INFO:info msg",
		"ERROR:error msg",
		"DEBUG:debug msg",
		"WARN:warn msg",
	}, rec.entries)
}

func TestConfigure(t *testing.T) {
	swapLogger(t, &recordingLogger{})

	require.NoError(t, Configure("dev", "debug"))
	require.NoError(t, Configure("prod", "info"))
	assert.Error(t, Configure("dev", "noisy"), "unknown levels are rejected")
}

func TestZapLoggerEmitsAllLevels(t *testing.T) {
	swapLogger(t, newZapLogger(true, zapcore.DebugLevel))

	Debug(map[string]any{"answers": 3, "cached": true}, "debug entry")
	Info(nil, "info entry")
	Warn(nil, "warn entry")
	Error(nil, "error entry")

	assert.Panics(t, func() { Panic(nil, "panic entry") })
}

func TestZapFields(t *testing.T) {
	fields := zapFields(map[string]any{"a": 1, "b": "two"})
	assert.Len(t, fields, 2)
	assert.Empty(t, zapFields(nil))
}

func TestNoopLoggerDiscardsEverything(t *testing.T) {
	swapLogger(t, NewNoopLogger())

	Debug(nil, "debug")
	Info(nil, "info")
	Warn(nil, "warn")
	Error(nil, "error")
	Panic(nil, "panic")
	Fatal(nil, "fatal")
}
