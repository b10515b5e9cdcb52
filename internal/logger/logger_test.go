package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogLevelsMapToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore("threshold", core)

	l.Info("computed %s", "BTCUSDT")
	l.Warning("breaker tripped for %s", "ETHUSDT")
	l.Error("boom")
	l.Trade("order accepted")
	l.Status("3 symbols tracked")

	entries := logs.AllUntimed()
	require.Len(t, entries, 5)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "computed BTCUSDT", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	assert.Equal(t, "TRADE", entries[3].ContextMap()["tag"])
	assert.Equal(t, "STATUS", entries[4].ContextMap()["tag"])
	assert.Equal(t, "threshold", entries[0].ContextMap()["component"])
}

func TestLogErrorAttachesError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewWithCore("risk", core)

	l.LogError("update position", errors.New("invalid price"))

	entries := logs.FilterMessage("update position").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "invalid price", entries[0].ContextMap()["error"])
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewWithCore("engine", core).With("symbol", "SOLUSDT")

	l.Info("tick")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "SOLUSDT", logs.All()[0].ContextMap()["symbol"])
}

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger("engine", Options{Level: "debug", Dir: dir, NoColor: true})
	require.NoError(t, err)

	l.Info("hello %d", 1)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.GetLogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello 1")
	assert.Equal(t, dir, filepath.Dir(l.GetLogPath()))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("engine", Options{Level: "verbose"})
	assert.Error(t, err)
}
