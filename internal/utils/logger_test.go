package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"serial2pipe/internal/config"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	require.Equal(t, zapcore.WarnLevel, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, zapcore.InfoLevel, level)

	_, err = ParseLevel("verbose")
	require.Error(t, err)
}

func TestNewLogger_FileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "relay.log")

	logger, err := NewLogger(&config.LoggingConfig{
		Level:      "debug",
		Format:     "json",
		Output:     path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	require.NoError(t, err)

	logger.Info("hello", zap.String("k", "v"))
	require.NoError(t, CloseLogger(logger))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"hello"`)
	require.Contains(t, string(data), `"k":"v"`)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "loud", Output: "stdout"})
	require.Error(t, err)
}

func TestEndpointLogger_SeveritySplit(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	el := NewEndpointLogger(zap.New(core), "device_to_pipe", "COM1", "pipe")

	el.LogReadFailure("COM1", time.Second, errors.New("unplugged"))
	el.LogWriteFailure("pipe", 3, time.Second, errors.New("broken pipe"))
	el.LogConnection("pipe", true, nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	require.Equal(t, zapcore.InfoLevel, entries[2].Level)
	require.Equal(t, "device_to_pipe", entries[0].ContextMap()["direction"])
}

func TestServiceLogger_APIRequestLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sl := NewServiceLogger(zap.New(core), "serial2pipe")

	sl.LogAPIRequest("GET", "/health", "test", "127.0.0.1", 200, time.Millisecond)
	sl.LogAPIRequest("GET", "/nope", "test", "127.0.0.1", 404, time.Millisecond)
	sl.LogAPIRequest("GET", "/boom", "test", "127.0.0.1", 500, time.Millisecond)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}
