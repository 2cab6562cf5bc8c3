// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/alris-cli/internal/config"
)

// initBuffered initializes the global logger against an in-memory console.
func initBuffered(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

func TestInitialize(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "alris",
			Colors:      config.ColorConfig{Info: "green"},
		})
		GetLogger().Named("orchestrator").Info("Processing command.")

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "Processing command.")
		assert.Contains(t, output, colorMap["green"], "info should be colorized green")
		assert.Contains(t, output, colorReset)
		assert.Contains(t, output, "alris.orchestrator.")
	})

	t.Run("uncolored level without a mapping", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "console"})
		GetLogger().Warn("plain")
		assert.Contains(t, buf.String(), "WARN")
		assert.NotContains(t, buf.String(), colorReset)
	})

	t.Run("json logger", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"})
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output should be valid JSON")
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "This is a JSON message.", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("level filtering", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "warn", Format: "json"})
		GetLogger().Info("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "chatty", Format: "json"})
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("writes a rotating log file in a nested directory", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "alris.log")
		initBuffered(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1})
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
		assert.Contains(t, string(content), `"level":"ERROR"`, "the file is always JSON")
	})

	t.Run("initializes only once", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"})
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&bytes.Buffer{}))
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		assert.NotNil(t, GetLogger())
	})

	t.Run("global logger after initialization", func(t *testing.T) {
		initBuffered(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
