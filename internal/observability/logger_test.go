// internal/observability/logger_test.go
package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/triage-cli/internal/config"
)

// memSink is a minimal WriteSyncer capturing log output for assertions.
type memSink struct {
	strings.Builder
}

func (s *memSink) Sync() error { return nil }

func TestInitialize_ConsoleFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSink{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "TestService",
	}, zapcore.Lock(zapcore.AddSync(sink)))

	GetLogger().Info("hello from the console encoder")

	output := sink.String()
	assert.Contains(t, output, "INFO")
	assert.Contains(t, output, "hello from the console encoder")
	assert.Contains(t, output, "TestService.")
}

func TestInitialize_JSONFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSink{}
	Initialize(config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "TestService",
	}, zapcore.Lock(zapcore.AddSync(sink)))

	GetLogger().Warn("structured warning")

	line := strings.TrimSpace(sink.String())
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &payload))
	assert.Equal(t, "WARN", payload["level"])
	assert.Equal(t, "structured warning", payload["msg"])
}

func TestInitialize_LevelFiltering(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSink{}
	Initialize(config.LoggerConfig{
		Level:       "error",
		Format:      "json",
		ServiceName: "TestService",
	}, zapcore.Lock(zapcore.AddSync(sink)))

	GetLogger().Info("should be filtered out")
	assert.Empty(t, sink.String())
}

func TestInitialize_InvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSink{}
	Initialize(config.LoggerConfig{
		Level:       "not-a-level",
		Format:      "json",
		ServiceName: "TestService",
	}, zapcore.Lock(zapcore.AddSync(sink)))

	GetLogger().Debug("debug is below the fallback level")
	GetLogger().Info("info passes")

	assert.NotContains(t, sink.String(), "debug is below the fallback level")
	assert.Contains(t, sink.String(), "info passes")
}

func TestInitialize_FileOutput(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "triage.log")
	sink := &memSink{}
	Initialize(config.LoggerConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "TestService",
		LogFile:     logFile,
	}, zapcore.Lock(zapcore.AddSync(sink)))

	GetLogger().Info("written to both sinks")
	Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	// File output is always JSON regardless of the console format.
	assert.Contains(t, string(data), `"msg":"written to both sinks"`)
}

func TestGetLogger_FallbackBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
}
