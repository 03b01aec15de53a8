package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RAFEEQ_CONFIG_FILE", "")
	t.Setenv("RAFEEQ_COOLDOWN", "")
	t.Setenv("SURREALDB_URL", "")

	cfg := Load()
	assert.Equal(t, 60*time.Second, cfg.Cooldown)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.InDelta(t, 0.6, cfg.StrictThreshold, 1e-9)
	assert.InDelta(t, 0.25, cfg.RelaxedThreshold, 1e-9)
	assert.InDelta(t, 0.8, cfg.DuplicateThreshold, 1e-9)
	assert.Equal(t, 100, cfg.MemoryCap)
	assert.Equal(t, "8484", cfg.ServerPort)
	assert.False(t, cfg.RemoteEnabled())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("RAFEEQ_CONFIG_FILE", "")
	t.Setenv("RAFEEQ_COOLDOWN", "5s")
	t.Setenv("RAFEEQ_MAX_RETRIES", "4")
	t.Setenv("RAFEEQ_STRICT_THRESHOLD", "0.7")
	t.Setenv("RAFEEQ_MEMORY_CAP", "not-a-number")
	t.Setenv("RAFEEQ_LOG_LEVEL", "debug")
	t.Setenv("SURREALDB_URL", "ws://localhost:8000")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.Cooldown)
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.InDelta(t, 0.7, cfg.StrictThreshold, 1e-9)
	assert.Equal(t, 100, cfg.MemoryCap)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.RemoteEnabled())
	assert.Equal(t, "ws://localhost:8000", cfg.DB().URL)
	assert.Equal(t, "rafeeq", cfg.DB().Namespace)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rafeeq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gemini_api_key: from-file
cooldown: 90s
memory_cap: 50
relaxed_threshold: 0.3
log_level: warn
`), 0o600))
	t.Setenv("RAFEEQ_CONFIG_FILE", path)
	t.Setenv("RAFEEQ_GEMINI_API_KEY", "from-env")
	t.Setenv("RAFEEQ_COOLDOWN", "")

	cfg := Load()
	assert.Equal(t, "from-file", cfg.GeminiAPIKey)
	assert.Equal(t, 90*time.Second, cfg.Cooldown)
	assert.Equal(t, 50, cfg.MemoryCap)
	assert.InDelta(t, 0.3, cfg.RelaxedThreshold, 1e-9)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.InDelta(t, 0.6, cfg.StrictThreshold, 1e-9)
}

func TestApplyYAML_Invalid(t *testing.T) {
	cfg := Config{ServerPort: "8484"}
	err := cfg.ApplyYAML([]byte("server_port: [unclosed"))
	assert.Error(t, err)
	assert.Equal(t, "8484", cfg.ServerPort)
}

func TestApplyFile_Missing(t *testing.T) {
	var cfg Config
	assert.Error(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"Warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	log := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	log.Debug("hidden")
	log.Info("provider ready", "provider", "gemini", "api_key", "sk-123", "apiKey", "sk-456")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "provider ready")
	assert.NotContains(t, stderr.String(), "sk-123")
	assert.NotContains(t, file.String(), "sk-456")

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(file.String())), &line))
	assert.Equal(t, "gemini", line["provider"])
	assert.Equal(t, "[redacted]", line["api_key"])
}

func TestSetupLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rafeeq.log")
	log, cleanup := SetupLogger(path, slog.LevelInfo)
	log.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestSetupLogger_StderrOnly(t *testing.T) {
	log, cleanup := SetupLogger("", slog.LevelInfo)
	assert.NotNil(t, log)
	assert.NoError(t, cleanup())
}
