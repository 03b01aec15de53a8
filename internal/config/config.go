// Package config loads rafeeq settings from the environment and an optional YAML file.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/raphaelgruber/rafeeq/internal/db"
)

// Config holds all configuration values.
type Config struct {
	// Generative providers
	GeminiAPIKey     string `yaml:"gemini_api_key"`
	GeminiModel      string `yaml:"gemini_model"`
	BackupBackend    string `yaml:"backup_backend"` // googleai, ollama, openai, anthropic
	BackupAPIKey     string `yaml:"backup_api_key"`
	BackupModel      string `yaml:"backup_model"`
	OllamaHost       string `yaml:"ollama_host"`
	OpenRouterAPIKey string `yaml:"openrouter_api_key"`
	OpenRouterModel  string `yaml:"openrouter_model"`
	OpenRouterURL    string `yaml:"openrouter_url"`

	// Search providers
	GoogleSearchKey string `yaml:"google_search_key"`
	GoogleSearchCX  string `yaml:"google_search_cx"`
	SerplyAPIKey    string `yaml:"serply_api_key"`
	SearchResults   int    `yaml:"search_results"`

	// Speech
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// Failure policy
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	Cooldown        time.Duration `yaml:"cooldown"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`

	// Memory
	StrictThreshold    float64       `yaml:"strict_threshold"`
	RelaxedThreshold   float64       `yaml:"relaxed_threshold"`
	DuplicateThreshold float64       `yaml:"duplicate_threshold"`
	MemoryCap          int           `yaml:"memory_cap"`
	SyncInterval       time.Duration `yaml:"sync_interval"`

	// Storage
	DBPath             string `yaml:"db_path"`
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Logging and server
	LogFile    string     `yaml:"log_file"`
	LogLevel   slog.Level `yaml:"-"`
	ServerPort string     `yaml:"server_port"`
}

// Load reads configuration from environment variables, then applies
// the YAML file named by RAFEEQ_CONFIG_FILE if set.
func Load() Config {
	cfg := Config{
		GeminiAPIKey:     getEnv("RAFEEQ_GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("RAFEEQ_GEMINI_MODEL", "gemini-2.5-flash"),
		BackupBackend:    getEnv("RAFEEQ_BACKUP_BACKEND", "googleai"),
		BackupAPIKey:     getEnv("RAFEEQ_BACKUP_API_KEY", ""),
		BackupModel:      getEnv("RAFEEQ_BACKUP_MODEL", ""),
		OllamaHost:       getEnv("RAFEEQ_OLLAMA_HOST", ""),
		OpenRouterAPIKey: getEnv("RAFEEQ_OPENROUTER_API_KEY", ""),
		OpenRouterModel:  getEnv("RAFEEQ_OPENROUTER_MODEL", "xiaomi/mimo-v2-flash:free"),
		OpenRouterURL:    getEnv("RAFEEQ_OPENROUTER_URL", "https://openrouter.ai/api/v1"),

		GoogleSearchKey: getEnv("RAFEEQ_GOOGLE_SEARCH_KEY", ""),
		GoogleSearchCX:  getEnv("RAFEEQ_GOOGLE_SEARCH_CX", ""),
		SerplyAPIKey:    getEnv("RAFEEQ_SERPLY_API_KEY", ""),
		SearchResults:   getInt("RAFEEQ_SEARCH_RESULTS", 5),

		OpenAIAPIKey: getEnv("RAFEEQ_OPENAI_API_KEY", ""),

		ProviderTimeout: getDuration("RAFEEQ_PROVIDER_TIMEOUT", 30*time.Second),
		Cooldown:        getDuration("RAFEEQ_COOLDOWN", 60*time.Second),
		MaxRetries:      getInt("RAFEEQ_MAX_RETRIES", 2),
		RetryBackoff:    getDuration("RAFEEQ_RETRY_BACKOFF", 500*time.Millisecond),

		StrictThreshold:    getFloat("RAFEEQ_STRICT_THRESHOLD", 0.6),
		RelaxedThreshold:   getFloat("RAFEEQ_RELAXED_THRESHOLD", 0.25),
		DuplicateThreshold: getFloat("RAFEEQ_DUPLICATE_THRESHOLD", 0.8),
		MemoryCap:          getInt("RAFEEQ_MEMORY_CAP", 100),
		SyncInterval:       getDuration("RAFEEQ_SYNC_INTERVAL", 10*time.Minute),

		DBPath:             getEnv("RAFEEQ_DB_PATH", defaultDBPath()),
		SurrealDBURL:       getEnv("SURREALDB_URL", ""),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "rafeeq"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "journal"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LogFile:    getEnv("RAFEEQ_LOG_FILE", filepath.Join(os.TempDir(), "rafeeq.log")),
		LogLevel:   parseLogLevel(getEnv("RAFEEQ_LOG_LEVEL", "INFO")),
		ServerPort: getEnv("RAFEEQ_SERVER_PORT", "8484"),
	}

	if path := os.Getenv("RAFEEQ_CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			slog.Warn("config file ignored", "file", path, "error", err)
		}
	}
	return cfg
}

// DB returns the SurrealDB connection settings.
func (c Config) DB() db.Config {
	return db.Config{
		URL:       c.SurrealDBURL,
		Namespace: c.SurrealDBNamespace,
		Database:  c.SurrealDBDatabase,
		Username:  c.SurrealDBUser,
		Password:  c.SurrealDBPass,
		AuthLevel: c.SurrealDBAuthLevel,
	}
}

// RemoteEnabled reports whether a SurrealDB mirror is configured.
func (c Config) RemoteEnabled() bool {
	return c.SurrealDBURL != ""
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rafeeq.db"
	}
	return filepath.Join(home, ".rafeeq", "rafeeq.db")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
