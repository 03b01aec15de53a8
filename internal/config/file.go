package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape. Durations are strings like "30s".
type fileConfig struct {
	Config   `yaml:",inline"`
	LogLevel string `yaml:"log_level"`
}

// ApplyFile overrides c with every non-empty value from the YAML file at path.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.ApplyYAML(data)
}

// ApplyYAML overrides c with every non-empty value in data.
func (c *Config) ApplyYAML(data []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	o := f.Config

	setString(&c.GeminiAPIKey, o.GeminiAPIKey)
	setString(&c.GeminiModel, o.GeminiModel)
	setString(&c.BackupBackend, o.BackupBackend)
	setString(&c.BackupAPIKey, o.BackupAPIKey)
	setString(&c.BackupModel, o.BackupModel)
	setString(&c.OllamaHost, o.OllamaHost)
	setString(&c.OpenRouterAPIKey, o.OpenRouterAPIKey)
	setString(&c.OpenRouterModel, o.OpenRouterModel)
	setString(&c.OpenRouterURL, o.OpenRouterURL)
	setString(&c.GoogleSearchKey, o.GoogleSearchKey)
	setString(&c.GoogleSearchCX, o.GoogleSearchCX)
	setString(&c.SerplyAPIKey, o.SerplyAPIKey)
	setString(&c.OpenAIAPIKey, o.OpenAIAPIKey)
	setString(&c.DBPath, o.DBPath)
	setString(&c.SurrealDBURL, o.SurrealDBURL)
	setString(&c.SurrealDBNamespace, o.SurrealDBNamespace)
	setString(&c.SurrealDBDatabase, o.SurrealDBDatabase)
	setString(&c.SurrealDBUser, o.SurrealDBUser)
	setString(&c.SurrealDBPass, o.SurrealDBPass)
	setString(&c.SurrealDBAuthLevel, o.SurrealDBAuthLevel)
	setString(&c.LogFile, o.LogFile)
	setString(&c.ServerPort, o.ServerPort)

	setNonZero(&c.SearchResults, o.SearchResults)
	setNonZero(&c.MaxRetries, o.MaxRetries)
	setNonZero(&c.MemoryCap, o.MemoryCap)
	setNonZero(&c.ProviderTimeout, o.ProviderTimeout)
	setNonZero(&c.Cooldown, o.Cooldown)
	setNonZero(&c.RetryBackoff, o.RetryBackoff)
	setNonZero(&c.SyncInterval, o.SyncInterval)
	setNonZero(&c.StrictThreshold, o.StrictThreshold)
	setNonZero(&c.RelaxedThreshold, o.RelaxedThreshold)
	setNonZero(&c.DuplicateThreshold, o.DuplicateThreshold)

	if f.LogLevel != "" {
		c.LogLevel = parseLogLevel(f.LogLevel)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setNonZero[T int | float64 | ~int64](dst *T, v T) {
	if v != 0 {
		*dst = v
	}
}
