package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackendModel(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BackendConfig
		wantErr string
	}{
		{"googleai needs key", BackendConfig{}, "googleai API key required"},
		{"ollama", BackendConfig{Backend: BackendOllama, Model: "llama3.2", Host: "http://localhost:11434"}, ""},
		{"ollama needs model", BackendConfig{Backend: BackendOllama}, "ollama model required"},
		{"openai", BackendConfig{Backend: BackendOpenAI, APIKey: "sk-test", Model: "gpt-4o-mini"}, ""},
		{"openai needs key", BackendConfig{Backend: BackendOpenAI}, "openai API key required"},
		{"anthropic", BackendConfig{Backend: BackendAnthropic, APIKey: "sk-ant", Model: "claude-haiku"}, ""},
		{"anthropic needs key", BackendConfig{Backend: BackendAnthropic}, "anthropic API key required"},
		{"unknown", BackendConfig{Backend: "bedrock", APIKey: "k"}, "unsupported backup backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewBackendModel(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, m)
		})
	}
}

func TestNewBackendBackup(t *testing.T) {
	b, err := NewBackendBackup(context.Background(), "backup-ollama", BackendConfig{Backend: BackendOllama, Model: "qwen2.5"})
	require.NoError(t, err)
	assert.Equal(t, "backup-ollama", b.Name())

	_, err = NewBackendBackup(context.Background(), "x", BackendConfig{Backend: BackendOpenAI})
	assert.Error(t, err)
}
