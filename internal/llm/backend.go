package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Backend names a langchaingo model family usable as the backup provider.
type Backend string

const (
	BackendGoogleAI  Backend = "googleai"
	BackendOllama    Backend = "ollama"
	BackendOpenAI    Backend = "openai"
	BackendAnthropic Backend = "anthropic"
)

// BackendConfig selects and configures a backup model.
type BackendConfig struct {
	Backend Backend
	APIKey  string
	Model   string
	Host    string // ollama server URL
}

// NewBackendModel creates the langchaingo model for cfg.Backend.
// An empty backend means googleai.
func NewBackendModel(ctx context.Context, cfg BackendConfig) (llms.Model, error) {
	var (
		model llms.Model
		err   error
	)

	switch cfg.Backend {
	case BackendGoogleAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("googleai API key required")
		}
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
			googleai.WithHarmThreshold(googleai.HarmBlockNone),
		)
		if err != nil {
			return nil, fmt.Errorf("create googleai model: %w", err)
		}

	case BackendOllama:
		if cfg.Model == "" {
			return nil, fmt.Errorf("ollama model required")
		}
		opts := []ollama.Option{ollama.WithModel(cfg.Model), ollama.WithFormat("json")}
		if cfg.Host != "" {
			opts = append(opts, ollama.WithServerURL(cfg.Host))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key required")
		}
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case BackendAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key required")
		}
		opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		model, err = anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported backup backend: %s", cfg.Backend)
	}

	return model, nil
}
