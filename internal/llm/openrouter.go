package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/raphaelgruber/rafeeq/internal/repair"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel = "xiaomi/mimo-v2-flash:free"
)

// OpenRouterConfig configures the third-party chat-completion adapter.
type OpenRouterConfig struct {
	Name       string
	APIKey     string
	Model      string
	BaseURL    string
	Referer    string
	Title      string
	HTTPClient *http.Client
}

// OpenRouter calls an OpenAI-compatible chat-completion endpoint.
// Plain-text answers are wrapped rather than rejected.
type OpenRouter struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenRouter creates the adapter.
func NewOpenRouter(cfg OpenRouterConfig) (*OpenRouter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key required")
	}
	if cfg.Name == "" {
		cfg.Name = "openrouter"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenRouterModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterURL
	}
	if cfg.Referer == "" {
		cfg.Referer = "https://rafeeq.app"
	}
	if cfg.Title == "" {
		cfg.Title = "Rafeeq Personal AI"
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{
		Timeout: base.Timeout,
		Transport: headerTransport{
			base: rt,
			headers: map[string]string{
				"HTTP-Referer": cfg.Referer,
				"X-Title":      cfg.Title,
			},
		},
	}

	return &OpenRouter{
		name:   cfg.Name,
		model:  cfg.Model,
		client: openai.NewClientWithConfig(oc),
	}, nil
}

// Name returns the adapter name.
func (o *OpenRouter) Name() string { return o.name }

// Call requests a JSON analysis; non-JSON content becomes an ai-text record.
func (o *OpenRouter) Call(ctx context.Context, q provider.Query) (models.AnalysisRecord, error) {
	content, err := o.complete(ctx, simpleSystem, SimplePrompt(q))
	if err != nil {
		return models.AnalysisRecord{}, err
	}
	rec, err := parseRecord(content)
	if err != nil {
		return repair.WrapText(content, models.SourceAIText), nil
	}
	return rec, nil
}

// Inspire asks for a standalone motivational quote.
func (o *OpenRouter) Inspire(ctx context.Context, interestContext string) (models.MotivationalMessage, error) {
	content, err := o.complete(ctx, simpleSystem, InspirationPrompt(interestContext))
	if err != nil {
		return models.MotivationalMessage{}, err
	}
	msg, err := ParseQuote(content)
	if err != nil {
		return msg, provider.Classify(o.name, http.StatusOK, err)
	}
	return msg, nil
}

func (o *OpenRouter) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", provider.Classify(o.name, openaiStatus(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.Classify(o.name, http.StatusOK, fmt.Errorf("%w: no choices", provider.ErrMalformed))
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", provider.Classify(o.name, http.StatusOK, fmt.Errorf("%w: empty content", provider.ErrMalformed))
	}
	return content, nil
}

func openaiStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return provider.StatusFromMessage(err)
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
