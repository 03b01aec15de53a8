package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/tmc/langchaingo/llms"
)

// Backup is a generative adapter over any langchaingo model, used with a
// separate credential after the primary fails.
type Backup struct {
	name  string
	model llms.Model
}

// NewBackup wraps an existing langchaingo model.
func NewBackup(name string, model llms.Model) *Backup {
	return &Backup{name: name, model: model}
}

// NewBackendBackup creates a backup adapter on the configured model family.
func NewBackendBackup(ctx context.Context, name string, cfg BackendConfig) (*Backup, error) {
	m, err := NewBackendModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewBackup(name, m), nil
}

// Name returns the adapter name.
func (b *Backup) Name() string { return b.name }

// Call requests a JSON analysis with the simplified prompt.
func (b *Backup) Call(ctx context.Context, q provider.Query) (models.AnalysisRecord, error) {
	text, err := b.generate(ctx, simpleSystem+"\n\n"+SimplePrompt(q))
	if err != nil {
		return models.AnalysisRecord{}, err
	}
	rec, err := parseRecord(text)
	if err != nil {
		return models.AnalysisRecord{}, provider.Classify(b.name, http.StatusOK, err)
	}
	return rec, nil
}

// Inspire asks for a standalone motivational quote.
func (b *Backup) Inspire(ctx context.Context, interestContext string) (models.MotivationalMessage, error) {
	text, err := b.generate(ctx, InspirationPrompt(interestContext))
	if err != nil {
		return models.MotivationalMessage{}, err
	}
	msg, err := ParseQuote(text)
	if err != nil {
		return msg, provider.Classify(b.name, http.StatusOK, err)
	}
	return msg, nil
}

func (b *Backup) generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := b.model.GenerateContent(ctx, messages, llms.WithJSONMode())
	if err != nil {
		return "", provider.Classify(b.name, provider.StatusFromMessage(err), fmt.Errorf("generate: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", provider.Classify(b.name, http.StatusOK, fmt.Errorf("%w: no response choices", provider.ErrMalformed))
	}
	return resp.Choices[0].Content, nil
}
