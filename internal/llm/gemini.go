package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the search-grounded primary adapter.
type GeminiConfig struct {
	Name       string
	APIKey     string
	Model      string
	BaseURL    string // override for tests
	HTTPClient *http.Client
}

// Gemini calls the Gemini API with Google Search grounding enabled.
type Gemini struct {
	name   string
	model  string
	client *genai.Client
}

// NewGemini creates the primary adapter.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{name: cfg.Name, model: cfg.Model, client: client}, nil
}

// Name returns the adapter name.
func (g *Gemini) Name() string { return g.name }

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

// Call requests a grounded analysis and repairs the JSON answer.
func (g *Gemini) Call(ctx context.Context, q provider.Query) (models.AnalysisRecord, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(AnalysisPrompt(q)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return models.AnalysisRecord{}, g.classify(err)
	}

	rec, err := parseRecord(resp.Text())
	if err != nil {
		return models.AnalysisRecord{}, provider.Classify(g.name, http.StatusOK, err)
	}

	if len(rec.WebAnalysis.Sources) == 0 {
		rec.WebAnalysis.Sources = groundingSources(resp)
	}
	return rec, nil
}

// Inspire asks for a standalone motivational quote.
func (g *Gemini) Inspire(ctx context.Context, interestContext string) (models.MotivationalMessage, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(InspirationPrompt(interestContext)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return models.MotivationalMessage{}, g.classify(err)
	}
	msg, err := ParseQuote(resp.Text())
	if err != nil {
		return msg, provider.Classify(g.name, http.StatusOK, err)
	}
	return msg, nil
}

func (g *Gemini) classify(err error) error {
	return provider.Classify(g.name, genaiStatus(err), err)
}

// genaiStatus extracts the HTTP status code from a genai error.
func genaiStatus(err error) int {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := any(e).(type) {
		case genai.APIError:
			return v.Code
		case *genai.APIError:
			return v.Code
		}
	}
	return provider.StatusFromMessage(err)
}

// groundingSources converts search grounding chunks into cited sources.
func groundingSources(resp *genai.GenerateContentResponse) []models.WebSource {
	out := []models.WebSource{}
	if resp == nil {
		return out
	}
	seen := make(map[string]bool)
	for _, c := range resp.Candidates {
		if c == nil || c.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range c.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
				continue
			}
			seen[chunk.Web.URI] = true
			title := chunk.Web.Title
			if title == "" {
				title = chunk.Web.URI
			}
			out = append(out, models.WebSource{Title: title, URL: chunk.Web.URI})
		}
	}
	return out
}
