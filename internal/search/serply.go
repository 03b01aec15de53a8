package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
)

// DefaultSerplyURL is the Serply search endpoint.
const DefaultSerplyURL = "https://api.serply.io/v1/search"

// SerplyConfig configures the Serply adapter.
type SerplyConfig struct {
	Name       string
	APIKey     string
	BaseURL    string
	Results    int
	HTTPClient *http.Client
}

// Serply queries the Serply web search REST API.
type Serply struct {
	name    string
	apiKey  string
	baseURL string
	results int
	client  *http.Client
}

// NewSerply creates the adapter.
func NewSerply(cfg SerplyConfig) (*Serply, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("serply API key required")
	}
	if cfg.Name == "" {
		cfg.Name = "serply"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSerplyURL
	}
	if cfg.Results <= 0 {
		cfg.Results = DefaultResults
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Serply{
		name:    cfg.Name,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		results: cfg.Results,
		client:  cfg.HTTPClient,
	}, nil
}

type serplyResponse struct {
	Results []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Description string `json:"description"`
	} `json:"results"`
}

// Name returns the adapter name.
func (s *Serply) Name() string { return s.name }

// Call searches for the reflection's keywords and digests the hits.
func (s *Serply) Call(ctx context.Context, q provider.Query) (models.AnalysisRecord, error) {
	results, err := s.Search(ctx, KeywordQuery(q.Reflection))
	if err != nil {
		return models.AnalysisRecord{}, err
	}
	return Digest(results), nil
}

// Search runs a raw query.
func (s *Serply) Search(ctx context.Context, query string) ([]Result, error) {
	// Serply takes the query string as a path segment.
	endpoint := fmt.Sprintf("%s/q=%s&num=%d", s.baseURL, url.QueryEscape(query), s.results)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)
	req.Header.Set("X-User-Agent", "desktop")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, provider.Classify(s.name, 0, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, provider.Classify(s.name, resp.StatusCode, fmt.Errorf("serply API error: %s", strings.TrimSpace(string(body))))
	}

	var out serplyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, provider.Classify(s.name, resp.StatusCode, fmt.Errorf("%w: decode: %v", provider.ErrMalformed, err))
	}

	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		if r.Link == "" {
			continue
		}
		results = append(results, Result{Title: r.Title, Link: r.Link, Snippet: r.Description})
	}
	if len(results) == 0 {
		return nil, provider.Classify(s.name, resp.StatusCode, fmt.Errorf("%w for %q", provider.ErrNoResults, query))
	}
	return results, nil
}
