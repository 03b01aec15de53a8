package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleConfig configures the Programmable Search adapter.
type GoogleConfig struct {
	Name     string
	APIKey   string
	CX       string
	Results  int
	Endpoint string // override for tests
}

// Google queries the Google Programmable Search JSON API.
type Google struct {
	name    string
	cx      string
	results int
	svc     *customsearch.Service
}

// NewGoogle creates the adapter.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if cfg.APIKey == "" || cfg.CX == "" {
		return nil, fmt.Errorf("google search requires API key and engine id")
	}
	if cfg.Name == "" {
		cfg.Name = "google-search"
	}
	if cfg.Results <= 0 || cfg.Results > 10 {
		cfg.Results = DefaultResults
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create customsearch service: %w", err)
	}

	return &Google{name: cfg.Name, cx: cfg.CX, results: cfg.Results, svc: svc}, nil
}

// Name returns the adapter name.
func (g *Google) Name() string { return g.name }

// Call searches for the reflection's keywords and digests the hits.
func (g *Google) Call(ctx context.Context, q provider.Query) (models.AnalysisRecord, error) {
	results, err := g.Search(ctx, KeywordQuery(q.Reflection))
	if err != nil {
		return models.AnalysisRecord{}, err
	}
	return Digest(results), nil
}

// Search runs a raw query.
func (g *Google) Search(ctx context.Context, query string) ([]Result, error) {
	resp, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(g.results)).Context(ctx).Do()
	if err != nil {
		status := 0
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			status = gerr.Code
		}
		return nil, provider.Classify(g.name, status, fmt.Errorf("customsearch: %w", err))
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Link == "" {
			continue
		}
		results = append(results, Result{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
	}
	if len(results) == 0 {
		return nil, provider.Classify(g.name, http.StatusOK, fmt.Errorf("%w for %q", provider.ErrNoResults, query))
	}
	return results, nil
}
