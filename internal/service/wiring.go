package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/rafeeq/internal/config"
	"github.com/raphaelgruber/rafeeq/internal/db"
	"github.com/raphaelgruber/rafeeq/internal/knowledge"
	"github.com/raphaelgruber/rafeeq/internal/kv"
	"github.com/raphaelgruber/rafeeq/internal/llm"
	"github.com/raphaelgruber/rafeeq/internal/orchestrator"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/raphaelgruber/rafeeq/internal/search"
)

// Provider names as reported in health and metrics.
const (
	NameGemini       = "gemini"
	NameGeminiBackup = "gemini-backup"
	NameOpenRouter   = "openrouter"
	NameGoogle       = "google-search"
	NameSerply       = "serply"
)

// Storage holds the opened persistence backends.
type Storage struct {
	Local  kv.Store
	Remote kv.Store // nil without SURREALDB_URL

	sqlite  *kv.SQLite
	surreal *db.Client
}

// Mirror reports the cloud mirror's connection health, or nil when
// running local-only.
func (s *Storage) Mirror() MirrorHealth {
	if s.surreal == nil {
		return nil
	}
	return s.surreal
}

// Close releases both backends.
func (s *Storage) Close(ctx context.Context) {
	if s.surreal != nil {
		if err := s.surreal.Close(ctx); err != nil {
			slog.Warn("close surrealdb", "error", err)
		}
	}
	if s.sqlite != nil {
		if err := s.sqlite.Close(); err != nil {
			slog.Warn("close sqlite", "error", err)
		}
	}
}

// OpenStorage opens the local SQLite store and, when configured, the
// SurrealDB mirror. A mirror that cannot connect is logged and left out.
func OpenStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (*Storage, error) {
	local, err := kv.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	st := &Storage{Local: local, sqlite: local}

	if !cfg.RemoteEnabled() {
		return st, nil
	}
	client, err := db.Connect(ctx, cfg.DB(), log)
	if err != nil {
		slog.Warn("cloud mirror unavailable, continuing local-only", "url", cfg.SurrealDBURL, "error", err)
		return st, nil
	}
	st.surreal = client
	st.Remote = kv.NewSurreal(client)
	return st, nil
}

// BuildProviders creates every adapter that has credentials, each wrapped
// in a Guard sharing health. Adapters that fail to construct are left out.
func BuildProviders(ctx context.Context, cfg config.Config, health *provider.HealthRegistry, rec provider.Recorder) orchestrator.Providers {
	guard := func(p provider.Provider) provider.Provider {
		opts := []provider.GuardOption{
			provider.WithPolicy(provider.RetryPolicy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff}),
			provider.WithTimeout(cfg.ProviderTimeout),
		}
		if rec != nil {
			opts = append(opts, provider.WithRecorder(rec))
		}
		health.Register(p.Name())
		return provider.NewGuard(p, health, opts...)
	}

	var ps orchestrator.Providers
	if cfg.GeminiAPIKey != "" {
		g, err := llm.NewGemini(ctx, llm.GeminiConfig{Name: NameGemini, APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			slog.Warn("primary provider disabled", "provider", NameGemini, "error", err)
		} else {
			ps.Primary = guard(g)
		}
	}
	if cfg.BackupAPIKey != "" || llm.Backend(cfg.BackupBackend) == llm.BackendOllama {
		name := backupName(cfg.BackupBackend)
		b, err := llm.NewBackendBackup(ctx, name, llm.BackendConfig{
			Backend: llm.Backend(cfg.BackupBackend),
			APIKey:  cfg.BackupAPIKey,
			Model:   cfg.BackupModel,
			Host:    cfg.OllamaHost,
		})
		if err != nil {
			slog.Warn("secondary provider disabled", "provider", name, "error", err)
		} else {
			ps.Secondary = guard(b)
		}
	}
	if cfg.OpenRouterAPIKey != "" {
		o, err := llm.NewOpenRouter(llm.OpenRouterConfig{
			Name:    NameOpenRouter,
			APIKey:  cfg.OpenRouterAPIKey,
			Model:   cfg.OpenRouterModel,
			BaseURL: cfg.OpenRouterURL,
		})
		if err != nil {
			slog.Warn("tertiary provider disabled", "provider", NameOpenRouter, "error", err)
		} else {
			ps.Tertiary = guard(o)
		}
	}
	if cfg.GoogleSearchKey != "" && cfg.GoogleSearchCX != "" {
		g, err := search.NewGoogle(ctx, search.GoogleConfig{
			Name:    NameGoogle,
			APIKey:  cfg.GoogleSearchKey,
			CX:      cfg.GoogleSearchCX,
			Results: cfg.SearchResults,
		})
		if err != nil {
			slog.Warn("search provider disabled", "provider", NameGoogle, "error", err)
		} else {
			ps.SearchPrimary = guard(g)
		}
	}
	if cfg.SerplyAPIKey != "" {
		s, err := search.NewSerply(search.SerplyConfig{Name: NameSerply, APIKey: cfg.SerplyAPIKey, Results: cfg.SearchResults})
		if err != nil {
			slog.Warn("search provider disabled", "provider", NameSerply, "error", err)
		} else {
			ps.SearchSecondary = guard(s)
		}
	}
	return ps
}

// backupName is the health-registry name of the secondary provider.
func backupName(backend string) string {
	switch llm.Backend(backend) {
	case llm.BackendGoogleAI, "":
		return NameGeminiBackup
	default:
		return "backup-" + backend
	}
}

// Options maps configuration onto Journal options.
func Options(cfg config.Config) []Option {
	return []Option{
		WithOrchestratorOptions(orchestrator.WithThresholds(cfg.StrictThreshold, cfg.RelaxedThreshold)),
		WithKnowledgeOptions(
			knowledge.WithCap(cfg.MemoryCap),
			knowledge.WithDuplicateThreshold(cfg.DuplicateThreshold),
		),
	}
}
