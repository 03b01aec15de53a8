// Package main provides the HTTP and WebSocket server for rafeeq.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/rafeeq/internal/config"
	"github.com/raphaelgruber/rafeeq/internal/metrics"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/raphaelgruber/rafeeq/internal/server"
	"github.com/raphaelgruber/rafeeq/internal/service"
	"github.com/raphaelgruber/rafeeq/internal/speech"
	"golang.org/x/sync/errgroup"
)

var version = "0.1.0"

func main() {
	configFile := flag.String("config", "", "YAML config file (overrides environment)")
	flag.Parse()

	cfg := config.Load()
	if *configFile != "" {
		if err := cfg.ApplyFile(*configFile); err != nil {
			slog.Error("failed to load config file", "path", *configFile, "error", err)
			os.Exit(1)
		}
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	slog.SetDefault(logger)
	defer func() {
		if err := closeLog(); err != nil {
			slog.Error("failed to close log file", "error", err)
		}
	}()

	if err := run(cfg, logger); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting rafeeq-server", "port", cfg.ServerPort, "version", version)

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	storage, err := service.OpenStorage(openCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer storage.Close(context.Background())

	prom := metrics.NewPrometheus()
	collector := metrics.NewCollector(prom)
	health := provider.NewHealthRegistry(cfg.Cooldown)

	journal := service.NewJournal(service.Deps{
		Local:     storage.Local,
		Remote:    storage.Remote,
		Providers: service.BuildProviders(ctx, cfg, health, collector),
		Health:    health,
		Metrics:   collector,
		Mirror:    storage.Mirror(),
	}, service.Options(cfg)...)
	defer journal.Close()

	deps := server.Deps{
		Journal:    journal,
		Metrics:    collector,
		Prometheus: prom,
		Version:    version,
	}
	if cfg.OpenAIAPIKey != "" {
		sp, err := speech.NewOpenAI(speech.OpenAIConfig{APIKey: cfg.OpenAIAPIKey})
		if err != nil {
			return err
		}
		deps.Speech = sp
	} else {
		slog.Info("speech endpoints disabled", "reason", "RAFEEQ_OPENAI_API_KEY not set")
	}

	srv := server.New(deps, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gCtx, ":"+cfg.ServerPort)
	})
	g.Go(func() error {
		journal.SyncLoop(gCtx, cfg.SyncInterval)
		return nil
	})
	return g.Wait()
}
