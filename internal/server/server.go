// Package server exposes the journal over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/rafeeq/internal/engagement"
	"github.com/raphaelgruber/rafeeq/internal/metrics"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/orchestrator"
	"github.com/raphaelgruber/rafeeq/internal/service"
	"github.com/raphaelgruber/rafeeq/internal/speech"
)

// Journal is the service surface the handlers use.
type Journal interface {
	Analyze(ctx context.Context, req orchestrator.Request, observers ...orchestrator.Observer) (service.AnalyzeResult, error)
	Feedback(ctx context.Context, req service.FeedbackRequest) (engagement.Result, error)
	Profile(ctx context.Context, userID string) (models.UserProfile, error)
	UpdateSettings(ctx context.Context, userID, gradeLevel string, schedule models.WeeklySchedule) (models.UserProfile, error)
	SearchMemory(ctx context.Context, userID, query string, minScore float64) (service.MemoryHit, bool, error)
	ListMemory(ctx context.Context, userID string) ([]models.KnowledgeEntry, error)
	SyncMemory(ctx context.Context, userID string) error
	ResetMemory(ctx context.Context, userID string) error
	Inspiration(ctx context.Context, userID string) (models.MotivationalMessage, error)
	Providers() service.ProviderStatus
}

// Speech is the optional voice collaborator.
type Speech interface {
	speech.Transcriber
	speech.Synthesizer
}

// Deps are the server's collaborators. Speech, Metrics and Prometheus may be nil.
type Deps struct {
	Journal    Journal
	Speech     Speech
	Metrics    *metrics.Collector
	Prometheus *metrics.Prometheus
	Version    string
}

// Server wraps the gin engine with dependencies and lifecycle management.
type Server struct {
	engine *gin.Engine
	deps   Deps
	logger *slog.Logger
}

// New creates the server and registers its routes.
func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	engine := gin.New()
	engine.Use(RecoveryMiddleware(logger), LoggingMiddleware(logger))

	s := &Server{engine: engine, deps: deps, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", s.handleHealth)
	r.GET("/stats", s.handleStats)
	if s.deps.Prometheus != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Prometheus.Handler()))
	}
	r.GET("/ws/analyze", s.handleAnalyzeWS)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/feedback", s.handleFeedback)
		v1.GET("/providers", s.handleProviders)
		v1.GET("/inspiration/:user", s.handleInspiration)

		profile := v1.Group("/profile/:user")
		{
			profile.GET("", s.handleGetProfile)
			profile.PUT("", s.handleUpdateProfile)
		}

		memory := v1.Group("/memory/:user")
		{
			memory.GET("", s.handleListMemory)
			memory.DELETE("", s.handleResetMemory)
			memory.GET("/search", s.handleSearchMemory)
			memory.POST("/sync", s.handleSyncMemory)
		}

		sp := v1.Group("/speech")
		{
			sp.POST("/transcribe", s.handleTranscribe)
			sp.POST("/synthesize", s.handleSynthesize)
		}
	}
}

// Handler returns the HTTP handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // analyses walk several providers
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
