package cli

import (
	"context"

	"github.com/raphaelgruber/rafeeq/internal/client"
	"github.com/raphaelgruber/rafeeq/internal/engagement"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/orchestrator"
	"github.com/raphaelgruber/rafeeq/internal/service"
)

// Backend is what the commands run against: the local journal or a
// remote rafeeq-server.
type Backend interface {
	Analyze(ctx context.Context, req orchestrator.Request, observers ...orchestrator.Observer) (service.AnalyzeResult, error)
	Feedback(ctx context.Context, req service.FeedbackRequest) (engagement.Result, error)
	Profile(ctx context.Context, userID string) (models.UserProfile, error)
	UpdateSettings(ctx context.Context, userID, gradeLevel string, schedule models.WeeklySchedule) (models.UserProfile, error)
	SearchMemory(ctx context.Context, userID, query string, minScore float64) (service.MemoryHit, bool, error)
	ListMemory(ctx context.Context, userID string) ([]models.KnowledgeEntry, error)
	SyncMemory(ctx context.Context, userID string) error
	ResetMemory(ctx context.Context, userID string) error
	Inspiration(ctx context.Context, userID string) (models.MotivationalMessage, error)
	Providers(ctx context.Context) (service.ProviderStatus, error)
	Close()
}

var (
	_ Backend = localBackend{}
	_ Backend = (*client.Client)(nil)
)

// localBackend adapts the in-process journal.
type localBackend struct {
	*service.Journal
}

func (l localBackend) Providers(context.Context) (service.ProviderStatus, error) {
	return l.Journal.Providers(), nil
}
