package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/raphaelgruber/rafeeq/internal/engagement"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
)

type namedInspirer struct {
	name string
	provider.Inspirer
}

// InspirationRequest asks for a standalone motivational quote.
type InspirationRequest struct {
	UserID  string
	Profile models.InterestProfile
	Stats   models.EngagementStats
}

// Inspiration returns a quote from the first generative provider that
// produces one, else the user's latest stored quote, else StaticMessage.
func (o *Orchestrator) Inspiration(ctx context.Context, req InspirationRequest) models.MotivationalMessage {
	interest := engagement.ContextString(req.Profile, req.Stats)

	for _, ins := range o.inspirers {
		msg, err := ins.Inspire(ctx, interest)
		if err == nil {
			return msg
		}
		if errors.Is(err, provider.ErrUnsupported) || errors.Is(err, provider.ErrCooldown) {
			slog.Debug("inspiration provider passed over", "provider", ins.name, "error", err)
			continue
		}
		slog.Warn("inspiration provider failed", "provider", ins.name, "error", err)
	}

	if mem := o.memory(ctx, req.UserID); mem != nil {
		if rec, ok := mem.Latest(); ok && rec.MotivationalMessage.Text != "" {
			return rec.MotivationalMessage
		}
	}
	return StaticMessage
}
