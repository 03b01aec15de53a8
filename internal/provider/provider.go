// Package provider defines the adapter contract shared by every external
// analysis backend, together with the failure policy applied around it.
package provider

import (
	"context"

	"github.com/raphaelgruber/rafeeq/internal/models"
)

// Query is everything an adapter may need to build its request.
// Generative adapters use all of it; search adapters use Reflection only.
type Query struct {
	Reflection      string
	Schedule        models.WeeklySchedule
	NextDay         string
	GradeLevel      string
	Lesson          *models.LessonContext
	InterestContext string
}

// Provider is a single external capability that produces an AnalysisRecord.
// Implementations return only repaired records; on failure they return an error.
type Provider interface {
	Name() string
	Call(ctx context.Context, q Query) (models.AnalysisRecord, error)
}

// Inspirer is implemented by generative providers that can produce a standalone quote.
type Inspirer interface {
	Inspire(ctx context.Context, interestContext string) (models.MotivationalMessage, error)
}
