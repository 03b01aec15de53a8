// Package orchestrator decides where an analysis comes from: memory,
// one of several generative or search providers, or a static fallback.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/raphaelgruber/rafeeq/internal/engagement"
	"github.com/raphaelgruber/rafeeq/internal/knowledge"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/raphaelgruber/rafeeq/internal/repair"
)

// DefaultStageTimeout bounds one stage, including the guard's retries.
const DefaultStageTimeout = 2 * time.Minute

// Memory is the per-user knowledge store as seen by the orchestrator.
type Memory interface {
	FindBestMatch(query string, minScore float64) (models.AnalysisRecord, knowledge.Match, bool)
	Append(ctx context.Context, userID, inputText string, rec models.AnalysisRecord, tags []string) bool
	Latest() (models.AnalysisRecord, bool)
}

// Resolver returns the Memory for a user.
type Resolver interface {
	Memory(ctx context.Context, userID string) (Memory, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, userID string) (Memory, error)

// Memory implements Resolver.
func (f ResolverFunc) Memory(ctx context.Context, userID string) (Memory, error) {
	return f(ctx, userID)
}

// Providers are the external backends, in fallback order. Nil entries are skipped.
type Providers struct {
	Primary         provider.Provider
	Secondary       provider.Provider
	Tertiary        provider.Provider
	SearchPrimary   provider.Provider
	SearchSecondary provider.Provider
}

// Request is one analysis request.
type Request struct {
	UserID     string                 `json:"userId" binding:"required"`
	Reflection string                 `json:"reflection" binding:"required"`
	Schedule   models.WeeklySchedule  `json:"schedule"`
	NextDay    string                 `json:"nextDay"`
	GradeLevel string                 `json:"gradeLevel"`
	Lesson     *models.LessonContext  `json:"lesson,omitempty"`
	Profile    models.InterestProfile `json:"-"`
	Stats      models.EngagementStats `json:"-"`
}

// Orchestrator runs the ordered stage list.
type Orchestrator struct {
	resolver     Resolver
	stages       []Stage
	inspirers    []namedInspirer
	strict       float64
	relaxed      float64
	stageTimeout time.Duration
	observers    []Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithThresholds sets the strict (cache) and relaxed (last-resort memory) thresholds.
func WithThresholds(strict, relaxed float64) Option {
	return func(o *Orchestrator) {
		o.strict = strict
		o.relaxed = relaxed
	}
}

// WithStageTimeout bounds each stage. Zero disables the bound.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageTimeout = d }
}

// WithObserver receives every stage event.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// New builds the orchestrator and its stage list.
func New(resolver Resolver, p Providers, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:     resolver,
		strict:       knowledge.StrictThreshold,
		relaxed:      knowledge.RelaxedThreshold,
		stageTimeout: DefaultStageTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.stages = buildStages(o, p)
	for _, gen := range []provider.Provider{p.Primary, p.Secondary, p.Tertiary} {
		if ins, ok := gen.(provider.Inspirer); ok {
			o.inspirers = append(o.inspirers, namedInspirer{name: gen.Name(), Inspirer: ins})
		}
	}
	return o
}

// Stages returns the stage names in execution order.
func (o *Orchestrator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.Name
	}
	return names
}

// Analyze returns the first successful stage's record. It never fails:
// the static stage always produces a valid record.
func (o *Orchestrator) Analyze(ctx context.Context, req Request, observers ...Observer) models.AnalysisRecord {
	in := &Input{
		Request: req,
		Query: provider.Query{
			Reflection:      req.Reflection,
			Schedule:        req.Schedule,
			NextDay:         req.NextDay,
			GradeLevel:      req.GradeLevel,
			Lesson:          req.Lesson,
			InterestContext: engagement.ContextString(req.Profile, req.Stats),
		},
		Memory: o.memory(ctx, req.UserID),
	}
	emit := o.emitter(observers)

	for _, stage := range o.stages {
		rec, err := o.run(ctx, stage, in, emit)
		if err != nil {
			continue
		}
		if stage.Persist && in.Memory != nil {
			in.Memory.Append(ctx, req.UserID, req.Reflection, rec, engagement.Tags(rec))
		}
		return rec
	}

	// Unreachable while the static stage is last; kept so Analyze stays total.
	return Static(req.Reflection)
}

func (o *Orchestrator) run(ctx context.Context, stage Stage, in *Input, emit func(Event)) (models.AnalysisRecord, error) {
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}

	slog.Debug("stage start", "stage", stage.Name, "user", in.Request.UserID)
	emit(Event{Stage: stage.Name, Outcome: OutcomeStarted})

	start := time.Now()
	rec, err := stage.Attempt(ctx, in)
	d := time.Since(start)

	if err != nil {
		outcome := OutcomeFailed
		switch {
		case errors.Is(err, errNoMatch):
			outcome = OutcomeMiss
		case errors.Is(err, provider.ErrCooldown):
			outcome = OutcomeSkipped
		}
		if outcome == OutcomeFailed {
			slog.Warn("stage failed", "stage", stage.Name, "error", err, "duration_ms", d.Milliseconds())
		} else {
			slog.Debug("stage passed over", "stage", stage.Name, "outcome", outcome, "error", err)
		}
		emit(Event{Stage: stage.Name, Outcome: outcome, Err: err.Error(), Duration: d})
		return models.AnalysisRecord{}, err
	}

	if verr := repair.Validate(rec); verr != nil {
		slog.Debug("stage output repaired", "stage", stage.Name, "error", verr)
		rec = repair.Repair(rec)
	}
	emit(Event{Stage: stage.Name, Outcome: OutcomeSucceeded, Source: rec.Source, Duration: d})
	return rec, nil
}

func (o *Orchestrator) memory(ctx context.Context, userID string) Memory {
	if o.resolver == nil {
		return nil
	}
	mem, err := o.resolver.Memory(ctx, userID)
	if err != nil {
		slog.Warn("memory unavailable", "user", userID, "error", err)
		return nil
	}
	return mem
}

func (o *Orchestrator) emitter(extra []Observer) func(Event) {
	all := append(append([]Observer{}, o.observers...), extra...)
	return func(e Event) {
		for _, obs := range all {
			if obs != nil {
				obs.Observe(e)
			}
		}
	}
}
