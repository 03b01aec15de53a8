package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/rafeeq/internal/models"
)

// DefaultTimeout bounds a single guarded call, retries included.
const DefaultTimeout = 30 * time.Second

// Recorder receives the outcome of every guarded call.
type Recorder interface {
	RecordProvider(name string, d time.Duration, err error)
}

// Guard wraps a Provider with the shared failure policy: cooldown check,
// per-call timeout, retry of transient errors, and cooldown on fatal errors.
type Guard struct {
	inner    Provider
	health   *HealthRegistry
	policy   RetryPolicy
	timeout  time.Duration
	recorder Recorder
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithPolicy sets the retry policy.
func WithPolicy(p RetryPolicy) GuardOption {
	return func(g *Guard) { g.policy = p }
}

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) { g.timeout = d }
}

// WithRecorder reports call outcomes to r.
func WithRecorder(r Recorder) GuardOption {
	return func(g *Guard) { g.recorder = r }
}

// NewGuard wraps inner. The registry is shared with every other guard.
func NewGuard(inner Provider, health *HealthRegistry, opts ...GuardOption) *Guard {
	g := &Guard{
		inner:   inner,
		health:  health,
		policy:  DefaultRetryPolicy(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	health.Register(inner.Name())
	return g
}

// Name returns the wrapped provider's name.
func (g *Guard) Name() string { return g.inner.Name() }

// Call runs the wrapped provider under the failure policy.
func (g *Guard) Call(ctx context.Context, q Query) (models.AnalysisRecord, error) {
	return guarded(ctx, g, func(ctx context.Context) (models.AnalysisRecord, error) {
		return g.inner.Call(ctx, q)
	})
}

// Inspire runs the wrapped provider's Inspire under the failure policy.
func (g *Guard) Inspire(ctx context.Context, interestContext string) (models.MotivationalMessage, error) {
	ins, ok := g.inner.(Inspirer)
	if !ok {
		return models.MotivationalMessage{}, fmt.Errorf("%s: %w", g.Name(), ErrUnsupported)
	}
	return guarded(ctx, g, func(ctx context.Context) (models.MotivationalMessage, error) {
		return ins.Inspire(ctx, interestContext)
	})
}

func guarded[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	name := g.inner.Name()

	if !g.health.Available(name) {
		return zero, fmt.Errorf("%s: %w (%s left)", name, ErrCooldown, g.health.Remaining(name).Round(time.Second))
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := WithRetry(ctx, g.policy, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		return v, Classify(name, Status(err), err)
	})
	if g.recorder != nil {
		g.recorder.RecordProvider(name, time.Since(start), err)
	}
	if err != nil {
		if IsFatal(err) {
			g.health.Trip(name)
			slog.Warn("provider entering cooldown", "provider", name, "error", err)
		}
		return zero, err
	}
	return v, nil
}
