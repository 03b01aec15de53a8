package orchestrator

import (
	"time"

	"github.com/raphaelgruber/rafeeq/internal/models"
)

// Outcome is what happened to a stage.
type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeMiss      Outcome = "miss"    // memory had no match
	OutcomeSkipped   Outcome = "skipped" // provider cooling down
)

// Event reports progress through the stage list.
type Event struct {
	Stage    string        `json:"stage"`
	Outcome  Outcome       `json:"outcome"`
	Source   models.Source `json:"source,omitempty"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs,omitempty"`
}

// Observer receives stage events synchronously. Implementations must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }
