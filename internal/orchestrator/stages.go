package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
)

// Stage names, in execution order.
const (
	StageCache           = "cache"
	StagePrimary         = "primary"
	StageSecondary       = "secondary"
	StageTertiary        = "tertiary"
	StageSearchPrimary   = "search-primary"
	StageSearchSecondary = "search-secondary"
	StageRelaxedMemory   = "relaxed-memory"
	StageStatic          = "static"
)

var errNoMatch = errors.New("no memory match")

// Input is what every stage sees.
type Input struct {
	Request Request
	Query   provider.Query
	Memory  Memory // nil when the user's store could not be opened
}

// Attempt produces a record or fails.
type Attempt func(ctx context.Context, in *Input) (models.AnalysisRecord, error)

// Stage is one step of the fallback chain. Only Persist stages write to memory.
type Stage struct {
	Name    string
	Attempt Attempt
	Persist bool
}

func buildStages(o *Orchestrator, p Providers) []Stage {
	stages := []Stage{{Name: StageCache, Attempt: memoryAttempt(o.strict)}}

	live := []struct {
		name string
		p    provider.Provider
	}{
		{StagePrimary, p.Primary},
		{StageSecondary, p.Secondary},
		{StageTertiary, p.Tertiary},
		{StageSearchPrimary, p.SearchPrimary},
		{StageSearchSecondary, p.SearchSecondary},
	}
	for _, l := range live {
		if l.p == nil {
			continue
		}
		stages = append(stages, Stage{Name: l.name, Attempt: providerAttempt(l.p), Persist: true})
	}

	return append(stages,
		Stage{Name: StageRelaxedMemory, Attempt: memoryAttempt(o.relaxed)},
		Stage{Name: StageStatic, Attempt: staticAttempt},
	)
}

func memoryAttempt(minScore float64) Attempt {
	return func(_ context.Context, in *Input) (models.AnalysisRecord, error) {
		if in.Memory == nil {
			return models.AnalysisRecord{}, fmt.Errorf("%w: store unavailable", errNoMatch)
		}
		rec, m, ok := in.Memory.FindBestMatch(in.Request.Reflection, minScore)
		if !ok {
			return models.AnalysisRecord{}, errNoMatch
		}
		slog.Info("memory hit", "user", in.Request.UserID, "entry", m.EntryID, "score", m.Score, "min", minScore)
		return rec, nil
	}
}

func providerAttempt(p provider.Provider) Attempt {
	return func(ctx context.Context, in *Input) (models.AnalysisRecord, error) {
		return p.Call(ctx, in.Query)
	}
}

func staticAttempt(_ context.Context, in *Input) (models.AnalysisRecord, error) {
	slog.Warn("all providers failed, serving static analysis", "user", in.Request.UserID)
	return Static(in.Request.Reflection), nil
}
