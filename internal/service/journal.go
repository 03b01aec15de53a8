// Package service wires the orchestrator, per-user knowledge stores,
// the engagement tracker and profile persistence into one journal API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/rafeeq/internal/db"
	"github.com/raphaelgruber/rafeeq/internal/engagement"
	"github.com/raphaelgruber/rafeeq/internal/knowledge"
	"github.com/raphaelgruber/rafeeq/internal/kv"
	"github.com/raphaelgruber/rafeeq/internal/metrics"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/orchestrator"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/raphaelgruber/rafeeq/internal/repair"
)

// DefaultUser is used by single-user front ends such as the CLI.
const DefaultUser = "local"

// ErrUserRequired is returned when a call has no user id.
var ErrUserRequired = errors.New("user id required")

// ErrEmptyReflection is returned by Analyze for a blank reflection.
var ErrEmptyReflection = errors.New("reflection must not be empty")

const summaryRunes = 120

// Deps are the collaborators a Journal is built from.
type Deps struct {
	Local     kv.Store // nil keeps everything in memory
	Remote    kv.Store // nil disables the cloud mirror
	Providers orchestrator.Providers
	Health    *provider.HealthRegistry
	Metrics   *metrics.Collector
	Mirror    MirrorHealth // nil without a cloud mirror
}

// MirrorHealth reports the cloud mirror connection.
type MirrorHealth interface {
	Health() db.Health
}

// Journal serves analyses, memory queries and engagement for many users.
type Journal struct {
	orch      *orchestrator.Orchestrator
	tracker   *engagement.Tracker
	health    *provider.HealthRegistry
	metrics   *metrics.Collector
	mirror    MirrorHealth
	local     kv.Store
	remote    kv.Store
	storeOpts []knowledge.Option
	orchOpts  []orchestrator.Option
	now       func() time.Time

	mu     sync.Mutex
	stores map[string]*knowledge.Store

	userLocks sync.Map // userID -> *sync.Mutex, guards profile read-modify-write
}

// lockUser serializes profile updates for one user and returns the unlock.
func (j *Journal) lockUser(userID string) func() {
	v, _ := j.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Option configures a Journal.
type Option func(*Journal)

// WithKnowledgeOptions applies opts to every per-user knowledge store.
func WithKnowledgeOptions(opts ...knowledge.Option) Option {
	return func(j *Journal) { j.storeOpts = append(j.storeOpts, opts...) }
}

// WithOrchestratorOptions applies opts to the orchestrator.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(j *Journal) { j.orchOpts = append(j.orchOpts, opts...) }
}

// WithClock overrides time.Now for profiles and the tracker.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// NewJournal builds a Journal and its orchestrator.
func NewJournal(deps Deps, opts ...Option) *Journal {
	j := &Journal{
		health:  deps.Health,
		metrics: deps.Metrics,
		mirror:  deps.Mirror,
		local:   deps.Local,
		remote:  deps.Remote,
		now:     time.Now,
		stores:  make(map[string]*knowledge.Store),
	}
	if j.local == nil {
		j.local = kv.NewMemory()
	}
	for _, opt := range opts {
		opt(j)
	}
	j.storeOpts = append(j.storeOpts, knowledge.WithClock(j.now))
	j.tracker = engagement.NewTracker(j.local, engagement.WithClock(j.now))

	orchOpts := j.orchOpts
	if j.metrics != nil {
		orchOpts = append(orchOpts, orchestrator.WithObserver(orchestrator.ObserverFunc(j.recordStage)))
	}
	j.orch = orchestrator.New(j, deps.Providers, orchOpts...)
	return j
}

func (j *Journal) recordStage(e orchestrator.Event) {
	if e.Outcome == orchestrator.OutcomeStarted {
		return
	}
	j.metrics.RecordStage(e.Stage, string(e.Outcome), e.Duration)
}

// Memory implements orchestrator.Resolver.
func (j *Journal) Memory(ctx context.Context, userID string) (orchestrator.Memory, error) {
	return j.store(ctx, userID)
}

// store returns the user's knowledge store, opening it on first use.
func (j *Journal) store(ctx context.Context, userID string) (*knowledge.Store, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if s, ok := j.stores[userID]; ok {
		return s, nil
	}
	s := knowledge.Open(ctx, userID, j.local, j.remote, j.storeOpts...)
	j.stores[userID] = s
	slog.Debug("knowledge store opened", "user", userID, "entries", s.Len())
	return s, nil
}

// Profile returns the stored profile, or a fresh one for a new user.
func (j *Journal) Profile(ctx context.Context, userID string) (models.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return models.UserProfile{}, ErrUserRequired
	}
	data, err := j.local.Get(ctx, kv.ProfileKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return j.newProfile(userID), nil
	}
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("load profile: %w", err)
	}
	var p models.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("corrupt profile replaced", "user", userID, "error", err)
		return j.newProfile(userID), nil
	}
	p.UserID = userID
	if p.Stats.Level < 1 {
		p.Stats.Level = engagement.Level(p.Stats.XP)
	}
	return p, nil
}

// SaveProfile persists p.
func (j *Journal) SaveProfile(ctx context.Context, p models.UserProfile) error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrUserRequired
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := j.local.Set(ctx, kv.ProfileKey(p.UserID), data); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// UpdateSettings stores the grade level and schedule used by later analyses.
func (j *Journal) UpdateSettings(ctx context.Context, userID, gradeLevel string, schedule models.WeeklySchedule) (models.UserProfile, error) {
	defer j.lockUser(userID)()

	p, err := j.Profile(ctx, userID)
	if err != nil {
		return models.UserProfile{}, err
	}
	if gradeLevel != "" {
		p.GradeLevel = gradeLevel
	}
	if schedule != nil {
		p.Schedule = schedule
	}
	return p, j.SaveProfile(ctx, p)
}

func (j *Journal) newProfile(userID string) models.UserProfile {
	return models.UserProfile{
		UserID:    userID,
		Interests: models.DefaultInterestProfile(),
		Stats:     models.DefaultEngagementStats(j.now()),
	}
}

// AnalyzeResult is a record plus the engagement it earned.
type AnalyzeResult struct {
	Record     models.AnalysisRecord `json:"record"`
	Engagement engagement.Result     `json:"engagement"`
}

// Analyze runs the orchestrator for req and records an analysis interaction.
// Profile defaults fill the grade level and schedule when req leaves them empty.
func (j *Journal) Analyze(ctx context.Context, req orchestrator.Request, observers ...orchestrator.Observer) (AnalyzeResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return AnalyzeResult{}, ErrUserRequired
	}
	if strings.TrimSpace(req.Reflection) == "" {
		return AnalyzeResult{}, ErrEmptyReflection
	}

	profile, err := j.Profile(ctx, req.UserID)
	if err != nil {
		slog.Warn("profile unavailable, using defaults", "user", req.UserID, "error", err)
		profile = j.newProfile(req.UserID)
	}
	if req.GradeLevel == "" {
		req.GradeLevel = profile.GradeLevel
	}
	if req.Schedule == nil {
		req.Schedule = profile.Schedule
	}
	req.Profile = profile.Interests
	req.Stats = profile.Stats

	rec := j.orch.Analyze(ctx, req, observers...)

	// The chain runs unlocked; reload so concurrent updates are not lost.
	defer j.lockUser(req.UserID)()
	if fresh, err := j.Profile(ctx, req.UserID); err == nil {
		profile = fresh
	}

	res, err := j.tracker.RecordInteraction(ctx, engagement.Interaction{
		UserID:  req.UserID,
		Type:    models.InteractionAnalysis,
		Summary: repair.Truncate(knowledge.Summarize(req.Reflection), summaryRunes),
		Tags:    engagement.Tags(rec),
	}, profile.Stats, profile.Interests)
	if err != nil {
		// Analysis is a known type; this only fires on a programming error.
		slog.Error("analysis interaction rejected", "user", req.UserID, "error", err)
		return AnalyzeResult{Record: rec}, nil
	}

	profile.Stats = res.Stats
	profile.Interests = res.Profile
	if err := j.SaveProfile(ctx, profile); err != nil {
		slog.Warn("profile save failed", "user", req.UserID, "error", err)
	}
	return AnalyzeResult{Record: rec, Engagement: res}, nil
}

// FeedbackRequest records a non-analysis interaction or a reaction to content.
type FeedbackRequest struct {
	UserID   string                 `json:"userId" binding:"required"`
	Type     models.InteractionType `json:"type" binding:"required"`
	Summary  string                 `json:"summary"`
	Tags     []string               `json:"tags"`
	Feedback models.Feedback        `json:"feedback" binding:"omitempty,oneof=like dislike"`
	Category string                 `json:"category"` // quote framing category, if any
}

// Feedback records req against the user's profile and stats.
func (j *Journal) Feedback(ctx context.Context, req FeedbackRequest) (engagement.Result, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return engagement.Result{}, ErrUserRequired
	}

	defer j.lockUser(req.UserID)()

	profile, err := j.Profile(ctx, req.UserID)
	if err != nil {
		return engagement.Result{}, err
	}
	res, err := j.tracker.RecordInteraction(ctx, engagement.Interaction{
		UserID:   req.UserID,
		Type:     req.Type,
		Summary:  req.Summary,
		Tags:     req.Tags,
		Feedback: req.Feedback,
	}, profile.Stats, profile.Interests)
	if err != nil {
		return engagement.Result{}, err
	}
	if req.Type == models.InteractionQuote && req.Category != "" {
		res.Profile = engagement.UpdateInterestProfile(res.Profile, req.Category, req.Feedback)
	}

	profile.Stats = res.Stats
	profile.Interests = res.Profile
	if err := j.SaveProfile(ctx, profile); err != nil {
		return engagement.Result{}, err
	}
	return res, nil
}

// Interactions returns the user's interaction log.
func (j *Journal) Interactions(ctx context.Context, userID string) (models.InteractionLog, error) {
	if strings.TrimSpace(userID) == "" {
		return models.InteractionLog{}, ErrUserRequired
	}
	return j.tracker.Log(ctx, userID)
}

// MemoryHit is a best match from a user's knowledge store.
type MemoryHit struct {
	Record models.AnalysisRecord `json:"record"`
	Match  knowledge.Match       `json:"match"`
}

// SearchMemory returns the best stored analysis scoring above minScore.
func (j *Journal) SearchMemory(ctx context.Context, userID, query string, minScore float64) (MemoryHit, bool, error) {
	s, err := j.store(ctx, userID)
	if err != nil {
		return MemoryHit{}, false, err
	}
	rec, m, ok := s.FindBestMatch(query, minScore)
	if !ok {
		return MemoryHit{}, false, nil
	}
	return MemoryHit{Record: rec, Match: m}, true, nil
}

// ListMemory returns the user's entries, most recent first.
func (j *Journal) ListMemory(ctx context.Context, userID string) ([]models.KnowledgeEntry, error) {
	s, err := j.store(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Entries(), nil
}

// ResetMemory clears the user's knowledge store.
func (j *Journal) ResetMemory(ctx context.Context, userID string) error {
	s, err := j.store(ctx, userID)
	if err != nil {
		return err
	}
	s.Reset(ctx)
	return nil
}

// SyncMemory merges one user's store with the cloud mirror.
func (j *Journal) SyncMemory(ctx context.Context, userID string) error {
	s, err := j.store(ctx, userID)
	if err != nil {
		return err
	}
	start := time.Now()
	err = s.Sync(ctx)
	if j.metrics != nil {
		j.metrics.RecordTiming(metrics.OpStore, time.Since(start))
	}
	return err
}

// SyncAll syncs every store opened so far. Errors are joined.
func (j *Journal) SyncAll(ctx context.Context) error {
	if j.remote == nil {
		return knowledge.ErrNoRemote
	}
	var errs []error
	for _, userID := range j.users() {
		if err := j.SyncMemory(ctx, userID); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

func (j *Journal) users() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Sorted(maps.Keys(j.stores))
}

// Inspiration returns a motivational quote framed for the user's profile.
func (j *Journal) Inspiration(ctx context.Context, userID string) (models.MotivationalMessage, error) {
	profile, err := j.Profile(ctx, userID)
	if err != nil {
		return models.MotivationalMessage{}, err
	}
	return j.orch.Inspiration(ctx, orchestrator.InspirationRequest{
		UserID:  profile.UserID,
		Profile: profile.Interests,
		Stats:   profile.Stats,
	}), nil
}

// ProviderStatus describes the configured chain and provider health.
type ProviderStatus struct {
	Stages    []string                  `json:"stages"`
	Providers []provider.ProviderStatus `json:"providers"`
	Mirror    *db.Health                `json:"mirror,omitempty"`
}

// Providers returns the stage order and a health snapshot.
func (j *Journal) Providers() ProviderStatus {
	st := ProviderStatus{Stages: j.orch.Stages(), Providers: []provider.ProviderStatus{}}
	if j.mirror != nil {
		h := j.mirror.Health()
		st.Mirror = &h
		if j.metrics != nil {
			j.metrics.RecordMirror(h.Up(), h.Failures)
		}
	}
	if j.health == nil {
		return st
	}
	st.Providers = j.health.Status()
	if j.metrics != nil {
		for _, p := range st.Providers {
			j.metrics.RecordCooldown(p.Name, p.Remaining)
		}
	}
	return st
}

// Close waits for pending mirror writes on every open store.
func (j *Journal) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, s := range j.stores {
		s.Flush()
	}
}
