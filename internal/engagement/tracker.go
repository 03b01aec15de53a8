package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/rafeeq/internal/kv"
	"github.com/raphaelgruber/rafeeq/internal/models"
)

const (
	// MaxInteractions caps the persisted interaction log.
	MaxInteractions = 1000
	// MaxFavoriteTopics caps the learned favorite topics.
	MaxFavoriteTopics = 20

	logVersion = 1
)

// ErrUnknownType is returned for an interaction type with no reward rule.
var ErrUnknownType = errors.New("unknown interaction type")

// Interaction is one user event to record.
type Interaction struct {
	UserID   string
	Type     models.InteractionType
	Summary  string
	Tags     []string
	Feedback models.Feedback
}

// Result is the outcome of RecordInteraction.
type Result struct {
	Stats     models.EngagementStats `json:"stats"`
	Profile   models.InterestProfile `json:"profile"`
	Points    int                    `json:"points"`
	LeveledUp bool                   `json:"leveledUp"`
}

// Tracker records interactions and maintains per-user interaction logs.
type Tracker struct {
	store kv.Store
	now   func() time.Time

	mu sync.Mutex // serializes log read-modify-write
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker persisting to store. A nil store keeps logs in memory.
func NewTracker(store kv.Store, opts ...TrackerOption) *Tracker {
	if store == nil {
		store = kv.NewMemory()
	}
	t := &Tracker{store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordInteraction awards points for in, updates the streak and interest
// weights, and appends to the user's interaction log. Log persistence
// failures are logged and do not fail the call.
func (t *Tracker) RecordInteraction(ctx context.Context, in Interaction, stats models.EngagementStats, profile models.InterestProfile) (Result, error) {
	if _, ok := Points[in.Type]; !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	switch in.Feedback {
	case models.FeedbackNone, models.FeedbackLike, models.FeedbackDislike:
	default:
		return Result{}, fmt.Errorf("invalid feedback %q", in.Feedback)
	}

	now := t.now()
	tags := cleanTags(in.Tags)
	points := PointsFor(in.Type, in.Feedback)

	prevLevel := max(stats.Level, 1)
	if in.Type == models.InteractionAnalysis {
		var bonus int
		stats, bonus = advanceStreak(stats, now)
		points += bonus
		stats.TotalEntries++
	}
	stats.XP += points
	stats.Level = Level(stats.XP)

	profile = AdjustWeights(profile, tags, in.Feedback)

	entry := models.InteractionEntry{
		ID:             uuid.NewString(),
		Timestamp:      now.UTC(),
		Type:           in.Type,
		ContentSummary: in.Summary,
		Tags:           tags,
		Feedback:       in.Feedback,
		PointsAwarded:  points,
	}
	if err := t.appendLog(ctx, in.UserID, entry); err != nil {
		slog.Warn("interaction log save failed", "user", in.UserID, "type", in.Type, "error", err)
	}

	slog.Debug("interaction recorded", "user", in.UserID, "type", in.Type, "points", points, "xp", stats.XP, "level", stats.Level)
	return Result{
		Stats:     stats,
		Profile:   profile,
		Points:    points,
		LeveledUp: stats.Level > prevLevel,
	}, nil
}

// Log returns the user's interaction log. A missing log is empty.
func (t *Tracker) Log(ctx context.Context, userID string) (models.InteractionLog, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx, userID)
}

func (t *Tracker) appendLog(ctx context.Context, userID string, entry models.InteractionEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	log, err := t.load(ctx, userID)
	if err != nil {
		slog.Warn("interaction log unreadable, starting fresh", "user", userID, "error", err)
		log = emptyLog()
	}

	log.Interactions = append([]models.InteractionEntry{entry}, log.Interactions...)
	if len(log.Interactions) > MaxInteractions {
		log.Interactions = log.Interactions[:MaxInteractions]
	}
	if entry.Feedback == models.FeedbackLike {
		log.Patterns.FavoriteTopics = mergeTopics(log.Patterns.FavoriteTopics, entry.Tags)
	}
	log.LastUpdated = entry.Timestamp

	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode interaction log: %w", err)
	}
	return t.store.Set(ctx, kv.EngagementKey(userID), data)
}

func (t *Tracker) load(ctx context.Context, userID string) (models.InteractionLog, error) {
	data, err := t.store.Get(ctx, kv.EngagementKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return emptyLog(), nil
	}
	if err != nil {
		return emptyLog(), fmt.Errorf("get interaction log: %w", err)
	}
	var log models.InteractionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return emptyLog(), fmt.Errorf("decode interaction log: %w", err)
	}
	if log.Patterns.FavoriteTopics == nil {
		log.Patterns.FavoriteTopics = []string{}
	}
	if log.Patterns.RecurringIssues == nil {
		log.Patterns.RecurringIssues = []string{}
	}
	return log, nil
}

func emptyLog() models.InteractionLog {
	return models.InteractionLog{
		Version:      logVersion,
		Interactions: []models.InteractionEntry{},
		Patterns: models.LearnedPatterns{
			FavoriteTopics:  []string{},
			RecurringIssues: []string{},
		},
	}
}

// mergeTopics appends tags, keeps the first occurrence of each, and retains the last MaxFavoriteTopics.
func mergeTopics(topics, tags []string) []string {
	all := append(slices.Clone(topics), tags...)
	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, t := range all {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	if len(out) > MaxFavoriteTopics {
		out = out[len(out)-MaxFavoriteTopics:]
	}
	return out
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
