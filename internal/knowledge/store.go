// Package knowledge implements the per-user memory of past analyses:
// an append-only, capped, most-recent-first log with fuzzy retrieval.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/rafeeq/internal/kv"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/repair"
)

// Defaults for the store's policy knobs.
const (
	DefaultCap                = 100
	DefaultDuplicateThreshold = 0.8
	DefaultDedupWindow        = 24 * time.Hour

	// StrictThreshold treats memory as an authoritative cache hit.
	StrictThreshold = 0.6
	// RelaxedThreshold is used only after every live provider failed.
	RelaxedThreshold = 0.25
)

const (
	saveTimeout   = 5 * time.Second
	mirrorTimeout = 15 * time.Second
)

// Match describes a successful FindBestMatch.
type Match struct {
	EntryID      string    `json:"entryId"`
	Score        float64   `json:"score"`
	InputSummary string    `json:"inputSummary"`
	Timestamp    time.Time `json:"timestamp"`
}

// Store is one user's knowledge log. Safe for concurrent use.
type Store struct {
	userID  string
	local   kv.Store
	remote  kv.Store
	matcher Matcher

	cap          int
	dupThreshold float64
	window       time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	entries  []models.KnowledgeEntry // most recent first
	lastSync time.Time
	seq      uint64 // bumped for every snapshot taken

	localW  orderedWriter
	remoteW orderedWriter
	pending sync.WaitGroup
}

// orderedWriter serializes writes to one backend and drops any snapshot
// older than the last one written.
type orderedWriter struct {
	mu      sync.Mutex
	written uint64
}

func (w *orderedWriter) write(seq uint64, fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seq <= w.written {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	w.written = seq
	return nil
}

// Option configures a Store.
type Option func(*Store)

// WithCap sets the retention cap.
func WithCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cap = n
		}
	}
}

// WithDuplicateThreshold sets the similarity at which an input counts as a repeat.
func WithDuplicateThreshold(f float64) Option {
	return func(s *Store) { s.dupThreshold = f }
}

// WithDedupWindow sets how far back duplicate suppression looks.
func WithDedupWindow(d time.Duration) Option {
	return func(s *Store) { s.window = d }
}

// WithMatcher replaces the similarity function.
func WithMatcher(m Matcher) Option {
	return func(s *Store) { s.matcher = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads userID's store from local. Load failures yield an empty store.
// remote may be nil, which disables mirroring and Sync.
func Open(ctx context.Context, userID string, local, remote kv.Store, opts ...Option) *Store {
	if local == nil {
		local = kv.NewMemory()
	}
	s := &Store{
		userID:       userID,
		local:        local,
		remote:       remote,
		matcher:      Jaccard{},
		cap:          DefaultCap,
		dupThreshold: DefaultDuplicateThreshold,
		window:       DefaultDedupWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := loadSnapshot(ctx, local, kv.KnowledgeKey(userID))
	if err != nil {
		slog.Warn("knowledge store load failed, starting empty", "user", userID, "error", err)
	}
	s.entries = capEntries(sortEntries(snap.Entries), s.cap)
	s.lastSync = snap.LastSync
	return s
}

// UserID returns the owning user.
func (s *Store) UserID() string { return s.userID }

// Append stores a new (input, record) pair unless it repeats a recent entry.
// It reports whether an entry was added. Persistence failures are logged, never returned.
func (s *Store) Append(ctx context.Context, userID, inputText string, rec models.AnalysisRecord, tags []string) bool {
	summary := Summarize(inputText)
	if summary == "" {
		slog.Debug("knowledge append skipped: empty input", "user", s.userID)
		return false
	}
	if userID == "" {
		userID = s.userID
	}
	if err := repair.Validate(rec); err != nil {
		rec = repair.Repair(rec)
	}

	s.mu.Lock()
	if dup, ok := s.duplicateLocked(summary); ok {
		s.mu.Unlock()
		slog.Debug("knowledge append skipped: duplicate", "user", s.userID, "entry", dup)
		return false
	}

	entry := models.KnowledgeEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Timestamp:    s.now().UTC(),
		InputSummary: summary,
		Data:         rec.Clone(),
		Tags:         normalizeTags(tags),
	}
	s.entries = capEntries(append([]models.KnowledgeEntry{entry}, s.entries...), s.cap)
	snap, seq := s.snapshotLocked()
	s.mu.Unlock()

	snap, seq = s.save(ctx, snap, seq)
	s.mirror(ctx, snap, seq)
	return true
}

// duplicateLocked returns the id of a recent entry that input repeats.
func (s *Store) duplicateLocked(summary string) (string, bool) {
	now := s.now()
	for _, e := range s.entries {
		if s.window > 0 && now.Sub(e.Timestamp) > s.window {
			continue
		}
		if e.InputSummary == summary || s.matcher.Score(summary, e.InputSummary) >= s.dupThreshold {
			return e.ID, true
		}
	}
	return "", false
}

// FindBestMatch returns the record of the most similar entry whose score
// strictly exceeds minScore. Ties go to the more recent entry.
// The returned record is a copy tagged as memory with a provenance note.
func (s *Store) FindBestMatch(query string, minScore float64) (models.AnalysisRecord, Match, bool) {
	q := Normalize(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	best := -1
	bestScore := -1.0
	for i, e := range s.entries {
		if score := s.matcher.Score(q, e.InputSummary); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore <= minScore {
		return models.AnalysisRecord{}, Match{}, false
	}

	e := s.entries[best]
	rec := e.Data.Clone()
	rec.Source = models.SourceMemory
	rec.Summary.AnalysisText = provenance(bestScore, e.Timestamp) + "\n\n" + rec.Summary.AnalysisText

	return rec, Match{
		EntryID:      e.ID,
		Score:        bestScore,
		InputSummary: e.InputSummary,
		Timestamp:    e.Timestamp,
	}, true
}

func provenance(score float64, at time.Time) string {
	return fmt.Sprintf("(من الذاكرة: تطابق %d%% مع تحليل سابق بتاريخ %s)",
		int(math.Round(score*100)), at.Format(time.DateOnly))
}

// Latest returns the most recent stored record.
func (s *Store) Latest() (models.AnalysisRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return models.AnalysisRecord{}, false
	}
	return s.entries[0].Data.Clone(), true
}

// Entries returns a copy of all entries, most recent first.
func (s *Store) Entries() []models.KnowledgeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.entries)
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// LastSync returns when the store last merged with the remote mirror.
func (s *Store) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// Reset deletes every entry locally and on the mirror.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	s.entries = nil
	snap, seq := s.snapshotLocked()
	s.mu.Unlock()

	snap, seq = s.save(ctx, snap, seq)
	s.mirror(ctx, snap, seq)
}

// Flush waits for in-flight mirror writes.
func (s *Store) Flush() {
	s.pending.Wait()
}

func (s *Store) snapshotLocked() (models.KnowledgeSnapshot, uint64) {
	s.seq++
	return models.KnowledgeSnapshot{
		Version:  snapshotVersion,
		Entries:  cloneEntries(s.entries),
		LastSync: s.lastSync,
	}, s.seq
}

// save writes snap locally and returns the snapshot that was persisted.
// A storage failure halves the log and retries once. Timeouts and
// cancellation never trim.
func (s *Store) save(ctx context.Context, snap models.KnowledgeSnapshot, seq uint64) (models.KnowledgeSnapshot, uint64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	key := kv.KnowledgeKey(s.userID)
	err := s.localW.write(seq, func() error { return saveSnapshot(ctx, s.local, key, snap) })
	if err == nil {
		return snap, seq
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("knowledge save interrupted", "user", s.userID, "error", err)
		return snap, seq
	}
	slog.Warn("knowledge save failed, trimming and retrying", "user", s.userID, "entries", len(snap.Entries), "error", err)

	keep := max(1, s.cap/2)
	s.mu.Lock()
	s.entries = capEntries(s.entries, keep)
	snap, seq = s.snapshotLocked()
	s.mu.Unlock()

	if err := s.localW.write(seq, func() error { return saveSnapshot(ctx, s.local, key, snap) }); err != nil {
		slog.Error("knowledge save failed after trim", "user", s.userID, "error", err)
	}
	return snap, seq
}

// mirror pushes snap to the remote store in the background. Writes land
// in snapshot order; a stale snapshot never overwrites a newer one.
func (s *Store) mirror(ctx context.Context, snap models.KnowledgeSnapshot, seq uint64) {
	if s.remote == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
		defer cancel()
		if err := s.pushRemote(ctx, snap, seq); err != nil {
			slog.Warn("knowledge mirror failed", "user", s.userID, "error", err)
		}
	}()
}

func (s *Store) pushRemote(ctx context.Context, snap models.KnowledgeSnapshot, seq uint64) error {
	return s.remoteW.write(seq, func() error {
		return saveSnapshot(ctx, s.remote, kv.KnowledgeKey(s.userID), snap)
	})
}

func normalizeTags(tags []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func cloneEntries(in []models.KnowledgeEntry) []models.KnowledgeEntry {
	out := make([]models.KnowledgeEntry, len(in))
	for i, e := range in {
		e.Data = e.Data.Clone()
		e.Tags = append([]string{}, e.Tags...)
		out[i] = e
	}
	return out
}

func capEntries(entries []models.KnowledgeEntry, n int) []models.KnowledgeEntry {
	if len(entries) > n {
		return entries[:n]
	}
	return entries
}
