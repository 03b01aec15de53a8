package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/rafeeq/internal/kv"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/repair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(text string) models.AnalysisRecord {
	return repair.Repair(map[string]any{
		"summary": map[string]any{"analysisText": text},
	})
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello,   WORLD!! ", "hello world"},
		{"جداً", "جدا"},
		{"أنا إلى آخر", "انا الى اخر"},
		{"مـــذاكرة؟", "مذاكرة"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSummarize_CapsWords(t *testing.T) {
	in := ""
	for i := 0; i < 30; i++ {
		in += fmt.Sprintf("w%d ", i)
	}
	got := Summarize(in)
	assert.Equal(t, "w0", got[:2])
	assert.Len(t, strings.Fields(got), SummaryWords)
}

func TestTokenize(t *testing.T) {
	got := Tokenize("تعبت جداً من المذاكرة اليوم، المذاكرة صعبة")
	assert.Equal(t, []string{"تعبت", "المذاكرة", "اليوم", "صعبة"}, got)
	assert.Empty(t, Tokenize("في من على ؟!"))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name   string
		a, b   string
		expect float64
	}{
		{"identical", "alpha bravo", "alpha bravo", 1},
		{"disjoint", "alpha bravo", "charlie delta", 0},
		{"both empty", "", "", 0},
		{"one empty", "alpha", "", 0},
		{"partial", "alpha bravo charlie delta echo foxtrot golf", "alpha bravo charlie hotel india juliet", 0.3},
		{"arabic paraphrase", "تعبت من المذاكرة", "تعبت جداً من المذاكرة اليوم", 2.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expect, Jaccard{}.Score(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.expect, Jaccard{}.Score(tt.b, tt.a), 1e-9)
		})
	}
}

func TestFindBestMatch_ArabicParaphrase(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, "u1", nil, nil)
	require.True(t, s.Append(ctx, "u1", "تعبت من المذاكرة", record("نص التحليل"), nil))

	rec, m, ok := s.FindBestMatch("تعبت جداً من المذاكرة اليوم", StrictThreshold)
	require.True(t, ok)
	assert.Greater(t, m.Score, StrictThreshold)
	assert.Equal(t, models.SourceMemory, rec.Source)
	assert.Contains(t, rec.Summary.AnalysisText, "من الذاكرة: تطابق 67%")
	assert.Contains(t, rec.Summary.AnalysisText, "نص التحليل")
}

func TestFindBestMatch_Thresholds(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, "u1", nil, nil)
	require.True(t, s.Append(ctx, "u1", "alpha bravo charlie delta echo foxtrot golf", record("stored"), nil))

	query := "alpha bravo charlie hotel india juliet"
	_, _, ok := s.FindBestMatch(query, StrictThreshold)
	assert.False(t, ok)

	_, m, ok := s.FindBestMatch(query, RelaxedThreshold)
	require.True(t, ok)
	assert.InDelta(t, 0.3, m.Score, 1e-9)

	_, _, ok = s.FindBestMatch(query, 0.3)
	assert.False(t, ok, "score must strictly exceed the threshold")
}

func TestFindBestMatch_Empty(t *testing.T) {
	s := Open(context.Background(), "u1", nil, nil)
	_, _, ok := s.FindBestMatch("anything at all", 0)
	assert.False(t, ok)
}

func TestFindBestMatch_TiePrefersMostRecent(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	s := Open(ctx, "u1", nil, nil, WithClock(c.Now), WithDedupWindow(time.Hour))

	require.True(t, s.Append(ctx, "u1", "exam stress physics", record("older"), nil))
	c.Advance(2 * time.Hour)
	require.True(t, s.Append(ctx, "u1", "exam stress chemistry", record("newer"), nil))

	rec, _, ok := s.FindBestMatch("exam stress", 0.25)
	require.True(t, ok)
	assert.Contains(t, rec.Summary.AnalysisText, "newer")
}

func TestFindBestMatch_ScoresWholeQuery(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, "u1", nil, nil)
	require.True(t, s.Append(ctx, "u1", "تمارين التفاضل والتكامل", record("calculus"), nil))

	words := make([]string, 0, SummaryWords+8)
	for i := 0; i < SummaryWords+5; i++ {
		words = append(words, fmt.Sprintf("word%02d", i))
	}
	words = append(words, "تمارين", "التفاضل", "والتكامل")

	rec, m, ok := s.FindBestMatch(strings.Join(words, " "), 0.05)
	require.True(t, ok, "matching words after the summary cut must still count")
	assert.InDelta(t, 3.0/float64(SummaryWords+8), m.Score, 1e-9)
	assert.Contains(t, rec.Summary.AnalysisText, "calculus")
}

func TestFindBestMatch_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, "u1", nil, nil)
	require.True(t, s.Append(ctx, "u1", "physics homework late night", record("original"), nil))

	rec, _, ok := s.FindBestMatch("physics homework late night", StrictThreshold)
	require.True(t, ok)
	rec.TomorrowPlan[0].Task = "mutated"

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.NotEqual(t, "mutated", latest.TomorrowPlan[0].Task)
	assert.NotContains(t, latest.Summary.AnalysisText, "من الذاكرة")
}

func TestAppend_Dedup(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	s := Open(ctx, "u1", nil, nil, WithClock(c.Now))

	assert.True(t, s.Append(ctx, "u1", "studied math all evening", record("a"), nil))
	assert.False(t, s.Append(ctx, "u1", "studied math all evening", record("b"), nil))
	assert.False(t, s.Append(ctx, "u1", "Studied MATH, all evening!", record("c"), nil))
	assert.Equal(t, 1, s.Len())

	c.Advance(DefaultDedupWindow + time.Minute)
	assert.True(t, s.Append(ctx, "u1", "studied math all evening", record("d"), nil))
	assert.Equal(t, 2, s.Len())
}

func TestAppend_SkipsEmptyInput(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, "u1", nil, nil)
	assert.False(t, s.Append(ctx, "u1", "  ؟! ", record("x"), nil))
	assert.Zero(t, s.Len())
}

func TestAppend_RepairsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, "u1", nil, nil)
	require.True(t, s.Append(ctx, "u1", "broken record input", models.AnalysisRecord{}, []string{" Exam ", "exam", ""}))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.NoError(t, repair.Validate(entries[0].Data))
	assert.Equal(t, []string{"exam"}, entries[0].Tags)
	assert.Equal(t, "u1", entries[0].UserID)
	assert.NotEmpty(t, entries[0].ID)
}

func TestAppend_Cap(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	const capN = 10
	s := Open(ctx, "u1", nil, nil, WithCap(capN), WithClock(c.Now))

	for i := 0; i < capN+5; i++ {
		require.True(t, s.Append(ctx, "u1", fmt.Sprintf("topic%03d reflection", i), record("r"), nil))
		c.Advance(time.Minute)
	}

	entries := s.Entries()
	require.Len(t, entries, capN)
	assert.Equal(t, "topic014 reflection", entries[0].InputSummary)
	assert.Equal(t, "topic005 reflection", entries[capN-1].InputSummary)
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].Timestamp.After(entries[i].Timestamp))
	}
}

func TestPersistence_Reload(t *testing.T) {
	ctx := context.Background()
	local := kv.NewMemory()

	s := Open(ctx, "u1", local, nil)
	require.True(t, s.Append(ctx, "u1", "first reflection text", record("one"), nil))

	reopened := Open(ctx, "u1", local, nil)
	assert.Equal(t, 1, reopened.Len())

	other := Open(ctx, "u2", local, nil)
	assert.Zero(t, other.Len())
}

func TestOpen_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	local := kv.NewMemory()
	require.NoError(t, local.Set(ctx, kv.KnowledgeKey("u1"), []byte("{not json")))

	s := Open(ctx, "u1", local, nil)
	assert.Zero(t, s.Len())
	assert.True(t, s.Append(ctx, "u1", "recover after corruption", record("ok"), nil))
}

func TestOpen_SanitizesStoredEntries(t *testing.T) {
	ctx := context.Background()
	local := kv.NewMemory()
	snap := models.KnowledgeSnapshot{Entries: []models.KnowledgeEntry{
		{InputSummary: "older", Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{InputSummary: "", Timestamp: time.Now()},
		{ID: "keep", InputSummary: "newer", Timestamp: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Data: record("n")},
	}}
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, local.Set(ctx, kv.KnowledgeKey("u1"), data))

	entries := Open(ctx, "u1", local, nil).Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "keep", entries[0].ID)
	assert.NotEmpty(t, entries[1].ID)
	assert.NoError(t, repair.Validate(entries[1].Data))
}

// flakyStore fails the first n Set calls.
type flakyStore struct {
	*kv.Memory
	mu    sync.Mutex
	fails int
	sizes []int
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var snap models.KnowledgeSnapshot
	_ = json.Unmarshal(value, &snap)
	f.sizes = append(f.sizes, len(snap.Entries))
	if f.fails > 0 {
		f.fails--
		return errors.New("quota exceeded")
	}
	return f.Memory.Set(ctx, key, value)
}

func TestSave_TrimsOnFailure(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	local := &flakyStore{Memory: kv.NewMemory()}
	s := Open(ctx, "u1", local, nil, WithCap(10), WithClock(c.Now))

	for i := 0; i < 8; i++ {
		require.True(t, s.Append(ctx, "u1", fmt.Sprintf("entry%02d text", i), record("r"), nil))
		c.Advance(time.Minute)
	}

	local.mu.Lock()
	local.fails = 1
	local.sizes = nil
	local.mu.Unlock()

	require.True(t, s.Append(ctx, "u1", "entry08 text", record("r"), nil))
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, []int{9, 5}, local.sizes)

	reopened := Open(ctx, "u1", local.Memory, nil)
	assert.Equal(t, 5, reopened.Len())
	assert.Equal(t, "entry08 text", reopened.Entries()[0].InputSummary)
}

// ctxStore fails Set with the context's error, like a driver honoring ctx.
type ctxStore struct {
	*kv.Memory
	failWith error
}

func (c *ctxStore) Set(ctx context.Context, key string, value []byte) error {
	if c.failWith != nil {
		return fmt.Errorf("set %s: %w", key, c.failWith)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return c.Memory.Set(ctx, key, value)
}

func TestSave_ContextErrorsNeverTrim(t *testing.T) {
	tests := []struct {
		name      string
		failWith  error
		cancel    bool
		persisted int
	}{
		{name: "canceled caller still persists", cancel: true, persisted: 9},
		{name: "storage timeout keeps memory", failWith: context.DeadlineExceeded, persisted: 8},
		{name: "storage canceled keeps memory", failWith: context.Canceled, persisted: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClock()
			local := &ctxStore{Memory: kv.NewMemory()}
			s := Open(context.Background(), "u1", local, nil, WithCap(10), WithClock(c.Now))
			for i := 0; i < 8; i++ {
				require.True(t, s.Append(context.Background(), "u1", fmt.Sprintf("entry%02d text", i), record("r"), nil))
				c.Advance(time.Minute)
			}

			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancel {
				cancel()
			}
			defer cancel()
			local.failWith = tt.failWith

			require.True(t, s.Append(ctx, "u1", "entry08 text", record("r"), nil))
			assert.Equal(t, 9, s.Len())
			assert.Equal(t, tt.persisted, Open(context.Background(), "u1", local.Memory, nil).Len())
		})
	}
}

// slowStore delays early writes longer than later ones.
type slowStore struct {
	*kv.Memory
	mu    sync.Mutex
	calls int
}

func (s *slowStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.calls++
	delay := time.Duration(max(0, 10-s.calls)) * 2 * time.Millisecond
	s.mu.Unlock()
	time.Sleep(delay)
	return s.Memory.Set(ctx, key, value)
}

func TestMirror_KeepsNewestSnapshot(t *testing.T) {
	ctx := context.Background()
	remote := &slowStore{Memory: kv.NewMemory()}
	s := Open(ctx, "u1", nil, remote)

	const n = 12
	for i := 0; i < n; i++ {
		require.True(t, s.Append(ctx, "u1", fmt.Sprintf("mirrored%02d note", i), record("m"), nil))
	}
	s.Flush()

	mirrored := Open(ctx, "u1", remote.Memory, nil)
	assert.Equal(t, n, mirrored.Len())
	assert.Equal(t, "mirrored11 note", mirrored.Entries()[0].InputSummary)

	s.Reset(ctx)
	s.Flush()
	assert.Zero(t, Open(ctx, "u1", remote.Memory, nil).Len())
}

func TestMirrorAndSync(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	remote := kv.NewMemory()

	a := Open(ctx, "u1", kv.NewMemory(), remote, WithClock(c.Now))
	require.True(t, a.Append(ctx, "u1", "device one reflection", record("a"), nil))
	a.Flush()

	c.Advance(time.Minute)
	b := Open(ctx, "u1", kv.NewMemory(), remote, WithClock(c.Now))
	require.True(t, b.Append(ctx, "u1", "device two reflection", record("b"), nil))
	b.Flush()

	// b's mirror write replaced a's; a syncs first and re-publishes the union.
	require.NoError(t, a.Sync(ctx))
	require.NoError(t, b.Sync(ctx))

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, "device two reflection", b.Entries()[0].InputSummary)
	assert.False(t, b.LastSync().IsZero())

	// Syncing again is idempotent.
	require.NoError(t, b.Sync(ctx))
	assert.Equal(t, 2, b.Len())
}

func TestSync_NoRemote(t *testing.T) {
	s := Open(context.Background(), "u1", nil, nil)
	assert.ErrorIs(t, s.Sync(context.Background()), ErrNoRemote)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	local := kv.NewMemory()
	remote := kv.NewMemory()
	s := Open(ctx, "u1", local, remote)
	require.True(t, s.Append(ctx, "u1", "something to forget", record("x"), nil))

	s.Reset(ctx)
	s.Flush()

	assert.Zero(t, s.Len())
	_, ok := s.Latest()
	assert.False(t, ok)
	assert.Zero(t, Open(ctx, "u1", local, nil).Len())
	assert.Zero(t, Open(ctx, "u1", remote, nil).Len())
}

func TestConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, "u1", nil, kv.NewMemory(), WithCap(50))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(ctx, "u1", fmt.Sprintf("parallel%03d input", i), record("p"), nil)
			s.FindBestMatch("parallel input", RelaxedThreshold)
		}(i)
	}
	wg.Wait()
	s.Flush()

	assert.Equal(t, 40, s.Len())
}
