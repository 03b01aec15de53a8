package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphaelgruber/rafeeq/internal/knowledge"
	"github.com/raphaelgruber/rafeeq/internal/llm"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/raphaelgruber/rafeeq/internal/repair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fake is a provider whose behavior is a function of the call number.
type fake struct {
	name  string
	calls atomic.Int32
	fn    func(n int) (models.AnalysisRecord, error)
}

func (f *fake) Name() string { return f.name }

func (f *fake) Call(ctx context.Context, q provider.Query) (models.AnalysisRecord, error) {
	n := int(f.calls.Add(1))
	return f.fn(n)
}

func record(text string, src models.Source) models.AnalysisRecord {
	rec := repair.Repair(map[string]any{"summary": map[string]any{"analysisText": text}})
	rec.Source = src
	return rec
}

func ok(text string, src models.Source) func(int) (models.AnalysisRecord, error) {
	return func(int) (models.AnalysisRecord, error) {
		return record(text, src), nil
	}
}

func fail(status int) func(int) (models.AnalysisRecord, error) {
	return func(int) (models.AnalysisRecord, error) {
		return models.AnalysisRecord{}, provider.Classify("fake", status, fmt.Errorf("HTTP %d", status))
	}
}

func newFake(name string, fn func(int) (models.AnalysisRecord, error)) *fake {
	return &fake{name: name, fn: fn}
}

type fixture struct {
	health *provider.HealthRegistry
	store  *knowledge.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		health: provider.NewHealthRegistry(time.Minute),
		store:  knowledge.Open(context.Background(), "u1", nil, nil),
	}
}

func (f *fixture) guard(p provider.Provider) provider.Provider {
	return provider.NewGuard(p, f.health,
		provider.WithPolicy(provider.RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond}),
		provider.WithTimeout(time.Second),
	)
}

func (f *fixture) resolver() Resolver {
	return ResolverFunc(func(context.Context, string) (Memory, error) { return f.store, nil })
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Outcome != OutcomeStarted {
			out = append(out, e.Stage+":"+string(e.Outcome))
		}
	}
	return out
}

func request(reflection string) Request {
	return Request{
		UserID:     "u1",
		Reflection: reflection,
		Profile:    models.DefaultInterestProfile(),
		Stats:      models.EngagementStats{Level: 1},
	}
}

func TestStagesOrder(t *testing.T) {
	f := newFixture(t)
	all := New(f.resolver(), Providers{
		Primary:         newFake("p", fail(500)),
		Secondary:       newFake("s", fail(500)),
		Tertiary:        newFake("t", fail(500)),
		SearchPrimary:   newFake("g", fail(500)),
		SearchSecondary: newFake("y", fail(500)),
	})
	assert.Equal(t, []string{
		StageCache, StagePrimary, StageSecondary, StageTertiary,
		StageSearchPrimary, StageSearchSecondary, StageRelaxedMemory, StageStatic,
	}, all.Stages())

	partial := New(f.resolver(), Providers{Tertiary: newFake("t", fail(500))})
	assert.Equal(t, []string{StageCache, StageTertiary, StageRelaxedMemory, StageStatic}, partial.Stages())
}

func TestAnalyze_PrimarySuccessIsPersisted(t *testing.T) {
	f := newFixture(t)
	primary := newFake("primary", ok("from primary", models.SourceAI))
	secondary := newFake("secondary", ok("unused", models.SourceAI))
	o := New(f.resolver(), Providers{Primary: f.guard(primary), Secondary: f.guard(secondary)})

	rec := o.Analyze(context.Background(), request("studied chemistry for three hours"))
	assert.Equal(t, models.SourceAI, rec.Source)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Zero(t, secondary.calls.Load())
	assert.Equal(t, 1, f.store.Len())
}

func TestAnalyze_CacheHitSkipsProviders(t *testing.T) {
	f := newFixture(t)
	primary := newFake("primary", ok("fresh", models.SourceAI))
	o := New(f.resolver(), Providers{Primary: f.guard(primary)})
	ctx := context.Background()

	o.Analyze(ctx, request("تعبت من المذاكرة"))
	require.Equal(t, int32(1), primary.calls.Load())

	rec := o.Analyze(ctx, request("تعبت جداً من المذاكرة اليوم"))
	assert.Equal(t, models.SourceMemory, rec.Source)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, 1, f.store.Len(), "memory results are not persisted again")
}

// Fatal errors are not retried, and trip a cooldown that later calls honor without a network call.
func TestAnalyze_FatalErrorCooldown(t *testing.T) {
	f := newFixture(t)
	primary := newFake("primary", fail(http.StatusTooManyRequests))
	secondary := newFake("secondary", ok("backup", models.SourceAI))
	o := New(f.resolver(), Providers{Primary: f.guard(primary), Secondary: f.guard(secondary)})
	ctx := context.Background()

	rec := o.Analyze(ctx, request("first reflection about algebra"))
	assert.Equal(t, models.SourceAI, rec.Source)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.False(t, f.health.Available("primary"))

	obs := &recorder{}
	o.Analyze(ctx, request("another unrelated note on geography"), obs)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Contains(t, obs.outcomes(), StagePrimary+":"+string(OutcomeSkipped))
	assert.Equal(t, int32(2), secondary.calls.Load())
}

func TestAnalyze_NeverFails(t *testing.T) {
	f := newFixture(t)
	o := New(f.resolver(), Providers{
		Primary:         f.guard(newFake("primary", fail(500))),
		Secondary:       f.guard(newFake("secondary", fail(401))),
		Tertiary:        f.guard(newFake("tertiary", fail(503))),
		SearchPrimary:   f.guard(newFake("google", func(int) (models.AnalysisRecord, error) { return models.AnalysisRecord{}, provider.ErrNoResults })),
		SearchSecondary: f.guard(newFake("serply", func(int) (models.AnalysisRecord, error) { return models.AnalysisRecord{}, errors.New("dial tcp: refused") })),
	})

	obs := &recorder{}
	rec := o.Analyze(context.Background(), request("حاسس إني مخنوق من ضغط المذاكرة"), obs)

	require.NoError(t, repair.Validate(rec))
	assert.Equal(t, models.SourceStatic, rec.Source)
	assert.Equal(t, "high", rec.Summary.StressLevel)
	assert.Equal(t, "mental", rec.Summary.EffortType)
	assert.Contains(t, rec.Summary.AnalysisText, OfflineNote)
	assert.Zero(t, f.store.Len(), "static output is not persisted")
	assert.Equal(t, []string{
		"cache:miss", "primary:failed", "secondary:failed", "tertiary:failed",
		"search-primary:failed", "search-secondary:failed", "relaxed-memory:miss", "static:succeeded",
	}, obs.outcomes())
}

func TestAnalyze_NoProvidersNoStore(t *testing.T) {
	o := New(nil, Providers{})
	rec := o.Analyze(context.Background(), request("anything"))
	assert.Equal(t, models.SourceStatic, rec.Source)
	assert.NoError(t, repair.Validate(rec))
}

func TestAnalyze_ResolverErrorStillAnswers(t *testing.T) {
	primary := newFake("primary", ok("fresh", models.SourceAI))
	o := New(ResolverFunc(func(context.Context, string) (Memory, error) {
		return nil, errors.New("store offline")
	}), Providers{Primary: primary})

	rec := o.Analyze(context.Background(), request("anything at all"))
	assert.Equal(t, models.SourceAI, rec.Source)
}

// The relaxed threshold is consulted only after every live provider failed.
func TestAnalyze_RelaxedMemoryOnlyAfterProviders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Append(ctx, "u1", "alpha bravo charlie delta echo foxtrot golf", record("stored", models.SourceAI), nil)
	query := "alpha bravo charlie hotel india juliet"

	healthy := newFake("primary", ok("fresh", models.SourceAI))
	rec := New(f.resolver(), Providers{Primary: f.guard(healthy)}).Analyze(ctx, request(query))
	assert.Equal(t, models.SourceAI, rec.Source, "0.3 overlap is below the strict threshold")

	f2 := newFixture(t)
	f2.store.Append(ctx, "u1", "alpha bravo charlie delta echo foxtrot golf", record("stored", models.SourceAI), nil)
	broken := newFake("primary", fail(500))
	rec = New(f2.resolver(), Providers{Primary: f2.guard(broken)}).Analyze(ctx, request(query))
	assert.Equal(t, models.SourceMemory, rec.Source)
	assert.Contains(t, rec.Summary.AnalysisText, "stored")
	assert.Equal(t, 1, f2.store.Len())
}

func TestAnalyze_ParentCancellationAdvancesToStatic(t *testing.T) {
	f := newFixture(t)
	slow := &fake{name: "primary"}
	slow.fn = func(int) (models.AnalysisRecord, error) {
		return models.AnalysisRecord{}, context.Canceled
	}
	o := New(f.resolver(), Providers{Primary: f.guard(slow)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := o.Analyze(ctx, request("cancelled before start"))
	assert.Equal(t, models.SourceStatic, rec.Source)
}

func TestAnalyze_InvalidProviderOutputIsRepaired(t *testing.T) {
	f := newFixture(t)
	sloppy := newFake("primary", func(int) (models.AnalysisRecord, error) {
		return models.AnalysisRecord{Source: models.SourceAI, BalanceScore: 250}, nil
	})
	rec := New(f.resolver(), Providers{Primary: sloppy}).Analyze(context.Background(), request("some reflection text"))
	require.NoError(t, repair.Validate(rec))
	assert.LessOrEqual(t, rec.BalanceScore, 100.0)
}

// Primary and secondary fail transiently three times each; the tertiary
// chat-completion provider answers in plain text.
func TestScenario_PlainTextFromTertiary(t *testing.T) {
	f := newFixture(t)

	primary := newFake("gemini-primary", fail(http.StatusServiceUnavailable))
	secondary := newFake("gemini-backup", fail(http.StatusServiceUnavailable))

	var orCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "gen-1",
			"object":  "chat.completion",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": "ركز على استراحات قصيرة"}, "finish_reason": "stop"}},
		})
	}))
	t.Cleanup(srv.Close)
	tertiary, err := llm.NewOpenRouter(llm.OpenRouterConfig{Name: "openrouter", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	o := New(f.resolver(), Providers{
		Primary:   f.guard(primary),
		Secondary: f.guard(secondary),
		Tertiary:  f.guard(tertiary),
	})
	req := request("حسيت بضغط شديد قبل الامتحان ومش عارف أركز")
	req.GradeLevel = "الصف الثالث الثانوي"
	req.Schedule = models.WeeklySchedule{}
	for _, day := range models.DaysOfWeek {
		req.Schedule[day] = []string{"رياضيات", "فيزياء"}
	}
	rec := o.Analyze(context.Background(), req)

	assert.Equal(t, int32(3), primary.calls.Load())
	assert.Equal(t, int32(3), secondary.calls.Load())
	assert.Equal(t, int32(1), orCalls.Load())
	assert.Equal(t, models.SourceAIText, rec.Source)
	assert.Equal(t, "ركز على استراحات قصيرة", rec.Summary.AnalysisText)
	assert.NotEmpty(t, rec.TomorrowPlan)
	require.NoError(t, repair.Validate(rec))
	assert.True(t, f.health.Available("gemini-primary"), "transient errors do not trip the cooldown")
	assert.Equal(t, 1, f.store.Len())
}

// One fatal and one transient failure hand the request to the tertiary
// provider, whose record is persisted once.
func TestAnalyze_CascadeToTertiary(t *testing.T) {
	tests := []struct {
		name             string
		primary          int
		secondary        int
		primaryCalls     int32
		secondaryCalls   int32
		primaryCooling   bool
		secondaryCooling bool
	}{
		{"fatal then transient", http.StatusTooManyRequests, http.StatusServiceUnavailable, 1, 3, true, false},
		{"transient then fatal", http.StatusBadGateway, http.StatusUnauthorized, 3, 1, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			primary := newFake("primary", fail(tt.primary))
			secondary := newFake("secondary", fail(tt.secondary))
			tertiary := newFake("tertiary", ok("من المزود الثالث", models.SourceAI))
			o := New(f.resolver(), Providers{
				Primary:   f.guard(primary),
				Secondary: f.guard(secondary),
				Tertiary:  f.guard(tertiary),
			})

			obs := &recorder{}
			rec := o.Analyze(context.Background(), request("ذاكرت الأحياء وحليت أسئلة الوراثة"), obs)

			assert.Equal(t, models.SourceAI, rec.Source)
			assert.Equal(t, "من المزود الثالث", rec.Summary.AnalysisText)
			assert.Equal(t, tt.primaryCalls, primary.calls.Load())
			assert.Equal(t, tt.secondaryCalls, secondary.calls.Load())
			assert.Equal(t, int32(1), tertiary.calls.Load())
			assert.Equal(t, tt.primaryCooling, !f.health.Available("primary"))
			assert.Equal(t, tt.secondaryCooling, !f.health.Available("secondary"))
			assert.Equal(t, []string{"cache:miss", "primary:failed", "secondary:failed", "tertiary:succeeded"}, obs.outcomes())

			entries := f.store.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, "من المزود الثالث", entries[0].Data.Summary.AnalysisText)
		})
	}
}

type outcome int

const (
	succeed outcome = iota
	fatal
	transient
)

func (o outcome) String() string {
	return [...]string{"ok", "fatal", "transient"}[o]
}

// Every mix of success, fatal and transient failure across the live
// stages yields a valid record from the first stage that succeeded.
func TestAnalyze_AllOutcomeCombinations(t *testing.T) {
	type stage struct {
		name string
		src  models.Source
	}
	stages := []stage{
		{"primary", models.SourceAI},
		{"secondary", models.SourceAI},
		{"tertiary", models.SourceAIText},
		{"google", models.SourceSearch},
		{"serply", models.SourceSearch},
	}

	combos := [][]outcome{{}}
	for range stages {
		var next [][]outcome
		for _, c := range combos {
			for _, o := range []outcome{succeed, fatal, transient} {
				next = append(next, append(append([]outcome{}, c...), o))
			}
		}
		combos = next
	}
	require.Len(t, combos, 243)

	for _, combo := range combos {
		name := fmt.Sprint(combo)
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			fakes := make([]provider.Provider, len(stages))
			want := models.SourceStatic
			for i, st := range stages {
				switch combo[i] {
				case succeed:
					fakes[i] = f.guard(newFake(st.name, ok(st.name, st.src)))
					if want == models.SourceStatic {
						want = st.src
					}
				case fatal:
					fakes[i] = f.guard(newFake(st.name, fail(http.StatusForbidden)))
				case transient:
					fakes[i] = f.guard(newFake(st.name, fail(http.StatusServiceUnavailable)))
				}
			}
			o := New(f.resolver(), Providers{
				Primary:         fakes[0],
				Secondary:       fakes[1],
				Tertiary:        fakes[2],
				SearchPrimary:   fakes[3],
				SearchSecondary: fakes[4],
			})

			rec := o.Analyze(context.Background(), request("راجعت قواعد النحو"))
			require.NoError(t, repair.Validate(rec))
			assert.Equal(t, want, rec.Source)
			if want == models.SourceStatic {
				assert.Zero(t, f.store.Len())
			} else {
				assert.Equal(t, 1, f.store.Len())
			}
		})
	}
}

type inspirerFake struct {
	*fake
	msg      models.MotivationalMessage
	err      error
	inspires atomic.Int32
}

func (i *inspirerFake) Inspire(context.Context, string) (models.MotivationalMessage, error) {
	i.inspires.Add(1)
	return i.msg, i.err
}

func TestInspiration(t *testing.T) {
	ctx := context.Background()
	quote := models.MotivationalMessage{Text: "العلم نور", Source: "حكمة", Category: "wisdom"}

	t.Run("first working provider", func(t *testing.T) {
		f := newFixture(t)
		broken := &inspirerFake{fake: newFake("primary", fail(500)), err: errors.New("boom")}
		good := &inspirerFake{fake: newFake("secondary", fail(500)), msg: quote}
		o := New(f.resolver(), Providers{Primary: broken, Secondary: good})

		assert.Equal(t, quote, o.Inspiration(ctx, InspirationRequest{UserID: "u1"}))
		assert.Equal(t, int32(1), broken.inspires.Load())
	})

	t.Run("latest memory", func(t *testing.T) {
		f := newFixture(t)
		rec := record("x", models.SourceAI)
		rec.MotivationalMessage = quote
		f.store.Append(ctx, "u1", "stored reflection", rec, nil)
		broken := &inspirerFake{fake: newFake("primary", fail(500)), err: errors.New("boom")}

		o := New(f.resolver(), Providers{Primary: broken})
		assert.Equal(t, quote, o.Inspiration(ctx, InspirationRequest{UserID: "u1"}))
	})

	t.Run("static", func(t *testing.T) {
		o := New(nil, Providers{Primary: newFake("plain", fail(500))})
		assert.Equal(t, StaticMessage, o.Inspiration(ctx, InspirationRequest{UserID: "u1"}))
	})

	t.Run("guard without inspire support", func(t *testing.T) {
		f := newFixture(t)
		o := New(nil, Providers{Primary: f.guard(newFake("plain", fail(500)))})
		assert.Equal(t, StaticMessage, o.Inspiration(ctx, InspirationRequest{UserID: "u1"}))
	})
}

func TestStatic(t *testing.T) {
	tests := []struct {
		name       string
		reflection string
		effort     string
		stress     string
	}{
		{"neutral", "يوم عادي", "emotional", "medium"},
		{"sad", "أنا حزين", "emotional", "high"},
		{"busy", "امتحان بكرة", "mental", "medium"},
		{"sad and busy", "تعبان من المذاكرة", "mental", "high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Static(tt.reflection)
			require.NoError(t, repair.Validate(rec))
			assert.Equal(t, tt.effort, rec.Summary.EffortType)
			assert.Equal(t, tt.stress, rec.Summary.StressLevel)
			assert.Equal(t, 55.0, rec.BalanceScore)
			assert.Len(t, rec.TomorrowPlan, 2)
		})
	}
}
