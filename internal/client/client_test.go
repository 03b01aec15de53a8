package client

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/rafeeq/internal/knowledge"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/orchestrator"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/raphaelgruber/rafeeq/internal/repair"
	"github.com/raphaelgruber/rafeeq/internal/server"
	"github.com/raphaelgruber/rafeeq/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProvider struct{}

func (stubProvider) Name() string { return "gemini" }

func (stubProvider) Call(_ context.Context, q provider.Query) (models.AnalysisRecord, error) {
	rec := repair.Repair(map[string]any{"summary": map[string]any{"analysisText": "تحليل " + q.Reflection}})
	rec.Source = models.SourceAI
	return rec, nil
}

// newTestClient starts a real server over an in-memory journal.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	journal := service.NewJournal(service.Deps{
		Providers: orchestrator.Providers{Primary: stubProvider{}},
		Health:    provider.NewHealthRegistry(time.Minute),
	})
	t.Cleanup(journal.Close)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	srv := server.New(server.Deps{Journal: journal, Version: "test"}, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL + "/")
}

type recorder struct {
	mu     sync.Mutex
	events []orchestrator.Event
}

func (r *recorder) Observe(e orchestrator.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("RAFEEQ_SERVER_URL", "")
	t.Setenv("RAFEEQ_CLIENT_TIMEOUT", "")
	c := New("")
	assert.Equal(t, DefaultURL, c.baseURL)
	assert.Equal(t, 5*time.Minute, c.httpClient.Timeout)

	t.Setenv("RAFEEQ_SERVER_URL", "http://rafeeq.local:9000/")
	t.Setenv("RAFEEQ_CLIENT_TIMEOUT", "30s")
	c = New("")
	assert.Equal(t, "http://rafeeq.local:9000", c.baseURL)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
}

func TestClient_AnalyzeStreamsEvents(t *testing.T) {
	c := newTestClient(t)
	rec := &recorder{}

	res, err := c.Analyze(context.Background(), orchestrator.Request{
		UserID:     "u1",
		Reflection: "ذاكرت الكيمياء العضوية",
	}, rec)
	require.NoError(t, err)
	assert.Equal(t, models.SourceAI, res.Record.Source)
	assert.Equal(t, 10, res.Engagement.Points)

	require.NotEmpty(t, rec.events)
	assert.Equal(t, "cache", rec.events[0].Stage)
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, "primary", last.Stage)
	assert.Equal(t, orchestrator.OutcomeSucceeded, last.Outcome)
}

func TestClient_AnalyzeValidationError(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Analyze(context.Background(), orchestrator.Request{UserID: "u1"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.NotEmpty(t, apiErr.Message)
}

func TestClient_MemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, ok, err := c.SearchMemory(ctx, "u1", "التفاضل", 0.3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Analyze(ctx, orchestrator.Request{UserID: "u1", Reflection: "حليت تمارين التفاضل والتكامل"})
	require.NoError(t, err)

	hit, ok, err := c.SearchMemory(ctx, "u1", "تمارين التفاضل والتكامل", 0.3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.SourceMemory, hit.Record.Source)

	entries, err := c.ListMemory(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	err = c.SyncMemory(ctx, "u1")
	assert.ErrorIs(t, err, knowledge.ErrNoRemote)

	require.NoError(t, c.ResetMemory(ctx, "u1"))
	entries, err = c.ListMemory(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClient_ProfileFeedbackInspiration(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	p, err := c.UpdateSettings(ctx, "u1", "الثاني الثانوي", models.WeeklySchedule{"السبت": {"فيزياء"}})
	require.NoError(t, err)
	assert.Equal(t, "الثاني الثانوي", p.GradeLevel)

	p, err = c.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"فيزياء"}, p.Schedule["السبت"])

	res, err := c.Feedback(ctx, service.FeedbackRequest{UserID: "u1", Type: models.InteractionFocusSession, Summary: "25 دقيقة"})
	require.NoError(t, err)
	assert.Equal(t, 15, res.Points)

	_, err = c.Feedback(ctx, service.FeedbackRequest{UserID: "u1", Type: "nap"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	msg, err := c.Inspiration(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StaticMessage, msg)

	st, err := c.Providers(ctx)
	require.NoError(t, err)
	assert.Contains(t, st.Stages, "primary")
}

func TestAPIError(t *testing.T) {
	err := apiError(http.StatusConflict, []byte(`{"error":"no mirror"}`))
	assert.True(t, errors.Is(err, knowledge.ErrNoRemote))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "no mirror", apiErr.Message)

	err = apiError(http.StatusBadGateway, []byte("upstream down"))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Contains(t, err.Error(), "502")
}
