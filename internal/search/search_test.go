package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/raphaelgruber/rafeeq/internal/repair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reflection = "حسيت بضغط شديد قبل الامتحان ومش عارف أركز"

func TestKeywordQuery(t *testing.T) {
	q := KeywordQuery(reflection)
	assert.True(t, strings.HasSuffix(q, querySuffix))
	assert.Contains(t, q, "الامتحان")
	assert.NotContains(t, q, " مش ")

	long := "كلمة"
	for i := 0; i < 20; i++ {
		long += " موضوع" + strings.Repeat("ا", i+1)
	}
	terms := strings.Fields(strings.TrimSuffix(KeywordQuery(long), querySuffix))
	assert.LessOrEqual(t, len(terms), maxQueryTerms)

	assert.Equal(t, querySuffix, KeywordQuery("!! ؟"))
}

func TestDigest(t *testing.T) {
	rec := Digest([]Result{
		{Title: "Exam anxiety", Link: "https://a.example", Snippet: "Anxiety rises   before exams."},
		{Title: "Breaks", Link: "https://b.example", Snippet: "Short breaks restore focus."},
	})

	require.NoError(t, repair.Validate(rec))
	assert.Equal(t, models.SourceSearch, rec.Source)
	assert.Equal(t, "Anxiety rises before exams.", rec.WebAnalysis.RootCause)
	assert.Equal(t, "Short breaks restore focus.", rec.WebAnalysis.SuggestedRemedy)
	require.Len(t, rec.WebAnalysis.Sources, 2)
	assert.Equal(t, "https://b.example", rec.WebAnalysis.Sources[1].URL)
	assert.Contains(t, rec.Summary.AnalysisText, "Exam anxiety")
	assert.Contains(t, rec.Summary.AnalysisText, "Breaks")
}

func googleServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customsearch/v1", r.URL.Path)
		assert.Equal(t, "cx-1", r.URL.Query().Get("cx"))
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogle(t *testing.T, url string) *Google {
	t.Helper()
	g, err := NewGoogle(context.Background(), GoogleConfig{Name: "search-primary", APIKey: "key-1", CX: "cx-1", Endpoint: url + "/"})
	require.NoError(t, err)
	return g
}

func TestGoogle_Call(t *testing.T) {
	srv := googleServer(t, http.StatusOK, map[string]any{
		"items": []any{
			map[string]any{"title": "Stress", "link": "https://s.example", "snippet": "Sleep well."},
		},
	})

	rec, err := newTestGoogle(t, srv.URL).Call(context.Background(), provider.Query{Reflection: reflection})
	require.NoError(t, err)
	assert.Equal(t, models.SourceSearch, rec.Source)
	require.Len(t, rec.WebAnalysis.Sources, 1)
	assert.Equal(t, "https://s.example", rec.WebAnalysis.Sources[0].URL)
}

func TestGoogle_NoResults(t *testing.T) {
	srv := googleServer(t, http.StatusOK, map[string]any{"items": []any{}})

	_, err := newTestGoogle(t, srv.URL).Call(context.Background(), provider.Query{Reflection: reflection})
	assert.ErrorIs(t, err, provider.ErrNoResults)
	assert.False(t, provider.Retriable(err))
}

func TestGoogle_Forbidden(t *testing.T) {
	srv := googleServer(t, http.StatusForbidden, map[string]any{
		"error": map[string]any{"code": 403, "message": "API key not valid"},
	})

	_, err := newTestGoogle(t, srv.URL).Call(context.Background(), provider.Query{Reflection: reflection})
	require.Error(t, err)
	assert.True(t, provider.IsFatal(err))
	assert.Equal(t, http.StatusForbidden, provider.Status(err))
}

func serplyServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/q="), r.URL.Path)
		assert.Contains(t, r.URL.Path, "&num=5")
		assert.Equal(t, "serply-key", r.Header.Get("X-Api-Key"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSerply(t *testing.T, url string) *Serply {
	t.Helper()
	s, err := NewSerply(SerplyConfig{Name: "search-secondary", APIKey: "serply-key", BaseURL: url})
	require.NoError(t, err)
	return s
}

func TestSerply_Call(t *testing.T) {
	srv := serplyServer(t, http.StatusOK,
		`{"results":[{"title":"Focus","link":"https://f.example","description":"Use a timer."},{"title":"no link"}]}`)

	rec, err := newTestSerply(t, srv.URL).Call(context.Background(), provider.Query{Reflection: reflection})
	require.NoError(t, err)
	require.NoError(t, repair.Validate(rec))
	require.Len(t, rec.WebAnalysis.Sources, 1)
	assert.Equal(t, "Use a timer.", rec.WebAnalysis.Sources[0].Snippet)
}

func TestSerply_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		fatal     bool
		retriable bool
	}{
		{"empty", http.StatusOK, `{"results":[]}`, false, false},
		{"bad json", http.StatusOK, `<html>`, false, false},
		{"unauthorized", http.StatusUnauthorized, `{"message":"bad key"}`, true, false},
		{"server error", http.StatusInternalServerError, `oops`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serplyServer(t, tt.status, tt.body)
			_, err := newTestSerply(t, srv.URL).Call(context.Background(), provider.Query{Reflection: reflection})
			require.Error(t, err)
			assert.Equal(t, tt.fatal, provider.IsFatal(err))
			assert.Equal(t, tt.retriable, provider.Retriable(err))
		})
	}
}
