package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"audio/webm;codecs=opus", "recap.webm"},
		{"audio/mpeg", "recap.mp3"},
		{"audio/wav", "recap.wav"},
		{"AUDIO/OGG", "recap.ogg"},
		{"audio/x-m4a", "recap.m4a"},
		{"", "recap.webm"},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, fileName(tt.mime))
		})
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/audio/transcriptions":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "whisper-1", r.FormValue("model"))
			assert.Equal(t, "ar", r.FormValue("language"))
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, "recap.ogg", hdr.Filename)
			data, _ := io.ReadAll(f)
			assert.Equal(t, []byte("AUDIO"), data)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"text": "  ذاكرت الفيزياء اليوم  "})
		case "/audio/speech":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "tts-1", body["model"])
			assert.Equal(t, "mp3", body["response_format"])
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3-mp3-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Transcribe(t *testing.T) {
	srv := newTestServer(t)
	s, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := s.Transcribe(context.Background(), []byte("AUDIO"), "audio/ogg")
	require.NoError(t, err)
	assert.Equal(t, "ذاكرت الفيزياء اليوم", text)

	_, err = s.Transcribe(context.Background(), nil, "audio/ogg")
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestOpenAI_Synthesize(t *testing.T) {
	srv := newTestServer(t)
	s, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	audio, err := s.Synthesize(context.Background(), "أحسنت")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-mp3-bytes"), audio)

	_, err = s.Synthesize(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestOpenAI_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	s, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = s.Synthesize(context.Background(), "hello")
	assert.Error(t, err)
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	assert.Error(t, err)
}
