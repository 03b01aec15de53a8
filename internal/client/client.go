// Package client provides an HTTP and WebSocket client for the rafeeq server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/rafeeq/internal/engagement"
	"github.com/raphaelgruber/rafeeq/internal/knowledge"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/orchestrator"
	"github.com/raphaelgruber/rafeeq/internal/service"
)

// DefaultURL is used when neither an argument nor RAFEEQ_SERVER_URL is set.
const DefaultURL = "http://localhost:8484"

// Client talks to a rafeeq server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL.
// If baseURL is empty, uses RAFEEQ_SERVER_URL or DefaultURL.
// The timeout comes from RAFEEQ_CLIENT_TIMEOUT (default 5m, analyses walk several providers).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("RAFEEQ_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("RAFEEQ_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// do sends body as JSON to path and decodes the response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, data)
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func apiError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	apiErr := &APIError{Status: status, Message: msg}
	if status == http.StatusConflict {
		return fmt.Errorf("%w: %w", knowledge.ErrNoRemote, apiErr)
	}
	return apiErr
}

func userPath(prefix, userID string) string {
	return prefix + "/" + url.PathEscape(userID)
}

// =============================================================================
// REST OPERATIONS
// =============================================================================

// Feedback records an interaction.
func (c *Client) Feedback(ctx context.Context, req service.FeedbackRequest) (engagement.Result, error) {
	var res engagement.Result
	err := c.do(ctx, http.MethodPost, "/api/v1/feedback", req, &res)
	return res, err
}

// Profile returns the user's profile.
func (c *Client) Profile(ctx context.Context, userID string) (models.UserProfile, error) {
	var p models.UserProfile
	err := c.do(ctx, http.MethodGet, userPath("/api/v1/profile", userID), nil, &p)
	return p, err
}

// UpdateSettings changes grade level and schedule. Empty values are kept.
func (c *Client) UpdateSettings(ctx context.Context, userID, gradeLevel string, schedule models.WeeklySchedule) (models.UserProfile, error) {
	body := map[string]any{"gradeLevel": gradeLevel, "schedule": schedule}
	var p models.UserProfile
	err := c.do(ctx, http.MethodPut, userPath("/api/v1/profile", userID), body, &p)
	return p, err
}

// SearchMemory returns the best stored analysis scoring above minScore.
func (c *Client) SearchMemory(ctx context.Context, userID, query string, minScore float64) (service.MemoryHit, bool, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("min", strconv.FormatFloat(minScore, 'f', -1, 64))

	var hit service.MemoryHit
	err := c.do(ctx, http.MethodGet, userPath("/api/v1/memory", userID)+"/search?"+q.Encode(), nil, &hit)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return service.MemoryHit{}, false, nil
	}
	if err != nil {
		return service.MemoryHit{}, false, err
	}
	return hit, true, nil
}

// ListMemory returns the user's entries, most recent first.
func (c *Client) ListMemory(ctx context.Context, userID string) ([]models.KnowledgeEntry, error) {
	var resp struct {
		Entries []models.KnowledgeEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, userPath("/api/v1/memory", userID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// SyncMemory asks the server to merge the user's store with the cloud mirror.
func (c *Client) SyncMemory(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, userPath("/api/v1/memory", userID)+"/sync", nil, nil)
}

// ResetMemory clears the user's knowledge store.
func (c *Client) ResetMemory(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, userPath("/api/v1/memory", userID), nil, nil)
}

// Inspiration returns a motivational quote for the user.
func (c *Client) Inspiration(ctx context.Context, userID string) (models.MotivationalMessage, error) {
	var msg models.MotivationalMessage
	err := c.do(ctx, http.MethodGet, userPath("/api/v1/inspiration", userID), nil, &msg)
	return msg, err
}

// Providers returns the server's stage chain and provider health.
func (c *Client) Providers(ctx context.Context) (service.ProviderStatus, error) {
	var st service.ProviderStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/providers", nil, &st)
	return st, err
}

// Close is a no-op; the client holds no per-user state.
func (c *Client) Close() {}

// =============================================================================
// STREAMING ANALYSIS
// =============================================================================

// wsFrame is one message from /ws/analyze.
type wsFrame struct {
	Type   string                 `json:"type"`
	Event  *orchestrator.Event    `json:"event,omitempty"`
	Result *service.AnalyzeResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// Analyze runs an analysis over the WebSocket endpoint. Stage events are
// passed to observers as they arrive.
func (c *Client) Analyze(ctx context.Context, req orchestrator.Request, observers ...orchestrator.Observer) (service.AnalyzeResult, error) {
	wsURL := c.baseURL
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	u, err := url.Parse(wsURL + "/ws/analyze")
	if err != nil {
		return service.AnalyzeResult{}, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return service.AnalyzeResult{}, fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	if err := conn.WriteJSON(req); err != nil {
		return service.AnalyzeResult{}, fmt.Errorf("send request: %w", err)
	}

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var msg wsFrame
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return service.AnalyzeResult{}, ctx.Err()
			}
			return service.AnalyzeResult{}, fmt.Errorf("read message: %w", err)
		}

		switch msg.Type {
		case "event":
			if msg.Event == nil {
				continue
			}
			for _, o := range observers {
				o.Observe(*msg.Event)
			}
		case "result":
			if msg.Result == nil {
				return service.AnalyzeResult{}, fmt.Errorf("result frame without result")
			}
			return *msg.Result, nil
		case "error":
			return service.AnalyzeResult{}, &APIError{Status: http.StatusBadRequest, Message: msg.Error}
		default:
			// Ignore unknown message types
			continue
		}
	}
}
