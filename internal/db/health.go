package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/surrealdb/surrealdb.go"
)

// State is the mirror connection state.
type State string

const (
	StateConnecting State = "connecting"
	StateUp         State = "up"
	StateDown       State = "down"
	StateClosed     State = "closed"
)

// Health is a point-in-time view of the mirror connection.
type Health struct {
	State     State     `json:"state"`
	Since     time.Time `json:"since"`
	LastOK    time.Time `json:"lastOk,omitzero"`
	LastError string    `json:"lastError,omitempty"`
	Failures  int64     `json:"failures"` // consecutive
}

// Up reports whether the last round trip reached the server.
func (h Health) Up() bool { return h.State == StateUp }

type healthTracker struct {
	mu  sync.Mutex
	h   Health
	now func() time.Time
}

func (t *healthTracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *healthTracker) set(s State, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	if t.h.State != s {
		t.h.State = s
		t.h.Since = now
	}
	if err != nil {
		t.h.LastError = err.Error()
		t.h.Failures++
		return
	}
	if s == StateUp {
		t.h.LastOK = now
		t.h.Failures = 0
	}
}

func (t *healthTracker) snapshot() Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.h
}

// Health returns the current connection state.
func (c *Client) Health() Health {
	return c.health.snapshot()
}

// observe folds a query result into Health. A server-side query error or
// a missing key still proves the server is reachable; caller cancellation
// says nothing about the connection.
func (c *Client) observe(err error) {
	var queryErr *surrealdb.QueryError
	switch {
	case err == nil, errors.Is(err, ErrNotFound), errors.As(err, &queryErr):
		c.health.set(StateUp, nil)
	case errors.Is(err, context.Canceled):
	default:
		if c.health.snapshot().State == StateUp {
			c.log.Warn("mirror unreachable, writes will retry on next sync", "error", err)
		}
		c.health.set(StateDown, err)
	}
}
