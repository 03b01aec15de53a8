// Package kv provides the get/set persistence used for user state.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal byte-oriented key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key builders for the per-user records.
func KnowledgeKey(userID string) string  { return "knowledge/" + userID }
func EngagementKey(userID string) string { return "engagement/" + userID }
func ProfileKey(userID string) string    { return "profile/" + userID }
