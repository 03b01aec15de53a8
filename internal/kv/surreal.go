package kv

import (
	"context"
	"errors"

	"github.com/raphaelgruber/rafeeq/internal/db"
)

// ValueClient is the subset of db.Client used by Surreal.
type ValueClient interface {
	GetValue(ctx context.Context, key string) (string, error)
	PutValue(ctx context.Context, key, value string) error
}

// Surreal is a Store backed by the remote SurrealDB mirror.
type Surreal struct {
	client ValueClient
}

// NewSurreal wraps a connected client.
func NewSurreal(client ValueClient) *Surreal {
	return &Surreal{client: client}
}

func (s *Surreal) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.GetValue(ctx, key)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func (s *Surreal) Set(ctx context.Context, key string, value []byte) error {
	return s.client.PutValue(ctx, key, string(value))
}
