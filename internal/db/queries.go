package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
)

type kvRow struct {
	Value string `json:"value"`
}

// GetValue returns the value stored under key, or ErrNotFound.
func (c *Client) GetValue(ctx context.Context, key string) (string, error) {
	results, err := surrealdb.Query[[]kvRow](ctx, c.db, `
		SELECT value FROM type::record("kv", $key)
	`, map[string]any{"key": key})
	c.observe(err)
	if err != nil {
		return "", fmt.Errorf("get value: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return "", ErrNotFound
	}
	return (*results)[0].Result[0].Value, nil
}

// PutValue creates or replaces the value stored under key.
func (c *Client) PutValue(ctx context.Context, key, value string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("kv", $key) SET
			value = $value,
			updated = time::now()
	`, map[string]any{"key": key, "value": value})
	c.observe(err)
	if err != nil {
		return fmt.Errorf("put value: %w", wrapQueryError(err))
	}
	return nil
}

// DeleteValue removes key. Deleting a missing key is not an error.
func (c *Client) DeleteValue(ctx context.Context, key string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE type::record("kv", $key)
	`, map[string]any{"key": key})
	c.observe(err)
	if err != nil {
		return fmt.Errorf("delete value: %w", wrapQueryError(err))
	}
	return nil
}

// ListKeys returns all keys starting with prefix.
func (c *Client) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	results, err := surrealdb.Query[[]string](ctx, c.db, `
		SELECT VALUE record::id(id) FROM kv
		WHERE string::starts_with(record::id(id), $prefix)
		ORDER BY id
	`, map[string]any{"prefix": prefix})
	c.observe(err)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []string{}, nil
	}
	return (*results)[0].Result, nil
}
