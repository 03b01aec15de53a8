//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPing(t *testing.T) {
	skipShort(t)
	require.NoError(t, testDB.Ping(context.Background()))
}

func TestPutGetValue(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	key := "knowledge/test-user-" + time.Now().Format("150405.000")

	_, err := testDB.GetValue(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, testDB.PutValue(ctx, key, `{"version":1}`))
	got, err := testDB.GetValue(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, got)

	require.NoError(t, testDB.PutValue(ctx, key, `{"version":2}`))
	got, err = testDB.GetValue(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"version":2}`, got)

	require.NoError(t, testDB.DeleteValue(ctx, key))
	_, err = testDB.GetValue(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListKeys(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	for _, k := range []string{"profile/a", "profile/b", "engagement/a"} {
		require.NoError(t, testDB.PutValue(ctx, k, "{}"))
	}

	keys, err := testDB.ListKeys(ctx, "profile/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"profile/a", "profile/b"}, keys)
}

func TestReconnection(t *testing.T) {
	skipShort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, testDB.Ping(ctx))
	time.Sleep(2 * time.Second)
	require.NoError(t, testDB.Ping(ctx), "connection should be maintained")
}

func TestHealth_AfterRoundTrip(t *testing.T) {
	skipShort(t)
	require.NoError(t, testDB.Ping(context.Background()))
	h := testDB.Health()
	assert.Equal(t, StateUp, h.State)
	assert.Zero(t, h.Failures)
	assert.False(t, h.LastOK.IsZero())
}
