package diagnostics_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/autotagger/internal/config"
	"github.com/jonesrussell/north-cloud/autotagger/internal/diagnostics"
)

func newStore(t *testing.T, ttl time.Duration) (*diagnostics.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return diagnostics.NewStore(client, ttl), mr
}

func TestStore_ResponseAndErrorSlots(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.RecordResponse(ctx, "c1", []byte(`{"keywords":[]}`)))
	require.NoError(t, store.RecordError(ctx, "c1", "transport", "dial tcp: timeout"))

	snap, err := store.Snapshot(ctx, "c1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"keywords":[]}`, string(snap.Response))
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "transport", snap.LastError.Kind)
	assert.Equal(t, "dial tcp: timeout", snap.LastError.Message)
	assert.False(t, snap.LastError.At.IsZero())
}

func TestStore_ResponseIsOverwritten(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.RecordResponse(ctx, "c1", []byte(`{"n":1}`)))
	require.NoError(t, store.RecordResponse(ctx, "c1", []byte(`{"n":2}`)))

	snap, err := store.Snapshot(ctx, "c1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(snap.Response))
	assert.Nil(t, snap.LastError)
}

func TestStore_EmptySnapshot(t *testing.T) {
	store, _ := newStore(t, time.Hour)

	snap, err := store.Snapshot(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, "unknown", snap.ContentID)
	assert.Nil(t, snap.Response)
	assert.Nil(t, snap.LastError)
}

func TestStore_EntriesExpire(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.RecordResponse(ctx, "c1", []byte(`{}`)))
	require.NoError(t, store.RecordError(ctx, "c1", "provider", "quota"))

	mr.FastForward(2 * time.Minute)

	snap, err := store.Snapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, snap.Response)
	assert.Nil(t, snap.LastError)
}

func TestStore_NonJSONResponseIsQuoted(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.RecordResponse(ctx, "c1", []byte("not json")))

	snap, err := store.Snapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, `"not json"`, string(snap.Response))
}

func TestStore_ClearError(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.RecordResponse(ctx, "c1", []byte(`{}`)))
	require.NoError(t, store.RecordError(ctx, "c1", "transport", "timeout"))
	require.NoError(t, store.ClearError(ctx, "c1"))

	assert.False(t, mr.Exists("autotagger:diag:c1:error"))
	assert.True(t, mr.Exists("autotagger:diag:c1:response"))

	snap, err := store.Snapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, snap.LastError)
	assert.JSONEq(t, `{}`, string(snap.Response))

	require.NoError(t, store.ClearError(ctx, "missing"))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := diagnostics.NewClient(config.RedisConfig{URL: mr.Addr()})
	require.NoError(t, err)
	_ = client.Close()

	_, err = diagnostics.NewClient(config.RedisConfig{})
	require.ErrorIs(t, err, diagnostics.ErrEmptyAddress)
}
