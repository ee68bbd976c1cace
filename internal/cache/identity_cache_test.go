package cache_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anonto42/migo/backend/internal/cache"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T, ttl time.Duration) (*cache.IdentityCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewIdentityCache(client, ttl), mr
}

func TestIdentityCacheRoundTrip(t *testing.T) {
	t.Parallel()
	c, _ := setupCache(t, time.Minute)
	ctx := t.Context()

	_, ok, err := c.Get(ctx, "AB12")
	require.NoError(t, err)
	assert.False(t, ok)

	user := &models.User{ID: uuid.New(), Handle: "alice", Tag: "AB12"}
	require.NoError(t, c.Set(ctx, user))

	got, ok, err := c.Get(ctx, "ab12")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice", got.Handle)

	require.NoError(t, c.Invalidate(ctx, "AB12"))
	_, ok, err = c.Get(ctx, "AB12")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentityCacheExpires(t *testing.T) {
	t.Parallel()
	c, mr := setupCache(t, time.Minute)
	ctx := t.Context()

	require.NoError(t, c.Set(ctx, &models.User{ID: uuid.New(), Handle: "bob", Tag: "CD34"}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "CD34")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentityCacheReportsCorruptEntries(t *testing.T) {
	t.Parallel()
	c, mr := setupCache(t, time.Minute)

	require.NoError(t, mr.Set("identity:tag:EF56", "{not json"))
	_, _, err := c.Get(t.Context(), "EF56")
	assert.Error(t, err)
}
