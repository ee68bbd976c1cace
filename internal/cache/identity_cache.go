// Package cache holds Redis-backed read caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	identityKeyPrefix  = "identity:tag:"
	DefaultIdentityTTL = 10 * time.Minute
)

// IdentityCache caches identities by tag. Tags never change, so the key is
// stable; handle changes must call Invalidate.
type IdentityCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewIdentityCache(client redis.UniversalClient, ttl time.Duration) *IdentityCache {
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	return &IdentityCache{client: client, ttl: ttl}
}

func identityKey(tag string) string {
	return identityKeyPrefix + strings.ToUpper(tag)
}

// Get returns the cached identity for tag. A miss is (nil, false, nil).
func (c *IdentityCache) Get(ctx context.Context, tag string) (*models.User, bool, error) {
	data, err := c.client.Get(ctx, identityKey(tag)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read identity cache: %w", err)
	}
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached identity: %w", err)
	}
	return &user, true, nil
}

func (c *IdentityCache) Set(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := c.client.Set(ctx, identityKey(user.Tag), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write identity cache: %w", err)
	}
	return nil
}

func (c *IdentityCache) Invalidate(ctx context.Context, tag string) error {
	if err := c.client.Del(ctx, identityKey(tag)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate identity cache: %w", err)
	}
	return nil
}
