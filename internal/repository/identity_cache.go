package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/workforce-auth/internal/domain"
)

const identityKeyPrefix = "identity:"

// IdentityCache stores identity snapshots in Redis under identity:<subject>.
// Concurrent writers race on SET; the last one wins.
type IdentityCache struct {
	client     redis.Cmdable
	defaultTTL time.Duration
}

// NewIdentityCache builds a cache with the given default ttl.
func NewIdentityCache(client redis.Cmdable, defaultTTL time.Duration) *IdentityCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &IdentityCache{client: client, defaultTTL: defaultTTL}
}

// Get returns the cached snapshot for subjectID. found is false on a miss.
// A payload that no longer decodes is dropped and reported as a miss.
func (c *IdentityCache) Get(ctx context.Context, subjectID string) (*domain.IdentitySnapshot, bool, error) {
	key := identityKey(subjectID)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var snapshot domain.IdentitySnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return nil, false, nil
	}
	return &snapshot, true, nil
}

// Put stores snapshot for ttl, or the default ttl when ttl is not positive.
func (c *IdentityCache) Put(ctx context.Context, subjectID string, snapshot *domain.IdentitySnapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, identityKey(subjectID), payload, ttl).Err()
}

// Invalidate removes the entry for subjectID.
func (c *IdentityCache) Invalidate(ctx context.Context, subjectID string) error {
	return c.client.Del(ctx, identityKey(subjectID)).Err()
}

func identityKey(subjectID string) string {
	return identityKeyPrefix + subjectID
}
