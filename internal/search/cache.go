package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores complete responses keyed by request.
type Cache interface {
	Get(ctx context.Context, req Request, now time.Time) (*Response, bool, error)
	Set(ctx context.Context, req Request, resp *Response, now time.Time) error
}

type cachedResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Response  Response  `json:"response"`
}

// RedisCache keeps responses in Redis with an explicit expiry stamp. The
// stamp is compared against the caller's clock so expired entries are never
// served even if Redis has not evicted them yet.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "search:v1"}
}

// Key is the stable cache key for a request.
func (c *RedisCache) Key(req Request) string {
	data, _ := json.Marshal(req.normalized())
	sum := sha256.Sum256(data)
	return c.prefix + ":resp:" + hex.EncodeToString(sum[:16])
}

func (c *RedisCache) hitsKey(key string) string {
	return key + ":hits"
}

func (c *RedisCache) Get(ctx context.Context, req Request, now time.Time) (*Response, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	key := c.Key(req)
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("search: cache get: %w", err)
	}
	var entry cachedResponse
	if err := json.Unmarshal(raw, &entry); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return nil, false, nil
	}
	if !now.Before(entry.ExpiresAt) {
		_ = c.client.Del(ctx, key).Err()
		return nil, false, nil
	}
	if err := c.client.Incr(ctx, c.hitsKey(key)).Err(); err != nil {
		return nil, false, fmt.Errorf("search: cache hit counter: %w", err)
	}
	resp := entry.Response
	return &resp, true, nil
}

func (c *RedisCache) Set(ctx context.Context, req Request, resp *Response, now time.Time) error {
	if c == nil || c.client == nil || resp == nil {
		return nil
	}
	entry := cachedResponse{ExpiresAt: now.Add(c.ttl), Response: *resp}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("search: cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(req), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("search: cache set: %w", err)
	}
	return nil
}

// Hits returns how many times the request's cached response was served.
func (c *RedisCache) Hits(ctx context.Context, req Request) (int64, error) {
	n, err := c.client.Get(ctx, c.hitsKey(c.Key(req))).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
