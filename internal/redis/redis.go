package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vaanigo/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis to centralize configuration. The cache is optional:
// a nil *Client is valid and every method on it is a no-op, so callers never
// need to branch on whether redis is configured.
type Client struct {
	inner *redis.Client
}

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

// NewClient creates the redis client from app config. Returns (nil, nil)
// when no redis host is configured.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil || cfg.Redis.Host == "" {
		return nil, nil
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client}, nil
}

// Set stores a key with TTL.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Set(ctx, key, value, ttl).Err()
}

// Get fetches the key as string.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.inner == nil {
		return "", ErrCacheMiss
	}
	return c.inner.Get(ctx, key).Result()
}

// Del removes provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.inner == nil || len(keys) == 0 {
		return nil
	}
	return c.inner.Del(ctx, keys...).Err()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

const (
	threadTTL = 24 * time.Hour
	uploadTTL = 7 * 24 * time.Hour
)

type threadActivity struct {
	Model  string    `json:"model"`
	SeenAt time.Time `json:"seen_at"`
}

// TouchThread records that a thread id was seen with a given model. Purely
// advisory correlation data; no conversation content is stored.
func (c *Client) TouchThread(ctx context.Context, threadID, model string) {
	if c == nil || c.inner == nil || threadID == "" {
		return
	}
	payload, err := json.Marshal(threadActivity{Model: model, SeenAt: time.Now()})
	if err != nil {
		return
	}
	_ = c.Set(ctx, "thread:"+threadID, payload, threadTTL)
}

// CacheUpload keeps the stored-name to location mapping warm for recently
// uploaded files.
func (c *Client) CacheUpload(ctx context.Context, storedName, location string) {
	if c == nil || c.inner == nil || storedName == "" {
		return
	}
	_ = c.Set(ctx, "upload:"+storedName, location, uploadTTL)
}
