package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"media-gallery/internal/logging"
	"media-gallery/internal/metrics"
)

// scanPageSize is the COUNT hint for SCAN-based pattern deletes.
const scanPageSize = 200

// tagSetTTL bounds how long a tag's reverse index can outlive its members.
// Route cache entries expire well inside this window.
const tagSetTTL = 24 * time.Hour

// Client is the shared Redis handle. All methods are safe for concurrent
// use. A zero ceiling disables tag invalidation entirely (callers always
// fall back to pattern deletes).
type Client struct {
	rdb         *redis.Client
	baseCeiling int
	down        atomic.Bool
}

// New parses the Redis URL and constructs the client. The connection is
// lazy; call Ping to verify reachability. Only a malformed URL is an error.
func New(redisURL string, tagCeiling int) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	// Short timeouts: a dead Redis must degrade requests, not hang them.
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	return &Client{
		rdb:         redis.NewClient(opts),
		baseCeiling: tagCeiling,
	}, nil
}

// Handle exposes the underlying client for components that share the
// connection (job queues).
func (c *Client) Handle() *redis.Client {
	return c.rdb
}

// Ping verifies the connection and primes the backend gauge.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.fail("ping", err)
		return err
	}
	c.recover()
	metrics.CacheBackendUp.Set(1)
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Get fetches a raw value. Misses and backend errors both report !ok; the
// caller cannot tell them apart and should not need to.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.recover()
		return nil, false
	}
	if err != nil {
		c.fail("get", err)
		return nil, false
	}
	c.recover()
	return val, true
}

// Set stores a raw value with a TTL. A zero ttl stores without expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.fail("set", err)
		return err
	}
	c.recover()
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.fail("delete", err)
		return err
	}
	c.recover()
	return nil
}

// DeletePattern removes every key matching a glob pattern via SCAN+DEL
// pages and returns the number of keys removed.
func (c *Client) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			c.fail("scan", err)
			return deleted, err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.fail("delete", err)
				return deleted, err
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.recover()
	metrics.CacheInvalidationsTotal.WithLabelValues("pattern").Inc()
	metrics.CacheKeysInvalidated.Add(float64(deleted))
	logging.Debug("Cache pattern delete %q removed %d keys", pattern, deleted)
	return deleted, nil
}

// fail flips the backend gauge and logs the outage once per transition.
// Context cancellation is the caller's lifecycle, not a backend problem.
func (c *Client) fail(op string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if c.down.CompareAndSwap(false, true) {
		logging.Warn("Redis unavailable (%s): %v; continuing without cache", op, err)
		metrics.CacheBackendUp.Set(0)
	}
}

func (c *Client) recover() {
	if c.down.CompareAndSwap(true, false) {
		logging.Info("Redis connection restored")
		metrics.CacheBackendUp.Set(1)
	}
}
