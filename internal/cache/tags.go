package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"media-gallery/internal/logging"
	"media-gallery/internal/metrics"
)

// AddTagsToKey registers a cached key under each tag's reverse index so a
// later InvalidateTags reaches it. One pipelined round trip.
func (c *Client) AddTagsToKey(ctx context.Context, key string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, tag := range tags {
		pipe.SAdd(ctx, TagKey(tag), key)
		pipe.Expire(ctx, TagKey(tag), tagSetTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.fail("tag", err)
		return err
	}
	c.recover()
	return nil
}

// InvalidateTags deletes every key registered under the given tags, plus
// the tag sets themselves. Membership is read in one pipelined pass and
// deleted in a second, so a concurrent writer can at worst re-cache a
// fresh response. Returns the number of cached keys removed.
func (c *Client) InvalidateTags(ctx context.Context, tags []string) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}

	read := c.rdb.Pipeline()
	members := make([]*redis.StringSliceCmd, len(tags))
	for i, tag := range tags {
		members[i] = read.SMembers(ctx, TagKey(tag))
	}
	if _, err := read.Exec(ctx); err != nil {
		c.fail("invalidate", err)
		return 0, err
	}

	seen := make(map[string]struct{})
	keys := make([]string, 0, len(tags))
	for _, cmd := range members {
		for _, key := range cmd.Val() {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	del := c.rdb.Pipeline()
	if len(keys) > 0 {
		del.Del(ctx, keys...)
	}
	for _, tag := range tags {
		del.Del(ctx, TagKey(tag))
	}
	if _, err := del.Exec(ctx); err != nil {
		c.fail("invalidate", err)
		return 0, err
	}

	c.recover()
	metrics.CacheInvalidationsTotal.WithLabelValues("tags").Inc()
	metrics.CacheKeysInvalidated.Add(float64(len(keys)))
	logging.Debug("Invalidated %d tags, %d cached keys", len(tags), len(keys))
	return len(keys), nil
}

// TagCeiling returns the most tags a change batch of the given size may
// invalidate precisely. Each change legitimately contributes its item tag
// plus roughly one album tag, so the ceiling scales at twice the batch
// size with the configured base as a floor. Unions beyond it indicate the
// batch touches a large share of the route cache and a coarse pattern
// delete is cheaper.
func (c *Client) TagCeiling(changeCount int) int {
	ceiling := c.baseCeiling
	if scaled := changeCount * 2; scaled > ceiling {
		ceiling = scaled
	}
	return ceiling
}
