package cache

import (
	"context"
	"strconv"
	"strings"
)

// Stats is the cache health snapshot served by the admin endpoints.
type Stats struct {
	Keys           int64  `json:"keys"`
	UsedMemory     string `json:"usedMemory,omitempty"`
	KeyspaceHits   int64  `json:"keyspaceHits"`
	KeyspaceMisses int64  `json:"keyspaceMisses"`
}

// GetStats reports key count and, best-effort, memory and hit statistics
// from INFO. Only the key count failing is an error; INFO fields that the
// server does not report stay zero.
func (c *Client) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats

	keys, err := c.rdb.DBSize(ctx).Result()
	if err != nil {
		c.fail("stats", err)
		return stats, err
	}
	c.recover()
	stats.Keys = keys

	if info, err := c.rdb.Info(ctx, "memory").Result(); err == nil {
		stats.UsedMemory = infoField(info, "used_memory_human")
	}
	if info, err := c.rdb.Info(ctx, "stats").Result(); err == nil {
		stats.KeyspaceHits = infoInt(info, "keyspace_hits")
		stats.KeyspaceMisses = infoInt(info, "keyspace_misses")
	}
	return stats, nil
}

// CountPattern counts keys matching a glob pattern via SCAN pages
// without reading or touching them.
func (c *Client) CountPattern(ctx context.Context, pattern string) (int64, error) {
	var cursor uint64
	var count int64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			c.fail("scan", err)
			return count, err
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.recover()
	return count, nil
}

// ClearAll flushes the cache database. Admin-only; job queue streams live
// in the same database, so this is a recovery hammer, not routine
// maintenance - prefer DeletePattern.
func (c *Client) ClearAll(ctx context.Context) error {
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		c.fail("flush", err)
		return err
	}
	c.recover()
	return nil
}

// infoField extracts one "key:value" line from INFO output.
func infoField(info, field string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		if v, ok := strings.CutPrefix(line, field+":"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func infoInt(info, field string) int64 {
	v, err := strconv.ParseInt(infoField(info, field), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
