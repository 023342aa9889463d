package unread

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Store is the database fallback for when Redis is unavailable.
type Store interface {
	CountUnread(ctx context.Context, conversationID, recipientID string) (int64, error)
	CountUnreadTotal(ctx context.Context, recipientID string) (int64, error)
}

// Counter keeps per-conversation unread counts in a Redis hash per user
// (field = conversation id). Counts are a cache over the messages table, so
// every operation degrades to a COUNT query when Redis is down.
type Counter struct {
	rdb    *redis.Client
	store  Store
	logger *slog.Logger
	prefix string
}

func NewCounter(rdb *redis.Client, store Store, logger *slog.Logger) *Counter {
	return &Counter{rdb: rdb, store: store, logger: logger, prefix: "unread"}
}

func (c *Counter) key(userID string) string {
	return c.prefix + ":" + userID
}

// Incr bumps the recipient's unread count for a conversation. Failures are
// logged and swallowed; the database stays the source of truth.
func (c *Counter) Incr(ctx context.Context, recipientID, conversationID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.HIncrBy(ctx, c.key(recipientID), conversationID, 1).Err(); err != nil {
		c.logger.Warn("unread counter incr failed", "err", err, "user_id", recipientID)
	}
}

func (c *Counter) Reset(ctx context.Context, recipientID, conversationID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.HDel(ctx, c.key(recipientID), conversationID).Err(); err != nil {
		c.logger.Warn("unread counter reset failed", "err", err, "user_id", recipientID)
	}
}

func (c *Counter) Clear(ctx context.Context, recipientID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.key(recipientID)).Err(); err != nil {
		c.logger.Warn("unread counter clear failed", "err", err, "user_id", recipientID)
	}
}

func (c *Counter) Conversation(ctx context.Context, recipientID, conversationID string) (int64, error) {
	if c.rdb != nil {
		val, err := c.rdb.HGet(ctx, c.key(recipientID), conversationID).Result()
		if err == nil {
			return parseCount(val), nil
		}
		if err == redis.Nil {
			return 0, nil
		}
		c.logger.Warn("unread counter read failed, falling back to db", "err", err)
	}
	return c.store.CountUnread(ctx, conversationID, recipientID)
}

func (c *Counter) Total(ctx context.Context, recipientID string) (int64, error) {
	if c.rdb != nil {
		fields, err := c.rdb.HGetAll(ctx, c.key(recipientID)).Result()
		if err == nil {
			var total int64
			for _, v := range fields {
				total += parseCount(v)
			}
			return total, nil
		}
		c.logger.Warn("unread counter read failed, falling back to db", "err", err)
	}
	return c.store.CountUnreadTotal(ctx, recipientID)
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
