package notification

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimezone = "America/Los_Angeles"
	counterTTL      = 48 * time.Hour
)

// CaptureCounter records a capture and returns how many the user made on
// that calendar day in their time zone, this one included.
type CaptureCounter interface {
	Increment(ctx context.Context, userID, timezone string) (int, error)
}

func dayStart(now time.Time, timezone string) time.Time {
	loc, err := time.LoadLocation(timezone)
	if timezone == "" || err != nil {
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// RedisCounter keeps one INCR key per user and day.
type RedisCounter struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewRedisCounter(rdb redis.Cmdable, now func() time.Time) *RedisCounter {
	if now == nil {
		now = time.Now
	}
	return &RedisCounter{rdb: rdb, now: now}
}

func CounterKey(userID string, day time.Time) string {
	return fmt.Sprintf("captures:%s:%s", userID, day.Format("2006-01-02"))
}

func (c *RedisCounter) Increment(ctx context.Context, userID, timezone string) (int, error) {
	key := CounterKey(userID, dayStart(c.now(), timezone))

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return int(incr.Val()), nil
}

// CountFunc counts the events a user created at or after since.
type CountFunc func(ctx context.Context, userID string, since time.Time) (int64, error)

// DBCounter derives the count from the events table. The event being
// notified about is already committed, so it is part of the count.
type DBCounter struct {
	count CountFunc
	now   func() time.Time
}

func NewDBCounter(count CountFunc, now func() time.Time) *DBCounter {
	if now == nil {
		now = time.Now
	}
	return &DBCounter{count: count, now: now}
}

func (c *DBCounter) Increment(ctx context.Context, userID, timezone string) (int, error) {
	n, err := c.count(ctx, userID, dayStart(c.now(), timezone))
	if err != nil {
		return 0, fmt.Errorf("count captures: %w", err)
	}
	return int(n), nil
}

// FallbackCounter uses Primary and falls back to Secondary when it fails.
type FallbackCounter struct {
	Primary   CaptureCounter
	Secondary CaptureCounter
}

func (c FallbackCounter) Increment(ctx context.Context, userID, timezone string) (int, error) {
	if c.Primary != nil {
		n, err := c.Primary.Increment(ctx, userID, timezone)
		if err == nil {
			return n, nil
		}
		logrus.WithField("user_id", userID).WithError(err).Warn("capture counter unavailable, counting from database")
	}
	return c.Secondary.Increment(ctx, userID, timezone)
}
