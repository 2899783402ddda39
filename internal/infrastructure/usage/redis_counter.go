package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/llm"
	"NewsBriefing/internal/ports"
)

const keyTTL = 48 * time.Hour

// RedisCounter shares the daily primary-provider call count across instances.
// Keys are per UTC day, so the reset happens implicitly when the date changes.
type RedisCounter struct {
	client *redis.Client
	prefix string
	limit  int
	warnAt int
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.UsageCounter = (*RedisCounter)(nil)

// NewRedisCounter builds a counter on an existing client.
func NewRedisCounter(client *redis.Client, prefix string, limit int, warningRatio float64, logger *slog.Logger) *RedisCounter {
	if limit <= 0 {
		limit = llm.DefaultDailyLimit
	}
	if warningRatio <= 0 || warningRatio > 1 {
		warningRatio = llm.DefaultWarningRatio
	}
	if prefix == "" {
		prefix = "llm_usage"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisCounter{
		client: client,
		prefix: prefix,
		limit:  limit,
		warnAt: llm.WarnThreshold(limit, warningRatio),
		now:    time.Now,
		logger: logger,
	}
}

// ShouldUseProvider reports whether the primary provider is still under its daily limit.
func (c *RedisCounter) ShouldUseProvider(ctx context.Context) bool {
	return c.count(ctx) < c.limit
}

// IsNearLimit reports whether usage crossed the warning threshold.
func (c *RedisCounter) IsNearLimit(ctx context.Context) bool {
	return c.count(ctx) >= c.warnAt
}

// Record counts one successful primary call.
func (c *RedisCounter) Record(ctx context.Context) {
	key := c.key()
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("record llm usage failed", "key", key, "error", err)
	}
}

// Stats returns a snapshot for the current UTC day.
func (c *RedisCounter) Stats(ctx context.Context) domain.UsageStats {
	return llm.BuildStats(c.today(), c.count(ctx), c.limit)
}

func (c *RedisCounter) count(ctx context.Context) int {
	n, err := c.client.Get(ctx, c.key()).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("read llm usage failed", "error", err)
		}
		return 0
	}
	return n
}

func (c *RedisCounter) today() string {
	return c.now().UTC().Format(domain.DigestDateLayout)
}

func (c *RedisCounter) key() string {
	return c.prefix + ":" + c.today()
}
