package persistence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/config"
)

const resolutionTTL = 30 * 24 * time.Hour

// ResolutionCache caches resolved-at timestamps in Redis. Resolution times
// of solved/closed tickets are immutable, so cached entries never go stale;
// the TTL only bounds growth. A nil cache is valid and disables caching.
type ResolutionCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewResolutionCache connects to Redis when an address is configured.
// Returns nil when it is not, which callers treat as cache-off.
func NewResolutionCache(cfg config.RedisConfig, logger *zap.Logger) *ResolutionCache {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis, resolution cache degraded", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}
	return &ResolutionCache{client: client, logger: logger}
}

func resolutionKey(ticketID int64) string {
	return "resolution:" + strconv.FormatInt(ticketID, 10)
}

// GetResolvedAt returns a cached resolution timestamp. Misses and Redis
// errors both report not-found so callers fall back to live lookups.
func (c *ResolutionCache) GetResolvedAt(ctx context.Context, ticketID int64) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, resolutionKey(ticketID)).Result()
	if err != nil {
		return "", false
	}
	return val, val != ""
}

// SetResolvedAt stores a resolution timestamp. Failures are logged only.
func (c *ResolutionCache) SetResolvedAt(ctx context.Context, ticketID int64, resolvedAt string) {
	if c == nil || c.client == nil || resolvedAt == "" {
		return
	}
	if err := c.client.Set(ctx, resolutionKey(ticketID), resolvedAt, resolutionTTL).Err(); err != nil {
		c.logger.Warn("resolution cache write failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
	}
}

// Close releases the Redis connection.
func (c *ResolutionCache) Close() {
	if c != nil && c.client != nil {
		_ = c.client.Close()
	}
}
