package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stockCachePrefix = "backoffice:stock:product:"

// StockCache holds stock reports, which are allowed to be stale.
type StockCache interface {
	Get(ctx context.Context, productID uuid.UUID) (*StockReport, bool)
	Set(ctx context.Context, report *StockReport)
	Invalidate(ctx context.Context, productIDs ...uuid.UUID)
}

type RedisStockCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisStockCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStockCache {
	return &RedisStockCache{redis: client, ttl: ttl, logger: logger}
}

func (c *RedisStockCache) Get(ctx context.Context, productID uuid.UUID) (*StockReport, bool) {
	raw, err := c.redis.Get(ctx, stockCachePrefix+productID.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("stock cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var report StockReport
	if err := json.Unmarshal(raw, &report); err != nil {
		c.logger.Warn("failed to unmarshal cached stock report", zap.Error(err), zap.String("product_id", productID.String()))
		return nil, false
	}
	return &report, true
}

func (c *RedisStockCache) Set(ctx context.Context, report *StockReport) {
	body, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("failed to marshal stock report for cache", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, stockCachePrefix+report.ProductID.String(), body, c.ttl).Err(); err != nil {
		c.logger.Debug("failed to cache stock report", zap.Error(err), zap.String("product_id", report.ProductID.String()))
	}
}

func (c *RedisStockCache) Invalidate(ctx context.Context, productIDs ...uuid.UUID) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, stockCachePrefix+id.String())
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("failed to invalidate stock cache", zap.Error(err), zap.Strings("keys", keys))
	}
}

type nopCache struct{}

func (nopCache) Get(context.Context, uuid.UUID) (*StockReport, bool) { return nil, false }
func (nopCache) Set(context.Context, *StockReport) {}
func (nopCache) Invalidate(context.Context, ...uuid.UUID) {}
