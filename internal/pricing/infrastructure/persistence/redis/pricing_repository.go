package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
)

// JSONStore pkg/cache.RedisCache 提供的 JSON 读写
type JSONStore interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error
}

// PricingRunCache 每个标的最近一次运行结果的缓存
type PricingRunCache struct {
	store  JSONStore
	prefix string
	ttl    time.Duration
}

// NewPricingRunCache 创建缓存，ttl <= 0 时使用 15 分钟
func NewPricingRunCache(store JSONStore, ttl time.Duration) *PricingRunCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &PricingRunCache{
		store:  store,
		prefix: "pricing_run:latest:",
		ttl:    ttl,
	}
}

// GetLatest 未命中返回 (nil, nil)
func (c *PricingRunCache) GetLatest(ctx context.Context, symbol string) (*domain.PricingRun, error) {
	if symbol == "" {
		return nil, nil
	}
	var run domain.PricingRun
	hit, err := c.store.GetJSON(ctx, c.key(symbol), &run)
	if err != nil || !hit {
		return nil, err
	}
	return &run, nil
}

// SetLatest 失败的运行不缓存
func (c *PricingRunCache) SetLatest(ctx context.Context, run *domain.PricingRun) error {
	if run == nil || run.Status == domain.RunStatusFailed {
		return nil
	}
	return c.store.SetJSON(ctx, c.key(run.Symbol), run, c.ttl)
}

func (c *PricingRunCache) key(symbol string) string {
	return fmt.Sprintf("%s%s", c.prefix, symbol)
}
