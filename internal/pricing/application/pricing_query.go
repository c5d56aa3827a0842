package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
	"github.com/wyfcoding/pathpricing/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// PricingQueryService 处理所有定价相关的查询操作（Queries）。
type PricingQueryService struct {
	repo  domain.PricingRunRepository
	cache domain.PricingRunCache
}

// NewPricingQueryService 构造函数。cache 可以为 nil。
func NewPricingQueryService(repo domain.PricingRunRepository, cache domain.PricingRunCache) *PricingQueryService {
	return &PricingQueryService{
		repo:  repo,
		cache: cache,
	}
}

// GetRun 按 ID 查询运行记录
func (q *PricingQueryService) GetRun(ctx context.Context, id string) (*domain.PricingRun, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: run id is required", domain.ErrInvalidContract)
	}
	return q.repo.Get(ctx, id)
}

// GetLatestRun 查询标的最近一次成功运行，先查缓存
func (q *PricingQueryService) GetLatestRun(ctx context.Context, symbol string) (*domain.PricingRun, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidContract)
	}
	if q.cache != nil {
		run, err := q.cache.GetLatest(ctx, symbol)
		if err != nil {
			logger.Warn(ctx, "Pricing run cache unavailable", "symbol", symbol, "error", err)
		} else if run != nil {
			return run, nil
		}
	}

	run, err := q.repo.GetLatest(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if q.cache != nil {
		if err := q.cache.SetLatest(ctx, run); err != nil {
			logger.Warn(ctx, "Failed to cache pricing run", "symbol", symbol, "error", err)
		}
	}
	return run, nil
}

// ListRuns 按时间倒序列出运行记录，symbol 为空时列出全部
func (q *PricingQueryService) ListRuns(ctx context.Context, symbol string, limit int) ([]*domain.PricingRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return q.repo.List(ctx, symbol, limit)
}
