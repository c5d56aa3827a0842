// Package memory 进程内的定价运行仓储，用于 database.driver = "memory" 与接口层测试
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
)

type txKey struct{}

// PricingRunRepository 基于 map 的仓储，事务失败时恢复到事务开始前的快照
type PricingRunRepository struct {
	mu   sync.RWMutex
	runs map[string]*domain.PricingRun
	// 每条记录的写入序号，用于稳定的时间倒序
	order map[string]int64
	next  int64
}

// NewPricingRunRepository 创建内存仓储
func NewPricingRunRepository() *PricingRunRepository {
	return &PricingRunRepository{
		runs:  make(map[string]*domain.PricingRun),
		order: make(map[string]int64),
	}
}

func (r *PricingRunRepository) Save(_ context.Context, run *domain.PricingRun) error {
	if run == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.order[run.ID]; !ok {
		r.next++
		r.order[run.ID] = r.next
	}
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *PricingRunRepository) Get(_ context.Context, id string) (*domain.PricingRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	cp := *run
	return &cp, nil
}

func (r *PricingRunRepository) GetLatest(ctx context.Context, symbol string) (*domain.PricingRun, error) {
	for _, run := range r.sorted(symbol) {
		if run.Status != domain.RunStatusFailed {
			return run, nil
		}
	}
	return nil, fmt.Errorf("%w: no run for %s", domain.ErrRunNotFound, symbol)
}

func (r *PricingRunRepository) List(_ context.Context, symbol string, limit int) ([]*domain.PricingRun, error) {
	runs := r.sorted(symbol)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// WithTx 嵌套调用复用外层事务
func (r *PricingRunRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	r.mu.RLock()
	runs := make(map[string]*domain.PricingRun, len(r.runs))
	for k, v := range r.runs {
		runs[k] = v
	}
	order := make(map[string]int64, len(r.order))
	for k, v := range r.order {
		order[k] = v
	}
	next := r.next
	r.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		r.mu.Lock()
		r.runs, r.order, r.next = runs, order, next
		r.mu.Unlock()
		return err
	}
	return nil
}

// sorted 按写入顺序倒序，symbol 为空时返回全部
func (r *PricingRunRepository) sorted(symbol string) []*domain.PricingRun {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.PricingRun, 0, len(r.runs))
	for _, run := range r.runs {
		if symbol == "" || run.Symbol == symbol {
			cp := *run
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.order[out[i].ID] > r.order[out[j].ID] })
	return out
}
