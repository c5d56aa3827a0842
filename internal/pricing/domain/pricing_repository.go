package domain

import "context"

// PricingRunRepository 定价运行仓储接口
type PricingRunRepository interface {
	Save(ctx context.Context, run *PricingRun) error
	// Get 不存在时返回 ErrRunNotFound
	Get(ctx context.Context, id string) (*PricingRun, error)
	GetLatest(ctx context.Context, symbol string) (*PricingRun, error)
	List(ctx context.Context, symbol string, limit int) ([]*PricingRun, error)
	// WithTx 在事务中执行 fn，txCtx 携带事务供同一事务内的仓储与发布者使用
	WithTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// PricingRunCache 最新运行结果缓存，未命中返回 (nil, nil)
type PricingRunCache interface {
	GetLatest(ctx context.Context, symbol string) (*PricingRun, error)
	SetLatest(ctx context.Context, run *PricingRun) error
}

// EventPublisher 领域事件发布者，ctx 中有事务时随事务一起提交
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, event any) error
}

// OutboxRelay 将待发送的 outbox 消息转发到消息队列，返回成功转发的条数
type OutboxRelay interface {
	Relay(ctx context.Context, batchSize int) (int, error)
}
