package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wyfcoding/pathpricing/pkg/db"
	"github.com/wyfcoding/pathpricing/pkg/logger"
	"github.com/wyfcoding/pathpricing/pkg/mq"
)

const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
)

// OutboxMessage 消息队列
type OutboxMessage struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	EventID      string    `gorm:"type:varchar(36);uniqueIndex"`
	EventType    string    `gorm:"type:varchar(100);index"`
	AggregateKey string    `gorm:"type:varchar(64)"`
	Payload      string    `gorm:"type:text"`
	Status       string    `gorm:"type:varchar(20);index:idx_status_created,priority:1;default:'pending'"`
	Attempts     int       `gorm:"default:0"`
	LastError    string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"index:idx_status_created,priority:2"`
	UpdatedAt    time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "pricing_outbox_messages"
}

// AutoMigrate 创建或更新 outbox 表
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&OutboxMessage{})
}

// NewOutboxMessage 序列化事件并生成 outbox 记录
func NewOutboxMessage(eventType, key string, event any) (*OutboxMessage, error) {
	eventData, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	now := time.Now()
	return &OutboxMessage{
		ID:           uuid.New().String(),
		EventID:      uuid.New().String(),
		EventType:    eventType,
		AggregateKey: key,
		Payload:      string(eventData),
		Status:       OutboxStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// OutboxEventPublisher 实现 EventPublisher 接口，使用 Outbox 模式
// ctx 中带有事务时与业务数据一起提交。
type OutboxEventPublisher struct {
	db *gorm.DB
}

// NewOutboxEventPublisher 创建新的 OutboxEventPublisher 实例
func NewOutboxEventPublisher(gdb *gorm.DB) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: gdb}
}

// Publish 写入一条待发送的 outbox 记录
func (p *OutboxEventPublisher) Publish(ctx context.Context, eventType, key string, event any) error {
	message, err := NewOutboxMessage(eventType, key, event)
	if err != nil {
		return err
	}
	return db.Conn(ctx, p.db).Create(message).Error
}

// CleanupProcessedMessages 清理已处理的消息
func (p *OutboxEventPublisher) CleanupProcessedMessages(ctx context.Context, before time.Time) (int64, error) {
	res := p.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", OutboxStatusSent, before).
		Delete(&OutboxMessage{})
	return res.RowsAffected, res.Error
}

// OutboxStore outbox 表的读取与状态更新
type OutboxStore interface {
	Pending(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkSent(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, ids []string, cause error) error
}

// Producer 消息发送方，由 mq.KafkaProducer 实现
type Producer interface {
	Send(ctx context.Context, messages ...mq.Message) error
}

// OutboxRelay 按创建顺序将待发送消息批量转发到 Kafka
type OutboxRelay struct {
	store    OutboxStore
	producer Producer
}

// NewOutboxRelay 创建转发器
func NewOutboxRelay(store OutboxStore, producer Producer) *OutboxRelay {
	return &OutboxRelay{store: store, producer: producer}
}

// Relay 转发一批消息，整批成功后标记为已发送
func (r *OutboxRelay) Relay(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	pending, err := r.store.Pending(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load outbox messages: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]string, len(pending))
	messages := make([]mq.Message, len(pending))
	for i, m := range pending {
		ids[i] = m.ID
		messages[i] = mq.Message{
			Key:   m.AggregateKey,
			Value: []byte(m.Payload),
			Headers: map[string]string{
				"event_type": m.EventType,
				"event_id":   m.EventID,
			},
			Time: m.CreatedAt,
		}
	}

	if err := r.producer.Send(ctx, messages...); err != nil {
		if markErr := r.store.MarkFailed(ctx, ids, err); markErr != nil {
			logger.Error(ctx, "Failed to record outbox failure", "error", markErr)
		}
		return 0, fmt.Errorf("failed to relay %d outbox messages: %w", len(pending), err)
	}
	if err := r.store.MarkSent(ctx, ids); err != nil {
		// 已发送但未标记的消息会被再次发送，下游按 event_id 去重
		return len(pending), fmt.Errorf("failed to mark outbox messages sent: %w", err)
	}
	logger.Debug(ctx, "Outbox messages relayed", "count", len(pending))
	return len(pending), nil
}

// GormOutboxStore 基于 GORM 的 OutboxStore
type GormOutboxStore struct {
	db *gorm.DB
}

// NewGormOutboxStore 创建 GORM outbox 存储
func NewGormOutboxStore(gdb *gorm.DB) *GormOutboxStore {
	return &GormOutboxStore{db: gdb}
}

func (s *GormOutboxStore) Pending(ctx context.Context, limit int) ([]OutboxMessage, error) {
	var messages []OutboxMessage
	err := s.db.WithContext(ctx).
		Where("status = ?", OutboxStatusPending).
		Order("created_at asc").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (s *GormOutboxStore) MarkSent(ctx context.Context, ids []string) error {
	return s.db.WithContext(ctx).
		Model(&OutboxMessage{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"status": OutboxStatusSent, "updated_at": time.Now()}).Error
}

func (s *GormOutboxStore) MarkFailed(ctx context.Context, ids []string, cause error) error {
	return s.db.WithContext(ctx).
		Model(&OutboxMessage{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause.Error(),
			"updated_at": time.Now(),
		}).Error
}
