// Package mq 提供 Kafka producer 封装，供 outbox 转发使用
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/pathpricing/pkg/logger"
)

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	MaxRetries   int
	RetryBackoff int // 毫秒
	BatchTimeout int // 毫秒
}

// Writer kafka.Writer 的最小接口
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message 待发送的消息，Value 为已序列化的 JSON
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
	Time    time.Time
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer Writer
	topic  string
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
		BatchTimeout:           time.Duration(cfg.BatchTimeout) * time.Millisecond,
	}

	logger.Info(context.Background(), "Kafka producer created successfully", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewProducerWithWriter(writer, cfg.Topic), nil
}

// NewProducerWithWriter 使用给定 writer 创建生产者
func NewProducerWithWriter(w Writer, topic string) *KafkaProducer {
	return &KafkaProducer{writer: w, topic: topic}
}

// Topic 目标主题
func (kp *KafkaProducer) Topic() string { return kp.topic }

// Send 同步发送一批消息，相同 key 落在同一分区
func (kp *KafkaProducer) Send(ctx context.Context, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	out := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		km := kafka.Message{
			Key:   []byte(m.Key),
			Value: m.Value,
			Time:  m.Time,
		}
		for k, v := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		out = append(out, km)
	}

	if err := kp.writer.WriteMessages(ctx, out...); err != nil {
		logger.Error(ctx, "Failed to send Kafka messages",
			"topic", kp.topic,
			"count", len(out),
			"error", err,
		)
		return err
	}
	logger.Debug(ctx, "Kafka messages sent", "topic", kp.topic, "count", len(out))
	return nil
}

// SendJSON 序列化 value 后发送单条消息
func (kp *KafkaProducer) SendJSON(ctx context.Context, key string, value any, headers map[string]string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return kp.Send(ctx, Message{Key: key, Value: data, Headers: headers, Time: time.Now()})
}

// Close 关闭生产者
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}
