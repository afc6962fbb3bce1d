// Package notify предоставляет публикацию уведомлений об изменениях репозитория.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akriventsev/storekit/core"
)

// KafkaConfig конфигурация для Kafka издателя
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	Compression   string // none, gzip, snappy, lz4, zstd
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultKafkaConfig возвращает конфигурацию Kafka издателя по умолчанию
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:       []string{"localhost:9092"},
		Topic:         "storekit.changes",
		Compression:   "snappy",
		BatchSize:     100,
		FlushInterval: 10 * time.Millisecond,
	}
}

// Validate проверяет корректность конфигурации
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	return nil
}

// KafkaPublisher публикует уведомления об изменениях через Kafka
type KafkaPublisher struct {
	config  KafkaConfig
	writer  *kafka.Writer
	running bool
}

// NewKafkaPublisher создает новый Kafka издатель
func NewKafkaPublisher(config KafkaConfig) (*KafkaPublisher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{}, // Hash partitioning по entity ID для гарантии порядка
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    config.BatchSize,
		BatchTimeout: config.FlushInterval,
		Compression:  kafkaCompression(config.Compression),
		WriteTimeout: 10 * time.Second,
	}

	return &KafkaPublisher{
		config: config,
		writer: writer,
	}, nil
}

// kafkaCompression преобразует строку в kafka.Compression
func kafkaCompression(compression string) kafka.Compression {
	switch compression {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0) // zero value - без сжатия
	}
}

// Start запускает издатель (реализация core.Lifecycle)
func (k *KafkaPublisher) Start(ctx context.Context) error {
	k.running = true
	return nil
}

// Stop останавливает издатель (реализация core.Lifecycle)
func (k *KafkaPublisher) Stop(ctx context.Context) error {
	k.running = false
	if k.writer != nil {
		return k.writer.Close()
	}
	return nil
}

// IsRunning проверяет, запущен ли издатель (реализация core.Lifecycle)
func (k *KafkaPublisher) IsRunning() bool {
	return k.running
}

// Name возвращает имя компонента (реализация core.Component)
func (k *KafkaPublisher) Name() string {
	return "kafka-change-publisher"
}

// Type возвращает тип компонента (реализация core.Component)
func (k *KafkaPublisher) Type() core.ComponentType {
	return core.ComponentTypePublisher
}

// Publish публикует событие изменения.
// Ключом сообщения служит entity ID, чтобы изменения одной entity
// попадали в одну партицию.
func (k *KafkaPublisher) Publish(ctx context.Context, event ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize change event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.EntityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(event.Operation)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	return nil
}
