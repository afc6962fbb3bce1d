// Package notify предоставляет публикацию уведомлений об изменениях репозитория.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/akriventsev/storekit/core"
)

// NATSConfig конфигурация для NATS издателя
type NATSConfig struct {
	Conn          *nats.Conn
	SubjectPrefix string
}

// DefaultNATSConfig возвращает конфигурацию NATS издателя по умолчанию
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		SubjectPrefix: "storekit.changes",
	}
}

// NATSPublisher публикует уведомления об изменениях через NATS
type NATSPublisher struct {
	config  NATSConfig
	conn    *nats.Conn
	running bool
}

// NewNATSPublisher создает новый NATS издатель
func NewNATSPublisher(config NATSConfig) (*NATSPublisher, error) {
	if config.Conn == nil {
		return nil, fmt.Errorf("NATS connection is required")
	}
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "storekit.changes"
	}

	return &NATSPublisher{
		config: config,
		conn:   config.Conn,
	}, nil
}

// Start запускает издатель (реализация core.Lifecycle)
func (n *NATSPublisher) Start(ctx context.Context) error {
	n.running = true
	return nil
}

// Stop останавливает издатель (реализация core.Lifecycle)
func (n *NATSPublisher) Stop(ctx context.Context) error {
	n.running = false
	return nil
}

// IsRunning проверяет, запущен ли издатель (реализация core.Lifecycle)
func (n *NATSPublisher) IsRunning() bool {
	return n.running
}

// Name возвращает имя компонента (реализация core.Component)
func (n *NATSPublisher) Name() string {
	return "nats-change-publisher"
}

// Type возвращает тип компонента (реализация core.Component)
func (n *NATSPublisher) Type() core.ComponentType {
	return core.ComponentTypePublisher
}

// Publish публикует событие изменения.
// Subject формируется по шаблону: {prefix}.{operation}
func (n *NATSPublisher) Publish(ctx context.Context, event ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize change event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", n.config.SubjectPrefix, event.Operation)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	return nil
}
