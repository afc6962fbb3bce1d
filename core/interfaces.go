// Package core предоставляет базовые интерфейсы и систему ошибок библиотеки.
package core

import "context"

// ComponentType тип компонента
type ComponentType string

const (
	// ComponentTypeStore адаптер хранилища
	ComponentTypeStore ComponentType = "store"
	// ComponentTypePublisher издатель уведомлений об изменениях
	ComponentTypePublisher ComponentType = "publisher"
)

// Component базовый интерфейс для всех компонентов библиотеки
type Component interface {
	// Name возвращает имя компонента
	Name() string
	// Type возвращает тип компонента
	Type() ComponentType
}

// Lifecycle интерфейс для управления жизненным циклом компонентов
type Lifecycle interface {
	// Start запускает компонент
	Start(ctx context.Context) error
	// Stop останавливает компонент
	Stop(ctx context.Context) error
	// IsRunning проверяет, запущен ли компонент
	IsRunning() bool
}

// HealthCheckable интерфейс для проверки здоровья компонентов
type HealthCheckable interface {
	// HealthCheck проверяет здоровье компонента
	HealthCheck(ctx context.Context) error
}
