// Package metrics предоставляет систему метрик на основе OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"github.com/akriventsev/storekit/repository"
)

// namer опциональный интерфейс для получения имени компонента
type namer interface {
	Name() string
}

// InstrumentedStore декоратор Store, записывающий метрики вокруг
// каждой операции хранилища
type InstrumentedStore[T repository.Entity] struct {
	inner   repository.Store[T]
	metrics *Metrics
	store   string
}

// NewInstrumentedStore оборачивает store в сборщик метрик
func NewInstrumentedStore[T repository.Entity](inner repository.Store[T], metrics *Metrics) *InstrumentedStore[T] {
	name := "store"
	if n, ok := inner.(namer); ok {
		name = n.Name()
	}

	return &InstrumentedStore[T]{
		inner:   inner,
		metrics: metrics,
		store:   name,
	}
}

// Insert вставляет entity, записывая метрики
func (s *InstrumentedStore[T]) Insert(ctx context.Context, entity T) error {
	start := time.Now()
	err := s.inner.Insert(ctx, entity)
	s.metrics.RecordOperation(ctx, s.store, "insert", time.Since(start), err)
	return err
}

// Update заменяет entity, записывая метрики
func (s *InstrumentedStore[T]) Update(ctx context.Context, entity T) error {
	start := time.Now()
	err := s.inner.Update(ctx, entity)
	s.metrics.RecordOperation(ctx, s.store, "update", time.Since(start), err)
	return err
}

// FindByID возвращает entity по ID, записывая метрики
func (s *InstrumentedStore[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	start := time.Now()
	entity, found, err := s.inner.FindByID(ctx, id)
	s.metrics.RecordOperation(ctx, s.store, "find_by_id", time.Since(start), err)
	return entity, found, err
}

// FindAll возвращает все entities, записывая метрики
func (s *InstrumentedStore[T]) FindAll(ctx context.Context) ([]T, error) {
	start := time.Now()
	entities, err := s.inner.FindAll(ctx)
	s.metrics.RecordOperation(ctx, s.store, "find_all", time.Since(start), err)
	return entities, err
}

// Find возвращает entities по предикату, записывая метрики
func (s *InstrumentedStore[T]) Find(ctx context.Context, predicate repository.Predicate[T]) ([]T, error) {
	start := time.Now()
	entities, err := s.inner.Find(ctx, predicate)
	s.metrics.RecordOperation(ctx, s.store, "find", time.Since(start), err)
	return entities, err
}

// Apply применяет пакет изменений, записывая метрики
func (s *InstrumentedStore[T]) Apply(ctx context.Context, changes []repository.Change[T]) error {
	start := time.Now()
	err := s.inner.Apply(ctx, changes)
	s.metrics.RecordOperation(ctx, s.store, "apply", time.Since(start), err)
	return err
}
