// Package repository предоставляет generic репозиторий с unit-of-work
// семантикой и адаптеры для различных storage backends.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akriventsev/storekit/notify"
)

// StagedGauge получает дельты очереди незакоммиченных мутаций.
// Реализуется сборщиком метрик.
type StagedGauge interface {
	AddStaged(ctx context.Context, store string, delta int64)
}

// GenericConfig конфигурация generic репозитория
type GenericConfig[T Entity] struct {
	// AssignID присваивает сгенерированный ID entity, пришедшей без ID.
	// nil означает, что caller обязан присвоить ID сам.
	AssignID func(entity T, id string) T
	// Publisher получает уведомления о закоммиченных изменениях.
	// nil отключает уведомления.
	Publisher notify.Publisher
	// Staged получает изменения размера очереди мутаций.
	// nil отключает учет.
	Staged StagedGauge
}

// GenericRepository единственная generic реализация Repository.
// Делегирует хранение injected Store и не хранит состояния entity
// между вызовами, кроме очереди незакоммиченных мутаций.
type GenericRepository[T Entity] struct {
	store     Store[T]
	storeName string
	config    GenericConfig[T]
	mu        sync.Mutex
	pending   []Change[T]
}

// NewGenericRepository создает новый generic репозиторий поверх store
func NewGenericRepository[T Entity](store Store[T], config GenericConfig[T]) *GenericRepository[T] {
	name := "store"
	if n, ok := store.(interface{ Name() string }); ok {
		name = n.Name()
	}

	return &GenericRepository[T]{
		store:     store,
		storeName: name,
		config:    config,
	}
}

// Add ставит вставку entity в очередь до SaveChanges.
// Если entity пришла без ID и сконфигурирован AssignID, присваивается UUID.
func (r *GenericRepository[T]) Add(ctx context.Context, entity T) (T, error) {
	var zero T

	if entity.ID() == "" {
		if r.config.AssignID == nil {
			return zero, fmt.Errorf("entity ID cannot be empty")
		}
		entity = r.config.AssignID(entity, uuid.NewString())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, Change[T]{Kind: ChangeInsert, Entity: entity})
	r.recordStaged(ctx, 1)

	return entity, nil
}

// Update ставит изменение entity в очередь до SaveChanges.
// Отсутствие entity с таким ID обнаружится при commit и придет из хранилища.
func (r *GenericRepository[T]) Update(ctx context.Context, entity T) (T, error) {
	var zero T

	if entity.ID() == "" {
		return zero, fmt.Errorf("entity ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, Change[T]{Kind: ChangeUpdate, Entity: entity})
	r.recordStaged(ctx, 1)

	return entity, nil
}

// Get возвращает entity по ID из закоммиченного состояния хранилища.
// Незакоммиченные мутации не видны. Отсутствие - не ошибка.
func (r *GenericRepository[T]) Get(ctx context.Context, id string) (T, bool, error) {
	return r.store.FindByID(ctx, id)
}

// All возвращает все закоммиченные entities
func (r *GenericRepository[T]) All(ctx context.Context) ([]T, error) {
	return r.store.FindAll(ctx)
}

// Find возвращает закоммиченные entities, удовлетворяющие предикату
func (r *GenericRepository[T]) Find(ctx context.Context, predicate Predicate[T]) ([]T, error) {
	if predicate == nil {
		return nil, fmt.Errorf("predicate cannot be nil")
	}
	return r.store.Find(ctx, predicate)
}

// SaveChanges применяет накопленные мутации к хранилищу в порядке постановки.
// Первая ошибка прерывает commit; очередь при этом сохраняется, чтобы
// caller мог повторить попытку. При успехе очередь очищается.
func (r *GenericRepository[T]) SaveChanges(ctx context.Context) error {
	r.mu.Lock()

	if len(r.pending) == 0 {
		r.mu.Unlock()
		return nil
	}

	if err := r.store.Apply(ctx, r.pending); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to save changes: %w", err)
	}

	committed := r.pending
	r.pending = nil
	r.recordStaged(ctx, -int64(len(committed)))

	// Публикация вне mu: синхронный publisher не должен блокировать
	// остальные операции репозитория на время round-trip к брокеру
	r.mu.Unlock()

	// Публикация best-effort: сбой уведомления не откатывает commit
	if r.config.Publisher != nil {
		r.publishChanges(ctx, committed)
	}

	return nil
}

// Pending возвращает количество незакоммиченных мутаций
func (r *GenericRepository[T]) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Discard сбрасывает незакоммиченные мутации
func (r *GenericRepository[T]) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recordStaged(context.Background(), -int64(len(r.pending)))
	r.pending = nil
}

// recordStaged сообщает дельту очереди мутаций; вызывать под mu
func (r *GenericRepository[T]) recordStaged(ctx context.Context, delta int64) {
	if r.config.Staged == nil || delta == 0 {
		return
	}
	r.config.Staged.AddStaged(ctx, r.storeName, delta)
}

// publishChanges публикует уведомления о закоммиченных изменениях
func (r *GenericRepository[T]) publishChanges(ctx context.Context, changes []Change[T]) {
	for _, change := range changes {
		payload, err := json.Marshal(change.Entity)
		if err != nil {
			continue
		}

		op := notify.OpInsert
		if change.Kind == ChangeUpdate {
			op = notify.OpUpdate
		}

		_ = r.config.Publisher.Publish(ctx, notify.ChangeEvent{
			Operation: op,
			EntityID:  change.Entity.ID(),
			Payload:   payload,
			Timestamp: time.Now().UnixNano(),
		})
	}
}
