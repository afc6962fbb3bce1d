// Package repository предоставляет generic репозиторий с unit-of-work
// семантикой и адаптеры для различных storage backends.
package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/akriventsev/storekit/core"
)

// InMemoryConfig конфигурация для InMemory store
type InMemoryConfig struct {
	// MaxEntities максимальное количество сущностей (0 = без ограничений).
	// При достижении лимита Insert вернет ошибку.
	MaxEntities int
}

// DefaultInMemoryConfig возвращает конфигурацию InMemory по умолчанию
func DefaultInMemoryConfig() InMemoryConfig {
	return InMemoryConfig{
		MaxEntities: 0,
	}
}

// InMemoryStore generic in-memory реализация Store.
// Потокобезопасен; поддерживает secondary indexes.
type InMemoryStore[T Entity] struct {
	config   InMemoryConfig
	entities map[string]T
	indexes  map[string]map[string][]string // index name -> key -> entity IDs
	keyFuncs map[string]func(T) string      // index name -> key function
	mu       sync.RWMutex
}

// NewInMemoryStore создает новый in-memory store
func NewInMemoryStore[T Entity](config InMemoryConfig) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		config:   config,
		entities: make(map[string]T),
		indexes:  make(map[string]map[string][]string),
		keyFuncs: make(map[string]func(T) string),
	}
}

// Start запускает адаптер (реализация core.Lifecycle)
func (s *InMemoryStore[T]) Start(ctx context.Context) error {
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (s *InMemoryStore[T]) Stop(ctx context.Context) error {
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (s *InMemoryStore[T]) IsRunning() bool {
	return true
}

// Name возвращает имя компонента (реализация core.Component)
func (s *InMemoryStore[T]) Name() string {
	return "inmemory-store"
}

// Type возвращает тип компонента (реализация core.Component)
func (s *InMemoryStore[T]) Type() core.ComponentType {
	return core.ComponentTypeStore
}

// Insert вставляет новую entity
func (s *InMemoryStore[T]) Insert(ctx context.Context, entity T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(entity)
}

// Update заменяет существующую entity
func (s *InMemoryStore[T]) Update(ctx context.Context, entity T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(entity)
}

// FindByID возвращает entity по ID; отсутствие не является ошибкой
func (s *InMemoryStore[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	entity, exists := s.entities[id]
	if !exists {
		return zero, false, nil
	}

	return entity, true, nil
}

// FindAll возвращает все entities
func (s *InMemoryStore[T]) FindAll(ctx context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities := make([]T, 0, len(s.entities))
	for _, entity := range s.entities {
		entities = append(entities, entity)
	}

	return entities, nil
}

// Find возвращает entities, удовлетворяющие предикату
func (s *InMemoryStore[T]) Find(ctx context.Context, predicate Predicate[T]) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []T
	for _, entity := range s.entities {
		if predicate(entity) {
			results = append(results, entity)
		}
	}

	return results, nil
}

// Apply применяет пакет изменений атомарно: сначала валидирует весь пакет
// против текущего состояния с учетом внутрипакетных эффектов, затем мутирует
func (s *InMemoryStore[T]) Apply(ctx context.Context, changes []Change[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists := make(map[string]bool, len(changes))
	inserted := 0
	for i, change := range changes {
		id := change.Entity.ID()
		if id == "" {
			return fmt.Errorf("change %d: entity ID cannot be empty", i)
		}

		_, stored := s.entities[id]
		if present, staged := exists[id]; staged {
			stored = present
		}

		switch change.Kind {
		case ChangeInsert:
			if stored {
				return core.NewError(core.ErrAlreadyExists, fmt.Sprintf("entity already exists: %s", id))
			}
			inserted++
			exists[id] = true
		case ChangeUpdate:
			if !stored {
				return core.NewError(core.ErrNotFound, fmt.Sprintf("entity not found: %s", id))
			}
			exists[id] = true
		default:
			return fmt.Errorf("change %d: unknown change kind: %s", i, change.Kind)
		}
	}

	if s.config.MaxEntities > 0 && len(s.entities)+inserted > s.config.MaxEntities {
		return fmt.Errorf("store limit reached: max %d entities", s.config.MaxEntities)
	}

	for _, change := range changes {
		s.putLocked(change.Entity)
	}

	return nil
}

// Query возвращает QueryBuilder с in-process оценкой условий
func (s *InMemoryStore[T]) Query() *MemoryQueryBuilder[T] {
	return NewMemoryQueryBuilder[T](s)
}

// Delete удаляет entity
func (s *InMemoryStore[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, exists := s.entities[id]
	if !exists {
		return core.NewError(core.ErrNotFound, fmt.Sprintf("entity not found: %s", id))
	}

	s.removeFromIndexes(entity)
	delete(s.entities, id)
	return nil
}

// AddIndex добавляет secondary index и переиндексирует существующие entities
func (s *InMemoryStore[T]) AddIndex(name string, keyFunc func(T) string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keyFuncs[name] = keyFunc
	if s.indexes[name] == nil {
		s.indexes[name] = make(map[string][]string)
	}

	for id, entity := range s.entities {
		s.addToIndex(name, keyFunc(entity), id)
	}
}

// FindByIndex возвращает entities по index key
func (s *InMemoryStore[T]) FindByIndex(ctx context.Context, indexName, key string) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, exists := s.indexes[indexName]
	if !exists {
		return nil, fmt.Errorf("index not found: %s", indexName)
	}

	ids, exists := index[key]
	if !exists {
		return []T{}, nil
	}

	var results []T
	for _, id := range ids {
		if entity, exists := s.entities[id]; exists {
			results = append(results, entity)
		}
	}

	return results, nil
}

// Count возвращает количество entities
func (s *InMemoryStore[T]) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities), nil
}

// Clear очищает store (для тестирования)
func (s *InMemoryStore[T]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities = make(map[string]T)
	s.indexes = make(map[string]map[string][]string)
	return nil
}

// insertLocked вставляет entity; вызывать под mu
func (s *InMemoryStore[T]) insertLocked(entity T) error {
	id := entity.ID()
	if id == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	if _, exists := s.entities[id]; exists {
		return core.NewError(core.ErrAlreadyExists, fmt.Sprintf("entity already exists: %s", id))
	}

	if s.config.MaxEntities > 0 && len(s.entities) >= s.config.MaxEntities {
		return fmt.Errorf("store limit reached: max %d entities", s.config.MaxEntities)
	}

	s.putLocked(entity)
	return nil
}

// updateLocked заменяет entity; вызывать под mu
func (s *InMemoryStore[T]) updateLocked(entity T) error {
	id := entity.ID()
	if id == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	if _, exists := s.entities[id]; !exists {
		return core.NewError(core.ErrNotFound, fmt.Sprintf("entity not found: %s", id))
	}

	s.putLocked(entity)
	return nil
}

// putLocked записывает entity и обновляет индексы; вызывать под mu
func (s *InMemoryStore[T]) putLocked(entity T) {
	id := entity.ID()
	if old, exists := s.entities[id]; exists {
		s.removeFromIndexes(old)
	}

	s.entities[id] = entity

	for name, keyFunc := range s.keyFuncs {
		s.addToIndex(name, keyFunc(entity), id)
	}
}

// removeFromIndexes удаляет entity из всех индексов; вызывать под mu
func (s *InMemoryStore[T]) removeFromIndexes(entity T) {
	id := entity.ID()
	for name, keyFunc := range s.keyFuncs {
		key := keyFunc(entity)
		index, ok := s.indexes[name]
		if !ok {
			continue
		}
		ids, ok := index[key]
		if !ok {
			continue
		}

		remaining := make([]string, 0, len(ids))
		for _, existingID := range ids {
			if existingID != id {
				remaining = append(remaining, existingID)
			}
		}
		if len(remaining) == 0 {
			delete(index, key)
		} else {
			index[key] = remaining
		}
	}
}

// addToIndex добавляет ID в индекс, избегая дубликатов; вызывать под mu
func (s *InMemoryStore[T]) addToIndex(name, key, id string) {
	if s.indexes[name] == nil {
		s.indexes[name] = make(map[string][]string)
	}
	for _, existingID := range s.indexes[name][key] {
		if existingID == id {
			return
		}
	}
	s.indexes[name][key] = append(s.indexes[name][key], id)
}
