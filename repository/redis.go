// Package repository предоставляет generic репозиторий с unit-of-work
// семантикой и адаптеры для различных storage backends.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/akriventsev/storekit/core"
)

// RedisStoreConfig конфигурация для Redis store
type RedisStoreConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	KeyPrefix  string // префикс ключей entity
}

// Validate проверяет корректность конфигурации
func (c RedisStoreConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("KeyPrefix cannot be empty")
	}
	return nil
}

// DefaultRedisStoreConfig возвращает конфигурацию Redis store по умолчанию
func DefaultRedisStoreConfig() RedisStoreConfig {
	return RedisStoreConfig{
		Addr:       "localhost:6379",
		Password:   "",
		DB:         0,
		PoolSize:   10,
		MaxRetries: 3,
		KeyPrefix:  "storekit:entities",
	}
}

// RedisStore generic Redis реализация Store.
// Каждая entity хранится JSON-значением под ключом {prefix}:{id};
// множество {prefix}:ids отслеживает все ID для FindAll.
type RedisStore[T Entity] struct {
	config RedisStoreConfig
	client *redis.Client
}

// NewRedisStore создает новый Redis store
func NewRedisStore[T Entity](config RedisStoreConfig) (*RedisStore[T], error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:       config.Addr,
		Password:   config.Password,
		DB:         config.DB,
		PoolSize:   config.PoolSize,
		MaxRetries: config.MaxRetries,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisStore[T]{
		config: config,
		client: client,
	}, nil
}

// Start запускает адаптер (реализация core.Lifecycle)
func (r *RedisStore[T]) Start(ctx context.Context) error {
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (r *RedisStore[T]) Stop(ctx context.Context) error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (r *RedisStore[T]) IsRunning() bool {
	return r.client != nil
}

// Name возвращает имя компонента (реализация core.Component)
func (r *RedisStore[T]) Name() string {
	return "redis-store"
}

// Type возвращает тип компонента (реализация core.Component)
func (r *RedisStore[T]) Type() core.ComponentType {
	return core.ComponentTypeStore
}

// HealthCheck проверяет соединение (реализация core.HealthCheckable)
func (r *RedisStore[T]) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// entityKey возвращает ключ entity
func (r *RedisStore[T]) entityKey(id string) string {
	return fmt.Sprintf("%s:%s", r.config.KeyPrefix, id)
}

// idsKey возвращает ключ множества всех ID
func (r *RedisStore[T]) idsKey() string {
	return fmt.Sprintf("%s:ids", r.config.KeyPrefix)
}

// Insert вставляет новую entity
func (r *RedisStore[T]) Insert(ctx context.Context, entity T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.entityKey(entity.ID()), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	if !ok {
		return core.NewError(core.ErrAlreadyExists, fmt.Sprintf("entity already exists: %s", entity.ID()))
	}

	if err := r.client.SAdd(ctx, r.idsKey(), entity.ID()).Err(); err != nil {
		return fmt.Errorf("failed to track entity id: %w", err)
	}

	return nil
}

// Update заменяет существующую entity
func (r *RedisStore[T]) Update(ctx context.Context, entity T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	// XX: запись только при существующем ключе
	ok, err := r.client.SetXX(ctx, r.entityKey(entity.ID()), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	if !ok {
		return core.NewError(core.ErrNotFound, fmt.Sprintf("entity not found: %s", entity.ID()))
	}

	return nil
}

// FindByID возвращает entity по ID; отсутствие не является ошибкой
func (r *RedisStore[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T

	data, err := r.client.Get(ctx, r.entityKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("failed to find entity: %w", err)
	}

	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return zero, false, fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	return entity, true, nil
}

// FindAll возвращает все entities
func (r *RedisStore[T]) FindAll(ctx context.Context) ([]T, error) {
	ids, err := r.client.SMembers(ctx, r.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entity ids: %w", err)
	}
	if len(ids) == 0 {
		return []T{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.entityKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}

	entities := make([]T, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Ключ удален между SMembers и MGet
			continue
		}

		var entity T
		if err := json.Unmarshal([]byte(raw), &entity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		entities = append(entities, entity)
	}

	return entities, nil
}

// Find возвращает entities, удовлетворяющие предикату.
// Предикат оценивается in-process.
func (r *RedisStore[T]) Find(ctx context.Context, predicate Predicate[T]) ([]T, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	var results []T
	for _, entity := range all {
		if predicate(entity) {
			results = append(results, entity)
		}
	}

	return results, nil
}

// Apply применяет пакет изменений через TxPipeline.
// Существование проверяется до постановки пакета; сами записи уходят
// одним MULTI/EXEC блоком.
func (r *RedisStore[T]) Apply(ctx context.Context, changes []Change[T]) error {
	if len(changes) == 0 {
		return nil
	}

	exists := make(map[string]bool, len(changes))
	for i, change := range changes {
		id := change.Entity.ID()

		stored, staged := exists[id]
		if !staged {
			n, err := r.client.Exists(ctx, r.entityKey(id)).Result()
			if err != nil {
				return fmt.Errorf("failed to check entity %s: %w", id, err)
			}
			stored = n > 0
		}

		switch change.Kind {
		case ChangeInsert:
			if stored {
				return core.NewError(core.ErrAlreadyExists, fmt.Sprintf("entity already exists: %s", id))
			}
		case ChangeUpdate:
			if !stored {
				return core.NewError(core.ErrNotFound, fmt.Sprintf("entity not found: %s", id))
			}
		default:
			return fmt.Errorf("change %d: unknown change kind: %s", i, change.Kind)
		}
		exists[id] = true
	}

	pipe := r.client.TxPipeline()
	for _, change := range changes {
		data, err := json.Marshal(change.Entity)
		if err != nil {
			return fmt.Errorf("failed to marshal entity %s: %w", change.Entity.ID(), err)
		}

		pipe.Set(ctx, r.entityKey(change.Entity.ID()), data, 0)
		if change.Kind == ChangeInsert {
			pipe.SAdd(ctx, r.idsKey(), change.Entity.ID())
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to apply changes: %w", err)
	}

	return nil
}

// Delete удаляет entity
func (r *RedisStore[T]) Delete(ctx context.Context, id string) error {
	removed, err := r.client.Del(ctx, r.entityKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if removed == 0 {
		return core.NewError(core.ErrNotFound, fmt.Sprintf("entity not found: %s", id))
	}

	return r.client.SRem(ctx, r.idsKey(), id).Err()
}
