// Package repository предоставляет generic репозиторий с unit-of-work
// семантикой и адаптеры для различных storage backends.
package repository

import (
	"fmt"
	"sync"
)

// StoreFactory фабрика для создания Store адаптеров по имени
type StoreFactory struct {
	creators map[string]func(config interface{}) (interface{}, error)
	mu       sync.RWMutex
}

// NewStoreFactory создает новую фабрику с зарегистрированными built-in адаптерами
func NewStoreFactory() *StoreFactory {
	factory := &StoreFactory{
		creators: make(map[string]func(config interface{}) (interface{}, error)),
	}

	_ = factory.Register("inmemory", func(config interface{}) (interface{}, error) {
		cfg := DefaultInMemoryConfig()
		if c, ok := config.(InMemoryConfig); ok {
			cfg = c
		}
		return NewInMemoryStore[Entity](cfg), nil
	})

	_ = factory.Register("postgres", func(config interface{}) (interface{}, error) {
		// Требуется mapper, поэтому через фабрику store не создать
		return nil, fmt.Errorf("postgres store requires a mapper, use NewPostgresStore directly")
	})

	_ = factory.Register("mongodb", func(config interface{}) (interface{}, error) {
		cfg, ok := config.(MongoConfig)
		if !ok {
			return nil, fmt.Errorf("invalid Mongo config type: %T", config)
		}
		return NewMongoStore[Entity](cfg)
	})

	_ = factory.Register("redis", func(config interface{}) (interface{}, error) {
		cfg, ok := config.(RedisStoreConfig)
		if !ok {
			return nil, fmt.Errorf("invalid Redis config type: %T", config)
		}
		return NewRedisStore[Entity](cfg)
	})

	return factory
}

// Register регистрирует custom адаптер
func (f *StoreFactory) Register(name string, creator func(config interface{}) (interface{}, error)) error {
	if name == "" {
		return fmt.Errorf("adapter name cannot be empty")
	}
	if creator == nil {
		return fmt.Errorf("creator function cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.creators[name]; exists {
		return fmt.Errorf("adapter %s already registered", name)
	}

	f.creators[name] = creator
	return nil
}

// CreateStore создает Store адаптер указанного типа (generic функция)
func CreateStore[T Entity](factory *StoreFactory, storeType string, config interface{}) (Store[T], error) {
	factory.mu.RLock()
	creator, exists := factory.creators[storeType]
	factory.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown store type: %s", storeType)
	}

	created, err := creator(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", storeType, err)
	}

	typedStore, ok := created.(Store[T])
	if !ok {
		return nil, fmt.Errorf("store type mismatch")
	}

	return typedStore, nil
}
