// Package repository предоставляет generic репозиторий с unit-of-work
// семантикой и адаптеры для различных storage backends.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/akriventsev/storekit/core"
)

// MongoConfig конфигурация для MongoDB store
type MongoConfig struct {
	URI         string
	Database    string
	Collection  string
	MaxPoolSize int
	MinPoolSize int
	TTLField    string        // поле для TTL индекса
	TTLDuration time.Duration // время жизни для TTL
}

// Validate проверяет корректность конфигурации
func (c MongoConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("URI cannot be empty")
	}
	if c.Database == "" {
		return fmt.Errorf("database cannot be empty")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	if c.MaxPoolSize <= 0 {
		return fmt.Errorf("MaxPoolSize must be greater than 0")
	}
	return nil
}

// DefaultMongoConfig возвращает конфигурацию MongoDB по умолчанию
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Database:    "storekit",
		Collection:  "entities",
		MaxPoolSize: 100,
		MinPoolSize: 10,
	}
}

// MongoStore generic MongoDB реализация Store.
// Документы хранятся с entity ID в качестве _id; тип T должен нести
// bson-теги с полем _id.
type MongoStore[T Entity] struct {
	config     MongoConfig
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore создает новый MongoDB store
func NewMongoStore[T Entity](config MongoConfig) (*MongoStore[T], error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb config: %w", err)
	}

	ctx := context.Background()

	opts := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(uint64(config.MaxPoolSize)).
		SetMinPoolSize(uint64(config.MinPoolSize))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore[T]{
		config:     config,
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}

	if config.TTLField != "" && config.TTLDuration > 0 {
		if err := store.EnableTTL(config.TTLField, config.TTLDuration); err != nil {
			return nil, fmt.Errorf("failed to enable TTL: %w", err)
		}
	}

	return store, nil
}

// Start запускает адаптер (реализация core.Lifecycle)
func (m *MongoStore[T]) Start(ctx context.Context) error {
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (m *MongoStore[T]) Stop(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (m *MongoStore[T]) IsRunning() bool {
	return m.client != nil
}

// Name возвращает имя компонента (реализация core.Component)
func (m *MongoStore[T]) Name() string {
	return "mongodb-store"
}

// Type возвращает тип компонента (реализация core.Component)
func (m *MongoStore[T]) Type() core.ComponentType {
	return core.ComponentTypeStore
}

// HealthCheck проверяет соединение (реализация core.HealthCheckable)
func (m *MongoStore[T]) HealthCheck(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Insert вставляет новую entity.
// Дубликат _id приходит от MongoDB без трансляции.
func (m *MongoStore[T]) Insert(ctx context.Context, entity T) error {
	if _, err := m.collection.InsertOne(ctx, entity); err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	return nil
}

// Update заменяет существующую entity (без upsert)
func (m *MongoStore[T]) Update(ctx context.Context, entity T) error {
	filter := bson.M{"_id": entity.ID()}

	result, err := m.collection.ReplaceOne(ctx, filter, entity)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	if result.MatchedCount == 0 {
		return core.NewError(core.ErrNotFound, fmt.Sprintf("entity not found: %s", entity.ID()))
	}

	return nil
}

// FindByID возвращает entity по ID; отсутствие не является ошибкой
func (m *MongoStore[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T

	var entity T
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("failed to find entity: %w", err)
	}

	return entity, true, nil
}

// FindAll возвращает все entities
func (m *MongoStore[T]) FindAll(ctx context.Context) ([]T, error) {
	cursor, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var entities []T
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, fmt.Errorf("failed to decode entities: %w", err)
	}

	return entities, nil
}

// Find возвращает entities, удовлетворяющие предикату.
// Предикат оценивается in-process; для трансляции условий в bson
// используйте Query().
func (m *MongoStore[T]) Find(ctx context.Context, predicate Predicate[T]) ([]T, error) {
	all, err := m.FindAll(ctx)
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

// Apply применяет пакет изменений через ordered BulkWrite.
// Ordered режим останавливается на первой ошибке; ReplaceOne без upsert,
// поэтому update несуществующей entity не проходит молча.
func (m *MongoStore[T]) Apply(ctx context.Context, changes []Change[T]) error {
	if len(changes) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(changes))
	for _, change := range changes {
		switch change.Kind {
		case ChangeInsert:
			models = append(models, mongo.NewInsertOneModel().SetDocument(change.Entity))
		case ChangeUpdate:
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": change.Entity.ID()}).
				SetReplacement(change.Entity))
		default:
			return fmt.Errorf("unknown change kind: %s", change.Kind)
		}
	}

	opts := options.BulkWrite().SetOrdered(true)
	result, err := m.collection.BulkWrite(ctx, models, opts)
	if err != nil {
		return fmt.Errorf("failed to apply changes: %w", err)
	}

	// ReplaceOne с MatchedCount == 0 не считается ошибкой драйвером;
	// сверяем количество затронутых документов с количеством updates
	updates := int64(0)
	for _, change := range changes {
		if change.Kind == ChangeUpdate {
			updates++
		}
	}
	if result.MatchedCount < updates {
		return core.NewError(core.ErrNotFound, "one or more updated entities do not exist")
	}

	return nil
}

// Query возвращает QueryBuilder для построения запросов с трансляцией в bson
func (m *MongoStore[T]) Query() *MongoQueryBuilder[T] {
	return NewMongoQueryBuilder[T](m.collection, m.config)
}

// EnableTTL включает TTL индекс для автоматической очистки документов
func (m *MongoStore[T]) EnableTTL(field string, duration time.Duration) error {
	ctx := context.Background()

	indexModel := mongo.IndexModel{
		Keys: bson.M{field: 1},
		Options: options.Index().
			SetExpireAfterSeconds(int32(duration.Seconds())).
			SetName(fmt.Sprintf("ttl_%s", field)),
	}

	if _, err := m.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create TTL index: %w", err)
	}

	m.config.TTLField = field
	m.config.TTLDuration = duration
	return nil
}

// DisableTTL отключает TTL индекс
func (m *MongoStore[T]) DisableTTL() error {
	if m.config.TTLField == "" {
		return nil
	}

	ctx := context.Background()
	indexName := fmt.Sprintf("ttl_%s", m.config.TTLField)
	if _, err := m.collection.Indexes().DropOne(ctx, indexName); err != nil {
		return fmt.Errorf("failed to drop TTL index: %w", err)
	}

	m.config.TTLField = ""
	m.config.TTLDuration = 0
	return nil
}
