// Package repository предоставляет generic репозиторий с unit-of-work
// семантикой и адаптеры для различных storage backends.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/akriventsev/storekit/core"
)

// Mapper интерфейс для преобразования между entity и database rows
type Mapper[T Entity] interface {
	ToRow(entity T) (map[string]interface{}, error)
	FromRow(row map[string]interface{}) (T, error)
}

// PostgresConfig конфигурация для PostgreSQL store
type PostgresConfig struct {
	DSN        string
	TableName  string
	SchemaName string
}

// Validate проверяет корректность конфигурации
func (c PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if c.TableName == "" {
		return fmt.Errorf("TableName cannot be empty")
	}
	return nil
}

// DefaultPostgresConfig возвращает конфигурацию PostgreSQL по умолчанию
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		SchemaName: "public",
		TableName:  "entities",
	}
}

// tableRef возвращает квалифицированное имя таблицы
func (c PostgresConfig) tableRef() string {
	return fmt.Sprintf("%s.%s", c.SchemaName, c.TableName)
}

// PostgresStore generic PostgreSQL реализация Store.
// Entities хранятся в таблице (id TEXT PRIMARY KEY, data JSONB);
// схему создает миграция из migrations/sql.
type PostgresStore[T Entity] struct {
	config PostgresConfig
	db     *pgx.Conn
	mapper Mapper[T]
}

// NewPostgresStore создает новый PostgreSQL store
func NewPostgresStore[T Entity](config PostgresConfig, mapper Mapper[T]) (*PostgresStore[T], error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	if mapper == nil {
		return nil, fmt.Errorf("mapper cannot be nil")
	}

	conn, err := pgx.Connect(context.Background(), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &PostgresStore[T]{
		config: config,
		db:     conn,
		mapper: mapper,
	}, nil
}

// Start запускает адаптер (реализация core.Lifecycle)
func (p *PostgresStore[T]) Start(ctx context.Context) error {
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (p *PostgresStore[T]) Stop(ctx context.Context) error {
	if p.db != nil {
		return p.db.Close(ctx)
	}
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (p *PostgresStore[T]) IsRunning() bool {
	return p.db != nil
}

// Name возвращает имя компонента (реализация core.Component)
func (p *PostgresStore[T]) Name() string {
	return "postgres-store"
}

// Type возвращает тип компонента (реализация core.Component)
func (p *PostgresStore[T]) Type() core.ComponentType {
	return core.ComponentTypeStore
}

// HealthCheck проверяет соединение (реализация core.HealthCheckable)
func (p *PostgresStore[T]) HealthCheck(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// Insert вставляет новую entity.
// Нарушение уникальности ID приходит от PostgreSQL без трансляции.
func (p *PostgresStore[T]) Insert(ctx context.Context, entity T) error {
	return p.insertExec(ctx, p.db, entity)
}

// Update заменяет существующую entity
func (p *PostgresStore[T]) Update(ctx context.Context, entity T) error {
	return p.updateExec(ctx, p.db, entity)
}

// FindByID возвращает entity по ID; отсутствие не является ошибкой
func (p *PostgresStore[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T

	query := fmt.Sprintf("SELECT data FROM %s WHERE id = $1", p.config.tableRef())

	var dataJSON []byte
	err := p.db.QueryRow(ctx, query, id).Scan(&dataJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("failed to find entity: %w", err)
	}

	entity, err := p.decodeRow(dataJSON)
	if err != nil {
		return zero, false, err
	}

	return entity, true, nil
}

// FindAll возвращает все entities
func (p *PostgresStore[T]) FindAll(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf("SELECT data FROM %s", p.config.tableRef())

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	return p.collectRows(rows)
}

// Find возвращает entities, удовлетворяющие предикату.
// Предикат оценивается in-process; для трансляции условий в SQL
// используйте Query().
func (p *PostgresStore[T]) Find(ctx context.Context, predicate Predicate[T]) ([]T, error) {
	all, err := p.FindAll(ctx)
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

// Apply применяет пакет изменений в одной транзакции
func (p *PostgresStore[T]) Apply(ctx context.Context, changes []Change[T]) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for i, change := range changes {
		switch change.Kind {
		case ChangeInsert:
			err = p.insertExec(ctx, tx, change.Entity)
		case ChangeUpdate:
			err = p.updateExec(ctx, tx, change.Entity)
		default:
			err = fmt.Errorf("unknown change kind: %s", change.Kind)
		}
		if err != nil {
			return fmt.Errorf("change %d (%s %s): %w", i, change.Kind, change.Entity.ID(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Query возвращает QueryBuilder для построения запросов с трансляцией в SQL
func (p *PostgresStore[T]) Query() *SQLQueryBuilder[T] {
	return NewSQLQueryBuilder[T](p.db, p.mapper, p.config)
}

// pgxExecutor общий интерфейс pgx.Conn и pgx.Tx
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// insertExec выполняет INSERT через соединение или транзакцию
func (p *PostgresStore[T]) insertExec(ctx context.Context, exec pgxExecutor, entity T) error {
	dataJSON, err := p.encodeEntity(entity)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("INSERT INTO %s (id, data) VALUES ($1, $2)", p.config.tableRef())
	if _, err := exec.Exec(ctx, query, entity.ID(), dataJSON); err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}

	return nil
}

// updateExec выполняет UPDATE через соединение или транзакцию
func (p *PostgresStore[T]) updateExec(ctx context.Context, exec pgxExecutor, entity T) error {
	dataJSON, err := p.encodeEntity(entity)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET data = $2, updated_at = NOW() WHERE id = $1", p.config.tableRef())
	tag, err := exec.Exec(ctx, query, entity.ID(), dataJSON)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError(core.ErrNotFound, fmt.Sprintf("entity not found: %s", entity.ID()))
	}

	return nil
}

// encodeEntity сериализует entity в JSON через mapper
func (p *PostgresStore[T]) encodeEntity(entity T) ([]byte, error) {
	row, err := p.mapper.ToRow(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to convert entity to row: %w", err)
	}

	dataJSON, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal row: %w", err)
	}

	return dataJSON, nil
}

// decodeRow десериализует JSON в entity через mapper
func (p *PostgresStore[T]) decodeRow(dataJSON []byte) (T, error) {
	var zero T

	var row map[string]interface{}
	if err := json.Unmarshal(dataJSON, &row); err != nil {
		return zero, fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	entity, err := p.mapper.FromRow(row)
	if err != nil {
		return zero, fmt.Errorf("failed to convert row to entity: %w", err)
	}

	return entity, nil
}

// collectRows собирает entities из курсора, пропуская нечитаемые строки
func (p *PostgresStore[T]) collectRows(rows pgx.Rows) ([]T, error) {
	var entities []T
	for rows.Next() {
		var dataJSON []byte
		if err := rows.Scan(&dataJSON); err != nil {
			continue
		}

		entity, err := p.decodeRow(dataJSON)
		if err != nil {
			continue
		}

		entities = append(entities, entity)
	}

	return entities, nil
}
