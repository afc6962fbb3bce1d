// Package repository предоставляет generic репозиторий с unit-of-work
// семантикой и адаптеры для различных storage backends.
package repository

import "context"

// Entity интерфейс для entity с ID
type Entity interface {
	ID() string
}

// Predicate условие фильтрации над entity.
// Должен быть чистой функцией без побочных эффектов.
type Predicate[T Entity] func(T) bool

// ChangeKind тип staged-изменения
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
)

// Change staged-изменение, накопленное до SaveChanges
type Change[T Entity] struct {
	Kind   ChangeKind
	Entity T
}

// Repository интерфейс репозитория с unit-of-work семантикой.
// Add и Update только ставят мутацию в очередь; запись в хранилище
// происходит при явном вызове SaveChanges.
type Repository[T Entity] interface {
	// Add ставит вставку новой entity в очередь и возвращает entity
	// (с присвоенным ID, если хранилище генерирует идентификаторы)
	Add(ctx context.Context, entity T) (T, error)
	// Update ставит изменение существующей entity в очередь
	Update(ctx context.Context, entity T) (T, error)
	// Get возвращает entity по ID; отсутствие не является ошибкой
	Get(ctx context.Context, id string) (T, bool, error)
	// All возвращает все сохраненные entities
	All(ctx context.Context) ([]T, error)
	// Find возвращает entities, удовлетворяющие предикату
	Find(ctx context.Context, predicate Predicate[T]) ([]T, error)
	// SaveChanges применяет накопленные мутации к хранилищу
	SaveChanges(ctx context.Context) error
}

// Store интерфейс persistence context - единственная граница,
// от которой зависит репозиторий. Реализуется адаптерами хранилищ.
type Store[T Entity] interface {
	// Insert вставляет новую entity; дубликат ID - ошибка хранилища
	Insert(ctx context.Context, entity T) error
	// Update заменяет существующую entity; отсутствие ID - ошибка NOT_FOUND
	Update(ctx context.Context, entity T) error
	// FindByID возвращает entity по ID; отсутствие не является ошибкой
	FindByID(ctx context.Context, id string) (T, bool, error)
	// FindAll возвращает все entities
	FindAll(ctx context.Context) ([]T, error)
	// Find возвращает entities, удовлетворяющие предикату
	Find(ctx context.Context, predicate Predicate[T]) ([]T, error)
	// Apply применяет пакет изменений, по возможности атомарно
	Apply(ctx context.Context, changes []Change[T]) error
}
