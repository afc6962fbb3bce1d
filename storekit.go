// Package storekit предоставляет generic абстракцию репозитория
// с unit-of-work семантикой поверх взаимозаменяемых storage backends.
//
// Основные возможности:
//   - Generic Repository с явным SaveChanges (unit of work)
//   - Адаптеры хранилищ: in-memory, PostgreSQL, MongoDB, Redis
//   - Явная абстракция фильтров вместо reflection-based выражений
//   - Специализация репозитория через композицию
//   - Уведомления об изменениях (in-process, NATS, Kafka)
//   - Метрики на основе OpenTelemetry
//
// Пример использования:
//
//	store := repository.NewInMemoryStore[Product](repository.DefaultInMemoryConfig())
//	repo := repository.NewGenericRepository[Product](store, repository.GenericConfig[Product]{})
//	added, _ := repo.Add(ctx, product)
//	_ = repo.SaveChanges(ctx)
package storekit

// Version представляет версию библиотеки
const (
	Version = "1.0.0"
	Major   = 1
	Minor   = 0
	Patch   = 0
)

// Metadata содержит метаданные о библиотеке
type Metadata struct {
	Name        string
	Version     string
	Description string
	License     string
}

// GetMetadata возвращает метаданные библиотеки
func GetMetadata() Metadata {
	return Metadata{
		Name:        "Storekit",
		Version:     Version,
		Description: "Generic repository and unit-of-work toolkit for pluggable storage backends",
		License:     "MIT",
	}
}
