// Package migrations предоставляет обертку над goose для управления
// миграциями схемы PostgreSQL store.
package migrations

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
)

// Status представляет статус миграции
type Status struct {
	Version   int64
	Name      string
	AppliedAt *time.Time
	State     string // "pending", "applied"
}

// Run применяет все pending миграции из указанной директории
func Run(db *sql.DB, dir string) error {
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// RollbackLast откатывает последнюю примененную миграцию
func RollbackLast(db *sql.DB, dir string) error {
	if err := goose.Down(db, dir); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}

// CurrentVersion возвращает текущую версию схемы
func CurrentVersion(db *sql.DB) (int64, error) {
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("failed to get database version: %w", err)
	}
	return version, nil
}

// List возвращает статус всех миграций в директории
func List(db *sql.DB, dir string) ([]Status, error) {
	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to collect migrations: %w", err)
	}

	currentVersion, err := goose.GetDBVersion(db)
	if err != nil {
		// Таблица версий еще не создана
		currentVersion = 0
	}

	statuses := make([]Status, 0, len(migrations))
	for _, migration := range migrations {
		state := "pending"
		if migration.Version <= currentVersion {
			state = "applied"
		}
		statuses = append(statuses, Status{
			Version: migration.Version,
			Name:    migration.Source,
			State:   state,
		})
	}

	return statuses, nil
}
