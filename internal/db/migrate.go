package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies all pending schema migrations. When reset is true every
// migration is rolled back first, dropping all tables.
func Migrate(ctx context.Context, gormDB *gorm.DB, reset bool) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("migrate: underlying db: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("migrate: dialect: %w", err)
	}

	if reset {
		if err := goose.ResetContext(ctx, sqlDB, "migrations"); err != nil {
			return fmt.Errorf("migrate: reset: %w", err)
		}
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}
