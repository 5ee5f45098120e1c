// Package dbtest opens throwaway SQLite databases with the production schema
// for package tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"donations/internal/model"
)

// Open returns a migrated database backed by a file in t.TempDir().
// The pool is limited to one connection, so concurrent transactions run one
// at a time. SQLite ignores FOR UPDATE; the MySQL statements are checked in
// the repository package.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gormDB.AutoMigrate(&model.User{}, &model.Project{}, &model.Donation{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return gormDB
}
