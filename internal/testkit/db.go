package testkit

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/DivyPatel-31/coastwatch/internal/db"
	"github.com/DivyPatel-31/coastwatch/internal/migrate"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// OpenTestDB returns an in-memory sqlite database with schema migrated.
// It stands in for Postgres so the relational backend runs in tests.
func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", url.QueryEscape(t.Name()))
	gdb, err := gorm.Open(sqlite.Open(dsn), db.Config())
	if err != nil {
		t.Fatalf("gorm.Open(sqlite): %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("gdb.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.AutoMigrate(context.Background(), gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return gdb
}
