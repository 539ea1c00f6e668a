package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qs3c/fed_comment_server/internal/model"
)

var testGormConfig = &gorm.Config{
	Logger:                                   logger.Default.LogMode(logger.Silent),
	DisableForeignKeyConstraintWhenMigrating: true,
	NowFunc: func() time.Time {
		return time.Now().UTC()
	},
}

// SetupTestDB 创建测试数据库（SQLite 内存模式）
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), testGormConfig)
	if err != nil {
		t.Fatalf("Failed to connect test database: %v", err)
	}

	// 内存库按连接隔离，只保留一个连接
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// SetupTestDBWithPostgres 使用 Postgres 测试数据库（需要环境变量）
func SetupTestDBWithPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping Postgres tests")
	}

	db, err := gorm.Open(postgres.Open(dsn), testGormConfig)
	if err != nil {
		t.Fatalf("Failed to connect test database: %v", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	TruncateTables(t, db)

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("Warning: Failed to get underlying DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		t.Logf("Warning: Failed to close test database: %v", err)
	}
}

// TruncateTables 清空所有表数据
func TruncateTables(t *testing.T, db *gorm.DB) {
	t.Helper()

	tables := []string{
		"received_activities",
		"comment_reports",
		"comment_replies",
		"person_mentions",
		"comment_aggregates",
		"comment_votes",
		"comments",
		"posts",
		"community_followers",
		"community_moderators",
		"communities",
		"persons",
	}

	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			t.Logf("Warning: Failed to truncate table %s: %v", table, err)
		}
	}
}
