package repos

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/dbctx"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Idiom{}, &domain.Catalogue{}, &domain.GreylistEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testCtx() dbctx.Context {
	return dbctx.New(context.Background())
}

func nopLog() *logger.Logger {
	return logger.NewNop()
}
