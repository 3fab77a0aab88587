package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/db"
	"github.com/folio/internal/repository"
	"github.com/folio/internal/storage"
)

var testActor = activity.Actor{ID: 1, Name: "admin"}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func newTestImages(t *testing.T) *storage.LocalManager {
	t.Helper()
	return storage.NewLocalManager(map[string]storage.Disk{
		storage.DefaultDisk: {Root: t.TempDir(), URL: "/static/uploads"},
	}, storage.Options{MaxBytes: 1 << 20})
}

func testImage(t *testing.T, name string) *storage.File {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	file := storage.FromBytes(name, buf.Bytes())
	return &file
}

func seedCategory(t *testing.T, gdb *gorm.DB, name, slug string) db.PostCategory {
	t.Helper()
	category := db.PostCategory{Name: name, Slug: slug}
	if err := gdb.Create(&category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

var errDiskIO = errors.New("disk I/O error")

// failingUpdates 让 Update 总是失败，其余方法委托给真实仓储。
type failingUpdates[T any] struct {
	repository.Repository[T]
}

func (failingUpdates[T]) Update(context.Context, *T, map[string]interface{}) error {
	return errDiskIO
}

// stuckImages 上传正常，但删除总是失败。
type stuckImages struct {
	*storage.LocalManager
}

func (stuckImages) Destroy(context.Context, string) error {
	return errDiskIO
}
