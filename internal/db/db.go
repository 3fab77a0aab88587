package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultDatabasePath = "folio.db"

// Models 返回需要自动迁移的全部模型，顺序即建表顺序。
func Models() []interface{} {
	return []interface{}{
		&Permission{},
		&Role{},
		&User{},
		&PostCategory{},
		&Post{},
		&PostView{},
		&Experience{},
		&Project{},
	}
}

// Open 打开 sqlite 数据库，不做迁移。
func Open(databasePath string, logger gormlogger.Interface) (*gorm.DB, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = defaultDatabasePath
	}

	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
	}

	cfg := &gorm.Config{}
	if logger != nil {
		cfg.Logger = logger
	}

	return gorm.Open(sqlite.Open(withPragmas(path)), cfg)
}

// Migrate 为核心模型创建或更新表结构。
func Migrate(gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("database not initialized")
	}
	return gdb.AutoMigrate(Models()...)
}

// DropAll 删除全部模型对应的数据表（逆序，先删除依赖方）。
func DropAll(gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("database not initialized")
	}

	models := Models()
	migrator := gdb.Migrator()
	for i := len(models) - 1; i >= 0; i-- {
		if err := migrator.DropTable(models[i]); err != nil {
			return err
		}
	}

	// many2many 关联表不在模型列表中，需要单独清理
	for _, table := range []string{"user_roles", "role_permissions"} {
		if err := migrator.DropTable(table); err != nil {
			return err
		}
	}
	return nil
}

func withPragmas(path string) string {
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	if strings.Contains(path, "_busy_timeout") {
		return path
	}
	return path + separator + "_busy_timeout=5000"
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
