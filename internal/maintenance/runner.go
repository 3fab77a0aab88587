package maintenance

import (
	"context"

	"gorm.io/gorm"

	"github.com/folio/internal/db"
)

// Runner performs the effects behind each command.
type Runner interface {
	Migrate(ctx context.Context) error
	Fresh(ctx context.Context) error
	Seed(ctx context.Context, class string) error
}

// GormRunner 基于 gorm AutoMigrate 与注册的 seeder 执行命令。
type GormRunner struct {
	db      *gorm.DB
	seeders *Seeders
}

// NewGormRunner creates a runner over gdb.
func NewGormRunner(gdb *gorm.DB, seeders *Seeders) *GormRunner {
	if seeders == nil {
		seeders = NewSeeders()
	}
	return &GormRunner{db: gdb, seeders: seeders}
}

// Migrate creates or updates every table.
func (r *GormRunner) Migrate(ctx context.Context) error {
	return db.Migrate(r.db.WithContext(ctx))
}

// Fresh drops every table and migrates again. All data is lost.
func (r *GormRunner) Fresh(ctx context.Context) error {
	gdb := r.db.WithContext(ctx)
	if err := db.DropAll(gdb); err != nil {
		return err
	}
	return db.Migrate(gdb)
}

// Seed runs the named seeder, or all of them when class is empty.
func (r *GormRunner) Seed(ctx context.Context, class string) error {
	return r.seeders.Run(ctx, r.db, class)
}

// SeederNames lists the classes accepted by Seed.
func (r *GormRunner) SeederNames() []string {
	return r.seeders.Names()
}
