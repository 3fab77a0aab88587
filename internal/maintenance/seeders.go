package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/db"
)

// ErrUnknownSeeder 表示 --class 指定的 seeder 未注册。
var ErrUnknownSeeder = errors.New("unknown seeder")

// DatabaseSeederName runs every other registered seeder in order.
const DatabaseSeederName = "DatabaseSeeder"

// Seeder fills the database with a fixed data set. Seeders skip rows that already exist.
type Seeder interface {
	Name() string
	Seed(ctx context.Context, gdb *gorm.DB) error
}

type seederFunc struct {
	name string
	fn   func(ctx context.Context, gdb *gorm.DB) error
}

func (s seederFunc) Name() string { return s.name }

func (s seederFunc) Seed(ctx context.Context, gdb *gorm.DB) error { return s.fn(ctx, gdb) }

// NewSeeder wraps fn as a named Seeder.
func NewSeeder(name string, fn func(ctx context.Context, gdb *gorm.DB) error) Seeder {
	return seederFunc{name: name, fn: fn}
}

// Seeders is an ordered registry of seeders.
type Seeders struct {
	order  []Seeder
	byName map[string]Seeder
}

// NewSeeders registers seeders in the order DatabaseSeeder runs them.
func NewSeeders(seeders ...Seeder) *Seeders {
	s := &Seeders{byName: make(map[string]Seeder, len(seeders))}
	for _, seeder := range seeders {
		s.order = append(s.order, seeder)
		s.byName[seeder.Name()] = seeder
	}
	return s
}

// Names returns DatabaseSeeder followed by every registered seeder.
func (s *Seeders) Names() []string {
	names := []string{DatabaseSeederName}
	for _, seeder := range s.order {
		names = append(names, seeder.Name())
	}
	return names
}

// Run 执行指定 seeder；class 为空或为 DatabaseSeeder 时按顺序执行全部。
// 带命名空间的类名（如 Database\Seeders\PostSeeder）只取最后一段。
func (s *Seeders) Run(ctx context.Context, gdb *gorm.DB, class string) error {
	name := class
	if idx := strings.LastIndex(name, `\`); idx >= 0 {
		name = name[idx+1:]
	}

	if name == "" || name == DatabaseSeederName {
		for _, seeder := range s.order {
			if err := seeder.Seed(ctx, gdb); err != nil {
				return fmt.Errorf("%s: %w", seeder.Name(), err)
			}
		}
		return nil
	}

	seeder, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSeeder, class)
	}
	if err := seeder.Seed(ctx, gdb); err != nil {
		return fmt.Errorf("%s: %w", seeder.Name(), err)
	}
	return nil
}

// Credentials for the bootstrap account created by UserSeeder.
type Credentials struct {
	Username string
	Password string
}

// DefaultSeeders returns the built-in seeders.
func DefaultSeeders(superRoot Credentials, logger *slog.Logger) *Seeders {
	if logger == nil {
		logger = slog.Default()
	}
	return NewSeeders(
		NewSeeder("RolePermissionSeeder", seedRolesAndPermissions),
		NewSeeder("UserSeeder", func(ctx context.Context, gdb *gorm.DB) error {
			return seedSuperRoot(ctx, gdb, superRoot, logger)
		}),
		NewSeeder("PostCategorySeeder", seedPostCategories),
		NewSeeder("PostSeeder", seedPosts),
		NewSeeder("ExperienceSeeder", seedExperiences),
		NewSeeder("ProjectSeeder", seedProjects),
	)
}

func seedRolesAndPermissions(ctx context.Context, gdb *gorm.DB) error {
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		permissions := make([]db.Permission, 0, len(auth.AllPermissions()))
		for _, name := range auth.AllPermissions() {
			permission := db.Permission{Name: name}
			if err := tx.Where("name = ?", name).FirstOrCreate(&permission).Error; err != nil {
				return err
			}
			permissions = append(permissions, permission)
		}

		role := db.Role{Name: db.MasterRole}
		if err := tx.Where("name = ?", db.MasterRole).FirstOrCreate(&role).Error; err != nil {
			return err
		}
		return tx.Model(&role).Association("Permissions").Replace(permissions)
	})
}

func seedSuperRoot(ctx context.Context, gdb *gorm.DB, creds Credentials, logger *slog.Logger) error {
	if strings.TrimSpace(creds.Username) == "" || strings.TrimSpace(creds.Password) == "" {
		logger.Warn("super root credentials not configured, skipping UserSeeder")
		return nil
	}
	_, err := db.EnsureUser(gdb.WithContext(ctx), creds.Username, creds.Password, db.MasterRole)
	return err
}

var seedCategories = []db.PostCategory{
	{Name: "Engineering", Slug: "engineering"},
	{Name: "Life", Slug: "life"},
	{Name: "Notes", Slug: "notes"},
}

func seedPostCategories(ctx context.Context, gdb *gorm.DB) error {
	tx := gdb.WithContext(ctx)
	for _, category := range seedCategories {
		row := category
		if err := tx.Where("slug = ?", row.Slug).FirstOrCreate(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedPosts(ctx context.Context, gdb *gorm.DB) error {
	tx := gdb.WithContext(ctx)

	var count int64
	if err := tx.Model(&db.Post{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if err := seedPostCategories(ctx, gdb); err != nil {
		return err
	}
	var category db.PostCategory
	if err := tx.Where("slug = ?", seedCategories[0].Slug).First(&category).Error; err != nil {
		return err
	}

	// 作者可选，没有用户时留空
	var author db.User
	authorID := uint(0)
	if err := tx.Order("id asc").First(&author).Error; err == nil {
		authorID = author.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	published := now.Add(-48 * time.Hour)
	scheduled := now.Add(7 * 24 * time.Hour)
	posts := []db.Post{
		{
			Title:       "Hello, world",
			Slug:        "hello-world",
			Body:        "## Hello\n\nThis is the first post on the blog.",
			Status:      db.PostStatusPublished,
			PublishedAt: &published,
		},
		{
			Title:       "Building services in Go",
			Slug:        "building-services-in-go",
			Body:        "Notes on structuring small **Go** services.",
			Status:      db.PostStatusScheduled,
			PublishedAt: &scheduled,
		},
		{
			Title:  "Work in progress",
			Slug:   "work-in-progress",
			Body:   "Draft content.",
			Status: db.PostStatusDraft,
		},
	}
	for i := range posts {
		posts[i].PostCategoryID = category.ID
		posts[i].UserID = authorID
	}
	return tx.Omit(clause.Associations).Create(&posts).Error
}

func seedExperiences(ctx context.Context, gdb *gorm.DB) error {
	tx := gdb.WithContext(ctx)

	var count int64
	if err := tx.Model(&db.Experience{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	previousEnd := time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)
	experiences := []db.Experience{
		{
			PositionName:    "Backend Engineer",
			CompanyName:     "Acme",
			Desc:            "Built and operated the billing platform.",
			CompanyLogoSize: db.DefaultCompanyLogoSize,
			StartDate:       time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:         &previousEnd,
		},
		{
			PositionName:    "Staff Engineer",
			CompanyName:     "Globex",
			Desc:            "Leading the infrastructure team.",
			CompanyLogoSize: db.DefaultCompanyLogoSize,
			StartDate:       time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC),
		},
	}
	return tx.Create(&experiences).Error
}

func seedProjects(ctx context.Context, gdb *gorm.DB) error {
	tx := gdb.WithContext(ctx)
	projects := []db.Project{
		{Title: "Folio", Slug: "folio", Content: "The engine behind this site."},
		{Title: "Dotfiles", Slug: "dotfiles", Content: "Shell and editor configuration."},
	}
	for _, project := range projects {
		row := project
		if err := tx.Where("slug = ?", row.Slug).FirstOrCreate(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
