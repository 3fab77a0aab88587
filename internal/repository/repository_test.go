package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/folio/internal/db"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:repository-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedProjects(t *testing.T, repo *Gorm[db.Project], titles ...string) []db.Project {
	t.Helper()

	out := make([]db.Project, 0, len(titles))
	for i, title := range titles {
		project := db.Project{Title: title, Slug: fmt.Sprintf("project-%d", i+1), Content: "content of " + title}
		if err := repo.Create(context.Background(), &project); err != nil {
			t.Fatalf("create project: %v", err)
		}
		out = append(out, project)
	}
	return out
}

func TestFindAndFindBySlug(t *testing.T) {
	repo := New[db.Project](setupTestDB(t))
	projects := seedProjects(t, repo, "Alpha")

	found, err := repo.Find(context.Background(), projects[0].ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Title != "Alpha" {
		t.Fatalf("expected Alpha, got %q", found.Title)
	}

	bySlug, err := repo.FindBySlug(context.Background(), "project-1")
	if err != nil {
		t.Fatalf("find by slug: %v", err)
	}
	if bySlug.ID != projects[0].ID {
		t.Fatalf("expected id %d, got %d", projects[0].ID, bySlug.ID)
	}

	if _, err := repo.Find(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.FindBySlug(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank slug, got %v", err)
	}
}

func TestCreateDuplicateSlugReturnsErrDuplicate(t *testing.T) {
	repo := New[db.Project](setupTestDB(t))
	seedProjects(t, repo, "Alpha")

	dup := db.Project{Title: "Other", Slug: "project-1", Content: "x"}
	if err := repo.Create(context.Background(), &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUpdateWritesAttributesAndReloads(t *testing.T) {
	repo := New[db.Project](setupTestDB(t))
	project := seedProjects(t, repo, "Alpha")[0]

	if err := repo.Update(context.Background(), &project, map[string]interface{}{"title": "Beta", "content": ""}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if project.Title != "Beta" || project.Content != "" {
		t.Fatalf("unexpected project after update: %+v", project)
	}
	if project.Slug != "project-1" {
		t.Fatalf("expected slug to be kept, got %q", project.Slug)
	}
}

func TestDeleteRemovesExactlyOneRow(t *testing.T) {
	gdb := setupTestDB(t)
	repo := New[db.Project](gdb)
	projects := seedProjects(t, repo, "Alpha", "Beta")

	if err := repo.Delete(context.Background(), &projects[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var count int64
	gdb.Model(&db.Project{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 remaining project, got %d", count)
	}
	if err := repo.Delete(context.Background(), &projects[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSlugTakenExcludesCurrentRow(t *testing.T) {
	repo := New[db.Project](setupTestDB(t))
	project := seedProjects(t, repo, "Alpha")[0]

	taken, err := repo.SlugTaken(context.Background(), "project-1", 0)
	if err != nil || !taken {
		t.Fatalf("expected slug to be taken, got %v (%v)", taken, err)
	}

	taken, err = repo.SlugTaken(context.Background(), "project-1", project.ID)
	if err != nil || taken {
		t.Fatalf("expected slug to be free for its own row, got %v (%v)", taken, err)
	}
}

func TestPaginateSearchesCaseInsensitively(t *testing.T) {
	repo := New[db.Project](setupTestDB(t))
	seedProjects(t, repo, "Go Service", "Rust CLI", "go tooling", "Notes")

	page, err := repo.Paginate(context.Background(), Query{
		Search:        "GO",
		SearchColumns: []string{"title", "slug"},
		PerPage:       10,
	})
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 matches, got total=%d items=%d", page.Total, len(page.Items))
	}
	// id desc tiebreaker
	if page.Items[0].Title != "go tooling" {
		t.Fatalf("expected newest match first, got %q", page.Items[0].Title)
	}
}

func TestPaginateSplitsPages(t *testing.T) {
	repo := New[db.Project](setupTestDB(t))
	seedProjects(t, repo, "a", "b", "c", "d", "e")

	page, err := repo.Paginate(context.Background(), Query{Page: 3, PerPage: 2})
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if page.TotalPages != 3 || len(page.Items) != 1 {
		t.Fatalf("expected last page with one item, got pages=%d items=%d", page.TotalPages, len(page.Items))
	}
	if page.HasMore() {
		t.Fatalf("expected last page to report no more pages")
	}
}

func TestSearchClauseEscapesWildcards(t *testing.T) {
	clause, args := SearchClause("50%_off", []string{"title"})
	if clause != `(LOWER(title) LIKE ? ESCAPE '\')` {
		t.Fatalf("unexpected clause %q", clause)
	}
	if len(args) != 1 || args[0] != `%50\%\_off%` {
		t.Fatalf("unexpected args %#v", args)
	}

	if clause, _ := SearchClause("   ", []string{"title"}); clause != "" {
		t.Fatalf("expected empty clause for blank search, got %q", clause)
	}
}
