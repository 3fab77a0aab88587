package router

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/db"
	"github.com/folio/internal/handler"
	"github.com/folio/internal/storage"
)

func newTestRouter(t *testing.T, uploadDir string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	api := handler.NewAPI(handler.Dependencies{
		DB: gdb,
		Images: storage.NewLocalManager(map[string]storage.Disk{
			storage.DefaultDisk: {Root: uploadDir, URL: "/static/uploads"},
		}, storage.Options{}),
		Recorder: &activity.MemoryRecorder{},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return SetupRouter(api, Options{
		SessionSecret: "test-secret",
		UploadDir:     uploadDir,
		UploadURLPath: "/static/uploads",
	})
}

func TestSetupRouterServesUploads(t *testing.T) {
	uploadDir := t.TempDir()
	fileContent := []byte("hello uploads")
	if err := os.WriteFile(filepath.Join(uploadDir, "example.txt"), fileContent, 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	r := newTestRouter(t, uploadDir)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/uploads/example.txt", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != string(fileContent) {
		t.Fatalf("unexpected body, got %q", rr.Body.String())
	}
}

func TestPingAndHealthz(t *testing.T) {
	r := newTestRouter(t, t.TempDir())

	for _, path := range []string{"/ping", "/healthz"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestAdminRoutesRequireLogin(t *testing.T) {
	r := newTestRouter(t, t.TempDir())

	paths := []string{
		"/admin",
		"/admin/api/posts",
		"/admin/api/post-categories",
		"/admin/api/experiences",
		"/admin/api/projects",
		"/admin/api/roles",
		"/admin/api/developer",
		"/admin/api/activity",
	}
	for _, path := range paths {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/admin/login" {
			t.Fatalf("%s: expected redirect to login, got %d %q", path, rr.Code, rr.Header().Get("Location"))
		}

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept", "application/json")
		rr = httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 for JSON clients, got %d", path, rr.Code)
		}
	}
}

func TestLoginPageIsPublic(t *testing.T) {
	r := newTestRouter(t, t.TempDir())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected login page to render, got %d", rr.Code)
	}
}
