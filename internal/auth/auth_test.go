package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/db"
)

func setupAuthDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:auth-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func createRole(t *testing.T, gdb *gorm.DB, name string, permissions ...string) db.Role {
	t.Helper()
	role := db.Role{Name: name}
	for _, p := range permissions {
		perm := db.Permission{Name: p}
		if err := gdb.Where(db.Permission{Name: p}).FirstOrCreate(&perm).Error; err != nil {
			t.Fatalf("create permission: %v", err)
		}
		role.Permissions = append(role.Permissions, perm)
	}
	if err := gdb.Create(&role).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}
	return role
}

func TestRoleCheckerResolvesPermissionsThroughRoles(t *testing.T) {
	gdb := setupAuthDB(t)
	createRole(t, gdb, "Writer", ViewPosts, CreatePosts)
	createRole(t, gdb, db.MasterRole)

	writer, err := db.EnsureUser(gdb, "writer", "secret", "Writer")
	if err != nil {
		t.Fatalf("ensure writer: %v", err)
	}
	master, err := db.EnsureUser(gdb, "root", "secret", db.MasterRole)
	if err != nil {
		t.Fatalf("ensure root: %v", err)
	}
	nobody, err := db.EnsureUser(gdb, "nobody", "secret")
	if err != nil {
		t.Fatalf("ensure nobody: %v", err)
	}

	checker := NewRoleChecker(gdb)
	ctx := context.Background()
	cases := []struct {
		user       uint
		permission string
		want       bool
	}{
		{writer.ID, CreatePosts, true},
		{writer.ID, DeletePosts, false},
		{master.ID, AccessDeveloperPanel, true},
		{nobody.ID, ViewPosts, false},
		{0, ViewPosts, false},
	}
	for _, tc := range cases {
		got, err := checker.Can(ctx, tc.user, tc.permission)
		if err != nil {
			t.Fatalf("Can(%d, %s): %v", tc.user, tc.permission, err)
		}
		if got != tc.want {
			t.Fatalf("Can(%d, %s) = %v, want %v", tc.user, tc.permission, got, tc.want)
		}
	}
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	gdb := setupAuthDB(t)
	if _, err := db.EnsureUser(gdb, "admin", "correct-horse"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	sa := NewSessionAuth(gdb)

	if _, err := sa.Authenticate(context.Background(), "admin", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := sa.Authenticate(context.Background(), "ghost", "correct-horse"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	user, err := sa.Authenticate(context.Background(), " admin ", "correct-horse")
	if err != nil || user.Username != "admin" {
		t.Fatalf("expected successful authentication, got %v (%v)", user, err)
	}
}

func newGuardedRouter(t *testing.T, gdb *gorm.DB, recorder activity.Recorder, auditDenied bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sa := NewSessionAuth(gdb)
	guard := &Guard{Sessions: sa, Checker: NewRoleChecker(gdb), Recorder: recorder, AuditDenied: auditDenied}

	r := gin.New()
	r.Use(sessions.Sessions("folio_test", cookie.NewStore([]byte("test-secret"))))
	r.POST("/admin/login", func(c *gin.Context) {
		if _, err := sa.Login(c, c.PostForm("username"), c.PostForm("password")); err != nil {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.Status(http.StatusNoContent)
	})
	protected := r.Group("/admin/api", guard.RequireLogin())
	protected.GET("/posts", guard.RequirePermission(ViewPosts), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func loginCookie(t *testing.T, r *gin.Engine, username, password string) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("login failed with status %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected session cookie")
	}
	return cookies[0]
}

func TestRequireLoginRedirectsAnonymousBrowsers(t *testing.T) {
	r := newGuardedRouter(t, setupAuthDB(t), nil, false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/api/posts", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != LoginPath {
		t.Fatalf("expected redirect to login, got %d %q", w.Code, w.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/api/posts", nil)
	req.Header.Set("Accept", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for JSON clients, got %d", w.Code)
	}
}

func TestRequirePermissionForbidsAndOptionallyAudits(t *testing.T) {
	gdb := setupAuthDB(t)
	createRole(t, gdb, "Reader", ViewPosts)
	if _, err := db.EnsureUser(gdb, "reader", "secret", "Reader"); err != nil {
		t.Fatalf("ensure reader: %v", err)
	}
	if _, err := db.EnsureUser(gdb, "guest", "secret"); err != nil {
		t.Fatalf("ensure guest: %v", err)
	}

	for _, auditDenied := range []bool{false, true} {
		recorder := &activity.MemoryRecorder{}
		r := newGuardedRouter(t, gdb, recorder, auditDenied)

		req := httptest.NewRequest(http.MethodGet, "/admin/api/posts", nil)
		req.AddCookie(loginCookie(t, r, "reader", "secret"))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected reader to be allowed, got %d", w.Code)
		}

		req = httptest.NewRequest(http.MethodGet, "/admin/api/posts", nil)
		req.AddCookie(loginCookie(t, r, "guest", "secret"))
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for guest, got %d", w.Code)
		}

		want := 0
		if auditDenied {
			want = 1
		}
		if got := len(recorder.ByChannel(activity.ChannelAuthorization)); got != want {
			t.Fatalf("auditDenied=%v: expected %d denied entries, got %d", auditDenied, want, got)
		}
	}
}
