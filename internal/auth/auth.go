// Package auth resolves the session user and guards admin routes by permission.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/db"
)

// Session keys.
const (
	SessionUserID   = "user_id"
	SessionUsername = "username"

	currentUserKey = "auth.current_user"
	// LoginPath is where anonymous browser requests are sent.
	LoginPath = "/admin/login"
)

var (
	// ErrInvalidCredentials 表示用户名或密码错误。
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrForbidden 表示当前用户缺少所需权限。
	ErrForbidden = errors.New("this action is unauthorized")
)

// PermissionChecker answers whether a user holds a permission.
type PermissionChecker interface {
	Can(ctx context.Context, userID uint, permission string) (bool, error)
}

// RoleChecker resolves permissions through user → roles → permissions.
// Members of db.MasterRole hold every permission.
type RoleChecker struct {
	db *gorm.DB
}

// NewRoleChecker creates a gorm-backed checker.
func NewRoleChecker(gdb *gorm.DB) *RoleChecker {
	return &RoleChecker{db: gdb}
}

// Can implements PermissionChecker.
func (r *RoleChecker) Can(ctx context.Context, userID uint, permission string) (bool, error) {
	if userID == 0 || strings.TrimSpace(permission) == "" {
		return false, nil
	}

	var master int64
	err := r.db.WithContext(ctx).Table("roles").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ? AND roles.name = ?", userID, db.MasterRole).
		Count(&master).Error
	if err != nil {
		return false, fmt.Errorf("check master role: %w", err)
	}
	if master > 0 {
		return true, nil
	}

	var granted int64
	err = r.db.WithContext(ctx).Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ? AND permissions.name = ?", userID, permission).
		Count(&granted).Error
	if err != nil {
		return false, fmt.Errorf("check permission: %w", err)
	}
	return granted > 0, nil
}

// SessionAuth reads and writes the logged-in user on the cookie session.
type SessionAuth struct {
	db *gorm.DB
}

// NewSessionAuth creates a session authenticator.
func NewSessionAuth(gdb *gorm.DB) *SessionAuth {
	return &SessionAuth{db: gdb}
}

// Authenticate verifies credentials with bcrypt.
func (a *SessionAuth) Authenticate(ctx context.Context, username, password string) (*db.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user db.User
	if err := a.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Login 校验账号并写入会话。
func (a *SessionAuth) Login(c *gin.Context, username, password string) (*db.User, error) {
	user, err := a.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		return nil, err
	}

	session := sessions.Default(c)
	session.Set(SessionUserID, user.ID)
	session.Set(SessionUsername, user.Username)
	if err := session.Save(); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	c.Set(currentUserKey, user)
	return user, nil
}

// Logout clears the session.
func (a *SessionAuth) Logout(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

// IsAuthenticated reports whether the session carries a user id.
func (a *SessionAuth) IsAuthenticated(c *gin.Context) bool {
	_, ok := a.CurrentUser(c)
	return ok
}

// CurrentUser loads the session user once per request.
func (a *SessionAuth) CurrentUser(c *gin.Context) (*db.User, bool) {
	if cached, ok := c.Get(currentUserKey); ok {
		user, ok := cached.(*db.User)
		return user, ok && user != nil
	}

	id, ok := sessionUserID(c)
	if !ok {
		return nil, false
	}

	var user db.User
	if err := a.db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		return nil, false
	}
	c.Set(currentUserKey, &user)
	return &user, true
}

// Actor returns the audit actor for the current request.
func (a *SessionAuth) Actor(c *gin.Context) activity.Actor {
	user, ok := a.CurrentUser(c)
	if !ok {
		return activity.Actor{Name: "guest"}
	}
	return activity.Actor{ID: user.ID, Name: user.DisplayName()}
}

func sessionUserID(c *gin.Context) (uint, bool) {
	switch v := sessions.Default(c).Get(SessionUserID).(type) {
	case uint:
		return v, v > 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case uint64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}

// ExpectsJSON reports whether the client asked for a JSON response.
func ExpectsJSON(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	if strings.EqualFold(c.GetHeader("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return strings.HasPrefix(c.ContentType(), "application/json")
}

// Guard builds the login and permission middleware.
type Guard struct {
	Sessions *SessionAuth
	Checker  PermissionChecker
	Recorder activity.Recorder
	// AuditDenied 为 true 时，权限拒绝也会写入审计日志。
	AuditDenied bool
}

// RequireLogin 未登录时浏览器重定向到登录页，JSON 客户端返回 401。
func (g *Guard) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.Sessions.IsAuthenticated(c) {
			c.Next()
			return
		}
		if ExpectsJSON(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated."})
			return
		}
		c.Redirect(http.StatusFound, LoginPath)
		c.Abort()
	}
}

// RequirePermission aborts with 403 unless the current user holds permission.
func (g *Guard) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := g.Sessions.CurrentUser(c)
		if !ok {
			g.RequireLogin()(c)
			return
		}

		allowed, err := g.Checker.Can(c.Request.Context(), user.ID, permission)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to check permission"})
			return
		}
		if allowed {
			c.Next()
			return
		}

		if g.AuditDenied && g.Recorder != nil {
			entry := activity.NewEntry(activity.ChannelAuthorization,
				activity.Actor{ID: user.ID, Name: user.DisplayName()},
				activity.EventDenied,
				fmt.Sprintf("Denied %s on %s %s", permission, c.Request.Method, c.FullPath())).
				With("permission", permission)
			_ = g.Recorder.Record(c.Request.Context(), entry)
		}

		if ExpectsJSON(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "This action is unauthorized."})
			return
		}
		c.String(http.StatusForbidden, "This action is unauthorized.")
		c.Abort()
	}
}
