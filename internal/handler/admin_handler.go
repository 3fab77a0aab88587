package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/validation"
)

// ShowLoginPage 返回登录页所需数据
func (a *API) ShowLoginPage(c *gin.Context) {
	if a.sessions.IsAuthenticated(c) {
		c.Redirect(http.StatusFound, postIndexPath)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": "Login", "flash": consumeFlash(c)})
}

// Login 处理用户登录请求
func (a *API) Login(c *gin.Context) {
	var credentials struct {
		Username string `form:"username" json:"username"`
		Password string `form:"password" json:"password"`
	}
	if err := c.ShouldBind(&credentials); err != nil {
		a.respondServiceError(c, bindFailure(err), auth.LoginPath, nil)
		return
	}

	user, err := a.sessions.Login(c, credentials.Username, credentials.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			bag := validation.Errors{}
			bag.Add("username", "These credentials do not match our records.")
			if auth.ExpectsJSON(c) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"message": invalidDataMessage, "errors": bag})
				return
			}
			a.redirectBack(c, auth.LoginPath, bag, gin.H{"username": credentials.Username})
			return
		}
		a.respondServiceError(c, err, auth.LoginPath, nil)
		return
	}

	a.logger.InfoContext(c.Request.Context(), "user logged in", "user_id", user.ID, "username", user.Username)
	respondSuccess(c, http.StatusOK, postIndexPath, "Logged in", gin.H{"user": user})
}

// Logout 处理用户登出
func (a *API) Logout(c *gin.Context) {
	if err := a.sessions.Logout(c); err != nil {
		a.logger.ErrorContext(c.Request.Context(), "failed to clear session", "err", err)
	}
	if auth.ExpectsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
		return
	}
	c.Redirect(http.StatusFound, auth.LoginPath)
}
