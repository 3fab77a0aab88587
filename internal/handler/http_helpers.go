package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/service"
	"github.com/folio/internal/storage"
	"github.com/folio/internal/validation"
)

// Flash keys stored on the session between a redirect and the next page.
const (
	flashSuccess = "success"
	flashErrors  = "errors"
	flashOld     = "old"
)

const invalidDataMessage = "The given data was invalid."

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parsePositiveInt(value string, fallback int) int {
	num, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || num <= 0 {
		return fallback
	}
	return num
}

// pageParams reads ?page=&limit=&q= the way every index does.
func pageParams(c *gin.Context) (page, perPage int, search string) {
	return parsePositiveInt(c.Query("page"), 1),
		parsePositiveInt(c.DefaultQuery("limit", c.Query("per_page")), 10),
		strings.TrimSpace(c.Query("q"))
}

// uploadedFile returns the multipart file under field, or nil when none was sent.
func uploadedFile(c *gin.Context, field string) *storage.File {
	fh, err := c.FormFile(field)
	if err != nil || fh == nil || fh.Size == 0 {
		return nil
	}
	file := storage.FromMultipart(fh)
	return &file
}

// respondSuccess 对 JSON 客户端返回数据，对浏览器写入 success flash 并重定向。
func respondSuccess(c *gin.Context, status int, location, message string, payload gin.H) {
	if auth.ExpectsJSON(c) {
		body := gin.H{"message": message}
		for k, v := range payload {
			body[k] = v
		}
		c.JSON(status, body)
		return
	}

	session := sessions.Default(c)
	session.AddFlash(message, flashSuccess)
	_ = session.Save()
	c.Redirect(http.StatusFound, location)
}

// respondServiceError maps service errors onto HTTP responses. Browsers are sent back
// to the form with the errors and their old input flashed.
func (a *API) respondServiceError(c *gin.Context, err error, back string, old interface{}) {
	if bag, ok := validation.As(err); ok {
		if auth.ExpectsJSON(c) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": invalidDataMessage, "errors": bag})
			return
		}
		a.redirectBack(c, back, bag, old)
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrCategoryInUse), errors.Is(err, service.ErrRoleProtected):
		if auth.ExpectsJSON(c) {
			respondError(c, http.StatusConflict, err.Error())
			return
		}
		a.redirectBack(c, back, validation.Errors{"error": {err.Error()}}, nil)
	default:
		a.logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "err", err)
		respondError(c, http.StatusInternalServerError, "Something went wrong.")
	}
}

func (a *API) redirectBack(c *gin.Context, back string, bag validation.Errors, old interface{}) {
	session := sessions.Default(c)
	if encoded, err := json.Marshal(bag); err == nil {
		session.AddFlash(string(encoded), flashErrors)
	}
	if old != nil {
		if encoded, err := json.Marshal(old); err == nil {
			session.AddFlash(string(encoded), flashOld)
		}
	}
	_ = session.Save()

	if back == "" {
		back = c.GetHeader("Referer")
	}
	if back == "" {
		back = "/admin"
	}
	c.Redirect(http.StatusFound, back)
}

// consumeFlash 读取并清空上一次重定向留下的 flash 数据。
func consumeFlash(c *gin.Context) gin.H {
	session := sessions.Default(c)
	out := gin.H{}

	if values := session.Flashes(flashSuccess); len(values) > 0 {
		out[flashSuccess] = values[len(values)-1]
	}
	for _, key := range []string{flashErrors, flashOld} {
		values := session.Flashes(key)
		if len(values) == 0 {
			continue
		}
		raw, ok := values[len(values)-1].(string)
		if !ok {
			continue
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			out[key] = decoded
		}
	}

	if len(out) > 0 {
		_ = session.Save()
	}
	return out
}
