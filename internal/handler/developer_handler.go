package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/auth"
	"github.com/folio/internal/maintenance"
	"github.com/folio/internal/validation"
)

const developerPanelPath = "/admin/api/developer"

// ShowDeveloperPanel 列出允许执行的维护命令与 seeder。
func (a *API) ShowDeveloperPanel(c *gin.Context) {
	if a.maintenance == nil {
		respondError(c, http.StatusServiceUnavailable, "maintenance commands are not available")
		return
	}

	panel, err := a.maintenance.Panel(c.Request.Context(), a.sessions.Actor(c))
	if err != nil {
		a.logger.ErrorContext(c.Request.Context(), "failed to record developer panel access", "err", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"title":    "Developer Panel",
		"commands": panel.Commands,
		"seeders":  panel.Seeders,
		"flash":    consumeFlash(c),
	})
}

// RunCommand executes the command submitted in the code field.
func (a *API) RunCommand(c *gin.Context) {
	if a.maintenance == nil {
		respondError(c, http.StatusServiceUnavailable, "maintenance commands are not available")
		return
	}

	code := c.PostForm("code")
	if code == "" && strings.HasPrefix(c.ContentType(), "application/json") {
		var body struct {
			Code string `json:"code"`
		}
		if err := c.ShouldBindJSON(&body); err == nil {
			code = body.Code
		}
	}

	cmd, err := a.maintenance.Execute(c.Request.Context(), a.sessions.Actor(c), code)
	switch {
	case err == nil:
		respondSuccess(c, http.StatusOK, developerPanelPath, "Command executed successfully", gin.H{
			"command": cmd.String(),
		})
	case errors.Is(err, maintenance.ErrUnrecognizedCommand), errors.Is(err, maintenance.ErrUnknownSeeder):
		bag := validation.Errors{}
		if errors.Is(err, maintenance.ErrUnrecognizedCommand) {
			bag.Add("code", "Invalid command")
		} else {
			bag.Add("code", "Unknown seeder class")
		}
		if auth.ExpectsJSON(c) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": invalidDataMessage, "errors": bag})
			return
		}
		a.redirectBack(c, developerPanelPath, bag, gin.H{"code": code})
	default:
		if auth.ExpectsJSON(c) {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		a.redirectBack(c, developerPanelPath, validation.Errors{"code": {err.Error()}}, gin.H{"code": code})
	}
}

// ListActivity pages through the audit trail, newest first.
func (a *API) ListActivity(c *gin.Context) {
	if a.activities == nil {
		respondError(c, http.StatusServiceUnavailable, "activity log is not available")
		return
	}

	page, perPage, _ := pageParams(c)
	filter := activity.Filter{
		Channel: strings.TrimSpace(c.Query("log_name")),
		Page:    page,
		PerPage: perPage,
	}
	if raw := strings.TrimSpace(c.Query("causer_id")); raw != "" {
		filter.CauserID = uint(parsePositiveInt(raw, 0))
	}

	result, err := a.activities.List(c.Request.Context(), filter)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":       "Activity Log",
		"activities":  result.Entries,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total":       result.Total,
		"total_pages": result.TotalPages,
	})
}
