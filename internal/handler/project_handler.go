package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/service"
)

const projectIndexPath = "/admin/api/projects"

// ListProjects 项目列表
func (a *API) ListProjects(c *gin.Context) {
	page, perPage, search := pageParams(c)
	result, err := a.projects.List(c.Request.Context(), service.ProjectFilter{
		Search:  search,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelProjects, "Accessed project index.")

	c.JSON(http.StatusOK, gin.H{
		"title":       "Projects",
		"projects":    result.Items,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total":       result.Total,
		"total_pages": result.TotalPages,
		"q":           search,
		"flash":       consumeFlash(c),
	})
}

// EditProjectForm returns a project for editing.
func (a *API) EditProjectForm(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	project, err := a.projects.Get(c.Request.Context(), id)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelProjects, fmt.Sprintf("Accessed edit page for project: %s", project.Title))

	c.JSON(http.StatusOK, gin.H{
		"title":   "Edit Project",
		"project": project,
		"flash":   consumeFlash(c),
	})
}

// CreateProject 创建项目
func (a *API) CreateProject(c *gin.Context) {
	back := projectIndexPath + "/create"
	var input service.ProjectInput
	if err := c.ShouldBind(&input); err != nil {
		a.respondServiceError(c, bindFailure(err), back, nil)
		return
	}

	project, entry, err := a.projects.Create(c.Request.Context(), a.sessions.Actor(c), input)
	if err != nil {
		a.respondServiceError(c, err, back, input)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusCreated, projectIndexPath, "Project created successfully", gin.H{"project": project})
}

// UpdateProject 更新项目
func (a *API) UpdateProject(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	back := fmt.Sprintf("%s/%d/edit", projectIndexPath, id)
	var input service.ProjectInput
	if err := c.ShouldBind(&input); err != nil {
		a.respondServiceError(c, bindFailure(err), back, nil)
		return
	}

	project, entry, err := a.projects.Update(c.Request.Context(), a.sessions.Actor(c), id, input)
	if err != nil {
		a.respondServiceError(c, err, back, input)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusOK, projectIndexPath, "Project updated successfully", gin.H{"project": project})
}

// DeleteProject 删除项目
func (a *API) DeleteProject(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	_, entry, err := a.projects.Delete(c.Request.Context(), a.sessions.Actor(c), id)
	if err != nil {
		a.respondServiceError(c, err, projectIndexPath, nil)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusOK, projectIndexPath, "Project deleted successfully", nil)
}
