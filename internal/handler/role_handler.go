package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/service"
)

const roleIndexPath = "/admin/api/roles"

// ListRoles 角色列表及全部可分配的权限。
func (a *API) ListRoles(c *gin.Context) {
	page, perPage, search := pageParams(c)
	result, err := a.roles.List(c.Request.Context(), service.RoleFilter{
		Search:  search,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}
	permissions, err := a.roles.Permissions(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelRoles, "Accessed role index.")

	c.JSON(http.StatusOK, gin.H{
		"title":       "Roles",
		"roles":       result.Items,
		"permissions": permissions,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total":       result.Total,
		"total_pages": result.TotalPages,
		"q":           search,
		"flash":       consumeFlash(c),
	})
}

// EditRoleForm returns a role and the assignable permissions.
func (a *API) EditRoleForm(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	role, err := a.roles.Get(c.Request.Context(), id)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}
	permissions, err := a.roles.Permissions(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelRoles, fmt.Sprintf("Accessed edit page for role: %s", role.Name))

	c.JSON(http.StatusOK, gin.H{
		"title":       "Edit Role",
		"role":        role,
		"permissions": permissions,
		"flash":       consumeFlash(c),
	})
}

// CreateRole 创建角色
func (a *API) CreateRole(c *gin.Context) {
	var input service.RoleInput
	if err := c.ShouldBind(&input); err != nil {
		a.respondServiceError(c, bindFailure(err), roleIndexPath, nil)
		return
	}

	role, entry, err := a.roles.Create(c.Request.Context(), a.sessions.Actor(c), input)
	if err != nil {
		a.respondServiceError(c, err, roleIndexPath, input)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusCreated, roleIndexPath, "Role created successfully", gin.H{"role": role})
}

// UpdateRole 更新角色名称与权限。
func (a *API) UpdateRole(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	back := fmt.Sprintf("%s/%d/edit", roleIndexPath, id)
	var input service.RoleInput
	if err := c.ShouldBind(&input); err != nil {
		a.respondServiceError(c, bindFailure(err), back, nil)
		return
	}

	role, entry, err := a.roles.Update(c.Request.Context(), a.sessions.Actor(c), id, input)
	if err != nil {
		a.respondServiceError(c, err, back, input)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusOK, roleIndexPath, "Role updated successfully", gin.H{"role": role})
}

// DeleteRole 删除角色，Master 角色受保护。
func (a *API) DeleteRole(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	_, entry, err := a.roles.Delete(c.Request.Context(), a.sessions.Actor(c), id)
	if err != nil {
		a.respondServiceError(c, err, roleIndexPath, nil)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusOK, roleIndexPath, "Role deleted successfully", nil)
}
