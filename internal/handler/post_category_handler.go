package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/service"
)

const categoryIndexPath = "/admin/api/post-categories"

// ListPostCategories returns categories with their post counts.
func (a *API) ListPostCategories(c *gin.Context) {
	page, perPage, search := pageParams(c)
	result, err := a.categories.List(c.Request.Context(), service.CategoryFilter{
		Search:  search,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelPostCategories, "Accessed post category index.")

	c.JSON(http.StatusOK, gin.H{
		"title":       "Post Categories",
		"categories":  result.Items,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total":       result.Total,
		"total_pages": result.TotalPages,
		"q":           search,
		"flash":       consumeFlash(c),
	})
}

// EditPostCategoryForm returns a category for editing.
func (a *API) EditPostCategoryForm(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	category, err := a.categories.Get(c.Request.Context(), id)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelPostCategories, fmt.Sprintf("Accessed edit page for post category: %s", category.Name))

	c.JSON(http.StatusOK, gin.H{
		"title":    "Edit Post Category",
		"category": category,
		"flash":    consumeFlash(c),
	})
}

// CreatePostCategory 创建分类
func (a *API) CreatePostCategory(c *gin.Context) {
	var input service.CategoryInput
	if err := c.ShouldBind(&input); err != nil {
		a.respondServiceError(c, bindFailure(err), categoryIndexPath, nil)
		return
	}

	category, entry, err := a.categories.Create(c.Request.Context(), a.sessions.Actor(c), input)
	if err != nil {
		a.respondServiceError(c, err, categoryIndexPath, input)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusCreated, categoryIndexPath, "Post category created successfully", gin.H{"category": category})
}

// UpdatePostCategory 更新分类
func (a *API) UpdatePostCategory(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var input service.CategoryInput
	back := fmt.Sprintf("%s/%d/edit", categoryIndexPath, id)
	if err := c.ShouldBind(&input); err != nil {
		a.respondServiceError(c, bindFailure(err), back, nil)
		return
	}

	category, entry, err := a.categories.Update(c.Request.Context(), a.sessions.Actor(c), id, input)
	if err != nil {
		a.respondServiceError(c, err, back, input)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusOK, categoryIndexPath, "Post category updated successfully", gin.H{"category": category})
}

// DeletePostCategory 删除分类，仍被文章引用时拒绝。
func (a *API) DeletePostCategory(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	_, entry, err := a.categories.Delete(c.Request.Context(), a.sessions.Actor(c), id)
	if err != nil {
		a.respondServiceError(c, err, categoryIndexPath, nil)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusOK, categoryIndexPath, "Post category deleted successfully", nil)
}
