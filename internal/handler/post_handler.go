package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/db"
	"github.com/folio/internal/service"
	"github.com/folio/internal/validation"
	"github.com/folio/internal/view"
)

const postIndexPath = "/admin/api/posts"

type postPayload struct {
	db.Post
	CoverURL string           `json:"cover_url"`
	Badge    view.StatusBadge `json:"status_badge"`
	Views    uint64           `json:"views"`
}

func (a *API) presentPost(post db.Post, views uint64) postPayload {
	payload := postPayload{
		Post:  post,
		Badge: view.PostStatusPresentation(post.Status),
		Views: views,
	}
	if a.images != nil {
		payload.CoverURL = a.images.URL(post.Cover)
	}
	return payload
}

// ListPosts returns paginated posts for the admin table.
func (a *API) ListPosts(c *gin.Context) {
	page, perPage, search := pageParams(c)
	filter := service.PostFilter{
		Search:  search,
		Status:  strings.TrimSpace(c.Query("status")),
		Page:    page,
		PerPage: perPage,
	}
	if raw := strings.TrimSpace(c.Query("category_id")); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			filter.CategoryID = uint(id)
		}
	}

	result, err := a.posts.List(c.Request.Context(), filter)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	ids := make([]uint, 0, len(result.Items))
	for _, post := range result.Items {
		ids = append(ids, post.ID)
	}
	totals, err := a.views.Totals(c.Request.Context(), ids)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	items := make([]postPayload, 0, len(result.Items))
	for _, post := range result.Items {
		items = append(items, a.presentPost(post, totals[post.ID]))
	}

	counts, err := a.posts.Counts(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelPosts, "Accessed post index.")

	c.JSON(http.StatusOK, gin.H{
		"title":       "Posts",
		"posts":       items,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total":       result.Total,
		"total_pages": result.TotalPages,
		"has_more":    result.HasMore(),
		"counts":      counts,
		"statuses":    view.PostStatusOptions(),
		"q":           search,
		"flash":       consumeFlash(c),
	})
}

// NewPostForm returns the data needed by the create form.
func (a *API) NewPostForm(c *gin.Context) {
	categories, err := a.categories.All(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelPosts, "Accessed create post page.")

	c.JSON(http.StatusOK, gin.H{
		"title":      "New Post",
		"categories": categories,
		"statuses":   view.PostStatusOptions(),
		"flash":      consumeFlash(c),
	})
}

// GetPost 获取单篇文章
func (a *API) GetPost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	post, err := a.posts.Get(c.Request.Context(), id)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	views, err := a.views.Totals(c.Request.Context(), []uint{post.ID})
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": a.presentPost(*post, views[post.ID])})
}

// EditPostForm returns the post and form options, and records the visit.
func (a *API) EditPostForm(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	post, err := a.posts.Get(c.Request.Context(), id)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}
	categories, err := a.categories.All(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelPosts, fmt.Sprintf("Accessed edit page for post: %s", post.Title))

	c.JSON(http.StatusOK, gin.H{
		"title":      "Edit Post",
		"post":       a.presentPost(*post, 0),
		"categories": categories,
		"statuses":   view.PostStatusOptions(),
		"flash":      consumeFlash(c),
	})
}

// CreatePost 创建新文章，封面图通过 multipart 字段 cover 上传。
func (a *API) CreatePost(c *gin.Context) {
	var input service.PostInput
	if err := c.ShouldBind(&input); err != nil {
		a.respondServiceError(c, bindFailure(err), "/admin/api/posts/create", nil)
		return
	}
	input.Cover = uploadedFile(c, "cover")

	post, entry, err := a.posts.Create(c.Request.Context(), a.sessions.Actor(c), input)
	if err != nil {
		a.respondServiceError(c, err, "/admin/api/posts/create", input)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusCreated, postIndexPath, "Post created successfully", gin.H{
		"post": a.presentPost(*post, 0),
	})
}

// UpdatePost 更新文章，未提交的字段保持原值。
func (a *API) UpdatePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var input service.PostInput
	back := fmt.Sprintf("/admin/api/posts/%d/edit", id)
	if err := c.ShouldBind(&input); err != nil {
		a.respondServiceError(c, bindFailure(err), back, nil)
		return
	}
	input.Cover = uploadedFile(c, "cover")

	post, entry, err := a.posts.Update(c.Request.Context(), a.sessions.Actor(c), id, input)
	if err != nil {
		a.respondServiceError(c, err, back, input)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusOK, postIndexPath, "Post updated successfully", gin.H{
		"post": a.presentPost(*post, 0),
	})
}

// DeletePost 删除文章及其封面与浏览统计。
func (a *API) DeletePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	_, entry, err := a.posts.Delete(c.Request.Context(), a.sessions.Actor(c), id)
	if err != nil {
		a.respondServiceError(c, err, postIndexPath, nil)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusOK, postIndexPath, "Post deleted successfully", nil)
}

// GetPostViews returns per-day view counts, the last 30 days by default.
func (a *API) GetPostViews(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := a.posts.Get(c.Request.Context(), id); err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -29)
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		parsed, err := validation.ParseDate(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid from date")
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		parsed, err := validation.ParseDate(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid to date")
			return
		}
		to = parsed
	}

	daily, err := a.views.Daily(c.Request.Context(), id, from, to)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	var total uint64
	for _, d := range daily {
		total += d.Views
	}
	c.JSON(http.StatusOK, gin.H{"post_id": id, "daily": daily, "total": total})
}

// bindFailure turns a binding error into a validation bag so it is reported like one.
func bindFailure(err error) error {
	bag := validation.Errors{}
	bag.Add("request", err.Error())
	return bag
}
