package handler

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/folio/internal/db"
	"github.com/folio/internal/service"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

type publicPost struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Category    string     `json:"category"`
	Author      string     `json:"author,omitempty"`
	CoverURL    string     `json:"cover_url"`
	PublishedAt *time.Time `json:"published_at"`
	HTML        string     `json:"html,omitempty"`
}

func (a *API) presentPublicPost(post db.Post, withBody bool) (publicPost, error) {
	out := publicPost{
		ID:          post.ID,
		Title:       post.Title,
		Slug:        post.Slug,
		Category:    post.PostCategory.Name,
		Author:      post.User.DisplayName(),
		PublishedAt: post.PublishedAt,
	}
	if a.images != nil {
		out.CoverURL = a.images.URL(post.Cover)
	}
	if withBody {
		rendered, err := renderMarkdown(post.Body)
		if err != nil {
			return out, err
		}
		out.HTML = rendered
	}
	return out, nil
}

// ListPublicPosts lists visible posts, newest first.
func (a *API) ListPublicPosts(c *gin.Context) {
	page := parsePositiveInt(c.Query("page"), 1)
	result, err := a.posts.ListPublished(c.Request.Context(), page, 10)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	posts := make([]publicPost, 0, len(result.Items))
	for _, post := range result.Items {
		item, _ := a.presentPublicPost(post, false)
		posts = append(posts, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":     posts,
		"page":      result.Page,
		"has_more":  result.HasMore(),
		"next_page": result.Page + 1,
	})
}

// ShowPost renders a visible post with its markdown body.
func (a *API) ShowPost(c *gin.Context) {
	post, err := a.posts.PublishedBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		a.respondServiceError(c, err, "", nil)
		return
	}

	payload, err := a.presentPublicPost(*post, true)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "渲染内容失败")
		return
	}

	views, err := a.views.Count(c.Request.Context(), post.ID, time.Now())
	if err != nil {
		c.Error(err) // 不中断渲染，但记录错误
	}

	c.JSON(http.StatusOK, gin.H{"post": payload, "views_today": views})
}

// ShowProject renders a project page.
func (a *API) ShowProject(c *gin.Context) {
	project, err := a.projects.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		a.respondServiceError(c, err, "", nil)
		return
	}

	content, err := renderMarkdown(project.Content)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "渲染内容失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project": gin.H{
			"id":    project.ID,
			"title": project.Title,
			"slug":  project.Slug,
			"html":  content,
		},
	})
}

// ShowAbout returns the experience timeline, current positions first.
func (a *API) ShowAbout(c *gin.Context) {
	experiences, err := a.experiences.Timeline(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	timeline := make([]gin.H, 0, len(experiences))
	for _, e := range experiences {
		desc, err := renderMarkdown(e.Desc)
		if err != nil {
			desc = ""
		}
		item := a.presentExperience(e)
		timeline = append(timeline, gin.H{
			"position_name":     item.PositionName,
			"company_name":      item.CompanyName,
			"company_logo_url":  item.CompanyLogoURL,
			"company_logo_size": item.CompanyLogoSize,
			"start_date":        item.StartDate,
			"end_date":          item.EndDate,
			"is_current":        item.Current,
			"html":              desc,
		})
	}

	c.JSON(http.StatusOK, gin.H{"title": "About", "experiences": timeline})
}

// Healthz reports whether the database answers.
func (a *API) Healthz(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func renderMarkdown(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return string(sanitizer.SanitizeBytes(buf.Bytes())), nil
}
