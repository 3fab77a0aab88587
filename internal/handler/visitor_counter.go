package handler

import (
	"time"

	"github.com/gin-gonic/gin"
)

// VisitorCounter 在 /posts/:slug 请求前为文章累加当日浏览数。
// 登录用户与草稿不计数；计数失败只记日志，请求总会继续。
func (a *API) VisitorCounter() gin.HandlerFunc {
	return func(c *gin.Context) {
		a.countView(c)
		c.Next()
	}
}

func (a *API) countView(c *gin.Context) {
	slug := c.Param("slug")
	if slug == "" || a.sessions.IsAuthenticated(c) {
		return
	}

	post, err := a.posts.GetBySlug(c.Request.Context(), slug)
	if err != nil || post.IsDraft() {
		return
	}

	if err := a.views.Record(c.Request.Context(), post.ID, time.Now()); err != nil {
		a.logger.WarnContext(c.Request.Context(), "failed to record post view", "post_id", post.ID, "err", err)
	}
}
