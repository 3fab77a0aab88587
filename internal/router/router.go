package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/handler"
)

// Options configures SetupRouter.
type Options struct {
	SessionSecret string
	UploadDir     string
	UploadURLPath string
	// AuditDenied 为 true 时记录被拒绝的授权请求。
	AuditDenied bool
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	secret := strings.TrimSpace(opts.SessionSecret)
	if secret == "" {
		secret = "folio-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("folio_session", store))

	// 上传文件服务
	if dir := strings.TrimSpace(opts.UploadDir); dir != "" {
		urlPath := strings.TrimSpace(opts.UploadURLPath)
		if urlPath == "" {
			urlPath = "/static/uploads"
		}
		r.Static(urlPath, dir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/healthz", api.Healthz)

	// 前台路由
	r.GET("/posts", api.ListPublicPosts)
	r.GET("/posts/:slug", api.VisitorCounter(), api.ShowPost)
	r.GET("/projects/:slug", api.ShowProject)
	r.GET("/about", api.ShowAbout)

	guard := &auth.Guard{
		Sessions:    api.Sessions(),
		Checker:     auth.NewRoleChecker(api.DB()),
		Recorder:    api.Recorder(),
		AuditDenied: opts.AuditDenied,
	}
	can := guard.RequirePermission

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.GET("/login", api.ShowLoginPage)
		admin.POST("/login", api.Login)
		admin.GET("/logout", api.Logout)
		admin.POST("/logout", api.Logout)

		// 需要认证的后台路由
		authed := admin.Group("")
		authed.Use(guard.RequireLogin())
		{
			authed.GET("", func(c *gin.Context) {
				c.Redirect(http.StatusFound, "/admin/api/posts")
			})

			// API路由
			apiGroup := authed.Group("/api")
			{
				apiGroup.GET("/posts", can(auth.ViewPosts), api.ListPosts)
				apiGroup.GET("/posts/create", can(auth.CreatePosts), api.NewPostForm)
				apiGroup.POST("/posts", can(auth.CreatePosts), api.CreatePost)
				apiGroup.GET("/posts/:id", can(auth.ViewPosts), api.GetPost)
				apiGroup.GET("/posts/:id/edit", can(auth.EditPosts), api.EditPostForm)
				apiGroup.GET("/posts/:id/views", can(auth.ViewPosts), api.GetPostViews)
				apiGroup.PUT("/posts/:id", can(auth.EditPosts), api.UpdatePost)
				apiGroup.POST("/posts/:id", can(auth.EditPosts), api.UpdatePost)
				apiGroup.DELETE("/posts/:id", can(auth.DeletePosts), api.DeletePost)
				apiGroup.POST("/posts/:id/delete", can(auth.DeletePosts), api.DeletePost)

				apiGroup.GET("/post-categories", can(auth.ViewPostCategories), api.ListPostCategories)
				apiGroup.POST("/post-categories", can(auth.CreatePostCategories), api.CreatePostCategory)
				apiGroup.GET("/post-categories/:id/edit", can(auth.EditPostCategories), api.EditPostCategoryForm)
				apiGroup.PUT("/post-categories/:id", can(auth.EditPostCategories), api.UpdatePostCategory)
				apiGroup.POST("/post-categories/:id", can(auth.EditPostCategories), api.UpdatePostCategory)
				apiGroup.DELETE("/post-categories/:id", can(auth.DeletePostCategories), api.DeletePostCategory)
				apiGroup.POST("/post-categories/:id/delete", can(auth.DeletePostCategories), api.DeletePostCategory)

				apiGroup.GET("/experiences", can(auth.ViewExperiences), api.ListExperiences)
				apiGroup.GET("/experiences/create", can(auth.CreateExperiences), api.NewExperienceForm)
				apiGroup.POST("/experiences", can(auth.CreateExperiences), api.CreateExperience)
				apiGroup.GET("/experiences/:id/edit", can(auth.EditExperiences), api.EditExperienceForm)
				apiGroup.PUT("/experiences/:id", can(auth.EditExperiences), api.UpdateExperience)
				apiGroup.POST("/experiences/:id", can(auth.EditExperiences), api.UpdateExperience)
				apiGroup.DELETE("/experiences/:id", can(auth.DeleteExperiences), api.DeleteExperience)
				apiGroup.POST("/experiences/:id/delete", can(auth.DeleteExperiences), api.DeleteExperience)

				apiGroup.GET("/projects", can(auth.ViewProjects), api.ListProjects)
				apiGroup.POST("/projects", can(auth.CreateProjects), api.CreateProject)
				apiGroup.GET("/projects/:id/edit", can(auth.EditProjects), api.EditProjectForm)
				apiGroup.PUT("/projects/:id", can(auth.EditProjects), api.UpdateProject)
				apiGroup.POST("/projects/:id", can(auth.EditProjects), api.UpdateProject)
				apiGroup.DELETE("/projects/:id", can(auth.DeleteProjects), api.DeleteProject)
				apiGroup.POST("/projects/:id/delete", can(auth.DeleteProjects), api.DeleteProject)

				apiGroup.GET("/roles", can(auth.ViewRoles), api.ListRoles)
				apiGroup.POST("/roles", can(auth.CreateRoles), api.CreateRole)
				apiGroup.GET("/roles/:id/edit", can(auth.EditRoles), api.EditRoleForm)
				apiGroup.PUT("/roles/:id", can(auth.EditRoles), api.UpdateRole)
				apiGroup.POST("/roles/:id", can(auth.EditRoles), api.UpdateRole)
				apiGroup.DELETE("/roles/:id", can(auth.DeleteRoles), api.DeleteRole)
				apiGroup.POST("/roles/:id/delete", can(auth.DeleteRoles), api.DeleteRole)

				apiGroup.GET("/developer", can(auth.AccessDeveloperPanel), api.ShowDeveloperPanel)
				apiGroup.POST("/developer/run", can(auth.AccessDeveloperPanel), api.RunCommand)

				apiGroup.GET("/activity", can(auth.ViewActivity), api.ListActivity)
			}
		}
	}

	return r
}
