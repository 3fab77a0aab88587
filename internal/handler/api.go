package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/auth"
	"github.com/folio/internal/maintenance"
	"github.com/folio/internal/service"
	"github.com/folio/internal/storage"
)

// ActivityLister pages through the audit trail.
type ActivityLister interface {
	List(ctx context.Context, filter activity.Filter) (activity.ListResult, error)
}

// Dependencies are the collaborators shared by every handler.
type Dependencies struct {
	DB          *gorm.DB
	Images      *storage.LocalManager
	Recorder    activity.Recorder
	Activities  ActivityLister
	Maintenance *maintenance.Dispatcher
	Logger      *slog.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	sessions    *auth.SessionAuth
	posts       *service.PostService
	categories  *service.PostCategoryService
	experiences *service.ExperienceService
	projects    *service.ProjectService
	roles       *service.RoleService
	views       *service.ViewCounter
	images      *storage.LocalManager
	recorder    activity.Recorder
	activities  ActivityLister
	maintenance *maintenance.Dispatcher
	logger      *slog.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(deps Dependencies) *API {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = activity.NewLogger(logger)
	}

	return &API{
		db:          deps.DB,
		sessions:    auth.NewSessionAuth(deps.DB),
		posts:       service.NewPostService(deps.DB, deps.Images),
		categories:  service.NewPostCategoryService(deps.DB),
		experiences: service.NewExperienceService(deps.DB, deps.Images),
		projects:    service.NewProjectService(deps.DB),
		roles:       service.NewRoleService(deps.DB),
		views:       service.NewViewCounter(deps.DB),
		images:      deps.Images,
		recorder:    recorder,
		activities:  deps.Activities,
		maintenance: deps.Maintenance,
		logger:      logger,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Sessions exposes the session authenticator used by the route guards.
func (a *API) Sessions() *auth.SessionAuth {
	return a.sessions
}

// Recorder exposes the audit recorder.
func (a *API) Recorder() activity.Recorder {
	return a.recorder
}

// record 写入审计日志；失败只记录错误，不影响已经完成的操作。
func (a *API) record(c *gin.Context, entry activity.Entry) {
	if err := a.recorder.Record(c.Request.Context(), entry); err != nil {
		a.logger.ErrorContext(c.Request.Context(), "failed to record activity",
			"channel", entry.Channel, "description", entry.Description, "err", err)
	}
}

// access records a page visit on channel.
func (a *API) access(c *gin.Context, channel, description string) {
	a.record(c, activity.NewEntry(channel, a.sessions.Actor(c), activity.EventAccessed, description))
}
