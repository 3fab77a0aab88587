package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/db"
	"github.com/folio/internal/repository"
	"github.com/folio/internal/validation"
)

// ErrProjectNotFound 表示项目不存在。
var ErrProjectNotFound = fmt.Errorf("project %w", ErrNotFound)

// ProjectService wraps portfolio project operations.
type ProjectService struct {
	projects  repository.Repository[db.Project]
	validator *validation.Validator
}

// ProjectFilter describes filters for listing projects.
type ProjectFilter struct {
	Search  string
	Page    int
	PerPage int
}

// ProjectInput represents fields accepted when creating or updating a project.
type ProjectInput struct {
	Title   string `form:"title" json:"title" validate:"required,max=255"`
	Slug    string `form:"slug" json:"slug" validate:"required,max=255,slug"`
	Content string `form:"content" json:"content" validate:"required"`
}

// NewProjectService creates a ProjectService instance.
func NewProjectService(gdb *gorm.DB) *ProjectService {
	return &ProjectService{
		projects:  repository.New[db.Project](gdb),
		validator: validation.New(),
	}
}

// List returns paginated projects, newest first.
func (s *ProjectService) List(ctx context.Context, filter ProjectFilter) (repository.Page[db.Project], error) {
	return s.projects.Paginate(ctx, repository.Query{
		Search:        filter.Search,
		SearchColumns: []string{"title", "slug", "content"},
		Page:          filter.Page,
		PerPage:       filter.PerPage,
	})
}

// Get fetches a project by id.
func (s *ProjectService) Get(ctx context.Context, id uint) (*db.Project, error) {
	project, err := s.projects.Find(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	return project, nil
}

// GetBySlug fetches a project by slug for the public site.
func (s *ProjectService) GetBySlug(ctx context.Context, slug string) (*db.Project, error) {
	project, err := s.projects.FindBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	return project, nil
}

// Create inserts a new project with a unique slug.
func (s *ProjectService) Create(ctx context.Context, actor activity.Actor, input ProjectInput) (*db.Project, activity.Entry, error) {
	input = input.normalized()
	if err := s.validate(ctx, input, 0); err != nil {
		return nil, activity.Entry{}, err
	}

	project := db.Project{Title: input.Title, Slug: input.Slug, Content: input.Content}
	if err := s.projects.Create(ctx, &project); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activity.Entry{}, takenError("slug")
		}
		return nil, activity.Entry{}, err
	}

	entry := activity.NewEntry(activity.ChannelProjects, actor, activity.EventCreated,
		fmt.Sprintf("Created project: %s", project.Title)).On("project", project.ID)
	return &project, entry, nil
}

// Update applies input over an existing project.
func (s *ProjectService) Update(ctx context.Context, actor activity.Actor, id uint, input ProjectInput) (*db.Project, activity.Entry, error) {
	project, err := s.projects.Find(ctx, id)
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrProjectNotFound)
	}

	input = input.normalized()
	input.Title = keep(input.Title, project.Title)
	input.Slug = keep(input.Slug, project.Slug)
	if input.Content == "" {
		input.Content = project.Content
	}
	if err := s.validate(ctx, input, project.ID); err != nil {
		return nil, activity.Entry{}, err
	}

	attrs := map[string]interface{}{"title": input.Title, "slug": input.Slug, "content": input.Content}
	if err := s.projects.Update(ctx, project, attrs); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activity.Entry{}, takenError("slug")
		}
		return nil, activity.Entry{}, err
	}

	entry := activity.NewEntry(activity.ChannelProjects, actor, activity.EventUpdated,
		fmt.Sprintf("Updated project: %s", project.Title)).On("project", project.ID)
	return project, entry, nil
}

// Delete removes a project.
func (s *ProjectService) Delete(ctx context.Context, actor activity.Actor, id uint) (*db.Project, activity.Entry, error) {
	project, err := s.projects.Find(ctx, id)
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrProjectNotFound)
	}
	if err := s.projects.Delete(ctx, project); err != nil {
		return nil, activity.Entry{}, notFound(err, ErrProjectNotFound)
	}

	entry := activity.NewEntry(activity.ChannelProjects, actor, activity.EventDeleted,
		fmt.Sprintf("Deleted project: %s", project.Title)).On("project", project.ID)
	return project, entry, nil
}

func (s *ProjectService) validate(ctx context.Context, input ProjectInput, exceptID uint) error {
	bag := s.validator.Collect(input)
	if input.Slug != "" && !bag.Has("slug") {
		taken, err := s.projects.SlugTaken(ctx, input.Slug, exceptID)
		if err != nil {
			return err
		}
		if taken {
			bag.Taken("slug")
		}
	}
	return bag.Err()
}

func (in ProjectInput) normalized() ProjectInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Content = strings.TrimSpace(in.Content)
	return in
}
