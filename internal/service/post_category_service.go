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

var (
	// ErrCategoryNotFound 表示分类不存在。
	ErrCategoryNotFound = fmt.Errorf("post category %w", ErrNotFound)
	// ErrCategoryInUse 表示仍有文章引用该分类。
	ErrCategoryInUse = errors.New("post category is associated with posts")
)

// PostCategoryService wraps post category operations.
type PostCategoryService struct {
	db         *gorm.DB
	categories repository.Repository[db.PostCategory]
	validator  *validation.Validator
}

// CategoryFilter describes filters for listing categories.
type CategoryFilter struct {
	Search  string
	Page    int
	PerPage int
}

// CategoryInput represents fields accepted when creating or updating a category.
type CategoryInput struct {
	Name string `form:"category_name" json:"category_name" validate:"required,max=255"`
	Slug string `form:"slug" json:"slug" validate:"required,max=255,slug"`
}

// NewPostCategoryService creates a PostCategoryService instance.
func NewPostCategoryService(gdb *gorm.DB) *PostCategoryService {
	return &PostCategoryService{
		db:         gdb,
		categories: repository.New[db.PostCategory](gdb),
		validator:  validation.New(),
	}
}

// List returns paginated categories with their post counts.
func (s *PostCategoryService) List(ctx context.Context, filter CategoryFilter) (repository.Page[db.PostCategory], error) {
	page, err := s.categories.Paginate(ctx, repository.Query{
		Search:        filter.Search,
		SearchColumns: []string{"name", "slug"},
		OrderBy:       []string{"name asc"},
		Page:          filter.Page,
		PerPage:       filter.PerPage,
	})
	if err != nil {
		return page, err
	}
	if err := s.attachCounts(ctx, page.Items); err != nil {
		return page, err
	}
	return page, nil
}

// All returns every category ordered by name, for pickers.
func (s *PostCategoryService) All(ctx context.Context) ([]db.PostCategory, error) {
	var categories []db.PostCategory
	if err := s.db.WithContext(ctx).Order("name asc").Order("id asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	if err := s.attachCounts(ctx, categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// Get fetches a category by id.
func (s *PostCategoryService) Get(ctx context.Context, id uint) (*db.PostCategory, error) {
	category, err := s.categories.Find(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCategoryNotFound)
	}
	return category, nil
}

// Create inserts a new category with a unique slug.
func (s *PostCategoryService) Create(ctx context.Context, actor activity.Actor, input CategoryInput) (*db.PostCategory, activity.Entry, error) {
	input = input.normalized()
	if err := s.validate(ctx, input, 0); err != nil {
		return nil, activity.Entry{}, err
	}

	category := db.PostCategory{Name: input.Name, Slug: input.Slug}
	if err := s.categories.Create(ctx, &category); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activity.Entry{}, takenError("slug")
		}
		return nil, activity.Entry{}, err
	}

	entry := activity.NewEntry(activity.ChannelPostCategories, actor, activity.EventCreated,
		fmt.Sprintf("Created post category: %s", category.Name)).On("post_category", category.ID)
	return &category, entry, nil
}

// Update changes the category while keeping the slug unique.
func (s *PostCategoryService) Update(ctx context.Context, actor activity.Actor, id uint, input CategoryInput) (*db.PostCategory, activity.Entry, error) {
	category, err := s.categories.Find(ctx, id)
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrCategoryNotFound)
	}

	input = input.normalized()
	input.Name = keep(input.Name, category.Name)
	input.Slug = keep(input.Slug, category.Slug)
	if err := s.validate(ctx, input, category.ID); err != nil {
		return nil, activity.Entry{}, err
	}

	if err := s.categories.Update(ctx, category, map[string]interface{}{"name": input.Name, "slug": input.Slug}); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activity.Entry{}, takenError("slug")
		}
		return nil, activity.Entry{}, err
	}

	entry := activity.NewEntry(activity.ChannelPostCategories, actor, activity.EventUpdated,
		fmt.Sprintf("Updated post category: %s", category.Name)).On("post_category", category.ID)
	return category, entry, nil
}

// Delete removes a category if no post references it.
func (s *PostCategoryService) Delete(ctx context.Context, actor activity.Actor, id uint) (*db.PostCategory, activity.Entry, error) {
	category, err := s.categories.Find(ctx, id)
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrCategoryNotFound)
	}

	posts := repository.New[db.Post](s.db)
	count, err := posts.Count(ctx, "post_category_id", category.ID)
	if err != nil {
		return nil, activity.Entry{}, err
	}
	if count > 0 {
		return nil, activity.Entry{}, ErrCategoryInUse
	}

	if err := s.categories.Delete(ctx, category); err != nil {
		return nil, activity.Entry{}, notFound(err, ErrCategoryNotFound)
	}

	entry := activity.NewEntry(activity.ChannelPostCategories, actor, activity.EventDeleted,
		fmt.Sprintf("Deleted post category: %s", category.Name)).On("post_category", category.ID)
	return category, entry, nil
}

func (s *PostCategoryService) validate(ctx context.Context, input CategoryInput, exceptID uint) error {
	bag := s.validator.Collect(input)
	if input.Slug != "" && !bag.Has("slug") {
		taken, err := s.categories.SlugTaken(ctx, input.Slug, exceptID)
		if err != nil {
			return err
		}
		if taken {
			bag.Taken("slug")
		}
	}
	return bag.Err()
}

func (s *PostCategoryService) attachCounts(ctx context.Context, categories []db.PostCategory) error {
	if len(categories) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(categories))
	for _, category := range categories {
		ids = append(ids, category.ID)
	}

	var rows []struct {
		PostCategoryID uint
		Count          int64
	}
	if err := s.db.WithContext(ctx).Model(&db.Post{}).
		Select("post_category_id, COUNT(*) AS count").
		Where("post_category_id IN ?", ids).
		Group("post_category_id").
		Scan(&rows).Error; err != nil {
		return err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.PostCategoryID] = row.Count
	}
	for i := range categories {
		categories[i].PostCount = counts[categories[i].ID]
	}
	return nil
}

func (in CategoryInput) normalized() CategoryInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	return in
}
