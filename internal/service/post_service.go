package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/db"
	"github.com/folio/internal/repository"
	"github.com/folio/internal/storage"
	"github.com/folio/internal/validation"
)

// ErrPostNotFound 表示文章不存在。
var ErrPostNotFound = fmt.Errorf("post %w", ErrNotFound)

// PostService wraps post related database operations.
type PostService struct {
	db        *gorm.DB
	posts     repository.Repository[db.Post]
	images    storage.ImageManager
	validator *validation.Validator
	now       func() time.Time
}

// PostFilter describes filters for listing posts.
type PostFilter struct {
	Search     string
	CategoryID uint
	Status     string
	Page       int
	PerPage    int
}

// PostInput represents fields accepted when creating or updating a post.
type PostInput struct {
	PostCategoryID uint          `form:"post_category_id" json:"post_category_id" validate:"required"`
	Title          string        `form:"title" json:"title" validate:"required,max=255"`
	Slug           string        `form:"slug" json:"slug" validate:"required,max=255,slug"`
	Body           string        `form:"body" json:"body" validate:"required"`
	Status         string        `form:"post_status" json:"post_status" validate:"omitempty,poststatus"`
	PublishedAt    string        `form:"published_at" json:"published_at"`
	Cover          *storage.File `form:"-" json:"-" validate:"-"`
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB, images storage.ImageManager) *PostService {
	return &PostService{
		db:        gdb,
		posts:     repository.New[db.Post](gdb),
		images:    images,
		validator: validation.New(),
		now:       time.Now,
	}
}

// List provides paginated posts filtered by search text, category and status.
func (s *PostService) List(ctx context.Context, filter PostFilter) (repository.Page[db.Post], error) {
	query := repository.Query{
		Search:        filter.Search,
		SearchColumns: []string{"title", "slug", "body"},
		Filters:       map[string]interface{}{},
		OrderBy:       []string{"published_at desc"},
		Preload:       []string{"PostCategory", "User"},
		Page:          filter.Page,
		PerPage:       filter.PerPage,
	}
	if filter.CategoryID > 0 {
		query.Filters["post_category_id"] = filter.CategoryID
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query.Filters["status"] = status
	}
	return s.posts.Paginate(ctx, query)
}

// Get fetches a post by id with category and author preloaded.
func (s *PostService) Get(ctx context.Context, id uint) (*db.Post, error) {
	post, err := s.posts.Find(ctx, id, "PostCategory", "User")
	if err != nil {
		return nil, notFound(err, ErrPostNotFound)
	}
	return post, nil
}

// GetBySlug fetches a post of any status by slug.
func (s *PostService) GetBySlug(ctx context.Context, slug string) (*db.Post, error) {
	post, err := s.posts.FindBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err, ErrPostNotFound)
	}
	return post, nil
}

// visibleScope 前台可见：已发布，或定时发布且发布时间已到。
func (s *PostService) visibleScope(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("status = ? OR (status = ? AND published_at IS NOT NULL AND published_at <= ?)",
			db.PostStatusPublished, db.PostStatusScheduled, now)
	}
}

// PublishedBySlug returns a publicly visible post.
func (s *PostService) PublishedBySlug(ctx context.Context, slug string) (*db.Post, error) {
	var post db.Post
	err := s.db.WithContext(ctx).
		Scopes(s.visibleScope(s.now().UTC())).
		Preload("PostCategory").
		Preload("User").
		Where("slug = ?", strings.TrimSpace(slug)).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// ListPublished lists publicly visible posts, newest first.
func (s *PostService) ListPublished(ctx context.Context, page, perPage int) (repository.Page[db.Post], error) {
	return s.posts.Paginate(ctx, repository.Query{
		Scopes:  []func(*gorm.DB) *gorm.DB{s.visibleScope(s.now().UTC())},
		OrderBy: []string{"published_at desc"},
		Preload: []string{"PostCategory"},
		Page:    page,
		PerPage: perPage,
	})
}

// Create validates input, stores the cover and persists the post.
func (s *PostService) Create(ctx context.Context, actor activity.Actor, input PostInput) (*db.Post, activity.Entry, error) {
	input = input.normalized()
	bag := s.validator.Collect(input)
	publishedAt := bag.Date("published_at", input.PublishedAt)
	if input.Cover == nil {
		bag.Required("cover")
	}
	if err := s.checkReferences(ctx, bag, input, 0); err != nil {
		return nil, activity.Entry{}, err
	}
	if err := bag.Err(); err != nil {
		return nil, activity.Entry{}, err
	}

	cover, err := s.images.Upload(ctx, *input.Cover, storage.UploadOptions{Folder: PostCoverFolder})
	if err != nil {
		return nil, activity.Entry{}, imageFailure("cover", err)
	}

	status := input.Status
	if status == "" {
		status = db.PostStatusDraft
	}
	post := db.Post{
		PostCategoryID: input.PostCategoryID,
		UserID:         actor.ID,
		Title:          input.Title,
		Slug:           input.Slug,
		Body:           input.Body,
		Status:         status,
		PublishedAt:    publishedAt,
		Cover:          cover,
	}
	if err := s.posts.Create(ctx, &post); err != nil {
		_ = s.images.Destroy(ctx, cover)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activity.Entry{}, takenError("slug")
		}
		return nil, activity.Entry{}, err
	}

	entry := activity.NewEntry(activity.ChannelPosts, actor, activity.EventCreated,
		fmt.Sprintf("Created post: %s", post.Title)).On("post", post.ID)
	return &post, entry, nil
}

// Update applies input over an existing post. Blank fields keep their stored values and
// a new cover supersedes the old file.
func (s *PostService) Update(ctx context.Context, actor activity.Actor, id uint, input PostInput) (*db.Post, activity.Entry, error) {
	post, err := s.posts.Find(ctx, id)
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrPostNotFound)
	}

	input = input.normalized().over(post)
	bag := s.validator.Collect(input)
	publishedAt := bag.Date("published_at", input.PublishedAt)
	if err := s.checkReferences(ctx, bag, input, post.ID); err != nil {
		return nil, activity.Entry{}, err
	}
	if err := bag.Err(); err != nil {
		return nil, activity.Entry{}, err
	}

	attrs := map[string]interface{}{
		"post_category_id": input.PostCategoryID,
		"title":            input.Title,
		"slug":             input.Slug,
		"body":             input.Body,
		"status":           input.Status,
	}
	if publishedAt != nil {
		attrs["published_at"] = *publishedAt
	}

	previous, cover := post.Cover, ""
	if input.Cover != nil {
		cover, err = s.images.Upload(ctx, *input.Cover, storage.UploadOptions{Folder: PostCoverFolder})
		if err != nil {
			return nil, activity.Entry{}, imageFailure("cover", err)
		}
		attrs["cover"] = cover
	}

	// 旧封面在数据库更新成功后才删除，失败时回收新上传的文件
	if err := s.posts.Update(ctx, post, attrs); err != nil {
		if cover != "" {
			_ = s.images.Destroy(ctx, cover)
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activity.Entry{}, takenError("slug")
		}
		return nil, activity.Entry{}, err
	}
	if cover != "" && previous != cover {
		_ = discardImage(ctx, s.images, previous)
	}

	entry := activity.NewEntry(activity.ChannelPosts, actor, activity.EventUpdated,
		fmt.Sprintf("Updated post: %s", post.Title)).On("post", post.ID)
	return post, entry, nil
}

// Delete removes a post, its view counters and its cover image.
func (s *PostService) Delete(ctx context.Context, actor activity.Actor, id uint) (*db.Post, activity.Entry, error) {
	post, err := s.posts.Find(ctx, id)
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrPostNotFound)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&db.PostView{}).Error; err != nil {
			return err
		}
		return repository.New[db.Post](tx).Delete(ctx, post)
	})
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrPostNotFound)
	}

	entry := activity.NewEntry(activity.ChannelPosts, actor, activity.EventDeleted,
		fmt.Sprintf("Deleted post: %s", post.Title)).On("post", post.ID)
	if err := discardImage(ctx, s.images, post.Cover); err != nil {
		entry = entry.With("cover_cleanup_error", err.Error())
	}
	return post, entry, nil
}

// Counts 返回各状态的文章数量。
func (s *PostService) Counts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&db.Post{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(db.PostStatuses))
	for _, status := range db.PostStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (s *PostService) checkReferences(ctx context.Context, bag validation.Errors, input PostInput, exceptID uint) error {
	if input.PostCategoryID > 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&db.PostCategory{}).Where("id = ?", input.PostCategoryID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			bag.Invalid("post_category_id")
		}
	}
	if input.Slug != "" && !bag.Has("slug") {
		taken, err := s.posts.SlugTaken(ctx, input.Slug, exceptID)
		if err != nil {
			return err
		}
		if taken {
			bag.Taken("slug")
		}
	}
	return nil
}

func (in PostInput) normalized() PostInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	in.PublishedAt = strings.TrimSpace(in.PublishedAt)
	return in
}

func (in PostInput) over(post *db.Post) PostInput {
	if in.PostCategoryID == 0 {
		in.PostCategoryID = post.PostCategoryID
	}
	in.Title = keep(in.Title, post.Title)
	in.Slug = keep(in.Slug, post.Slug)
	if strings.TrimSpace(in.Body) == "" {
		in.Body = post.Body
	}
	in.Status = keep(in.Status, post.Status)
	return in
}
