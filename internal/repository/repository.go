// Package repository provides the gorm-backed entity repository shared by the
// resource services: lookups, writes and filtered, paginated listing.
package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a lookup misses.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
)

const defaultPerPage = 10

// Repository is the persistence contract consumed by services.
type Repository[T any] interface {
	Find(ctx context.Context, id uint, preload ...string) (*T, error)
	FindBySlug(ctx context.Context, slug string, preload ...string) (*T, error)
	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T, attrs map[string]interface{}) error
	Delete(ctx context.Context, entity *T) error
	Paginate(ctx context.Context, q Query) (Page[T], error)
	SlugTaken(ctx context.Context, slug string, exceptID uint) (bool, error)
	Count(ctx context.Context, column string, value interface{}) (int64, error)
}

// Query describes filters for a paginated listing.
type Query struct {
	Search        string
	SearchColumns []string
	Filters       map[string]interface{}
	Scopes        []func(*gorm.DB) *gorm.DB
	OrderBy       []string
	Preload       []string
	Page          int
	PerPage       int
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// HasMore reports whether a later page exists.
func (p Page[T]) HasMore() bool {
	return p.Page < p.TotalPages
}

// Gorm implements Repository on top of a gorm connection.
type Gorm[T any] struct {
	db *gorm.DB
}

// New creates a gorm repository for T.
func New[T any](gdb *gorm.DB) *Gorm[T] {
	return &Gorm[T]{db: gdb}
}

// Find fetches an entity by primary key, preloading the named relations.
func (r *Gorm[T]) Find(ctx context.Context, id uint, preload ...string) (*T, error) {
	var entity T
	if err := withPreload(r.db.WithContext(ctx), preload).First(&entity, id).Error; err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

// FindBySlug fetches an entity by its slug column.
func (r *Gorm[T]) FindBySlug(ctx context.Context, slug string, preload ...string) (*T, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrNotFound
	}

	var entity T
	if err := withPreload(r.db.WithContext(ctx), preload).Where("slug = ?", slug).First(&entity).Error; err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

// Create inserts entity without touching its associations.
func (r *Gorm[T]) Create(ctx context.Context, entity *T) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(entity).Error)
}

// Update writes attrs onto entity and reloads it. Zero values in attrs are written.
func (r *Gorm[T]) Update(ctx context.Context, entity *T, attrs map[string]interface{}) error {
	if len(attrs) == 0 {
		return nil
	}

	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(entity).Omit(clause.Associations).Updates(attrs).Error; err != nil {
			return err
		}
		return tx.First(entity).Error
	}))
}

// Delete removes entity. A row that is already gone yields ErrNotFound.
func (r *Gorm[T]) Delete(ctx context.Context, entity *T) error {
	result := r.db.WithContext(ctx).Delete(entity)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SlugTaken reports whether another row (id != exceptID) already uses slug.
func (r *Gorm[T]) SlugTaken(ctx context.Context, slug string, exceptID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(new(T)).Where("slug = ?", strings.TrimSpace(slug))
	if exceptID > 0 {
		query = query.Where("id <> ?", exceptID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count returns the number of rows where column equals value.
func (r *Gorm[T]) Count(ctx context.Context, column string, value interface{}) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(new(T)).Where(map[string]interface{}{column: value}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Paginate lists entities matching q, ordered by q.OrderBy then id desc.
func (r *Gorm[T]) Paginate(ctx context.Context, q Query) (Page[T], error) {
	page := Page[T]{
		Page:    normalizePage(q.Page),
		PerPage: normalizePerPage(q.PerPage),
	}

	filtered := r.applyQuery(r.db.WithContext(ctx).Model(new(T)), q)
	if err := filtered.Count(&page.Total).Error; err != nil {
		return page, err
	}
	page.TotalPages = calculateTotalPages(page.Total, page.PerPage)

	data := withPreload(r.applyQuery(r.db.WithContext(ctx).Model(new(T)), q), q.Preload)
	for _, order := range q.OrderBy {
		data = data.Order(order)
	}
	data = data.Order("id desc")

	offset := (page.Page - 1) * page.PerPage
	items := make([]T, 0, page.PerPage)
	if err := data.Limit(page.PerPage).Offset(offset).Find(&items).Error; err != nil {
		return page, err
	}
	page.Items = items
	return page, nil
}

func withPreload(query *gorm.DB, relations []string) *gorm.DB {
	for _, relation := range relations {
		query = query.Preload(relation)
	}
	return query
}

func (r *Gorm[T]) applyQuery(query *gorm.DB, q Query) *gorm.DB {
	if clause, args := SearchClause(q.Search, q.SearchColumns); clause != "" {
		query = query.Where(clause, args...)
	}
	if len(q.Filters) > 0 {
		query = query.Where(q.Filters)
	}
	if len(q.Scopes) > 0 {
		query = query.Scopes(q.Scopes...)
	}
	return query
}

// SearchClause builds a case-insensitive substring match OR-combined across columns.
// Columns are trusted identifiers supplied by code, never by the request.
func SearchClause(search string, columns []string) (string, []interface{}) {
	search = strings.TrimSpace(search)
	if search == "" || len(columns) == 0 {
		return "", nil
	}

	pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
	parts := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, column := range columns {
		parts = append(parts, "LOWER("+column+") LIKE ? ESCAPE '\\'")
		args = append(args, pattern)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return ErrDuplicate
	default:
		return err
	}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func normalizePerPage(perPage int) int {
	if perPage <= 0 {
		return defaultPerPage
	}
	if perPage > 100 {
		return 100
	}
	return perPage
}

func calculateTotalPages(total int64, perPage int) int {
	if perPage <= 0 || total == 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
