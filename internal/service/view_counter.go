package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/folio/internal/db"
)

// ViewCounter 负责文章按天计数的浏览统计。
type ViewCounter struct {
	db *gorm.DB
}

// DailyViews is the view count of one post on one day.
type DailyViews struct {
	Day   time.Time `json:"day"`
	Views uint64    `json:"views"`
}

// NewViewCounter creates a ViewCounter.
func NewViewCounter(gdb *gorm.DB) *ViewCounter {
	return &ViewCounter{db: gdb}
}

// Record 原子地为 (post, day) 计数加一，首次访问时插入计数为 1 的行。
func (s *ViewCounter) Record(ctx context.Context, postID uint, at time.Time) error {
	if postID == 0 {
		return errors.New("invalid post id")
	}

	view := db.PostView{
		PostID:    postID,
		ViewDate:  db.ViewDay(at),
		ViewCount: 1,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "post_id"}, {Name: "view_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"view_count": gorm.Expr("post_views.view_count + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&view).Error
}

// Count returns the views of postID on the day containing at.
func (s *ViewCounter) Count(ctx context.Context, postID uint, at time.Time) (uint64, error) {
	var view db.PostView
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND view_date = ?", postID, db.ViewDay(at)).
		First(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return view.ViewCount, nil
}

// Totals 返回指定文章的累计浏览数，未被浏览过的文章不会出现在结果中。
func (s *ViewCounter) Totals(ctx context.Context, postIDs []uint) (map[uint]uint64, error) {
	result := make(map[uint]uint64, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		PostID uint
		Total  uint64
	}
	if err := s.db.WithContext(ctx).Model(&db.PostView{}).
		Select("post_id, COALESCE(SUM(view_count), 0) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.PostID] = row.Total
	}
	return result, nil
}

// Daily returns per-day counts for postID between from and to inclusive, oldest first.
// Days without views are omitted.
func (s *ViewCounter) Daily(ctx context.Context, postID uint, from, to time.Time) ([]DailyViews, error) {
	var views []db.PostView
	if err := s.db.WithContext(ctx).
		Where("post_id = ? AND view_date BETWEEN ? AND ?", postID, db.ViewDay(from), db.ViewDay(to)).
		Order("view_date asc").
		Find(&views).Error; err != nil {
		return nil, err
	}

	out := make([]DailyViews, 0, len(views))
	for _, view := range views {
		out = append(out, DailyViews{Day: time.Time(view.ViewDate), Views: view.ViewCount})
	}
	return out, nil
}
