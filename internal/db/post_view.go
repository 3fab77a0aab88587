package db

import (
	"time"

	"gorm.io/datatypes"
)

// PostView 记录文章每天的浏览次数，(post_id, view_date) 唯一。
type PostView struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    uint           `gorm:"not null;uniqueIndex:idx_post_views_post_day" json:"post_id"`
	ViewDate  datatypes.Date `gorm:"not null;uniqueIndex:idx_post_views_post_day" json:"view_date"`
	ViewCount uint64         `gorm:"not null;default:0" json:"view_count"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName 指定自定义表名，避免自动复数化导致的歧义。
func (PostView) TableName() string {
	return "post_views"
}

// ViewDay truncates t to its calendar day in UTC.
func ViewDay(t time.Time) datatypes.Date {
	y, m, d := t.UTC().Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}
