package db

import "time"

// Post status values.
const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

// PostStatuses lists every accepted status in display order.
var PostStatuses = []string{PostStatusDraft, PostStatusScheduled, PostStatusPublished, PostStatusArchived}

// ValidPostStatus reports whether status is one of PostStatuses.
func ValidPostStatus(status string) bool {
	for _, s := range PostStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Post 定义了文章模型
type Post struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	PostCategoryID uint         `gorm:"index;not null" json:"post_category_id"`
	PostCategory   PostCategory `json:"category,omitempty"`
	UserID         uint         `gorm:"index" json:"user_id"`
	User           User         `json:"author,omitempty"`
	Title          string       `gorm:"size:255;not null" json:"title"`
	Slug           string       `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Body           string       `gorm:"type:text" json:"body"`
	Status         string       `gorm:"size:20;index;not null;default:draft" json:"status"`
	PublishedAt    *time.Time   `gorm:"index" json:"published_at"`
	Cover          string       `gorm:"size:255" json:"cover"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// IsDraft reports whether the post is unpublished draft content.
func (p *Post) IsDraft() bool {
	return p.Status == PostStatusDraft
}
