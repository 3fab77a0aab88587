package db

import "time"

// DefaultCompanyLogoSize 是公司 Logo 的默认展示尺寸（rem）。
const DefaultCompanyLogoSize = 2.5

// Experience 履历条目。EndDate 为空表示仍在职。
type Experience struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	PositionName    string     `gorm:"size:255;not null" json:"position_name"`
	CompanyName     string     `gorm:"size:255;not null" json:"company_name"`
	Desc            string     `gorm:"type:text" json:"desc"`
	CompanyLogo     string     `gorm:"size:255" json:"company_logo"`
	CompanyLogoSize float64    `gorm:"not null;default:2.5" json:"company_logo_size"`
	StartDate       time.Time  `gorm:"not null" json:"start_date"`
	EndDate         *time.Time `gorm:"index" json:"end_date"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsCurrent reports whether the experience is still ongoing.
func (e *Experience) IsCurrent() bool {
	return e.EndDate == nil
}
