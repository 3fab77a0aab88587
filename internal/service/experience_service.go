package service

import (
	"context"
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

// ErrExperienceNotFound 表示履历不存在。
var ErrExperienceNotFound = fmt.Errorf("experience %w", ErrNotFound)

// 进行中的履历排在最前，其余按结束时间倒序。
const experienceOrder = "end_date IS NULL DESC, end_date DESC"

// ExperienceService wraps resume experience operations.
type ExperienceService struct {
	db          *gorm.DB
	experiences repository.Repository[db.Experience]
	images      storage.ImageManager
	validator   *validation.Validator
}

// ExperienceFilter describes filters for listing experiences.
type ExperienceFilter struct {
	Search  string
	Page    int
	PerPage int
}

// ExperienceInput represents fields accepted when creating or updating an experience.
type ExperienceInput struct {
	PositionName    string        `form:"position_name" json:"position_name" validate:"required,max=255"`
	CompanyName     string        `form:"company_name" json:"company_name" validate:"required,max=255"`
	Desc            string        `form:"desc" json:"desc"`
	CompanyLogoSize *float64      `form:"company_logo_size" json:"company_logo_size" validate:"omitempty,gte=0.5,lte=10"`
	StartDate       string        `form:"start_date" json:"start_date" validate:"required"`
	EndDate         string        `form:"end_date" json:"end_date"`
	IsStillWorkHere Flag          `form:"is_still_work_here" json:"is_still_work_here"`
	CompanyLogo     *storage.File `form:"-" json:"-" validate:"-"`
}

// NewExperienceService creates an ExperienceService instance.
func NewExperienceService(gdb *gorm.DB, images storage.ImageManager) *ExperienceService {
	return &ExperienceService{
		db:          gdb,
		experiences: repository.New[db.Experience](gdb),
		images:      images,
		validator:   validation.New(),
	}
}

// List returns paginated experiences, current positions first.
func (s *ExperienceService) List(ctx context.Context, filter ExperienceFilter) (repository.Page[db.Experience], error) {
	return s.experiences.Paginate(ctx, repository.Query{
		Search:        filter.Search,
		SearchColumns: []string{"position_name", "company_name"},
		OrderBy:       []string{experienceOrder},
		Page:          filter.Page,
		PerPage:       filter.PerPage,
	})
}

// Timeline returns every experience in display order for the public about page.
func (s *ExperienceService) Timeline(ctx context.Context) ([]db.Experience, error) {
	var experiences []db.Experience
	if err := s.db.WithContext(ctx).Order(experienceOrder).Order("start_date desc").Order("id desc").Find(&experiences).Error; err != nil {
		return nil, err
	}
	return experiences, nil
}

// Get fetches an experience by id.
func (s *ExperienceService) Get(ctx context.Context, id uint) (*db.Experience, error) {
	experience, err := s.experiences.Find(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrExperienceNotFound)
	}
	return experience, nil
}

// Create validates input, stores the optional company logo and persists the experience.
func (s *ExperienceService) Create(ctx context.Context, actor activity.Actor, input ExperienceInput) (*db.Experience, activity.Entry, error) {
	input = input.normalized()
	start, end, err := s.validate(input)
	if err != nil {
		return nil, activity.Entry{}, err
	}

	var logo string
	if input.CompanyLogo != nil {
		logo, err = s.images.Upload(ctx, *input.CompanyLogo, storage.UploadOptions{Folder: CompanyLogoFolder})
		if err != nil {
			return nil, activity.Entry{}, imageFailure("company_logo", err)
		}
	}

	experience := db.Experience{
		PositionName:    input.PositionName,
		CompanyName:     input.CompanyName,
		Desc:            input.Desc,
		CompanyLogo:     logo,
		CompanyLogoSize: input.logoSize(),
		StartDate:       start,
		EndDate:         end,
	}
	if err := s.experiences.Create(ctx, &experience); err != nil {
		_ = s.images.Destroy(ctx, logo)
		return nil, activity.Entry{}, err
	}

	entry := activity.NewEntry(activity.ChannelExperiences, actor, activity.EventCreated,
		fmt.Sprintf("Created experience: %s at %s", experience.PositionName, experience.CompanyName)).On("experience", experience.ID)
	return &experience, entry, nil
}

// Update applies input over an existing experience. A new logo supersedes the old file.
func (s *ExperienceService) Update(ctx context.Context, actor activity.Actor, id uint, input ExperienceInput) (*db.Experience, activity.Entry, error) {
	experience, err := s.experiences.Find(ctx, id)
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrExperienceNotFound)
	}

	input = input.normalized().over(experience)
	start, end, err := s.validate(input)
	if err != nil {
		return nil, activity.Entry{}, err
	}

	attrs := map[string]interface{}{
		"position_name":     input.PositionName,
		"company_name":      input.CompanyName,
		"desc":              input.Desc,
		"company_logo_size": input.logoSize(),
		"start_date":        start,
		"end_date":          end,
	}
	previous, logo := experience.CompanyLogo, ""
	if input.CompanyLogo != nil {
		logo, err = s.images.Upload(ctx, *input.CompanyLogo, storage.UploadOptions{Folder: CompanyLogoFolder})
		if err != nil {
			return nil, activity.Entry{}, imageFailure("company_logo", err)
		}
		attrs["company_logo"] = logo
	}

	if err := s.experiences.Update(ctx, experience, attrs); err != nil {
		if logo != "" {
			_ = s.images.Destroy(ctx, logo)
		}
		return nil, activity.Entry{}, err
	}
	if logo != "" && previous != logo {
		_ = discardImage(ctx, s.images, previous)
	}

	entry := activity.NewEntry(activity.ChannelExperiences, actor, activity.EventUpdated,
		fmt.Sprintf("Updated experience: %s", experience.PositionName)).On("experience", experience.ID)
	return experience, entry, nil
}

// Delete removes an experience and its company logo.
func (s *ExperienceService) Delete(ctx context.Context, actor activity.Actor, id uint) (*db.Experience, activity.Entry, error) {
	experience, err := s.experiences.Find(ctx, id)
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrExperienceNotFound)
	}

	if err := s.experiences.Delete(ctx, experience); err != nil {
		return nil, activity.Entry{}, notFound(err, ErrExperienceNotFound)
	}
	entry := activity.NewEntry(activity.ChannelExperiences, actor, activity.EventDeleted,
		fmt.Sprintf("Deleted experience: %s", experience.PositionName)).On("experience", experience.ID)
	if err := discardImage(ctx, s.images, experience.CompanyLogo); err != nil {
		entry = entry.With("logo_cleanup_error", err.Error())
	}
	return experience, entry, nil
}

func (s *ExperienceService) validate(input ExperienceInput) (time.Time, *time.Time, error) {
	bag := s.validator.Collect(input)

	var start time.Time
	if parsed := bag.Date("start_date", input.StartDate); parsed != nil {
		start = *parsed
	}

	var end *time.Time
	if !input.IsStillWorkHere {
		end = bag.Date("end_date", input.EndDate)
		if end != nil && !start.IsZero() && end.Before(start) {
			bag.Add("end_date", "The end date field must be a date after or equal to start date.")
		}
	}
	return start, end, bag.Err()
}

func (in ExperienceInput) normalized() ExperienceInput {
	in.PositionName = strings.TrimSpace(in.PositionName)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Desc = strings.TrimSpace(in.Desc)
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)
	// 表单空值会被绑定为 0
	if in.CompanyLogoSize != nil && *in.CompanyLogoSize == 0 {
		in.CompanyLogoSize = nil
	}
	return in
}

// over 用已有记录补齐空字段；未勾选“仍在职”且未给出结束时间时保留原结束时间。
func (in ExperienceInput) over(experience *db.Experience) ExperienceInput {
	in.PositionName = keep(in.PositionName, experience.PositionName)
	in.CompanyName = keep(in.CompanyName, experience.CompanyName)
	if in.Desc == "" {
		in.Desc = experience.Desc
	}
	if in.CompanyLogoSize == nil {
		size := experience.CompanyLogoSize
		in.CompanyLogoSize = &size
	}
	if in.StartDate == "" {
		in.StartDate = experience.StartDate.UTC().Format(time.RFC3339)
	}
	if in.EndDate == "" && !in.IsStillWorkHere {
		if experience.EndDate != nil {
			in.EndDate = experience.EndDate.UTC().Format(time.RFC3339)
		} else {
			in.IsStillWorkHere = true
		}
	}
	return in
}

func (in ExperienceInput) logoSize() float64 {
	if in.CompanyLogoSize == nil {
		return db.DefaultCompanyLogoSize
	}
	return *in.CompanyLogoSize
}
