package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/db"
	"github.com/folio/internal/service"
)

const experienceIndexPath = "/admin/api/experiences"

type experiencePayload struct {
	db.Experience
	CompanyLogoURL string `json:"company_logo_url"`
	Current        bool   `json:"is_current"`
}

func (a *API) presentExperience(e db.Experience) experiencePayload {
	payload := experiencePayload{Experience: e, Current: e.IsCurrent()}
	if a.images != nil {
		payload.CompanyLogoURL = a.images.URL(e.CompanyLogo)
	}
	return payload
}

func (a *API) presentExperiences(items []db.Experience) []experiencePayload {
	out := make([]experiencePayload, 0, len(items))
	for _, e := range items {
		out = append(out, a.presentExperience(e))
	}
	return out
}

// ListExperiences 履历列表，在职条目排在最前。
func (a *API) ListExperiences(c *gin.Context) {
	page, perPage, search := pageParams(c)
	result, err := a.experiences.List(c.Request.Context(), service.ExperienceFilter{
		Search:  search,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelExperiences, "Accessed experience index.")

	c.JSON(http.StatusOK, gin.H{
		"title":       "Experience",
		"experiences": a.presentExperiences(result.Items),
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total":       result.Total,
		"total_pages": result.TotalPages,
		"q":           search,
		"flash":       consumeFlash(c),
	})
}

// NewExperienceForm records a visit to the create page.
func (a *API) NewExperienceForm(c *gin.Context) {
	a.access(c, activity.ChannelExperiences, "Accessed create experience page.")

	c.JSON(http.StatusOK, gin.H{
		"title":                     "New Experience",
		"default_company_logo_size": db.DefaultCompanyLogoSize,
		"flash":                     consumeFlash(c),
	})
}

// EditExperienceForm returns an experience for editing.
func (a *API) EditExperienceForm(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	experience, err := a.experiences.Get(c.Request.Context(), id)
	if err != nil {
		a.respondServiceError(c, err, "", nil)
		return
	}

	a.access(c, activity.ChannelExperiences, fmt.Sprintf("Accessed edit page for experience: %s", experience.PositionName))

	c.JSON(http.StatusOK, gin.H{
		"title":      "Edit Experience",
		"experience": a.presentExperience(*experience),
		"flash":      consumeFlash(c),
	})
}

// CreateExperience 创建履历，公司 Logo 通过 company_logo 字段上传。
func (a *API) CreateExperience(c *gin.Context) {
	back := experienceIndexPath + "/create"
	var input service.ExperienceInput
	if err := c.ShouldBind(&input); err != nil {
		a.respondServiceError(c, bindFailure(err), back, nil)
		return
	}
	input.CompanyLogo = uploadedFile(c, "company_logo")

	experience, entry, err := a.experiences.Create(c.Request.Context(), a.sessions.Actor(c), input)
	if err != nil {
		a.respondServiceError(c, err, back, input)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusCreated, experienceIndexPath, "Experience created successfully", gin.H{
		"experience": a.presentExperience(*experience),
	})
}

// UpdateExperience 更新履历
func (a *API) UpdateExperience(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	back := fmt.Sprintf("%s/%d/edit", experienceIndexPath, id)
	var input service.ExperienceInput
	if err := c.ShouldBind(&input); err != nil {
		a.respondServiceError(c, bindFailure(err), back, nil)
		return
	}
	input.CompanyLogo = uploadedFile(c, "company_logo")

	experience, entry, err := a.experiences.Update(c.Request.Context(), a.sessions.Actor(c), id, input)
	if err != nil {
		a.respondServiceError(c, err, back, input)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusOK, experienceIndexPath, "Experience updated successfully", gin.H{
		"experience": a.presentExperience(*experience),
	})
}

// DeleteExperience 删除履历及其 Logo。
func (a *API) DeleteExperience(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	_, entry, err := a.experiences.Delete(c.Request.Context(), a.sessions.Actor(c), id)
	if err != nil {
		a.respondServiceError(c, err, experienceIndexPath, nil)
		return
	}
	a.record(c, entry)

	respondSuccess(c, http.StatusOK, experienceIndexPath, "Experience deleted successfully", nil)
}
