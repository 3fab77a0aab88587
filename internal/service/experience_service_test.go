package service

import (
	"context"
	"errors"
	"testing"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/db"
	"github.com/folio/internal/validation"
)

func TestExperienceService_CreateDefaultsAndCurrentPosition(t *testing.T) {
	gdb := setupServiceTestDB(t)
	images := newTestImages(t)
	svc := NewExperienceService(gdb, images)

	experience, entry, err := svc.Create(context.Background(), testActor, ExperienceInput{
		PositionName:    "Engineer",
		CompanyName:     "Acme",
		StartDate:       "2022-01-01",
		EndDate:         "2023-01-01",
		IsStillWorkHere: true,
		CompanyLogo:     testImage(t, "logo.png"),
	})
	if err != nil {
		t.Fatalf("create experience: %v", err)
	}
	if experience.CompanyLogoSize != db.DefaultCompanyLogoSize {
		t.Fatalf("expected default logo size, got %v", experience.CompanyLogoSize)
	}
	if !experience.IsCurrent() {
		t.Fatalf("expected end date to be ignored for current position")
	}
	if !images.Exists(experience.CompanyLogo) {
		t.Fatalf("expected logo to be stored")
	}
	if entry.Channel != activity.ChannelExperiences || entry.Description != "Created experience: Engineer at Acme" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestExperienceService_ValidatesDatesAndLogoSize(t *testing.T) {
	svc := NewExperienceService(setupServiceTestDB(t), newTestImages(t))
	size := 12.0

	_, _, err := svc.Create(context.Background(), testActor, ExperienceInput{
		PositionName:    "Engineer",
		CompanyName:     "Acme",
		StartDate:       "2023-01-01",
		EndDate:         "2022-01-01",
		CompanyLogoSize: &size,
	})
	bag, ok := validation.As(err)
	if !ok {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if !bag.Has("end_date") || !bag.Has("company_logo_size") {
		t.Fatalf("expected end_date and company_logo_size errors, got %#v", bag)
	}

	_, _, err = svc.Create(context.Background(), testActor, ExperienceInput{PositionName: "x", CompanyName: "y"})
	if bag, ok := validation.As(err); !ok || !bag.Has("start_date") {
		t.Fatalf("expected start_date required error, got %v", err)
	}
}

func TestExperienceService_ListOrdersCurrentFirst(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewExperienceService(gdb, newTestImages(t))
	ctx := context.Background()

	for _, in := range []ExperienceInput{
		{PositionName: "Intern", CompanyName: "Old Co", StartDate: "2015-01-01", EndDate: "2016-01-01"},
		{PositionName: "Lead", CompanyName: "Now Co", StartDate: "2021-01-01", IsStillWorkHere: true},
		{PositionName: "Senior", CompanyName: "Mid Co", StartDate: "2017-01-01", EndDate: "2020-12-31"},
	} {
		if _, _, err := svc.Create(ctx, testActor, in); err != nil {
			t.Fatalf("create %s: %v", in.PositionName, err)
		}
	}

	page, err := svc.List(ctx, ExperienceFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{page.Items[0].PositionName, page.Items[1].PositionName, page.Items[2].PositionName}
	want := []string{"Lead", "Senior", "Intern"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	page, err = svc.List(ctx, ExperienceFilter{Search: "mid co"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != 1 || page.Items[0].PositionName != "Senior" {
		t.Fatalf("expected company search to match Senior, got %+v", page.Items)
	}

	timeline, err := svc.Timeline(ctx)
	if err != nil || len(timeline) != 3 || timeline[0].PositionName != "Lead" {
		t.Fatalf("unexpected timeline %+v (%v)", timeline, err)
	}
}

func TestExperienceService_UpdateAndDeleteManageLogo(t *testing.T) {
	gdb := setupServiceTestDB(t)
	images := newTestImages(t)
	svc := NewExperienceService(gdb, images)
	ctx := context.Background()

	experience, _, err := svc.Create(ctx, testActor, ExperienceInput{
		PositionName: "Engineer", CompanyName: "Acme", StartDate: "2020-01-01", EndDate: "2021-01-01",
		CompanyLogo: testImage(t, "a.png"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldLogo := experience.CompanyLogo

	updated, entry, err := svc.Update(ctx, testActor, experience.ID, ExperienceInput{
		PositionName: "Staff Engineer",
		CompanyLogo:  testImage(t, "b.png"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if images.Exists(oldLogo) || !images.Exists(updated.CompanyLogo) {
		t.Fatalf("expected logo to be superseded")
	}
	if updated.EndDate == nil || updated.CompanyName != "Acme" {
		t.Fatalf("expected omitted fields to be kept, got %+v", updated)
	}
	if entry.Description != "Updated experience: Staff Engineer" {
		t.Fatalf("unexpected entry %q", entry.Description)
	}

	current, _, err := svc.Update(ctx, testActor, experience.ID, ExperienceInput{IsStillWorkHere: true})
	if err != nil {
		t.Fatalf("mark current: %v", err)
	}
	if !current.IsCurrent() {
		t.Fatalf("expected experience to become current")
	}

	_, entry, err = svc.Delete(ctx, testActor, experience.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if images.Exists(updated.CompanyLogo) {
		t.Fatalf("expected logo to be removed on delete")
	}
	if entry.Description != "Deleted experience: Staff Engineer" {
		t.Fatalf("unexpected entry %q", entry.Description)
	}
	if _, err := svc.Get(ctx, experience.ID); !errors.Is(err, ErrExperienceNotFound) {
		t.Fatalf("expected ErrExperienceNotFound, got %v", err)
	}
}

func TestExperienceService_FailedUpdateKeepsOldLogo(t *testing.T) {
	gdb := setupServiceTestDB(t)
	images := newTestImages(t)
	svc := NewExperienceService(gdb, images)
	ctx := context.Background()

	experience, _, err := svc.Create(ctx, testActor, ExperienceInput{
		PositionName: "Engineer", CompanyName: "Acme", StartDate: "2020-01-01",
		CompanyLogo: testImage(t, "a.png"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	svc.experiences = failingUpdates[db.Experience]{Repository: svc.experiences}
	if _, _, err := svc.Update(ctx, testActor, experience.ID, ExperienceInput{CompanyLogo: testImage(t, "b.png")}); !errors.Is(err, errDiskIO) {
		t.Fatalf("expected update to fail, got %v", err)
	}

	var stored db.Experience
	if err := gdb.First(&stored, experience.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.CompanyLogo != experience.CompanyLogo || !images.Exists(stored.CompanyLogo) {
		t.Fatalf("expected original logo %q to remain, got %q", experience.CompanyLogo, stored.CompanyLogo)
	}
}

func TestExperienceService_DeleteIsAuditedWhenLogoCleanupFails(t *testing.T) {
	gdb := setupServiceTestDB(t)
	images := newTestImages(t)
	ctx := context.Background()

	experience, _, err := NewExperienceService(gdb, images).Create(ctx, testActor, ExperienceInput{
		PositionName: "Engineer", CompanyName: "Acme", StartDate: "2020-01-01",
		CompanyLogo: testImage(t, "a.png"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, entry, err := NewExperienceService(gdb, stuckImages{images}).Delete(ctx, testActor, experience.ID)
	if err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if entry.Description != "Deleted experience: Engineer" {
		t.Fatalf("unexpected entry %q", entry.Description)
	}
	if entry.Properties["logo_cleanup_error"] != errDiskIO.Error() {
		t.Fatalf("expected cleanup failure on the entry, got %+v", entry.Properties)
	}
}
