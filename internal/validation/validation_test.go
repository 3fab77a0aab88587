package validation

import (
	"errors"
	"testing"
	"time"
)

type samplePostInput struct {
	CategoryID uint    `form:"post_category_id" validate:"required"`
	Title      string  `form:"title" validate:"required,max=10"`
	Slug       string  `form:"slug" validate:"required,slug"`
	Status     string  `form:"post_status" validate:"omitempty,poststatus"`
	LogoSize   float64 `json:"company_logo_size" validate:"omitempty,gte=0.5,lte=10"`
}

func TestValidateReportsFieldErrorsByFormName(t *testing.T) {
	err := Validate(samplePostInput{Title: "a title that is too long", Slug: "Not A Slug", Status: "deleted", LogoSize: 12})
	bag, ok := As(err)
	if !ok {
		t.Fatalf("expected Errors, got %v", err)
	}

	for _, field := range []string{"post_category_id", "title", "slug", "post_status", "company_logo_size"} {
		if !bag.Has(field) {
			t.Fatalf("expected error for %s, got %#v", field, bag)
		}
	}
	if got := bag.First("post_category_id"); got != "The post category id field is required." {
		t.Fatalf("unexpected required message %q", got)
	}
	if got := bag.First("title"); got != "The title field must not be greater than 10 characters." {
		t.Fatalf("unexpected max message %q", got)
	}
	if got := bag.First("company_logo_size"); got != "The company logo size field must not be greater than 10." {
		t.Fatalf("unexpected numeric max message %q", got)
	}
}

func TestValidatePassesValidInput(t *testing.T) {
	if err := Validate(samplePostInput{CategoryID: 1, Title: "Hello", Slug: "hello-world", Status: "scheduled"}); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestIsSlug(t *testing.T) {
	tests := map[string]bool{
		"hello":        true,
		"hello-world":  true,
		"post-2024":    true,
		"Hello":        false,
		"hello--world": false,
		"-hello":       false,
		"hello world":  false,
		"":             false,
	}
	for input, want := range tests {
		if got := IsSlug(input); got != want {
			t.Fatalf("IsSlug(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2024-05-01", "2024-05-01 00:00:00", "2024-05-01T00:00", "2024-05-01T00:00:00Z"} {
		got, err := ParseDate(raw)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseDate("yesterday"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestErrorsDateRecordsInvalidInput(t *testing.T) {
	bag := Errors{}
	if got := bag.Date("published_at", ""); got != nil || bag.Has("published_at") {
		t.Fatalf("expected blank date to be ignored")
	}
	if got := bag.Date("published_at", "not-a-date"); got != nil {
		t.Fatalf("expected nil for invalid date")
	}
	if bag.First("published_at") != "The published at field must be a valid date." {
		t.Fatalf("unexpected message %q", bag.First("published_at"))
	}
	if bag.Err() == nil {
		t.Fatalf("expected non-nil error from non-empty bag")
	}
	if (Errors{}).Err() != nil {
		t.Fatalf("expected nil error from empty bag")
	}
}

func TestMergeAndTaken(t *testing.T) {
	bag := Errors{}
	other := Errors{}
	other.Taken("slug")
	bag.Merge(other)
	if bag.First("slug") != "The slug has already been taken." {
		t.Fatalf("unexpected message %q", bag.First("slug"))
	}
}

func TestValidateRejectsNonURLSafeSlug(t *testing.T) {
	bag, ok := As(Validate(samplePostInput{CategoryID: 1, Title: "Hello", Slug: "My_Slug"}))
	if !ok {
		t.Fatalf("expected slug to be rejected")
	}
	if got := bag.First("slug"); got != "The slug field must only contain lowercase letters, numbers, and dashes." {
		t.Fatalf("unexpected slug message %q", got)
	}
}
