package view

import "strings"

// StatusBadge is how a post status is shown in admin listings.
type StatusBadge struct {
	Status string `json:"status"`
	Label  string `json:"label"`
	Class  string `json:"class"`
}

var (
	postStatusBadges = []StatusBadge{
		{Status: "draft", Label: "Draft", Class: "badge rounded-pill bg-secondary"},
		{Status: "scheduled", Label: "Scheduled", Class: "badge rounded-pill bg-warning text-dark"},
		{Status: "published", Label: "Published", Class: "badge rounded-pill bg-success"},
		{Status: "archived", Label: "Archived", Class: "badge rounded-pill bg-info"},
	}
	unknownStatusBadge = StatusBadge{Status: "unknown", Label: "Unknown", Class: "badge rounded-pill bg-light text-dark"}
	postStatusLookup   = func() map[string]StatusBadge {
		lookup := make(map[string]StatusBadge, len(postStatusBadges))
		for _, badge := range postStatusBadges {
			lookup[badge.Status] = badge
		}
		return lookup
	}()
)

// PostStatusPresentation resolves the badge for status, falling back to Unknown.
func PostStatusPresentation(status string) StatusBadge {
	if badge, ok := postStatusLookup[strings.ToLower(strings.TrimSpace(status))]; ok {
		return badge
	}
	return unknownStatusBadge
}

// PostStatusOptions lists the badges in display order, for status pickers.
func PostStatusOptions() []StatusBadge {
	options := make([]StatusBadge, len(postStatusBadges))
	copy(options, postStatusBadges)
	return options
}
