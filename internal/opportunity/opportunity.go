// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package opportunity manages volunteering opportunities, the applications
// volunteers make to them and the certificates organizations issue.
package opportunity

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Listing status labels.
const (
	ListingActive    = "Active"
	ListingCompleted = "Completed"
)

// MaxTitleLength bounds opportunity titles.
const MaxTitleLength = 200

// Opportunity is a volunteering event posted by an organization.
type Opportunity struct {
	ID             ulid.ULID `json:"id"`
	OrganizationID ulid.ULID `json:"organizationId"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	RequiredSkills string    `json:"requiredSkills"`
	Location       string    `json:"location"`
	Date           time.Time `json:"date"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Listing is an Opportunity as shown in lists.
type Listing struct {
	Opportunity
	OrganizationName string `json:"organizationName,omitempty"`
	Applicants       int    `json:"applicants"`
	Status           string `json:"status"`
}

// ListingStatus labels an opportunity dated at date relative to now.
func ListingStatus(date, now time.Time) string {
	if date.After(now) {
		return ListingActive
	}
	return ListingCompleted
}

// CreateInput holds the fields an organization submits for a new opportunity.
type CreateInput struct {
	Title          string
	Description    string
	RequiredSkills string
	Location       string
	Date           string
}

// BrowseFilter narrows Browse results. Every non-empty term is matched as a
// case-insensitive substring of title, description or required skills, and
// an opportunity matching any term is returned.
type BrowseFilter struct {
	From     time.Time
	Query    string
	Category string
}

// Terms returns the trimmed, non-empty search terms.
func (f BrowseFilter) Terms() []string {
	return lo.Compact(lo.Map([]string{f.Category, f.Query}, func(t string, _ int) string {
		return strings.TrimSpace(t)
	}))
}

// Repository persists opportunities.
type Repository interface {
	Create(ctx context.Context, o *Opportunity) error
	Get(ctx context.Context, id ulid.ULID) (*Opportunity, error)
	ListByOrganization(ctx context.Context, organizationID ulid.ULID) ([]Listing, error)
	Browse(ctx context.Context, filter BrowseFilter) ([]Listing, error)
}

// dateLayouts are the accepted opportunity date formats.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// ParseDate parses an opportunity date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errutil.Validation("OPPORTUNITY_INVALID_DATE", "Date is invalid")
}

// NewOpportunity validates in and builds an Opportunity owned by organizationID.
func NewOpportunity(organizationID ulid.ULID, in CreateInput, now time.Time) (*Opportunity, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.Date) == "" {
		return nil, errutil.Validation("OPPORTUNITY_MISSING_FIELDS", "Title and Date are required")
	}
	if len(title) > MaxTitleLength {
		return nil, oops.Code("OPPORTUNITY_TITLE_TOO_LONG").
			With("length", len(title)).
			Wrap(errutil.Validation("OPPORTUNITY_TITLE_TOO_LONG", "Title is too long"))
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	return &Opportunity{
		ID:             ulid.Make(),
		OrganizationID: organizationID,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		RequiredSkills: strings.TrimSpace(in.RequiredSkills),
		Location:       strings.TrimSpace(in.Location),
		Date:           date,
		CreatedAt:      now.UTC(),
	}, nil
}
