// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package opportunity

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Status is the state of an application.
type Status string

// Application statuses.
const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
)

// transitions lists the statuses each status may move to.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusCompleted},
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusAccepted, StatusRejected, StatusCompleted:
		return st, nil
	case "":
		return "", errutil.Validation("APPLICATION_MISSING_STATUS", "Status is required")
	default:
		return "", errutil.Validation("APPLICATION_INVALID_STATUS", "Status is invalid")
	}
}

// CanTransition reports whether an application may move from s to next.
// Setting the current status again is allowed and changes nothing.
func (s Status) CanTransition(next Status) bool {
	return s == next || lo.Contains(transitions[s], next)
}

// Certifiable reports whether a certificate may be issued in status s.
func (s Status) Certifiable() bool {
	return s == StatusAccepted || s == StatusCompleted
}

// Application is a volunteer's request to join an opportunity.
type Application struct {
	ID            ulid.ULID `json:"id"`
	OpportunityID ulid.ULID `json:"opportunityId"`
	VolunteerID   ulid.ULID `json:"volunteerId"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// OrganizationApplication is an application as the owning organization sees it.
type OrganizationApplication struct {
	ID               ulid.ULID `json:"id"`
	VolunteerID      ulid.ULID `json:"volunteerId"`
	VolunteerName    string    `json:"volunteerName"`
	VolunteerEmail   string    `json:"volunteerEmail"`
	Skills           *string   `json:"skills"`
	OpportunityID    ulid.ULID `json:"opportunityId"`
	OpportunityTitle string    `json:"opportunityTitle"`
	Status           Status    `json:"status"`
	AppliedAt        time.Time `json:"appliedDate"`
}

// VolunteerApplication is an application as the applying volunteer sees it.
type VolunteerApplication struct {
	ID               ulid.ULID `json:"id"`
	OpportunityID    ulid.ULID `json:"opportunityId"`
	OpportunityTitle string    `json:"opportunityTitle"`
	OrganizationName string    `json:"organizationName"`
	Location         string    `json:"location"`
	Date             time.Time `json:"date"`
	Status           Status    `json:"status"`
	AppliedAt        time.Time `json:"appliedDate"`
}

// ApplicationRepository persists applications.
type ApplicationRepository interface {
	// Create fails with a conflict when the volunteer already applied.
	Create(ctx context.Context, a *Application) error
	Get(ctx context.Context, id ulid.ULID) (*Application, error)
	Find(ctx context.Context, opportunityID, volunteerID ulid.ULID) (*Application, error)
	UpdateStatus(ctx context.Context, id ulid.ULID, status Status, at time.Time) error
	ListByVolunteer(ctx context.Context, volunteerID ulid.ULID) ([]VolunteerApplication, error)
	ListByOrganization(ctx context.Context, organizationID ulid.ULID) ([]OrganizationApplication, error)
}
