// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package opportunity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

const (
	msgOpportunityNotFound = "Opportunity not found"
	msgNotAuthorized       = "Not authorized to update this application"
)

// Users resolves the acting account.
type Users interface {
	GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error)
}

// Config configures a Service.
type Config struct {
	// CertificateBaseURL prefixes generated certificate URLs.
	CertificateBaseURL string
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Service implements opportunity, application and certificate operations.
type Service struct {
	users         Users
	opportunities Repository
	applications  ApplicationRepository
	certificates  CertificateRepository
	baseURL       string
	now           func() time.Time
	logger        *slog.Logger
}

// NewService creates a Service that logs through slog.Default.
func NewService(
	users Users,
	opportunities Repository,
	applications ApplicationRepository,
	certificates CertificateRepository,
	cfg Config,
) (*Service, error) {
	return NewServiceWithLogger(users, opportunities, applications, certificates, cfg, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(
	users Users,
	opportunities Repository,
	applications ApplicationRepository,
	certificates CertificateRepository,
	cfg Config,
	logger *slog.Logger,
) (*Service, error) {
	switch {
	case users == nil:
		return nil, oops.Code("OPPORTUNITY_INVALID_SERVICE").Errorf("users repository is required")
	case opportunities == nil:
		return nil, oops.Code("OPPORTUNITY_INVALID_SERVICE").Errorf("opportunity repository is required")
	case applications == nil:
		return nil, oops.Code("OPPORTUNITY_INVALID_SERVICE").Errorf("application repository is required")
	case certificates == nil:
		return nil, oops.Code("OPPORTUNITY_INVALID_SERVICE").Errorf("certificate repository is required")
	case logger == nil:
		return nil, oops.Code("OPPORTUNITY_INVALID_SERVICE").Errorf("logger is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		users:         users,
		opportunities: opportunities,
		applications:  applications,
		certificates:  certificates,
		baseURL:       cfg.CertificateBaseURL,
		now:           now,
		logger:        logger,
	}, nil
}

// requireRole loads the acting user and checks its role.
func (s *Service) requireRole(ctx context.Context, id ulid.ULID, role auth.Role, public string) (*auth.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, errutil.NotFound("AUTH_USER_NOT_FOUND", "User not found")
		}
		return nil, oops.Code("OPPORTUNITY_ACTOR_LOOKUP_FAILED").With("user_id", id.String()).Wrap(err)
	}
	if user.Role != role {
		return nil, oops.Code("OPPORTUNITY_ROLE_REQUIRED").
			With("user_id", id.String()).
			With("role", string(user.Role)).
			With("required", string(role)).
			Wrap(errutil.Forbidden("OPPORTUNITY_ROLE_REQUIRED", public))
	}
	return user, nil
}

// CreateOpportunity posts a new opportunity for an organization.
func (s *Service) CreateOpportunity(ctx context.Context, organizationID ulid.ULID, in CreateInput) (*Opportunity, error) {
	if _, err := s.requireRole(ctx, organizationID, auth.RoleOrganization, "Only organizations can create opportunities"); err != nil {
		return nil, err
	}
	o, err := NewOpportunity(organizationID, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.opportunities.Create(ctx, o); err != nil {
		return nil, oops.Code("OPPORTUNITY_CREATE_FAILED").With("organization_id", organizationID.String()).Wrap(err)
	}
	s.logger.InfoContext(ctx, "opportunity created",
		"opportunity_id", o.ID.String(),
		"organization_id", organizationID.String())
	return o, nil
}

// ListOrganizationOpportunities returns an organization's opportunities with
// applicant counts, newest first.
func (s *Service) ListOrganizationOpportunities(ctx context.Context, organizationID ulid.ULID) ([]Listing, error) {
	if _, err := s.requireRole(ctx, organizationID, auth.RoleOrganization, "Only organizations can list their opportunities"); err != nil {
		return nil, err
	}
	listings, err := s.opportunities.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, oops.Code("OPPORTUNITY_LIST_FAILED").With("organization_id", organizationID.String()).Wrap(err)
	}
	now := s.now()
	for i := range listings {
		listings[i].Status = ListingStatus(listings[i].Date, now)
	}
	return listings, nil
}

// Browse returns upcoming opportunities, soonest first.
func (s *Service) Browse(ctx context.Context, query, category string) ([]Listing, error) {
	listings, err := s.opportunities.Browse(ctx, BrowseFilter{
		From:     s.now(),
		Query:    query,
		Category: category,
	})
	if err != nil {
		return nil, oops.Code("OPPORTUNITY_BROWSE_FAILED").Wrap(err)
	}
	for i := range listings {
		listings[i].Status = ListingActive
	}
	return listings, nil
}

// Apply records a volunteer's application to an opportunity.
func (s *Service) Apply(ctx context.Context, volunteerID ulid.ULID, opportunityID string) (*Application, error) {
	if _, err := s.requireRole(ctx, volunteerID, auth.RoleVolunteer, "Only volunteers can apply to opportunities"); err != nil {
		return nil, err
	}
	o, err := s.getOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !o.Date.After(now) {
		return nil, errutil.Validation("OPPORTUNITY_CLOSED", "Opportunity is no longer open")
	}

	app := &Application{
		ID:            ulid.Make(),
		OpportunityID: o.ID,
		VolunteerID:   volunteerID,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.applications.Create(ctx, app); err != nil {
		if errors.Is(err, errutil.ErrConflict) {
			return nil, errutil.Conflict("APPLICATION_EXISTS", "You have already applied to this opportunity")
		}
		return nil, oops.Code("APPLICATION_CREATE_FAILED").
			With("opportunity_id", o.ID.String()).
			With("volunteer_id", volunteerID.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "application submitted",
		"application_id", app.ID.String(),
		"opportunity_id", o.ID.String())
	return app, nil
}

// ListVolunteerApplications returns a volunteer's applications, newest first.
func (s *Service) ListVolunteerApplications(ctx context.Context, volunteerID ulid.ULID) ([]VolunteerApplication, error) {
	apps, err := s.applications.ListByVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, oops.Code("APPLICATION_LIST_FAILED").With("volunteer_id", volunteerID.String()).Wrap(err)
	}
	return apps, nil
}

// ListOrganizationApplications returns applications to an organization's
// opportunities, newest first.
func (s *Service) ListOrganizationApplications(ctx context.Context, organizationID ulid.ULID) ([]OrganizationApplication, error) {
	if _, err := s.requireRole(ctx, organizationID, auth.RoleOrganization, "Only organizations can review applications"); err != nil {
		return nil, err
	}
	apps, err := s.applications.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, oops.Code("APPLICATION_LIST_FAILED").With("organization_id", organizationID.String()).Wrap(err)
	}
	return apps, nil
}

// UpdateApplicationStatus moves an application to status on behalf of the
// organization owning its opportunity.
func (s *Service) UpdateApplicationStatus(ctx context.Context, organizationID ulid.ULID, applicationID, status string) (*Application, error) {
	next, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	app, err := s.ownedApplication(ctx, organizationID, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status == next {
		return app, nil
	}
	if !app.Status.CanTransition(next) {
		return nil, oops.Code("APPLICATION_INVALID_TRANSITION").
			With("from", string(app.Status)).
			With("to", string(next)).
			Wrap(errutil.Validation("APPLICATION_INVALID_TRANSITION", "Cannot change application from "+string(app.Status)+" to "+string(next)))
	}

	now := s.now().UTC()
	if err := s.applications.UpdateStatus(ctx, app.ID, next, now); err != nil {
		return nil, oops.Code("APPLICATION_UPDATE_FAILED").With("application_id", app.ID.String()).Wrap(err)
	}
	s.logger.InfoContext(ctx, "application status updated",
		"application_id", app.ID.String(),
		"from", string(app.Status),
		"to", string(next))
	app.Status = next
	app.UpdatedAt = now
	return app, nil
}

// ownedApplication loads an application and checks that organizationID owns
// its opportunity. A missing application is reported as forbidden so ids of
// other organizations' applications cannot be probed.
func (s *Service) ownedApplication(ctx context.Context, organizationID ulid.ULID, applicationID string) (*Application, error) {
	denied := errutil.Forbidden("APPLICATION_NOT_OWNED", msgNotAuthorized)

	id, err := ulid.Parse(applicationID)
	if err != nil {
		return nil, denied
	}
	app, err := s.applications.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, denied
		}
		return nil, oops.Code("APPLICATION_GET_FAILED").With("application_id", applicationID).Wrap(err)
	}
	o, err := s.opportunities.Get(ctx, app.OpportunityID)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, denied
		}
		return nil, oops.Code("OPPORTUNITY_GET_FAILED").With("opportunity_id", app.OpportunityID.String()).Wrap(err)
	}
	if o.OrganizationID != organizationID {
		return nil, denied
	}
	return app, nil
}

// GenerateCertificate issues a completion certificate to an accepted
// volunteer and marks the application COMPLETED.
func (s *Service) GenerateCertificate(ctx context.Context, organizationID ulid.ULID, volunteerID, opportunityID string) (*Certificate, error) {
	if volunteerID == "" || opportunityID == "" {
		return nil, errutil.Validation("CERTIFICATE_MISSING_FIELDS", "User and opportunity are required")
	}
	o, err := s.getOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	if o.OrganizationID != organizationID {
		return nil, errutil.Forbidden("CERTIFICATE_NOT_OWNED", "Not authorized to issue certificates for this opportunity")
	}
	vid, err := ulid.Parse(volunteerID)
	if err != nil {
		return nil, errutil.NotFound("CERTIFICATE_NO_APPLICATION", "Volunteer has not applied to this opportunity")
	}
	app, err := s.applications.Find(ctx, o.ID, vid)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, errutil.NotFound("CERTIFICATE_NO_APPLICATION", "Volunteer has not applied to this opportunity")
		}
		return nil, oops.Code("APPLICATION_GET_FAILED").With("opportunity_id", o.ID.String()).Wrap(err)
	}
	if !app.Status.Certifiable() {
		return nil, oops.Code("CERTIFICATE_NOT_ACCEPTED").
			With("status", string(app.Status)).
			Wrap(errutil.Validation("CERTIFICATE_NOT_ACCEPTED", "Volunteer has not been accepted for this opportunity"))
	}

	cert := &Certificate{
		ID:             ulid.Make(),
		UserID:         vid,
		OpportunityID:  o.ID,
		CertificateURL: CertificateURL(s.baseURL, vid, o.ID),
		IssuedAt:       s.now().UTC(),
	}
	if err := s.certificates.Issue(ctx, cert, app.ID); err != nil {
		if errors.Is(err, errutil.ErrConflict) {
			return nil, errutil.Conflict("CERTIFICATE_EXISTS", "Certificate already issued")
		}
		return nil, oops.Code("CERTIFICATE_ISSUE_FAILED").
			With("opportunity_id", o.ID.String()).
			With("user_id", vid.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "certificate issued",
		"certificate_id", cert.ID.String(),
		"opportunity_id", o.ID.String(),
		"user_id", vid.String())
	return cert, nil
}

// ListCertificates returns the certificates held by userID, newest first.
func (s *Service) ListCertificates(ctx context.Context, userID ulid.ULID) ([]CertificateView, error) {
	certs, err := s.certificates.ListByUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("CERTIFICATE_LIST_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return certs, nil
}

func (s *Service) getOpportunity(ctx context.Context, id string) (*Opportunity, error) {
	oid, err := ulid.Parse(id)
	if err != nil {
		return nil, errutil.NotFound("OPPORTUNITY_NOT_FOUND", msgOpportunityNotFound)
	}
	o, err := s.opportunities.Get(ctx, oid)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, errutil.NotFound("OPPORTUNITY_NOT_FOUND", msgOpportunityNotFound)
		}
		return nil, oops.Code("OPPORTUNITY_GET_FAILED").With("opportunity_id", id).Wrap(err)
	}
	return o, nil
}
