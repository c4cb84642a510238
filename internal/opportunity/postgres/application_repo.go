// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/opportunity"
	"github.com/volunteerhub/volunteerhub/internal/store"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

const applicationColumns = `id, opportunity_id, volunteer_id, status, created_at, updated_at`

// ApplicationRepository implements opportunity.ApplicationRepository using PostgreSQL.
type ApplicationRepository struct {
	db store.DB
}

// NewApplicationRepository creates a new ApplicationRepository.
func NewApplicationRepository(db store.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create stores a new application.
func (r *ApplicationRepository) Create(ctx context.Context, a *opportunity.Application) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO applications (id, opportunity_id, volunteer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID.String(), a.OpportunityID.String(), a.VolunteerID.String(), string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err, "applications_opportunity_id_volunteer_id_key") {
			return oops.Code("APPLICATION_EXISTS").
				With("opportunity_id", a.OpportunityID.String()).
				With("volunteer_id", a.VolunteerID.String()).
				Wrap(errutil.ErrConflict)
		}
		if store.IsForeignKeyViolation(err) {
			return oops.Code("APPLICATION_REFERENCE_MISSING").
				With("opportunity_id", a.OpportunityID.String()).
				Wrap(errutil.ErrNotFound)
		}
		return oops.Code("APPLICATION_CREATE_FAILED").
			With("operation", "insert application").
			With("id", a.ID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves an application by ID.
func (r *ApplicationRepository) Get(ctx context.Context, id ulid.ULID) (*opportunity.Application, error) {
	row := r.db.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id.String())
	return r.one(row, "id", id.String())
}

// Find retrieves the application a volunteer made to an opportunity.
func (r *ApplicationRepository) Find(ctx context.Context, opportunityID, volunteerID ulid.ULID) (*opportunity.Application, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE opportunity_id = $1 AND volunteer_id = $2
	`, opportunityID.String(), volunteerID.String())
	return r.one(row, "opportunity_id", opportunityID.String())
}

func (r *ApplicationRepository) one(row pgx.Row, key, value string) (*opportunity.Application, error) {
	a, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("APPLICATION_NOT_FOUND").With(key, value).Wrap(errutil.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("APPLICATION_GET_FAILED").With(key, value).Wrap(err)
	}
	return a, nil
}

// UpdateStatus sets an application's status.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id ulid.ULID, status opportunity.Status, at time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1
	`, id.String(), string(status), at)
	if err != nil {
		return oops.Code("APPLICATION_UPDATE_FAILED").
			With("operation", "update application status").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("APPLICATION_NOT_FOUND").With("id", id.String()).Wrap(errutil.ErrNotFound)
	}
	return nil
}

// ListByVolunteer lists a volunteer's applications, newest first.
func (r *ApplicationRepository) ListByVolunteer(ctx context.Context, volunteerID ulid.ULID) ([]opportunity.VolunteerApplication, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.opportunity_id, o.title, u.name, o.location, o.date, a.status, a.created_at
		FROM applications a
		JOIN opportunities o ON o.id = a.opportunity_id
		JOIN users u ON u.id = o.organization_id
		WHERE a.volunteer_id = $1
		ORDER BY a.created_at DESC
	`, volunteerID.String())
	if err != nil {
		return nil, oops.Code("APPLICATION_LIST_FAILED").With("volunteer_id", volunteerID.String()).Wrap(err)
	}
	defer rows.Close()

	apps := []opportunity.VolunteerApplication{}
	for rows.Next() {
		var (
			a             opportunity.VolunteerApplication
			idStr, oppStr string
			status        string
		)
		if err := rows.Scan(&idStr, &oppStr, &a.OpportunityTitle, &a.OrganizationName,
			&a.Location, &a.Date, &status, &a.AppliedAt); err != nil {
			return nil, oops.Code("APPLICATION_SCAN_FAILED").Wrap(err)
		}
		if a.ID, err = parseID(idStr, "application id"); err != nil {
			return nil, err
		}
		if a.OpportunityID, err = parseID(oppStr, "opportunity id"); err != nil {
			return nil, err
		}
		a.Status = opportunity.Status(status)
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("APPLICATION_ITERATE_FAILED").Wrap(err)
	}
	return apps, nil
}

// ListByOrganization lists applications to an organization's opportunities,
// newest first.
func (r *ApplicationRepository) ListByOrganization(ctx context.Context, organizationID ulid.ULID) ([]opportunity.OrganizationApplication, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, v.id, v.name, v.email, v.skills, o.id, o.title, a.status, a.created_at
		FROM applications a
		JOIN opportunities o ON o.id = a.opportunity_id
		JOIN users v ON v.id = a.volunteer_id
		WHERE o.organization_id = $1
		ORDER BY a.created_at DESC
	`, organizationID.String())
	if err != nil {
		return nil, oops.Code("APPLICATION_LIST_FAILED").With("organization_id", organizationID.String()).Wrap(err)
	}
	defer rows.Close()

	apps := []opportunity.OrganizationApplication{}
	for rows.Next() {
		var (
			a                     opportunity.OrganizationApplication
			idStr, volStr, oppStr string
			status                string
		)
		if err := rows.Scan(&idStr, &volStr, &a.VolunteerName, &a.VolunteerEmail, &a.Skills,
			&oppStr, &a.OpportunityTitle, &status, &a.AppliedAt); err != nil {
			return nil, oops.Code("APPLICATION_SCAN_FAILED").Wrap(err)
		}
		if a.ID, err = parseID(idStr, "application id"); err != nil {
			return nil, err
		}
		if a.VolunteerID, err = parseID(volStr, "volunteer id"); err != nil {
			return nil, err
		}
		if a.OpportunityID, err = parseID(oppStr, "opportunity id"); err != nil {
			return nil, err
		}
		a.Status = opportunity.Status(status)
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("APPLICATION_ITERATE_FAILED").Wrap(err)
	}
	return apps, nil
}

// scanApplication scans a single application row.
// Callers are responsible for handling pgx.ErrNoRows.
func scanApplication(row pgx.Row) (*opportunity.Application, error) {
	var (
		a                     opportunity.Application
		idStr, oppStr, volStr string
		status                string
	)
	if err := row.Scan(&idStr, &oppStr, &volStr, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
	}
	var err error
	if a.ID, err = parseID(idStr, "application id"); err != nil {
		return nil, err
	}
	if a.OpportunityID, err = parseID(oppStr, "opportunity id"); err != nil {
		return nil, err
	}
	if a.VolunteerID, err = parseID(volStr, "volunteer id"); err != nil {
		return nil, err
	}
	a.Status = opportunity.Status(status)
	return &a, nil
}

// Compile-time interface check.
var _ opportunity.ApplicationRepository = (*ApplicationRepository)(nil)
