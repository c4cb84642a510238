// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/opportunity"
	"github.com/volunteerhub/volunteerhub/internal/store"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// CertificateRepository implements opportunity.CertificateRepository using PostgreSQL.
type CertificateRepository struct {
	db store.DB
}

// NewCertificateRepository creates a new CertificateRepository.
func NewCertificateRepository(db store.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Issue stores the certificate and completes the application atomically.
func (r *CertificateRepository) Issue(ctx context.Context, c *opportunity.Certificate, applicationID ulid.ULID) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO certificates (id, user_id, opportunity_id, certificate_url, issued_at)
			VALUES ($1, $2, $3, $4, $5)
		`, c.ID.String(), c.UserID.String(), c.OpportunityID.String(), c.CertificateURL, c.IssuedAt); err != nil {
			return err //nolint:wrapcheck // classified below
		}
		result, err := tx.Exec(ctx, `
			UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1
		`, applicationID.String(), string(opportunity.StatusCompleted), c.IssuedAt)
		if err != nil {
			return err //nolint:wrapcheck // classified below
		}
		if result.RowsAffected() == 0 {
			return oops.Code("APPLICATION_NOT_FOUND").
				With("application_id", applicationID.String()).
				Wrap(errutil.ErrNotFound)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if store.IsUniqueViolation(err, "certificates_user_id_opportunity_id_key") {
		return oops.Code("CERTIFICATE_EXISTS").
			With("user_id", c.UserID.String()).
			With("opportunity_id", c.OpportunityID.String()).
			Wrap(errutil.ErrConflict)
	}
	return oops.Code("CERTIFICATE_ISSUE_FAILED").
		With("operation", "issue certificate").
		With("id", c.ID.String()).
		Wrap(err)
}

// ListByUser lists a user's certificates, newest first.
func (r *CertificateRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]opportunity.CertificateView, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.user_id, c.opportunity_id, c.certificate_url, c.issued_at, o.title, u.name, o.date
		FROM certificates c
		JOIN opportunities o ON o.id = c.opportunity_id
		JOIN users u ON u.id = o.organization_id
		WHERE c.user_id = $1
		ORDER BY c.issued_at DESC
	`, userID.String())
	if err != nil {
		return nil, oops.Code("CERTIFICATE_LIST_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	defer rows.Close()

	certs := []opportunity.CertificateView{}
	for rows.Next() {
		var (
			c                      opportunity.CertificateView
			idStr, userStr, oppStr string
		)
		if err := rows.Scan(&idStr, &userStr, &oppStr, &c.CertificateURL, &c.IssuedAt,
			&c.OpportunityTitle, &c.OrganizationName, &c.Date); err != nil {
			return nil, oops.Code("CERTIFICATE_SCAN_FAILED").Wrap(err)
		}
		if c.ID, err = parseID(idStr, "certificate id"); err != nil {
			return nil, err
		}
		if c.UserID, err = parseID(userStr, "user id"); err != nil {
			return nil, err
		}
		if c.OpportunityID, err = parseID(oppStr, "opportunity id"); err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CERTIFICATE_ITERATE_FAILED").Wrap(err)
	}
	return certs, nil
}

// Compile-time interface check.
var _ opportunity.CertificateRepository = (*CertificateRepository)(nil)
