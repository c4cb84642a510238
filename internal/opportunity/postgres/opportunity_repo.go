// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package postgres implements opportunity repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/opportunity"
	"github.com/volunteerhub/volunteerhub/internal/store"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

const opportunityColumns = `o.id, o.organization_id, o.title, o.description, o.required_skills,
	o.location, o.date, o.created_at`

const listingSelect = `SELECT ` + opportunityColumns + `, u.name,
	(SELECT count(*) FROM applications a WHERE a.opportunity_id = o.id)
	FROM opportunities o JOIN users u ON u.id = o.organization_id`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// OpportunityRepository implements opportunity.Repository using PostgreSQL.
type OpportunityRepository struct {
	db store.DB
}

// NewOpportunityRepository creates a new OpportunityRepository.
func NewOpportunityRepository(db store.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

// Create stores a new opportunity.
func (r *OpportunityRepository) Create(ctx context.Context, o *opportunity.Opportunity) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO opportunities (id, organization_id, title, description, required_skills, location, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID.String(), o.OrganizationID.String(), o.Title, o.Description, o.RequiredSkills, o.Location, o.Date, o.CreatedAt)
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return oops.Code("OPPORTUNITY_ORGANIZATION_NOT_FOUND").
				With("organization_id", o.OrganizationID.String()).
				Wrap(errutil.ErrNotFound)
		}
		return oops.Code("OPPORTUNITY_CREATE_FAILED").
			With("operation", "insert opportunity").
			With("id", o.ID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves an opportunity by ID.
func (r *OpportunityRepository) Get(ctx context.Context, id ulid.ULID) (*opportunity.Opportunity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+opportunityColumns+` FROM opportunities o WHERE o.id = $1`, id.String())

	var o opportunity.Opportunity
	err := scanOpportunity(row, &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("OPPORTUNITY_NOT_FOUND").With("id", id.String()).Wrap(errutil.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("OPPORTUNITY_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return &o, nil
}

// ListByOrganization lists an organization's opportunities, newest first.
func (r *OpportunityRepository) ListByOrganization(ctx context.Context, organizationID ulid.ULID) ([]opportunity.Listing, error) {
	rows, err := r.db.Query(ctx, listingSelect+`
		WHERE o.organization_id = $1
		ORDER BY o.created_at DESC
	`, organizationID.String())
	if err != nil {
		return nil, oops.Code("OPPORTUNITY_LIST_FAILED").
			With("organization_id", organizationID.String()).
			Wrap(err)
	}
	return collectListings(rows)
}

// Browse lists opportunities dated at or after filter.From that match any
// filter term, soonest first.
func (r *OpportunityRepository) Browse(ctx context.Context, filter opportunity.BrowseFilter) ([]opportunity.Listing, error) {
	query, args := browseQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("OPPORTUNITY_BROWSE_FAILED").Wrap(err)
	}
	return collectListings(rows)
}

func browseQuery(filter opportunity.BrowseFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(listingSelect)
	b.WriteString("\n\t\tWHERE o.date >= $1")
	args := []any{filter.From}

	if terms := filter.Terms(); len(terms) > 0 {
		conds := make([]string, 0, len(terms))
		for _, term := range terms {
			args = append(args, "%"+likeEscaper.Replace(term)+"%")
			p := "$" + strconv.Itoa(len(args))
			conds = append(conds, "o.title ILIKE "+p+" OR o.description ILIKE "+p+" OR o.required_skills ILIKE "+p)
		}
		b.WriteString(" AND (" + strings.Join(conds, " OR ") + ")")
	}
	b.WriteString("\n\t\tORDER BY o.date ASC")
	return b.String(), args
}

func collectListings(rows pgx.Rows) ([]opportunity.Listing, error) {
	defer rows.Close()

	listings := []opportunity.Listing{}
	for rows.Next() {
		var l opportunity.Listing
		if err := scanOpportunity(rows, &l.Opportunity, &l.OrganizationName, &l.Applicants); err != nil {
			return nil, oops.Code("OPPORTUNITY_SCAN_FAILED").Wrap(err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("OPPORTUNITY_ITERATE_FAILED").Wrap(err)
	}
	return listings, nil
}

// scanOpportunity scans the opportunity columns into o followed by extra.
// Callers are responsible for handling pgx.ErrNoRows.
func scanOpportunity(row pgx.Row, o *opportunity.Opportunity, extra ...any) error {
	var idStr, orgStr string
	dest := append([]any{
		&idStr, &orgStr, &o.Title, &o.Description, &o.RequiredSkills,
		&o.Location, &o.Date, &o.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err //nolint:wrapcheck // Callers wrap with context-specific info
	}

	var err error
	if o.ID, err = parseID(idStr, "opportunity id"); err != nil {
		return err
	}
	o.OrganizationID, err = parseID(orgStr, "organization id")
	return err
}

// parseID parses a stored ULID column.
func parseID(s, field string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_STORED_ID").
			With("field", field).
			With("value", s).
			Wrap(err)
	}
	return id, nil
}

// Compile-time interface check.
var _ opportunity.Repository = (*OpportunityRepository)(nil)
