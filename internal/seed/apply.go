// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package seed

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/internal/opportunity"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Users is the account store the seeder writes to.
type Users interface {
	Create(ctx context.Context, user *auth.User) error
	GetByEmail(ctx context.Context, email string) (*auth.User, error)
}

// Report counts what Apply did.
type Report struct {
	UsersCreated         int `json:"usersCreated"`
	UsersSkipped         int `json:"usersSkipped"`
	OpportunitiesCreated int `json:"opportunitiesCreated"`
	OpportunitiesSkipped int `json:"opportunitiesSkipped"`
}

// Seeder applies seed files.
type Seeder struct {
	users         Users
	opportunities opportunity.Repository
	hasher        auth.PasswordHasher
	now           func() time.Time
	logger        *slog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(users Users, opportunities opportunity.Repository, hasher auth.PasswordHasher, logger *slog.Logger) (*Seeder, error) {
	if users == nil || opportunities == nil || hasher == nil {
		return nil, oops.Code("SEED_INVALID_SEEDER").Errorf("users, opportunities and hasher are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{users: users, opportunities: opportunities, hasher: hasher, now: time.Now, logger: logger}, nil
}

// Apply creates the accounts and opportunities in f. Accounts whose email
// already exists are left untouched, as are opportunities whose organization
// already has one with the same title and date, so Apply can be re-run.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Report, error) {
	report := &Report{}
	orgs := map[string]ulid.ULID{}

	for _, group := range []struct {
		role     auth.Role
		accounts []Account
	}{
		{auth.RoleOrganization, f.Organizations},
		{auth.RoleVolunteer, f.Volunteers},
	} {
		for _, a := range group.accounts {
			user, created, err := s.ensureUser(ctx, a, group.role)
			if err != nil {
				return report, err
			}
			if created {
				report.UsersCreated++
			} else {
				report.UsersSkipped++
			}
			if user.Role == auth.RoleOrganization {
				orgs[user.Email] = user.ID
			}
		}
	}

	for _, o := range f.Opportunities {
		orgID, ok := orgs[auth.NormalizeEmail(o.Organization)]
		if !ok {
			return report, oops.Code("SEED_UNKNOWN_ORGANIZATION").
				With("organization", o.Organization).
				Errorf("opportunity %q references unknown organization", o.Title)
		}
		created, err := s.ensureOpportunity(ctx, orgID, o)
		if err != nil {
			return report, err
		}
		if created {
			report.OpportunitiesCreated++
		} else {
			report.OpportunitiesSkipped++
		}
	}

	s.logger.InfoContext(ctx, "seed applied",
		"users_created", report.UsersCreated,
		"users_skipped", report.UsersSkipped,
		"opportunities_created", report.OpportunitiesCreated,
		"opportunities_skipped", report.OpportunitiesSkipped)
	return report, nil
}

func (s *Seeder) ensureUser(ctx context.Context, a Account, role auth.Role) (*auth.User, bool, error) {
	email := auth.NormalizeEmail(a.Email)
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "seed account exists", "email", email)
		return existing, false, nil
	case !errors.Is(err, errutil.ErrNotFound):
		return nil, false, oops.Code("SEED_USER_LOOKUP_FAILED").With("email", email).Wrap(err)
	}

	stored := a.LegacyPassword
	if a.Password != "" {
		if stored, err = s.hasher.Hash(a.Password); err != nil {
			return nil, false, oops.Code("SEED_HASH_FAILED").With("email", email).Wrap(err)
		}
	}
	user, err := auth.NewUser(email, a.Name, role, stored)
	if err != nil {
		return nil, false, oops.With("email", email).Wrap(err)
	}
	user.Skills = optional(a.Skills)
	user.Location = optional(a.Location)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, oops.Code("SEED_USER_CREATE_FAILED").With("email", email).Wrap(err)
	}
	s.logger.InfoContext(ctx, "seed account created",
		"email", email,
		"role", string(role),
		"legacy", a.LegacyPassword != "")
	return user, true, nil
}

func (s *Seeder) ensureOpportunity(ctx context.Context, orgID ulid.ULID, o Opportunity) (bool, error) {
	in := opportunity.CreateInput{
		Title:          o.Title,
		Description:    o.Description,
		RequiredSkills: o.RequiredSkills,
		Location:       o.Location,
		Date:           o.Date,
	}
	opp, err := opportunity.NewOpportunity(orgID, in, s.now())
	if err != nil {
		return false, oops.With("title", o.Title).Wrap(err)
	}

	existing, err := s.opportunities.ListByOrganization(ctx, orgID)
	if err != nil {
		return false, oops.Code("SEED_OPPORTUNITY_LOOKUP_FAILED").With("organization_id", orgID.String()).Wrap(err)
	}
	if lo.ContainsBy(existing, func(l opportunity.Listing) bool {
		return l.Title == opp.Title && l.Date.Equal(opp.Date)
	}) {
		return false, nil
	}
	if err := s.opportunities.Create(ctx, opp); err != nil {
		return false, oops.Code("SEED_OPPORTUNITY_CREATE_FAILED").With("title", o.Title).Wrap(err)
	}
	return true, nil
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
