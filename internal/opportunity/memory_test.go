// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package opportunity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// memoryStore is an in-memory implementation of every repository the
// service needs.
type memoryStore struct {
	mu            sync.Mutex
	users         map[ulid.ULID]*auth.User
	opportunities map[ulid.ULID]*Opportunity
	applications  map[ulid.ULID]*Application
	certificates  map[ulid.ULID]*Certificate
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:         map[ulid.ULID]*auth.User{},
		opportunities: map[ulid.ULID]*Opportunity{},
		applications:  map[ulid.ULID]*Application{},
		certificates:  map[ulid.ULID]*Certificate{},
	}
}

func (m *memoryStore) addUser(name string, role auth.Role) *auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &auth.User{ID: ulid.Make(), Name: name, Email: strings.ToLower(name) + "@x.com", Role: role}
	m.users[u.ID] = u
	return u
}

func (m *memoryStore) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(errutil.ErrNotFound)
	}
	return u, nil
}

type memoryOpportunities struct{ *memoryStore }

func (m memoryOpportunities) Create(_ context.Context, o *Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.opportunities[o.ID] = &cp
	return nil
}

func (m memoryOpportunities) Get(_ context.Context, id ulid.ULID) (*Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.opportunities[id]
	if !ok {
		return nil, oops.Code("OPPORTUNITY_NOT_FOUND").Wrap(errutil.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (m memoryOpportunities) listing(o *Opportunity) Listing {
	count := 0
	for _, a := range m.applications {
		if a.OpportunityID == o.ID {
			count++
		}
	}
	return Listing{Opportunity: *o, OrganizationName: m.users[o.OrganizationID].Name, Applicants: count}
}

func (m memoryOpportunities) ListByOrganization(_ context.Context, organizationID ulid.ULID) ([]Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Listing
	for _, o := range m.opportunities {
		if o.OrganizationID == organizationID {
			out = append(out, m.listing(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memoryOpportunities) Browse(_ context.Context, filter BrowseFilter) ([]Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	terms := filter.Terms()
	var out []Listing
	for _, o := range m.opportunities {
		if o.Date.Before(filter.From) {
			continue
		}
		if len(terms) > 0 && !matchesAny(o, terms) {
			continue
		}
		out = append(out, m.listing(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func matchesAny(o *Opportunity, terms []string) bool {
	for _, t := range terms {
		t = strings.ToLower(t)
		for _, field := range []string{o.Title, o.Description, o.RequiredSkills} {
			if strings.Contains(strings.ToLower(field), t) {
				return true
			}
		}
	}
	return false
}

type memoryApplications struct{ *memoryStore }

func (m memoryApplications) Create(_ context.Context, a *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.applications {
		if existing.OpportunityID == a.OpportunityID && existing.VolunteerID == a.VolunteerID {
			return oops.Code("APPLICATION_EXISTS").Wrap(errutil.ErrConflict)
		}
	}
	cp := *a
	m.applications[a.ID] = &cp
	return nil
}

func (m memoryApplications) Get(_ context.Context, id ulid.ULID) (*Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return nil, oops.Code("APPLICATION_NOT_FOUND").Wrap(errutil.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m memoryApplications) Find(_ context.Context, opportunityID, volunteerID ulid.ULID) (*Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.applications {
		if a.OpportunityID == opportunityID && a.VolunteerID == volunteerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, oops.Code("APPLICATION_NOT_FOUND").Wrap(errutil.ErrNotFound)
}

func (m memoryApplications) UpdateStatus(_ context.Context, id ulid.ULID, status Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return oops.Code("APPLICATION_NOT_FOUND").Wrap(errutil.ErrNotFound)
	}
	a.Status = status
	a.UpdatedAt = at
	return nil
}

func (m memoryApplications) ListByVolunteer(_ context.Context, volunteerID ulid.ULID) ([]VolunteerApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []VolunteerApplication
	for _, a := range m.applications {
		if a.VolunteerID != volunteerID {
			continue
		}
		o := m.opportunities[a.OpportunityID]
		out = append(out, VolunteerApplication{
			ID: a.ID, OpportunityID: o.ID, OpportunityTitle: o.Title,
			OrganizationName: m.users[o.OrganizationID].Name, Status: a.Status, AppliedAt: a.CreatedAt,
		})
	}
	return out, nil
}

func (m memoryApplications) ListByOrganization(_ context.Context, organizationID ulid.ULID) ([]OrganizationApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OrganizationApplication
	for _, a := range m.applications {
		o := m.opportunities[a.OpportunityID]
		if o.OrganizationID != organizationID {
			continue
		}
		v := m.users[a.VolunteerID]
		out = append(out, OrganizationApplication{
			ID: a.ID, VolunteerID: v.ID, VolunteerName: v.Name, VolunteerEmail: v.Email,
			OpportunityID: o.ID, OpportunityTitle: o.Title, Status: a.Status, AppliedAt: a.CreatedAt,
		})
	}
	return out, nil
}

type memoryCertificates struct{ *memoryStore }

func (m memoryCertificates) Issue(_ context.Context, c *Certificate, applicationID ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.certificates {
		if existing.UserID == c.UserID && existing.OpportunityID == c.OpportunityID {
			return oops.Code("CERTIFICATE_EXISTS").Wrap(errutil.ErrConflict)
		}
	}
	a, ok := m.applications[applicationID]
	if !ok {
		return oops.Code("APPLICATION_NOT_FOUND").Wrap(errutil.ErrNotFound)
	}
	a.Status = StatusCompleted
	cp := *c
	m.certificates[c.ID] = &cp
	return nil
}

func (m memoryCertificates) ListByUser(_ context.Context, userID ulid.ULID) ([]CertificateView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CertificateView
	for _, c := range m.certificates {
		if c.UserID == userID {
			o := m.opportunities[c.OpportunityID]
			out = append(out, CertificateView{Certificate: *c, OpportunityTitle: o.Title, Date: o.Date})
		}
	}
	return out, nil
}
