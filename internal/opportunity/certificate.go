// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package opportunity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Certificate records that a volunteer completed an opportunity.
type Certificate struct {
	ID             ulid.ULID `json:"id"`
	UserID         ulid.ULID `json:"userId"`
	OpportunityID  ulid.ULID `json:"opportunityId"`
	CertificateURL string    `json:"certificateUrl"`
	IssuedAt       time.Time `json:"issuedAt"`
}

// CertificateView is a certificate with its opportunity details.
type CertificateView struct {
	Certificate
	OpportunityTitle string    `json:"opportunityTitle"`
	OrganizationName string    `json:"organizationName"`
	Date             time.Time `json:"date"`
}

// CertificateURL returns the document location for a volunteer's certificate.
func CertificateURL(baseURL string, userID, opportunityID ulid.ULID) string {
	return fmt.Sprintf("%s/certificates/%s-%s.pdf", strings.TrimRight(baseURL, "/"), userID, opportunityID)
}

// CertificateRepository persists certificates.
type CertificateRepository interface {
	// Issue stores c and marks applicationID COMPLETED in one transaction.
	// It fails with a conflict when the volunteer already holds a certificate
	// for the opportunity.
	Issue(ctx context.Context, c *Certificate, applicationID ulid.ULID) error
	ListByUser(ctx context.Context, userID ulid.ULID) ([]CertificateView, error)
}
