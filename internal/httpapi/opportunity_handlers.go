// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/volunteerhub/volunteerhub/internal/opportunity"
)

type createOpportunityRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	RequiredSkills string `json:"requiredSkills"`
	Location       string `json:"location"`
	Date           string `json:"date"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type generateCertificateRequest struct {
	UserID        string `json:"userId"`
	OpportunityID string `json:"opportunityId"`
}

type certificateResponse struct {
	Success        bool                     `json:"success"`
	Message        string                   `json:"message"`
	CertificateURL string                   `json:"certificateUrl"`
	Data           *opportunity.Certificate `json:"data"`
}

func (s *Server) createOpportunity(c *gin.Context) {
	var req createOpportunityRequest
	if !s.bindJSON(c, &req) {
		return
	}
	o, err := s.svc.Opportunities.CreateOpportunity(c.Request.Context(), callerID(c), opportunity.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		RequiredSkills: req.RequiredSkills,
		Location:       req.Location,
		Date:           req.Date,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Opportunity created successfully", o)
}

func (s *Server) organizationOpportunities(c *gin.Context) {
	list, err := s.svc.Opportunities.ListOrganizationOpportunities(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", nonNil(list))
}

func (s *Server) browseOpportunities(c *gin.Context) {
	list, err := s.svc.Opportunities.Browse(c.Request.Context(), c.Query("q"), c.Query("category"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", nonNil(list))
}

func (s *Server) apply(c *gin.Context) {
	app, err := s.svc.Opportunities.Apply(c.Request.Context(), callerID(c), c.Param("opportunityId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Application submitted successfully", app)
}

func (s *Server) myApplications(c *gin.Context) {
	list, err := s.svc.Opportunities.ListVolunteerApplications(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", nonNil(list))
}

func (s *Server) organizationApplications(c *gin.Context) {
	list, err := s.svc.Opportunities.ListOrganizationApplications(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", nonNil(list))
}

func (s *Server) updateApplicationStatus(c *gin.Context) {
	var req updateStatusRequest
	if !s.bindJSON(c, &req) {
		return
	}
	app, err := s.svc.Opportunities.UpdateApplicationStatus(c.Request.Context(), callerID(c), c.Param("id"), req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Application status updated", app)
}

func (s *Server) generateCertificate(c *gin.Context) {
	var req generateCertificateRequest
	if !s.bindJSON(c, &req) {
		return
	}
	cert, err := s.svc.Opportunities.GenerateCertificate(c.Request.Context(), callerID(c), req.UserID, req.OpportunityID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, certificateResponse{
		Success:        true,
		Message:        "Certificate generated successfully",
		CertificateURL: cert.CertificateURL,
		Data:           cert,
	})
}

func (s *Server) myCertificates(c *gin.Context) {
	list, err := s.svc.Opportunities.ListCertificates(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", nonNil(list))
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
