// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Fixed client-facing messages.
const (
	msgInternal       = "Internal server error"
	msgInvalidBody    = "Invalid request body"
	msgNoToken        = "Access denied. No token provided."
	msgInvalidToken   = "Invalid or expired token."
	msgRouteNotFound  = "Route not found"
	msgTooManyRequest = "Too many requests, please try again later."
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func reject(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

// StatusFor maps an error to its HTTP status by kind.
func StatusFor(err error) int {
	switch errutil.KindOf(err) {
	case errutil.ErrValidation, errutil.ErrInvalidToken:
		return http.StatusBadRequest
	case errutil.ErrUnauthenticated:
		return http.StatusUnauthorized
	case errutil.ErrForbidden:
		return http.StatusForbidden
	case errutil.ErrNotFound:
		return http.StatusNotFound
	case errutil.ErrConflict:
		return http.StatusConflict
	case errutil.ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error envelope. Only public messages reach the
// client; server-side failures are logged with their full context.
func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(c.Request.Context(), s.logger, "request failed", err)
	} else {
		s.logger.DebugContext(c.Request.Context(), "request rejected",
			"route", c.FullPath(), "status", status, "error", err.Error())
	}
	_ = c.Error(err)
	reject(c, status, errutil.PublicMessage(err, msgInternal))
}

// bindJSON decodes the body into dst. An empty body leaves dst zero so the
// service reports the missing fields.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		reject(c, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}
