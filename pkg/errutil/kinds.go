// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package errutil holds the error taxonomy shared by services and the HTTP
// boundary, plus helpers for logging and asserting oops errors.
package errutil

import (
	"errors"

	"github.com/samber/oops"
)

// Error kinds. Services wrap one of these in an oops chain so transports can
// classify a failure with errors.Is without knowing its code.
var (
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrUpstream        = errors.New("upstream service failed")
)

var kinds = []error{
	ErrValidation,
	ErrConflict,
	ErrUnauthenticated,
	ErrInvalidToken,
	ErrForbidden,
	ErrNotFound,
	ErrUpstream,
}

// KindOf returns the kind sentinel carried by err, or nil for internal errors.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Validation builds a client-facing validation error.
func Validation(code, public string) error {
	return oops.Code(code).Public(public).Wrapf(ErrValidation, "%s", public)
}

// Conflict builds a client-facing conflict error.
func Conflict(code, public string) error {
	return oops.Code(code).Public(public).Wrapf(ErrConflict, "%s", public)
}

// Unauthenticated builds a client-facing authentication failure.
func Unauthenticated(code, public string) error {
	return oops.Code(code).Public(public).Wrapf(ErrUnauthenticated, "%s", public)
}

// InvalidToken builds a client-facing token rejection.
func InvalidToken(code, public string) error {
	return oops.Code(code).Public(public).Wrapf(ErrInvalidToken, "%s", public)
}

// Forbidden builds a client-facing authorization failure.
func Forbidden(code, public string) error {
	return oops.Code(code).Public(public).Wrapf(ErrForbidden, "%s", public)
}

// NotFound builds a client-facing not-found error.
func NotFound(code, public string) error {
	return oops.Code(code).Public(public).Wrapf(ErrNotFound, "%s", public)
}

// Upstream builds a client-facing failure of an external service.
func Upstream(code, public string) error {
	return oops.Code(code).Public(public).Wrapf(ErrUpstream, "%s", public)
}

// PublicMessage returns the client-facing message for err. Errors without a
// kind are internal and always yield fallback, whatever they carry.
func PublicMessage(err error, fallback string) string {
	if KindOf(err) == nil {
		return fallback
	}
	return oops.GetPublic(err, fallback)
}
