// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"plain", errors.New("boom"), nil},
		{"validation", errutil.Validation("BAD", "bad input"), errutil.ErrValidation},
		{"conflict", errutil.Conflict("DUP", "dup"), errutil.ErrConflict},
		{"unauthenticated", errutil.Unauthenticated("NOPE", "nope"), errutil.ErrUnauthenticated},
		{"forbidden", errutil.Forbidden("DENY", "deny"), errutil.ErrForbidden},
		{"not found", errutil.NotFound("MISSING", "missing"), errutil.ErrNotFound},
		{"upstream", errutil.Upstream("GATEWAY_DOWN", "gateway down"), errutil.ErrUpstream},
		{"wrapped token", oops.Code("RESET").Wrap(errutil.ErrInvalidToken), errutil.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errutil.KindOf(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	t.Run("kinded error exposes its public message", func(t *testing.T) {
		err := errutil.Validation("MISSING_FIELDS", "Email and password are required")
		assert.Equal(t, "Email and password are required", errutil.PublicMessage(err, "Internal server error"))
	})

	t.Run("internal error hides its message", func(t *testing.T) {
		err := oops.Code("DB").Public("leaky detail").Errorf("connection refused")
		assert.Equal(t, "Internal server error", errutil.PublicMessage(err, "Internal server error"))
	})

	t.Run("kind without public message falls back", func(t *testing.T) {
		err := oops.Code("X").Wrap(errutil.ErrForbidden)
		assert.Equal(t, "Forbidden", errutil.PublicMessage(err, "Forbidden"))
	})
}
