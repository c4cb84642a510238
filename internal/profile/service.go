// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package profile serves and updates the caller's own account profile.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Users reads and updates accounts.
type Users interface {
	GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error)
	UpdateProfile(ctx context.Context, id ulid.ULID, update auth.ProfileUpdate) (*auth.User, error)
}

// UpdateInput lists the fields a caller may change. Nil fields are kept.
type UpdateInput struct {
	Name     *string
	Skills   *string
	Location *string
	Image    *Image
}

// Service implements profile operations.
type Service struct {
	users  Users
	images ImageStore
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a profile Service.
func NewService(users Users, images ImageStore, logger *slog.Logger) (*Service, error) {
	if users == nil || images == nil {
		return nil, oops.Code("PROFILE_INVALID_SERVICE").Errorf("users and image store are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, images: images, now: time.Now, logger: logger}, nil
}

// Get returns the profile of userID.
func (s *Service) Get(ctx context.Context, userID ulid.ULID) (*auth.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, errutil.NotFound("PROFILE_NOT_FOUND", "User not found")
		}
		return nil, oops.Code("PROFILE_GET_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	p := user.Profile()
	return &p, nil
}

// Update applies in to userID's profile and returns the result.
func (s *Service) Update(ctx context.Context, userID ulid.ULID, in UpdateInput) (*auth.Profile, error) {
	update := auth.ProfileUpdate{
		Skills:   in.Skills,
		Location: in.Location,
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := auth.ValidateName(name); err != nil {
			return nil, err
		}
		update.Name = &name
	}
	if in.Image != nil {
		url, err := s.saveImage(ctx, userID, *in.Image)
		if err != nil {
			return nil, err
		}
		update.ProfileImageURL = &url
	}
	if update.Empty() {
		return s.Get(ctx, userID)
	}

	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, errutil.NotFound("PROFILE_NOT_FOUND", "User not found")
		}
		return nil, oops.Code("PROFILE_UPDATE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	s.logger.InfoContext(ctx, "profile updated",
		"user_id", userID.String(),
		"image", update.ProfileImageURL != nil)
	p := user.Profile()
	return &p, nil
}

func (s *Service) saveImage(ctx context.Context, userID ulid.ULID, img Image) (string, error) {
	data, contentType, err := readImage(img)
	if err != nil {
		return "", err
	}
	name := ImageName(img.Filename, contentType, s.now())
	url, err := s.images.Save(ctx, name, data)
	if err != nil {
		return "", oops.Code("PROFILE_IMAGE_SAVE_FAILED").
			With("user_id", userID.String()).
			With("name", name).
			Wrap(err)
	}
	return url, nil
}
