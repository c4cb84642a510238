// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/volunteerhub/volunteerhub/internal/profile"
)

// maxProfileBody bounds a profile update request, image included.
const maxProfileBody = profile.MaxImageSize + 1<<20

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Skills   *string `json:"skills"`
	Location *string `json:"location"`
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.svc.Profiles.Get(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", p)
}

// updateProfile accepts either a JSON body or a multipart form whose
// optional "image" part is the new profile picture.
func (s *Server) updateProfile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxProfileBody)

	var in profile.UpdateInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				reject(c, http.StatusRequestEntityTooLarge, "Image must be at most 5 MB")
				return
			}
			reject(c, http.StatusBadRequest, msgInvalidBody)
			return
		}
		field := func(name string) *string {
			if v, found := form.Value[name]; found && len(v) > 0 {
				return lo.ToPtr(v[0])
			}
			return nil
		}
		in.Name, in.Skills, in.Location = field("name"), field("skills"), field("location")

		if files := form.File["image"]; len(files) > 0 {
			f, err := files[0].Open()
			if err != nil {
				reject(c, http.StatusBadRequest, msgInvalidBody)
				return
			}
			defer f.Close()
			in.Image = &profile.Image{Filename: files[0].Filename, Content: f}
		}
	} else {
		var req updateProfileRequest
		if !s.bindJSON(c, &req) {
			return
		}
		in.Name, in.Skills, in.Location = req.Name, req.Skills, req.Location
	}

	p, err := s.svc.Profiles.Update(c.Request.Context(), callerID(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Profile updated", p)
}
