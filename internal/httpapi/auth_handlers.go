// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/volunteerhub/volunteerhub/internal/auth"
)

// msgResetRequested is returned by forgot-password whether or not the email
// belongs to an account.
const msgResetRequested = "If an account with that email exists, a password reset token has been issued"

type signupRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	Skills   *string `json:"skills"`
	Location *string `json:"location"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type forgotPasswordResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	ResetToken       string `json:"resetToken,omitempty"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if !s.bindJSON(c, &req) {
		return
	}
	session, err := s.svc.Auth.Signup(c.Request.Context(), auth.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Skills:   req.Skills,
		Location: req.Location,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "User created successfully", session)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !s.bindJSON(c, &req) {
		return
	}
	session, err := s.svc.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Login successful", session)
}

func (s *Server) me(c *gin.Context) {
	user, err := s.svc.Auth.CurrentUser(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"user": user.Public()})
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !s.bindJSON(c, &req) {
		return
	}
	reset, err := s.svc.Auth.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, forgotPasswordResponse{
		Success:          true,
		Message:          msgResetRequested,
		ResetToken:       reset.Token,
		ExpiresInMinutes: int(reset.ExpiresIn.Minutes()),
	})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.svc.Auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Password has been reset", nil)
}

func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !s.bindJSON(c, &req) {
		return
	}
	err := s.svc.Auth.ChangePassword(c.Request.Context(), callerID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Password changed successfully", nil)
}
