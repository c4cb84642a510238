// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

func (s *Server) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !s.bindJSON(c, &req) {
		return
	}
	msg, err := s.svc.Messages.Send(c.Request.Context(), callerID(c), req.ReceiverID, req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Message sent successfully", msg)
}

func (s *Server) conversations(c *gin.Context) {
	list, err := s.svc.Messages.Conversations(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", nonNil(list))
}

func (s *Server) conversation(c *gin.Context) {
	list, err := s.svc.Messages.Conversation(c.Request.Context(), callerID(c), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", nonNil(list))
}
