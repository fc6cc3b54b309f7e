package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aniverse/backend/internal/chat"
	"github.com/aniverse/backend/internal/llm"
	"github.com/aniverse/backend/internal/model"
)

type chatRequest struct {
	Message string           `json:"message" binding:"required,max=1000"`
	History []model.ChatTurn `json:"history"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}

	resp, err := s.dispatcher.Handle(c.Request.Context(), chat.Request{
		UserID:  currentUserID(c),
		Message: req.Message,
		History: req.History,
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			RespondError(c, http.StatusBadGateway, "assistant_unavailable", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, resp)
}
