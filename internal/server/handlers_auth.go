package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aniverse/backend/internal/auth"
	"github.com/aniverse/backend/internal/store"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}

	user, err := s.users.CreateUser(c.Request.Context(), strings.TrimSpace(req.Username), strings.TrimSpace(req.Email), hash)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}

	token, err := s.authSvc.IssueToken(user.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, tokenResponse{Token: token, UserID: user.ID, Username: user.Username})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}

	user, err := s.users.GetUserByName(c.Request.Context(), req.Username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("invalid credentials"))
		return
	}

	token, err := s.authSvc.IssueToken(user.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, tokenResponse{Token: token, UserID: user.ID, Username: user.Username})
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.users.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondError(c, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, user)
}
