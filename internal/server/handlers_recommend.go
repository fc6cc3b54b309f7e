package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aniverse/backend/internal/model"
	"github.com/aniverse/backend/internal/recommend"
)

func (s *Server) handleRecommendations(c *gin.Context) {
	media := model.MediaType(c.DefaultQuery("media", string(model.MediaAnime)))
	limit := intQuery(c, "limit", 10, 50)

	recs, err := s.engine.Recommend(c.Request.Context(), currentUserID(c), media, limit)
	if err != nil {
		if errors.Is(err, recommend.ErrNoRatings) {
			RespondError(c, http.StatusBadRequest, "no_ratings", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"recommendations": recs})
}

// handleQuickRecommendations serves single-seed similar titles and
// works without authentication; an authenticated user's own list is
// filtered out of the results.
func (s *Server) handleQuickRecommendations(c *gin.Context) {
	seedID, err := strconv.ParseInt(c.Query("anime_id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", errors.New("anime_id is required"))
		return
	}

	recs, err := s.engine.Similar(c.Request.Context(), seedID, currentUserID(c), intQuery(c, "limit", 5, 25))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"source_id": seedID, "recommendations": recs})
}
