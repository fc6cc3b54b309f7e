package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aniverse/backend/internal/model"
	"github.com/aniverse/backend/internal/store"
)

func (s *Server) handleSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		RespondError(c, http.StatusBadRequest, "validation", errors.New("query parameter q is required"))
		return
	}

	p := store.SearchParams{
		Query: q,
		Genre: c.Query("genre"),
		Limit: intQuery(c, "limit", 10, 50),
	}
	if m := c.Query("media"); m != "" {
		p.Media = model.MediaType(m)
	}
	if v, err := strconv.ParseFloat(c.Query("min_score"), 64); err == nil {
		p.MinScore = v
	}

	entries, err := s.catalog.Search(c.Request.Context(), p)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"query": q, "results": entries})
}

func (s *Server) handleBrowseAnime(c *gin.Context) {
	s.browse(c, model.MediaAnime)
}

func (s *Server) handleBrowseManga(c *gin.Context) {
	s.browse(c, model.MediaManga)
}

func (s *Server) browse(c *gin.Context, media model.MediaType) {
	limit := intQuery(c, "limit", 20, 100)
	page := intQuery(c, "page", 1, 10000)

	p := store.FilterParams{
		Media:  media,
		Genre:  c.Query("genre"),
		Format: c.Query("media_type"),
		SortBy: c.DefaultQuery("sort_by", "score"),
		Order:  c.DefaultQuery("order", "desc"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if v, err := strconv.ParseFloat(c.Query("min_score"), 64); err == nil {
		p.MinScore = v
	}

	switch p.SortBy {
	case "score", "popularity", "title":
	default:
		RespondError(c, http.StatusBadRequest, "validation", errors.New("sort_by must be score, popularity, or title"))
		return
	}

	entries, err := s.catalog.Filter(c.Request.Context(), p)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"page": page, "limit": limit, "results": entries})
}

func (s *Server) handleGetEntry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", errors.New("invalid id"))
		return
	}

	entry, err := s.catalog.GetEntry(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, entry)
}

func (s *Server) handleSimilar(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", errors.New("invalid id"))
		return
	}

	if _, err := s.catalog.GetEntry(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}

	recs, err := s.engine.Similar(c.Request.Context(), id, currentUserID(c), intQuery(c, "limit", 10, 50))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"source_id": id, "similar": recs})
}

// intQuery parses a bounded positive integer query parameter.
func intQuery(c *gin.Context, name string, fallback, max int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return fallback
	}
	if v > max {
		return max
	}
	return v
}
