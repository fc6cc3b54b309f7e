package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aniverse/backend/internal/model"
	"github.com/aniverse/backend/internal/store"
)

type addToListRequest struct {
	EntryID  int64    `json:"entry_id" binding:"required"`
	Media    string   `json:"media"`
	Status   string   `json:"status"`
	Rating   *float64 `json:"rating"`
	Favorite *bool    `json:"is_favorite"`
}

type updateListRequest struct {
	Status   *string  `json:"status"`
	Rating   *float64 `json:"rating"`
	Favorite *bool    `json:"is_favorite"`
}

func (s *Server) handleListAdd(c *gin.Context) {
	var req addToListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}

	entry, err := s.catalog.GetEntry(c.Request.Context(), req.EntryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	status := req.Status
	if status == "" {
		status = "planned"
	}

	item, err := s.lists.Upsert(c.Request.Context(), store.UpsertParams{
		UserID:   currentUserID(c),
		EntryID:  req.EntryID,
		Media:    entry.Media,
		Status:   &status,
		Rating:   req.Rating,
		Favorite: req.Favorite,
	})
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	RespondOK(c, item)
}

func (s *Server) handleListGet(c *gin.Context) {
	f := store.ListFilter{Status: c.Query("status")}
	if m := c.Query("media"); m != "" {
		f.Media = model.MediaType(m)
	}
	if f.Status != "" && !model.ValidStatuses[f.Status] {
		RespondError(c, http.StatusBadRequest, "validation", errors.New("invalid status filter"))
		return
	}

	items, err := s.lists.ListItems(c.Request.Context(), currentUserID(c), f)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"count": len(items), "items": items})
}

func (s *Server) handleListPatch(c *gin.Context) {
	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", errors.New("invalid id"))
		return
	}

	var req updateListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if req.Status == nil && req.Rating == nil && req.Favorite == nil {
		RespondError(c, http.StatusBadRequest, "validation", errors.New("nothing to update"))
		return
	}

	userID := currentUserID(c)
	if _, err := s.lists.GetItem(c.Request.Context(), userID, entryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}

	item, err := s.lists.Upsert(c.Request.Context(), store.UpsertParams{
		UserID:   userID,
		EntryID:  entryID,
		Status:   req.Status,
		Rating:   req.Rating,
		Favorite: req.Favorite,
	})
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	RespondOK(c, item)
}

func (s *Server) handleListDelete(c *gin.Context) {
	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", errors.New("invalid id"))
		return
	}

	err = s.lists.DeleteItem(c.Request.Context(), currentUserID(c), entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"deleted": entryID})
}

func (s *Server) handleListStats(c *gin.Context) {
	media := model.MediaType(c.DefaultQuery("media", string(model.MediaAnime)))

	stats, err := s.lists.Stats(c.Request.Context(), currentUserID(c), media)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, stats)
}
