package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mariogenie/genie-chat/internal/common"
	"github.com/mariogenie/genie-chat/internal/favorite"
	"github.com/mariogenie/genie-chat/internal/httpapi/middleware"
)

type favoriteRequest struct {
	Question string `json:"question"`
	SQLQuery string `json:"sql_query"`
}

// CreateFavorite handles POST /favorites.
func (h *Handler) CreateFavorite(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Question == "" {
		common.Fail(c, http.StatusBadRequest, 10006, "question required")
		return
	}

	fav := &favorite.Favorite{
		UserID:    actor.UserID,
		UserEmail: actor.Email,
		Question:  req.Question,
		SQLQuery:  req.SQLQuery,
	}
	if err := h.Favorites.Create(c.Request.Context(), fav); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, fav)
}

// ListFavorites handles GET /favorites, newest first.
func (h *Handler) ListFavorites(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	favs, err := h.Favorites.List(c.Request.Context(), actor.UserID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"favorites": favs})
}

// UpdateFavorite handles PUT /favorites/:id. Only the owner's row is
// touched; anyone else's id behaves as not found.
func (h *Handler) UpdateFavorite(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10007, "invalid favorite id")
		return
	}

	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Question == "" {
		common.Fail(c, http.StatusBadRequest, 10006, "question required")
		return
	}

	err = h.Favorites.Update(c.Request.Context(), id, actor.UserID, req.Question, req.SQLQuery)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.Fail(c, http.StatusNotFound, 40403, "favorite not found")
		return
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"updated": true})
}

// DeleteFavorite handles DELETE /favorites/:id.
func (h *Handler) DeleteFavorite(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10007, "invalid favorite id")
		return
	}

	err = h.Favorites.Delete(c.Request.Context(), id, actor.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.Fail(c, http.StatusNotFound, 40403, "favorite not found")
		return
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"deleted": true})
}
