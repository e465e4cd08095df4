package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mariogenie/genie-chat/internal/common"
	"github.com/mariogenie/genie-chat/internal/httpapi/middleware"
)

type visitRequest struct {
	SessionID string         `json:"session_id"`
	Metadata  map[string]any `json:"metadata"`
}

// RecordVisit handles POST /events/visit. A missing session id gets one
// minted so the rollup can attribute the visit.
func (h *Handler) RecordVisit(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	var req visitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.SessionID == "" {
		id, err := common.NewULID()
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 20007, "failed to mint session id")
			return
		}
		req.SessionID = id
	}

	if err := h.Events.LogPageVisit(c.Request.Context(), actor, req.SessionID, req.Metadata); err != nil {
		// Visit logging is fail-soft: the page still loads.
		h.Log.Warn("page visit logging failed", zap.String("user_id", actor.UserID), zap.Error(err))
		common.OK(c, gin.H{"logged": false, "session_id": req.SessionID})
		return
	}

	// Establish the rollup row right away instead of waiting on the
	// aggregator; Touch counts nothing, so the queued event can't double.
	if err := h.Sessions.Touch(c.Request.Context(), req.SessionID, actor, time.Now().UTC()); err != nil {
		h.Log.Warn("session touch failed", zap.String("session_id", req.SessionID), zap.Error(err))
	}
	common.OK(c, gin.H{"logged": true, "session_id": req.SessionID})
}
