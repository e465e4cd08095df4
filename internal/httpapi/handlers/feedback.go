package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mariogenie/genie-chat/internal/common"
	"github.com/mariogenie/genie-chat/internal/httpapi/middleware"
)

type feedbackRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SessionID      string `json:"session_id"`
	FeedbackType   string `json:"feedback_type"`
}

// RecordFeedback handles POST /feedback. Repeated submissions for the
// same message revise the rating in place.
func (h *Handler) RecordFeedback(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.ConversationID == "" || req.MessageID == "" {
		common.Fail(c, http.StatusBadRequest, 10003, "conversation_id and message_id required")
		return
	}

	err := h.Events.RecordFeedback(c.Request.Context(), actor,
		req.ConversationID, req.MessageID, req.SessionID, req.FeedbackType)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, err.Error())
		return
	}
	common.OK(c, gin.H{"recorded": true})
}

type commentRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Comment        string `json:"comment"`
}

// AttachComment handles POST /feedback/comment, adding an explanation to
// the caller's negative feedback on that message.
func (h *Handler) AttachComment(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.MessageID == "" || req.Comment == "" {
		common.Fail(c, http.StatusBadRequest, 10005, "message_id and comment required")
		return
	}

	err := h.Events.AttachComment(c.Request.Context(), actor,
		req.ConversationID, req.MessageID, req.Comment)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.Fail(c, http.StatusNotFound, 40402, "no negative feedback found for message")
		return
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"recorded": true})
}
