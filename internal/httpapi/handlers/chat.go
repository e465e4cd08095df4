package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mariogenie/genie-chat/internal/common"
	"github.com/mariogenie/genie-chat/internal/httpapi/middleware"
)

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// StartConversation handles POST /chat/conversations.
func (h *Handler) StartConversation(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Question == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "question required")
		return
	}

	turn, err := h.Chat.Start(c.Request.Context(), actor, req.SessionID, req.Question)
	if err != nil {
		h.Log.Error("start conversation failed", zap.String("user_id", actor.UserID), zap.Error(err))
		common.Fail(c, http.StatusBadGateway, 30001, "query service error")
		return
	}
	common.OK(c, turn)
}

// ContinueConversation handles POST /chat/conversations/:id/messages.
func (h *Handler) ContinueConversation(c *gin.Context) {
	actor, _ := middleware.Actor(c)
	conversationID := c.Param("id")

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Question == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "question required")
		return
	}

	turn, err := h.Chat.Continue(c.Request.Context(), actor, req.SessionID, conversationID, req.Question)
	if err != nil {
		h.Log.Error("continue conversation failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		common.Fail(c, http.StatusBadGateway, 30001, "query service error")
		return
	}
	common.OK(c, turn)
}

// ListConversations handles GET /chat/conversations: the caller's recent
// conversations summarized from the event log.
func (h *Handler) ListConversations(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	convs, err := h.Events.Conversations(c.Request.Context(), actor.UserID, limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"conversations": convs})
}

// ListConversationMessages handles GET /chat/conversations/:id/messages,
// replaying history from the query service.
func (h *Handler) ListConversationMessages(c *gin.Context) {
	conversationID := c.Param("id")

	msgs, err := h.Chat.History(c.Request.Context(), conversationID)
	if err != nil {
		h.Log.Error("list messages failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		common.Fail(c, http.StatusBadGateway, 30001, "query service error")
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}
