package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/mariogenie/genie-chat/internal/common"
)

// Ping is the liveness probe.
func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
