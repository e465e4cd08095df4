package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mariogenie/genie-chat/internal/common"
)

const RequestIDKey = "request_id"

// RequestID tags each request with a ULID, honoring an inbound
// X-Request-ID so ids survive the platform proxy.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			if v, err := common.NewULID(); err == nil {
				id = v
			}
		}
		c.Set(RequestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}
