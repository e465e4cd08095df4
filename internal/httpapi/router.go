package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mariogenie/genie-chat/internal/common"
	"github.com/mariogenie/genie-chat/internal/config"
	"github.com/mariogenie/genie-chat/internal/event"
	"github.com/mariogenie/genie-chat/internal/httpapi/handlers"
	"github.com/mariogenie/genie-chat/internal/httpapi/middleware"
	"github.com/mariogenie/genie-chat/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, log *zap.Logger, rds *redisstore.Store, notifier event.Notifier) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-Request-ID")
	r.Use(cors.New(corsCfg))

	h := handlers.NewHandler(db, cfg, log, rds, notifier)

	r.GET("/ping", h.Ping)

	authed := r.Group("/")
	authed.Use(middleware.Identity(cfg.Environment, h.Tokens))

	// Chat
	authed.POST("/chat/conversations", h.StartConversation)
	authed.POST("/chat/conversations/:id/messages", h.ContinueConversation)
	authed.GET("/chat/conversations", h.ListConversations)
	authed.GET("/chat/conversations/:id/messages", h.ListConversationMessages)

	// Event log
	authed.POST("/events/visit", h.RecordVisit)
	authed.POST("/feedback", h.RecordFeedback)
	authed.POST("/feedback/comment", h.AttachComment)

	// Favorites
	authed.POST("/favorites", h.CreateFavorite)
	authed.GET("/favorites", h.ListFavorites)
	authed.PUT("/favorites/:id", h.UpdateFavorite)
	authed.DELETE("/favorites/:id", h.DeleteFavorite)

	// Analytics
	authed.GET("/stats/dashboard", h.Dashboard)
	authed.GET("/stats/nps", h.NPS)
	authed.GET("/stats/retention", h.Retention)
	authed.GET("/stats/questions", h.TopQuestions)
	authed.GET("/stats/users", h.TopUsers)
	authed.GET("/stats/hourly", h.HourlyActivity)
	authed.GET("/stats/daily", h.DailyActivity)
	authed.GET("/stats/conversations", h.ConversationMetrics)
	authed.GET("/stats/visitors", h.UniqueVisitors)
	authed.GET("/stats/feedback-trends", h.FeedbackTrends)
	authed.GET("/stats/sql-usage", h.SQLUsage)

	return r
}
