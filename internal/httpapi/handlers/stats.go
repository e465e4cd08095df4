package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mariogenie/genie-chat/internal/common"
	"github.com/mariogenie/genie-chat/internal/stats"
)

// Dashboard handles GET /stats/dashboard: the full snapshot, served from
// cache unless ?refresh=true.
func (h *Handler) Dashboard(c *gin.Context) {
	force := c.Query("refresh") == "true"
	snap, err := h.Stats.Dashboard(c.Request.Context(), force)
	if err != nil {
		h.Log.Error("dashboard snapshot failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, snap)
}

func (h *Handler) NPS(c *gin.Context) {
	nps, err := h.Stats.Repo().NPS(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, nps)
}

func (h *Handler) Retention(c *gin.Context) {
	cells, err := h.Stats.Repo().Retention(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, gin.H{"cohorts": cells})
}

func (h *Handler) TopQuestions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	qs, err := h.Stats.Repo().TopQuestions(c.Request.Context(), limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, gin.H{"questions": qs})
}

func (h *Handler) TopUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	users, err := h.Stats.Repo().TopUsers(c.Request.Context(), limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, gin.H{"users": users})
}

func (h *Handler) HourlyActivity(c *gin.Context) {
	hours, err := h.Stats.Repo().HourlyActivity(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, gin.H{"hours": hours})
}

// DailyActivity serves the per-user daily rollup view.
func (h *Handler) DailyActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := h.Stats.Repo().DailyActivity(c.Request.Context(), limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, gin.H{"days": rows})
}

// ConversationMetrics serves the per-conversation rollup view.
func (h *Handler) ConversationMetrics(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := h.Stats.Repo().ConversationMetrics(c.Request.Context(), limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, gin.H{"conversations": rows})
}

func (h *Handler) UniqueVisitors(c *gin.Context) {
	period := stats.Period(c.DefaultQuery("period", string(stats.Daily)))
	switch period {
	case stats.Daily, stats.Weekly, stats.Monthly:
	default:
		common.Fail(c, http.StatusBadRequest, 10008, "period must be daily, weekly or monthly")
		return
	}

	buckets, err := h.Stats.Repo().UniqueVisitors(c.Request.Context(), period)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, gin.H{"period": period, "buckets": buckets})
}

func (h *Handler) FeedbackTrends(c *gin.Context) {
	trend, err := h.Stats.Repo().FeedbackTrends(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, gin.H{"days": trend})
}

// SQLUsage handles GET /stats/sql-usage: table and column frequencies
// parsed out of generated queries.
func (h *Handler) SQLUsage(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	usage, err := h.Stats.Repo().SQLUsageAnalytics(c.Request.Context(), days)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "stats query failed")
		return
	}
	common.OK(c, usage)
}
