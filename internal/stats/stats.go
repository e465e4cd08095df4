// Package stats is the analytics layer feeding the usage dashboard. Every
// query recomputes from the user_events log (or the views derived from it) on
// each call; nothing here is materialized.
package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/mariogenie/genie-chat/internal/db"
	"github.com/mariogenie/genie-chat/internal/event"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(gdb *gorm.DB) *Repo {
	return &Repo{db: gdb}
}

// NPS is the Net Promoter Score breakdown. Total == 0 means no feedback yet;
// Score is 0 by convention in that case, never a division error.
type NPS struct {
	Score        float64 `json:"nps"`
	Promoters    int64   `json:"promoters"`
	Detractors   int64   `json:"detractors"`
	Total        int64   `json:"total"`
	PromoterPct  float64 `json:"promoter_percentage"`
	DetractorPct float64 `json:"detractor_percentage"`
}

func (r *Repo) NPS(ctx context.Context) (NPS, error) {
	var row struct {
		Promoters  int64
		Detractors int64
		Total      int64
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(CASE WHEN feedback_type = ? THEN 1 ELSE 0 END), 0) AS promoters,
			COALESCE(SUM(CASE WHEN feedback_type = ? THEN 1 ELSE 0 END), 0) AS detractors,
			COUNT(*) AS total
		FROM user_events
		WHERE event_type = ?`,
		event.FeedbackPositive, event.FeedbackNegative, event.TypeFeedback,
	).Scan(&row).Error
	if err != nil {
		return NPS{}, fmt.Errorf("stats: nps: %w", err)
	}

	if row.Total == 0 {
		return NPS{}, nil
	}
	total := float64(row.Total)
	return NPS{
		Score:        round1(float64(row.Promoters-row.Detractors) / total * 100),
		Promoters:    row.Promoters,
		Detractors:   row.Detractors,
		Total:        row.Total,
		PromoterPct:  round1(float64(row.Promoters) / total * 100),
		DetractorPct: round1(float64(row.Detractors) / total * 100),
	}, nil
}

// UserActivity is one row of the top-users ranking.
type UserActivity struct {
	UserID           string `json:"user_id"`
	UserEmail        string `json:"user_email"`
	Conversations    int64  `json:"conversations"`
	Messages         int64  `json:"messages"`
	PositiveFeedback int64  `json:"positive_feedback"`
	NegativeFeedback int64  `json:"negative_feedback"`
	TotalActivity    int64  `json:"total_activity"`
}

// TopUsers ranks users by total activity. Ties break on user_id ascending so
// the ranking is deterministic.
func (r *Repo) TopUsers(ctx context.Context, limit int) ([]UserActivity, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []UserActivity
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			user_id,
			MAX(user_email) AS user_email,
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END) AS conversations,
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END) AS messages,
			SUM(CASE WHEN event_type = ? AND feedback_type = ? THEN 1 ELSE 0 END) AS positive_feedback,
			SUM(CASE WHEN event_type = ? AND feedback_type = ? THEN 1 ELSE 0 END) AS negative_feedback,
			COUNT(*) AS total_activity
		FROM user_events
		WHERE event_type IN (?, ?, ?)
		GROUP BY user_id
		ORDER BY total_activity DESC, user_id ASC
		LIMIT ?`,
		event.TypeStartConversation,
		event.TypeSendMessage,
		event.TypeFeedback, event.FeedbackPositive,
		event.TypeFeedback, event.FeedbackNegative,
		event.TypeStartConversation, event.TypeSendMessage, event.TypeFeedback,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stats: top users: %w", err)
	}
	for i := range rows {
		if rows[i].UserEmail == "" {
			rows[i].UserEmail = rows[i].UserID
		}
	}
	return rows, nil
}

// QuestionCount is one row of the top-questions ranking.
type QuestionCount struct {
	Question string `json:"question"`
	Count    int64  `json:"count" gorm:"column:question_count"`
}

// TopQuestions ranks start_conversation questions (from metadata) by
// frequency. Ties break lexicographically on the question text.
func (r *Repo) TopQuestions(ctx context.Context, limit int) ([]QuestionCount, error) {
	if limit <= 0 {
		limit = 20
	}
	questionExpr := db.JSONText(r.db, "metadata", "question")
	var rows []QuestionCount
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+questionExpr+` AS question, COUNT(*) AS question_count
		FROM user_events
		WHERE event_type = ?
		  AND metadata IS NOT NULL
		  AND `+questionExpr+` IS NOT NULL
		GROUP BY `+questionExpr+`
		ORDER BY question_count DESC, question ASC
		LIMIT ?`,
		event.TypeStartConversation, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stats: top questions: %w", err)
	}
	return rows, nil
}

// Engagement holds the headline counters for the dashboard cards.
type Engagement struct {
	TotalUsers                 int64   `json:"total_users"`
	TotalConversations         int64   `json:"total_conversations"`
	TotalMessages              int64   `json:"total_messages"`
	TotalFeedback              int64   `json:"total_feedback"`
	AvgMessagesPerConversation float64 `json:"avg_messages_per_conversation"`
}

func (r *Repo) Engagement(ctx context.Context) (Engagement, error) {
	var row Engagement
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(DISTINCT CASE WHEN event_type = ? THEN user_id END) AS total_users,
			COALESCE(SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END), 0) AS total_conversations,
			COALESCE(SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END), 0) AS total_messages,
			COALESCE(SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END), 0) AS total_feedback
		FROM user_events`,
		event.TypePageVisit,
		event.TypeStartConversation,
		event.TypeSendMessage,
		event.TypeFeedback,
	).Scan(&row).Error
	if err != nil {
		return Engagement{}, fmt.Errorf("stats: engagement: %w", err)
	}
	if row.TotalConversations > 0 {
		row.AvgMessagesPerConversation = round2(float64(row.TotalMessages) / float64(row.TotalConversations))
	}
	return row, nil
}

// HourCount is one bucket of the hour-of-day histogram.
type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count" gorm:"column:activity_count"`
}

// HourlyActivity buckets conversation/message events by hour of day across
// all dates. This deliberately discards the date: it answers "what hour is
// busiest on average", not where the absolute peak was.
func (r *Repo) HourlyActivity(ctx context.Context) ([]HourCount, error) {
	hourExpr := db.HourOf(r.db, "timestamp")
	var rows []HourCount
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+hourExpr+` AS hour, COUNT(*) AS activity_count
		FROM user_events
		WHERE event_type IN (?, ?)
		GROUP BY `+hourExpr+`
		ORDER BY hour ASC`,
		event.TypeStartConversation, event.TypeSendMessage,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stats: hourly activity: %w", err)
	}
	return rows, nil
}

// ConversationStats summarizes the conversation_metrics view.
type ConversationStats struct {
	TotalConversations         int64   `json:"total_conversations"`
	AvgMessagesPerConversation float64 `json:"avg_messages_per_conversation"`
	ConversationsWithFeedback  int64   `json:"conversations_with_feedback"`
	FeedbackRate               float64 `json:"feedback_rate"`
	MedianMessages             float64 `json:"median_messages"`
}

func (r *Repo) ConversationStats(ctx context.Context) (ConversationStats, error) {
	var counts []int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT message_count FROM conversation_metrics ORDER BY message_count ASC`,
	).Scan(&counts).Error
	if err != nil {
		return ConversationStats{}, fmt.Errorf("stats: conversation counts: %w", err)
	}

	var row struct {
		Rated int64
	}
	err = r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(CASE WHEN feedback_status = 'rated' THEN 1 ELSE 0 END), 0) AS rated
		FROM conversation_metrics`,
	).Scan(&row).Error
	if err != nil {
		return ConversationStats{}, fmt.Errorf("stats: rated conversations: %w", err)
	}

	out := ConversationStats{
		TotalConversations:        int64(len(counts)),
		ConversationsWithFeedback: row.Rated,
	}
	if len(counts) > 0 {
		var sum int64
		for _, c := range counts {
			sum += c
		}
		out.AvgMessagesPerConversation = round2(float64(sum) / float64(len(counts)))
		out.FeedbackRate = round1(float64(row.Rated) / float64(len(counts)) * 100)
		out.MedianMessages = median(counts)
	}
	return out, nil
}

// RetentionCell is one (cohort date, activity date) pair: how many of the
// users whose first event fell on CohortDate came back on ActivityDate.
type RetentionCell struct {
	CohortDate    string  `json:"cohort_date"`
	CohortSize    int64   `json:"cohort_size"`
	ActivityDate  string  `json:"activity_date"`
	RetainedUsers int64   `json:"retained_users"`
	RetentionRate float64 `json:"retention_rate"`
}

// Retention computes daily-cohort retention: a user counts toward exactly
// the dates they were actually active on, so activity on D and D+7
// contributes to D+7 and nothing in between.
func (r *Repo) Retention(ctx context.Context) ([]RetentionCell, error) {
	dayExpr := db.DayOf(r.db, "timestamp")
	var rows []RetentionCell
	err := r.db.WithContext(ctx).Raw(`
		WITH user_cohorts AS (
			SELECT user_id, MIN(`+dayExpr+`) AS cohort_date
			FROM user_events
			GROUP BY user_id
		),
		cohort_sizes AS (
			SELECT cohort_date, COUNT(*) AS cohort_size
			FROM user_cohorts
			GROUP BY cohort_date
		),
		activity AS (
			SELECT DISTINCT uc.cohort_date, `+dayExpr+` AS activity_date, uc.user_id
			FROM user_cohorts uc
			JOIN user_events ue ON ue.user_id = uc.user_id
		)
		SELECT
			a.cohort_date,
			cs.cohort_size,
			a.activity_date,
			COUNT(DISTINCT a.user_id) AS retained_users
		FROM activity a
		JOIN cohort_sizes cs ON cs.cohort_date = a.cohort_date
		WHERE a.activity_date > a.cohort_date
		GROUP BY a.cohort_date, cs.cohort_size, a.activity_date
		ORDER BY a.cohort_date DESC, a.activity_date ASC`,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stats: retention: %w", err)
	}
	for i := range rows {
		if rows[i].CohortSize > 0 {
			rows[i].RetentionRate = round1(float64(rows[i].RetainedUsers) / float64(rows[i].CohortSize) * 100)
		}
	}
	return rows, nil
}

// DateCount is a per-date counter (unique visitors, etc).
type DateCount struct {
	Date  string `json:"date" gorm:"column:bucket"`
	Count int64  `json:"count" gorm:"column:visitor_count"`
}

// Period selects the bucketing for UniqueVisitors.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// UniqueVisitors counts distinct visiting users per day/week/month over a
// trailing window (30 days, 12 weeks, 12 months respectively).
func (r *Repo) UniqueVisitors(ctx context.Context, period Period) ([]DateCount, error) {
	var (
		bucketExpr string
		since      time.Time
	)
	now := time.Now().UTC()
	switch period {
	case Weekly:
		bucketExpr = db.WeekOf(r.db, "timestamp")
		since = now.AddDate(0, 0, -12*7)
	case Monthly:
		bucketExpr = db.MonthOf(r.db, "timestamp")
		since = now.AddDate(0, -12, 0)
	default:
		bucketExpr = db.DayOf(r.db, "timestamp")
		since = now.AddDate(0, 0, -30)
	}

	var rows []DateCount
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+bucketExpr+` AS bucket, COUNT(DISTINCT user_id) AS visitor_count
		FROM user_events
		WHERE event_type = ? AND timestamp >= ?
		GROUP BY `+bucketExpr+`
		ORDER BY bucket DESC`,
		event.TypePageVisit, since,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stats: unique visitors: %w", err)
	}
	return rows, nil
}

// FeedbackTrend is one day's thumbs up/down tallies.
type FeedbackTrend struct {
	Date     string `json:"date" gorm:"column:bucket"`
	Positive int64  `json:"positive"`
	Negative int64  `json:"negative"`
}

// FeedbackTrends tallies feedback per day over the trailing 30 days.
func (r *Repo) FeedbackTrends(ctx context.Context) ([]FeedbackTrend, error) {
	dayExpr := db.DayOf(r.db, "timestamp")
	since := time.Now().UTC().AddDate(0, 0, -30)
	var rows []FeedbackTrend
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			`+dayExpr+` AS bucket,
			SUM(CASE WHEN feedback_type = ? THEN 1 ELSE 0 END) AS positive,
			SUM(CASE WHEN feedback_type = ? THEN 1 ELSE 0 END) AS negative
		FROM user_events
		WHERE event_type = ? AND timestamp >= ?
		GROUP BY `+dayExpr+`
		ORDER BY bucket DESC`,
		event.FeedbackPositive, event.FeedbackNegative, event.TypeFeedback, since,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stats: feedback trends: %w", err)
	}
	return rows, nil
}

// DailyActivityRow is one row of the daily_user_activity view.
type DailyActivityRow struct {
	ActivityDate         string  `json:"activity_date"`
	UserID               string  `json:"user_id"`
	UserEmail            *string `json:"user_email,omitempty"`
	PageVisits           int64   `json:"page_visits"`
	ConversationsStarted int64   `json:"conversations_started"`
	MessagesSent         int64   `json:"messages_sent"`
	SQLResponses         int64   `json:"sql_responses" gorm:"column:sql_responses"`
	PositiveFeedback     int64   `json:"positive_feedback"`
	NegativeFeedback     int64   `json:"negative_feedback"`
}

// DailyActivity reads the daily_user_activity view, most recent date first,
// then conversations started. The ORDER BY is restated here because a view's
// internal ordering is not guaranteed to survive an outer LIMIT.
func (r *Repo) DailyActivity(ctx context.Context, limit int) ([]DailyActivityRow, error) {
	if limit <= 0 {
		limit = 200
	}
	dateExpr := db.DateText(r.db, "activity_date")
	var rows []DailyActivityRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+dateExpr+` AS activity_date, user_id, user_email,
		       page_visits, conversations_started, messages_sent,
		       sql_responses, positive_feedback, negative_feedback
		FROM daily_user_activity
		ORDER BY activity_date DESC, conversations_started DESC
		LIMIT ?`, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stats: daily activity: %w", err)
	}
	return rows, nil
}

// ConversationMetricsRow is one row of the conversation_metrics view.
type ConversationMetricsRow struct {
	ConversationID   string `json:"conversation_id"`
	UserID           string `json:"user_id"`
	StartedAt        string `json:"started_at"`
	MessageCount     int64  `json:"message_count"`
	PositiveFeedback int64  `json:"positive_feedback"`
	NegativeFeedback int64  `json:"negative_feedback"`
	FeedbackStatus   string `json:"feedback_status"`
}

// ConversationMetrics reads the conversation_metrics view, most recent
// conversation first.
func (r *Repo) ConversationMetrics(ctx context.Context, limit int) ([]ConversationMetricsRow, error) {
	if limit <= 0 {
		limit = 200
	}
	startedExpr := db.TimeText(r.db, "started_at")
	var rows []ConversationMetricsRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT conversation_id, user_id, `+startedExpr+` AS started_at, message_count,
		       positive_feedback, negative_feedback, feedback_status
		FROM conversation_metrics
		ORDER BY started_at DESC
		LIMIT ?`, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stats: conversation metrics: %w", err)
	}
	return rows, nil
}

func median(sorted []int64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
