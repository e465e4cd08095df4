package stats

import (
	"context"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mariogenie/genie-chat/internal/db"
	"github.com/mariogenie/genie-chat/internal/event"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, &event.Event{}))
	return gdb
}

func strptr(s string) *string { return &s }

func seed(t *testing.T, gdb *gorm.DB, events ...event.Event) {
	t.Helper()
	for i := range events {
		require.NoError(t, gdb.Create(&events[i]).Error)
	}
}

func feedbackEvent(userID, conv, msg, kind string, at time.Time) event.Event {
	return event.Event{
		EventType:      event.TypeFeedback,
		UserID:         userID,
		ConversationID: strptr(conv),
		MessageID:      strptr(msg),
		FeedbackType:   strptr(kind),
		Timestamp:      at,
	}
}

func TestNPS(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now().UTC()
	seed(t, gdb,
		feedbackEvent("u1", "c1", "m1", event.FeedbackPositive, now),
		feedbackEvent("u2", "c2", "m2", event.FeedbackPositive, now),
		feedbackEvent("u3", "c3", "m3", event.FeedbackPositive, now),
		feedbackEvent("u4", "c4", "m4", event.FeedbackNegative, now),
	)

	nps, err := NewRepo(gdb).NPS(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(4), nps.Total)
	require.Equal(t, int64(3), nps.Promoters)
	require.Equal(t, int64(1), nps.Detractors)
	require.Equal(t, 50.0, nps.Score)
	require.Equal(t, 75.0, nps.PromoterPct)
	require.Equal(t, 25.0, nps.DetractorPct)
}

func TestNPS_NoFeedback(t *testing.T) {
	gdb := openTestDB(t)

	nps, err := NewRepo(gdb).NPS(context.Background())
	require.NoError(t, err)
	require.Equal(t, NPS{}, nps)
}

func TestTopQuestions_DeterministicTieBreak(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now().UTC()

	ask := func(q string) event.Event {
		return event.Event{
			EventType: event.TypeStartConversation,
			UserID:    "u1",
			Metadata:  datatypes.JSON(`{"question":"` + q + `"}`),
			Timestamp: now,
		}
	}
	seed(t, gdb, ask("beta"), ask("beta"), ask("alpha"), ask("alpha"), ask("gamma"))

	rows, err := NewRepo(gdb).TopQuestions(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// equal counts order lexicographically
	require.Equal(t, "alpha", rows[0].Question)
	require.Equal(t, int64(2), rows[0].Count)
	require.Equal(t, "beta", rows[1].Question)
	require.Equal(t, "gamma", rows[2].Question)
}

func TestDailyActivityView(t *testing.T) {
	gdb := openTestDB(t)
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	seed(t, gdb,
		event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: day},
		event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: day.Add(2 * time.Hour)},
		event.Event{EventType: event.TypeStartConversation, UserID: "alice", ConversationID: strptr("c1"), Timestamp: day.Add(time.Hour)},
	)

	rows, err := NewRepo(gdb).DailyActivity(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "2026-03-02", rows[0].ActivityDate)
	require.Equal(t, "alice", rows[0].UserID)
	require.Equal(t, int64(2), rows[0].PageVisits)
	require.Equal(t, int64(1), rows[0].ConversationsStarted)
	require.Equal(t, int64(0), rows[0].MessagesSent)
}

func TestDailyActivity_OrderSurvivesLimit(t *testing.T) {
	gdb := openTestDB(t)
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	seed(t, gdb,
		event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: day},
		event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: day.AddDate(0, 0, 1)},
		event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: day.AddDate(0, 0, 2)},
	)

	rows, err := NewRepo(gdb).DailyActivity(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "2026-03-04", rows[0].ActivityDate)
	require.Equal(t, "2026-03-03", rows[1].ActivityDate)
}

func TestConversationMetricsView_FeedbackStatus(t *testing.T) {
	gdb := openTestDB(t)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	seed(t, gdb,
		event.Event{EventType: event.TypeStartConversation, UserID: "alice", ConversationID: strptr("c1"), Timestamp: base},
		event.Event{EventType: event.TypeSendMessage, UserID: "alice", ConversationID: strptr("c1"), Timestamp: base.Add(time.Minute)},
		feedbackEvent("alice", "c1", "m1", event.FeedbackPositive, base.Add(2*time.Minute)),

		event.Event{EventType: event.TypeStartConversation, UserID: "bob", ConversationID: strptr("c2"), Timestamp: base.Add(time.Hour)},
	)

	rows, err := NewRepo(gdb).ConversationMetrics(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]ConversationMetricsRow{}
	for _, r := range rows {
		byID[r.ConversationID] = r
	}
	require.Equal(t, "rated", byID["c1"].FeedbackStatus)
	require.Equal(t, int64(1), byID["c1"].MessageCount)
	require.Equal(t, int64(1), byID["c1"].PositiveFeedback)
	require.Equal(t, "2026-03-02 10:00:00", byID["c1"].StartedAt)
	require.Equal(t, "unrated", byID["c2"].FeedbackStatus)
	require.Equal(t, int64(0), byID["c2"].MessageCount)

	// most recent conversation first, even under a limit
	limited, err := NewRepo(gdb).ConversationMetrics(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "c2", limited[0].ConversationID)
}

func TestConversationStats(t *testing.T) {
	gdb := openTestDB(t)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	msg := func(user, conv string, at time.Time) event.Event {
		return event.Event{EventType: event.TypeSendMessage, UserID: user, ConversationID: strptr(conv), Timestamp: at}
	}
	seed(t, gdb,
		msg("alice", "c1", base),
		msg("alice", "c2", base),
		msg("alice", "c2", base.Add(time.Minute)),
		msg("alice", "c2", base.Add(2*time.Minute)),
		feedbackEvent("alice", "c1", "m1", event.FeedbackNegative, base.Add(3*time.Minute)),
	)

	stats, err := NewRepo(gdb).ConversationStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.TotalConversations)
	require.Equal(t, 2.0, stats.AvgMessagesPerConversation)
	require.Equal(t, 2.0, stats.MedianMessages)
	require.Equal(t, int64(1), stats.ConversationsWithFeedback)
	require.Equal(t, 50.0, stats.FeedbackRate)
}

func TestRetention_DayAndDayPlusSeven(t *testing.T) {
	gdb := openTestDB(t)
	d0 := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	seed(t, gdb,
		// alice: cohort day 0, returns day 7 only
		event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: d0},
		event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: d0.AddDate(0, 0, 7)},
		// bob: same cohort, never returns
		event.Event{EventType: event.TypePageVisit, UserID: "bob", Timestamp: d0},
	)

	cells, err := NewRepo(gdb).Retention(context.Background())
	require.NoError(t, err)
	require.Len(t, cells, 1, "only the day actually revisited appears")

	cell := cells[0]
	require.Equal(t, "2026-03-02", cell.CohortDate)
	require.Equal(t, "2026-03-09", cell.ActivityDate)
	require.Equal(t, int64(2), cell.CohortSize)
	require.Equal(t, int64(1), cell.RetainedUsers)
	require.Equal(t, 50.0, cell.RetentionRate)
}

func TestHourlyActivity_DiscardsDate(t *testing.T) {
	gdb := openTestDB(t)

	at := func(day, hour int) time.Time {
		return time.Date(2026, 3, day, hour, 15, 0, 0, time.UTC)
	}
	seed(t, gdb,
		event.Event{EventType: event.TypeSendMessage, UserID: "u1", Timestamp: at(1, 9)},
		event.Event{EventType: event.TypeSendMessage, UserID: "u1", Timestamp: at(2, 9)},
		event.Event{EventType: event.TypeStartConversation, UserID: "u1", Timestamp: at(3, 14)},
		event.Event{EventType: event.TypePageVisit, UserID: "u1", Timestamp: at(3, 20)}, // not counted
	)

	rows, err := NewRepo(gdb).HourlyActivity(context.Background())
	require.NoError(t, err)
	require.Equal(t, []HourCount{{Hour: 9, Count: 2}, {Hour: 14, Count: 1}}, rows)
}

func TestTopUsers_RankingAndEmailFallback(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now().UTC()

	seed(t, gdb,
		event.Event{EventType: event.TypeSendMessage, UserID: "alice", UserEmail: strptr("alice@example.com"), Timestamp: now},
		event.Event{EventType: event.TypeSendMessage, UserID: "alice", UserEmail: strptr("alice@example.com"), Timestamp: now},
		event.Event{EventType: event.TypeSendMessage, UserID: "bob", Timestamp: now},
	)

	rows, err := NewRepo(gdb).TopUsers(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "alice", rows[0].UserID)
	require.Equal(t, "alice@example.com", rows[0].UserEmail)
	require.Equal(t, int64(2), rows[0].TotalActivity)
	require.Equal(t, "bob", rows[1].UserID)
	require.Equal(t, "bob", rows[1].UserEmail, "missing email falls back to user_id")
}

func TestEngagement(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now().UTC()

	seed(t, gdb,
		event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: now},
		event.Event{EventType: event.TypePageVisit, UserID: "bob", Timestamp: now},
		event.Event{EventType: event.TypePageVisit, UserID: "bob", Timestamp: now},
		event.Event{EventType: event.TypeStartConversation, UserID: "alice", Timestamp: now},
		event.Event{EventType: event.TypeSendMessage, UserID: "alice", Timestamp: now},
		event.Event{EventType: event.TypeSendMessage, UserID: "alice", Timestamp: now},
	)

	eng, err := NewRepo(gdb).Engagement(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), eng.TotalUsers)
	require.Equal(t, int64(1), eng.TotalConversations)
	require.Equal(t, int64(2), eng.TotalMessages)
	require.Equal(t, int64(0), eng.TotalFeedback)
	require.Equal(t, 2.0, eng.AvgMessagesPerConversation)
}

func TestUniqueVisitors_Daily(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now().UTC()

	seed(t, gdb,
		event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: now},
		event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: now.Add(time.Minute)},
		event.Event{EventType: event.TypePageVisit, UserID: "bob", Timestamp: now},
		// outside the 30-day window
		event.Event{EventType: event.TypePageVisit, UserID: "carol", Timestamp: now.AddDate(0, 0, -45)},
	)

	rows, err := NewRepo(gdb).UniqueVisitors(context.Background(), Daily)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, now.Format("2006-01-02"), rows[0].Date)
	require.Equal(t, int64(2), rows[0].Count)
}

func TestFeedbackTrends(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now().UTC()

	seed(t, gdb,
		feedbackEvent("alice", "c1", "m1", event.FeedbackPositive, now),
		feedbackEvent("bob", "c2", "m2", event.FeedbackNegative, now),
		feedbackEvent("carol", "c3", "m3", event.FeedbackNegative, now),
	)

	rows, err := NewRepo(gdb).FeedbackTrends(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, now.Format("2006-01-02"), rows[0].Date)
	require.Equal(t, int64(1), rows[0].Positive)
	require.Equal(t, int64(2), rows[0].Negative)
}

func TestSQLUsageAnalytics(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now().UTC()

	sqlEvent := func(query string) event.Event {
		return event.Event{
			EventType: event.TypeSQLResponse,
			UserID:    "alice",
			Metadata:  datatypes.JSON(`{"question":"q","sql_query":"` + query + `"}`),
			Timestamp: now,
		}
	}
	seed(t, gdb,
		sqlEvent("SELECT region, revenue FROM sales.orders"),
		sqlEvent("SELECT region FROM sales.orders"),
		sqlEvent("SELECT name FROM customers"),
	)

	usage, err := NewRepo(gdb).SQLUsageAnalytics(context.Background(), 30)
	require.NoError(t, err)

	require.Equal(t, []NameCount{
		{Name: "sales.orders", Count: 2},
		{Name: "customers", Count: 1},
	}, usage.Tables)
	require.Equal(t, NameCount{Name: "region", Count: 2}, usage.Columns[0])
	require.Equal(t, TableColumnCount{Table: "sales.orders", Column: "region", Count: 2}, usage.TableColumns[0])
}
