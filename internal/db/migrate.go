package db

import (
	"fmt"

	"gorm.io/gorm"
)

// The two derived views recompute from user_events on every query. They are
// deliberately not materialized; at large event volumes they would need
// materialization or date-range filtering.
var views = []struct {
	name string
	ddl  string
}{
	{
		name: "daily_user_activity",
		ddl: `CREATE VIEW daily_user_activity AS
SELECT
    DATE(timestamp) AS activity_date,
    user_id,
    MAX(user_email) AS user_email,
    SUM(CASE WHEN event_type = 'page_visit' THEN 1 ELSE 0 END) AS page_visits,
    SUM(CASE WHEN event_type = 'start_conversation' THEN 1 ELSE 0 END) AS conversations_started,
    SUM(CASE WHEN event_type = 'send_message' THEN 1 ELSE 0 END) AS messages_sent,
    SUM(CASE WHEN event_type = 'sql_response' THEN 1 ELSE 0 END) AS sql_responses,
    SUM(CASE WHEN event_type = 'feedback' AND feedback_type = 'positive' THEN 1 ELSE 0 END) AS positive_feedback,
    SUM(CASE WHEN event_type = 'feedback' AND feedback_type = 'negative' THEN 1 ELSE 0 END) AS negative_feedback
FROM user_events
GROUP BY DATE(timestamp), user_id
ORDER BY activity_date DESC, conversations_started DESC`,
	},
	{
		name: "conversation_metrics",
		ddl: `CREATE VIEW conversation_metrics AS
SELECT
    conversation_id,
    user_id,
    MIN(timestamp) AS started_at,
    SUM(CASE WHEN event_type = 'send_message' THEN 1 ELSE 0 END) AS message_count,
    SUM(CASE WHEN event_type = 'feedback' AND feedback_type = 'positive' THEN 1 ELSE 0 END) AS positive_feedback,
    SUM(CASE WHEN event_type = 'feedback' AND feedback_type = 'negative' THEN 1 ELSE 0 END) AS negative_feedback,
    CASE WHEN SUM(CASE WHEN event_type = 'feedback' THEN 1 ELSE 0 END) > 0
         THEN 'rated' ELSE 'unrated' END AS feedback_status
FROM user_events
WHERE conversation_id IS NOT NULL
GROUP BY conversation_id, user_id
ORDER BY started_at DESC`,
	},
}

// Migrate runs AutoMigrate for the given models and (re)creates the derived
// views. View DDL is DROP + CREATE: neither engine supports a portable
// CREATE OR REPLACE.
func Migrate(gdb *gorm.DB, models ...any) error {
	if len(models) > 0 {
		if err := gdb.AutoMigrate(models...); err != nil {
			return fmt.Errorf("db: automigrate: %w", err)
		}
	}

	for _, v := range views {
		if err := gdb.Exec("DROP VIEW IF EXISTS " + v.name).Error; err != nil {
			return fmt.Errorf("db: drop view %s: %w", v.name, err)
		}
		if err := gdb.Exec(v.ddl).Error; err != nil {
			return fmt.Errorf("db: create view %s: %w", v.name, err)
		}
	}
	return nil
}
