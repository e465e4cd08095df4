package event

import (
	"time"

	"gorm.io/datatypes"
)

// Event types recorded in the user_events log.
const (
	TypePageVisit         = "page_visit"
	TypeStartConversation = "start_conversation"
	TypeSendMessage       = "send_message"
	TypeSQLResponse       = "sql_response"
	TypeFeedback          = "feedback"
)

// Feedback values for TypeFeedback events.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
)

// Event is one immutable record of a user action. Rows are append-only;
// the single exception is feedback, where a user revising a thumbs up/down
// updates the existing row for that (user, conversation, message).
type Event struct {
	EventID        uint64         `gorm:"primaryKey;autoIncrement" json:"event_id"`
	EventType      string         `gorm:"type:varchar(32);not null;index" json:"event_type"`
	UserID         string         `gorm:"type:varchar(255);not null;index" json:"user_id"`
	UserEmail      *string        `gorm:"type:varchar(255)" json:"user_email,omitempty"`
	UserName       *string        `gorm:"type:varchar(255)" json:"user_name,omitempty"`
	ConversationID *string        `gorm:"type:varchar(64);index" json:"conversation_id,omitempty"`
	MessageID      *string        `gorm:"type:varchar(64)" json:"message_id,omitempty"`
	FeedbackType   *string        `gorm:"type:varchar(16)" json:"feedback_type,omitempty"`
	SessionID      *string        `gorm:"type:varchar(64);index" json:"session_id,omitempty"`
	Metadata       datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	Timestamp      time.Time      `gorm:"not null;index;autoCreateTime" json:"timestamp"`
	Comment        *string        `gorm:"type:text" json:"comment,omitempty"`
}

func (Event) TableName() string { return "user_events" }

// ConversationSummary is a per-conversation rollup read straight from the
// event log for a user's history sidebar. Timestamps are rendered as
// "YYYY-MM-DD HH:MM:SS" text by the query.
type ConversationSummary struct {
	ConversationID string  `json:"conversation_id"`
	StartedAt      *string `json:"started_at"`
	LastActivity   string  `json:"last_activity"`
	MessageCount   int64   `json:"message_count"`
	FirstQuestion  string  `json:"first_question"`
}
