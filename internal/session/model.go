package session

import "time"

// Session is the per-session rollup. It is a cache derived from the event
// log, not the source of truth: every counter can be recomputed from
// user_events, and Reconcile does exactly that.
type Session struct {
	SessionID             string    `gorm:"primaryKey;type:varchar(64)" json:"session_id"`
	UserID                string    `gorm:"type:varchar(255);not null;index" json:"user_id"`
	UserEmail             *string   `gorm:"type:varchar(255)" json:"user_email,omitempty"`
	UserName              *string   `gorm:"type:varchar(255)" json:"user_name,omitempty"`
	FirstVisit            time.Time `gorm:"not null" json:"first_visit"`
	LastActivity          time.Time `gorm:"not null" json:"last_activity"`
	TotalConversations    int64     `gorm:"not null;default:0" json:"total_conversations"`
	TotalMessages         int64     `gorm:"not null;default:0" json:"total_messages"`
	TotalPositiveFeedback int64     `gorm:"not null;default:0" json:"total_positive_feedback"`
	TotalNegativeFeedback int64     `gorm:"not null;default:0" json:"total_negative_feedback"`
}

func (Session) TableName() string { return "user_sessions" }
