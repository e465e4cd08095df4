package event

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mariogenie/genie-chat/internal/db"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(gdb *gorm.DB) *Repo {
	return &Repo{db: gdb}
}

// Append inserts a single event. The log is append-only; malformed metadata
// is the caller's problem, the store takes whatever it is handed.
func (r *Repo) Append(ctx context.Context, e *Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// GetByID loads a single event row; gorm.ErrRecordNotFound when absent.
func (r *Repo) GetByID(ctx context.Context, eventID uint64) (*Event, error) {
	var e Event
	err := r.db.WithContext(ctx).First(&e, "event_id = ?", eventID).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Filter narrows event reads. Zero values mean "no constraint"; the four
// keyed columns are all indexed.
type Filter struct {
	UserID         string
	ConversationID string
	SessionID      string
	EventType      string
	From           time.Time
	To             time.Time
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Event, error) {
	q := r.db.WithContext(ctx).Model(&Event{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ConversationID != "" {
		q = q.Where("conversation_id = ?", f.ConversationID)
	}
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if !f.From.IsZero() {
		q = q.Where("timestamp >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("timestamp <= ?", f.To)
	}

	var events []Event
	if err := q.Order("event_id ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FindFeedback returns the feedback row for one (user, conversation, message),
// or gorm.ErrRecordNotFound.
func (r *Repo) FindFeedback(ctx context.Context, userID, conversationID, messageID string) (*Event, error) {
	var e Event
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ? AND message_id = ? AND event_type = ?",
			userID, conversationID, messageID, TypeFeedback).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateFeedback rewrites the feedback type and timestamp of an existing
// feedback row. Switching to positive clears any attached comment; negative
// keeps it.
func (r *Repo) UpdateFeedback(ctx context.Context, eventID uint64, feedbackType string, at time.Time) error {
	updates := map[string]any{
		"feedback_type": feedbackType,
		"timestamp":     at,
	}
	if feedbackType == FeedbackPositive {
		updates["comment"] = nil
	}
	return r.db.WithContext(ctx).Model(&Event{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error
}

// AttachComment sets the comment on the most recent negative feedback row for
// the message. Returns gorm.ErrRecordNotFound when there is none.
func (r *Repo) AttachComment(ctx context.Context, userID, conversationID, messageID, comment string) error {
	var e Event
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ? AND message_id = ? AND event_type = ? AND feedback_type = ?",
			userID, conversationID, messageID, TypeFeedback, FeedbackNegative).
		Order("timestamp DESC").
		First(&e).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&Event{}).
		Where("event_id = ?", e.EventID).
		Update("comment", comment).Error
}

// UserConversations summarizes a user's conversations from the log, newest
// activity first.
func (r *Repo) UserConversations(ctx context.Context, userID string, limit int) ([]ConversationSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	questionExpr := db.JSONText(r.db, "metadata", "question")
	startedExpr := db.TimeText(r.db, "MIN(CASE WHEN event_type = ? THEN timestamp END)")
	lastExpr := db.TimeText(r.db, "MAX(timestamp)")
	rows, err := r.db.WithContext(ctx).Raw(`
		SELECT
			conversation_id,
			`+startedExpr+` AS started_at,
			`+lastExpr+` AS last_activity,
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END) AS message_count,
			MAX(CASE WHEN event_type = ? THEN `+questionExpr+` END) AS first_question
		FROM user_events
		WHERE user_id = ?
		  AND conversation_id IS NOT NULL
		  AND event_type IN (?, ?)
		GROUP BY conversation_id
		ORDER BY last_activity DESC
		LIMIT ?`,
		TypeStartConversation,
		TypeSendMessage,
		TypeStartConversation,
		userID,
		TypeStartConversation, TypeSendMessage,
		limit,
	).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var (
			s        ConversationSummary
			question *string
		)
		if err := rows.Scan(&s.ConversationID, &s.StartedAt, &s.LastActivity, &s.MessageCount, &question); err != nil {
			return nil, err
		}
		if question != nil {
			s.FirstQuestion = *question
		} else {
			s.FirstQuestion = "New conversation"
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
