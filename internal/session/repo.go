package session

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mariogenie/genie-chat/internal/db"
	"github.com/mariogenie/genie-chat/internal/event"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(gdb *gorm.DB) *Repo {
	return &Repo{db: gdb}
}

func increments(e *event.Event) (conversations, messages, positive, negative int64) {
	switch e.EventType {
	case event.TypeStartConversation:
		conversations = 1
	case event.TypeSendMessage:
		messages = 1
	case event.TypeFeedback:
		if e.FeedbackType != nil {
			switch *e.FeedbackType {
			case event.FeedbackPositive:
				positive = 1
			case event.FeedbackNegative:
				negative = 1
			}
		}
	}
	return
}

// Apply folds one event into the rollup as a single insert-or-update
// statement, so concurrent events for the same session_id (a double-submitted
// feedback, say) serialize inside the engine instead of racing a
// read-then-write. last_activity never moves backward on out-of-order
// delivery.
func (r *Repo) Apply(ctx context.Context, e *event.Event) error {
	if e.SessionID == nil || *e.SessionID == "" {
		return nil
	}

	conversations, messages, positive, negative := increments(e)
	greatest := db.Greatest(r.db)

	row := Session{
		SessionID:             *e.SessionID,
		UserID:                e.UserID,
		UserEmail:             e.UserEmail,
		UserName:              e.UserName,
		FirstVisit:            e.Timestamp,
		LastActivity:          e.Timestamp,
		TotalConversations:    conversations,
		TotalMessages:         messages,
		TotalPositiveFeedback: positive,
		TotalNegativeFeedback: negative,
	}

	assignments := map[string]any{
		"last_activity":           gorm.Expr(greatest+"(user_sessions.last_activity, ?)", e.Timestamp),
		"user_email":              gorm.Expr("COALESCE(excluded.user_email, user_sessions.user_email)"),
		"user_name":               gorm.Expr("COALESCE(excluded.user_name, user_sessions.user_name)"),
		"total_conversations":     gorm.Expr("user_sessions.total_conversations + ?", conversations),
		"total_messages":          gorm.Expr("user_sessions.total_messages + ?", messages),
		"total_positive_feedback": gorm.Expr("user_sessions.total_positive_feedback + ?", positive),
		"total_negative_feedback": gorm.Expr("user_sessions.total_negative_feedback + ?", negative),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&row).Error
}

// Get looks up one rollup row.
func (r *Repo) Get(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).First(&s, "session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Reconcile recomputes every rollup row from the event log and overwrites the
// cached values. Apply is best effort (a crash between the event append and
// the rollup update leaves them skewed); a reconciliation pass converges.
func (r *Repo) Reconcile(ctx context.Context) (int, error) {
	return r.reconcileWhere(ctx, r.db.WithContext(ctx).Where("session_id IS NOT NULL"))
}

// ReconcileSession recomputes a single session's rollup row.
func (r *Repo) ReconcileSession(ctx context.Context, sessionID string) error {
	_, err := r.reconcileWhere(ctx, r.db.WithContext(ctx).Where("session_id = ?", sessionID))
	return err
}

func (r *Repo) reconcileWhere(ctx context.Context, q *gorm.DB) (int, error) {
	var events []event.Event
	if err := q.Model(&event.Event{}).Order("event_id ASC").Find(&events).Error; err != nil {
		return 0, fmt.Errorf("session: reconcile load: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	rollup := make(map[string]*Session)
	var order []string
	for i := range events {
		e := &events[i]
		if e.SessionID == nil || *e.SessionID == "" {
			continue
		}
		row, ok := rollup[*e.SessionID]
		if !ok {
			row = &Session{
				SessionID:    *e.SessionID,
				UserID:       e.UserID,
				FirstVisit:   e.Timestamp,
				LastActivity: e.Timestamp,
			}
			rollup[*e.SessionID] = row
			order = append(order, *e.SessionID)
		}
		if e.Timestamp.Before(row.FirstVisit) {
			row.FirstVisit = e.Timestamp
		}
		if e.Timestamp.After(row.LastActivity) {
			row.LastActivity = e.Timestamp
		}
		if e.UserEmail != nil {
			row.UserEmail = e.UserEmail
		}
		if e.UserName != nil {
			row.UserName = e.UserName
		}
		conversations, messages, positive, negative := increments(e)
		row.TotalConversations += conversations
		row.TotalMessages += messages
		row.TotalPositiveFeedback += positive
		row.TotalNegativeFeedback += negative
	}

	rows := make([]Session, 0, len(order))
	for _, id := range order {
		rows = append(rows, *rollup[id])
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("session: reconcile upsert: %w", err)
	}
	return len(rows), nil
}

// Touch refreshes last_activity and identity fields without counting
// anything, for requests that should keep a session warm.
func (r *Repo) Touch(ctx context.Context, sessionID string, actor event.Actor, at time.Time) error {
	e := event.Event{
		UserID:    actor.UserID,
		SessionID: &sessionID,
		Timestamp: at,
	}
	if actor.Email != "" {
		e.UserEmail = &actor.Email
	}
	if actor.Name != "" {
		e.UserName = &actor.Name
	}
	return r.Apply(ctx, &e)
}
