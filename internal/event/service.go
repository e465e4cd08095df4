package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actor identifies the user behind an event, as resolved from the identity
// proxy headers.
type Actor struct {
	UserID string
	Email  string
	Name   string
}

// Notifier is told about every appended or revised event so the session
// rollup can be maintained off the request path. Notifications are best
// effort; a failure never fails the user action.
type Notifier interface {
	EventLogged(ctx context.Context, eventID uint64) error
}

type Service struct {
	repo           *Repo
	notifier       Notifier
	log            *zap.Logger
	questionMaxLen int
}

func NewService(repo *Repo, notifier Notifier, log *zap.Logger, questionMaxLen int) *Service {
	if questionMaxLen <= 0 {
		questionMaxLen = 500
	}
	return &Service{repo: repo, notifier: notifier, log: log, questionMaxLen: questionMaxLen}
}

func (s *Service) append(ctx context.Context, e *Event) error {
	if e.EventType == "" || e.UserID == "" {
		return errors.New("event: event_type and user_id are required")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return fmt.Errorf("event: append %s: %w", e.EventType, err)
	}
	s.notify(ctx, e.EventID)
	return nil
}

func (s *Service) notify(ctx context.Context, eventID uint64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.EventLogged(ctx, eventID); err != nil {
		s.log.Warn("event notification failed",
			zap.Uint64("event_id", eventID),
			zap.Error(err))
	}
}

func (s *Service) metadata(m map[string]any) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		// Open-ended payloads are accepted, not validated; an unmarshalable
		// one degrades to no metadata.
		s.log.Warn("dropping unmarshalable event metadata", zap.Error(err))
		return nil
	}
	return b
}

func (s *Service) truncate(q string) string {
	if len(q) > s.questionMaxLen {
		return q[:s.questionMaxLen]
	}
	return q
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) LogPageVisit(ctx context.Context, actor Actor, sessionID string, meta map[string]any) error {
	return s.append(ctx, &Event{
		EventType: TypePageVisit,
		UserID:    actor.UserID,
		UserEmail: optional(actor.Email),
		UserName:  optional(actor.Name),
		SessionID: optional(sessionID),
		Metadata:  s.metadata(meta),
	})
}

func (s *Service) LogStartConversation(ctx context.Context, actor Actor, conversationID, messageID, sessionID, question string) error {
	var meta map[string]any
	if question != "" {
		meta = map[string]any{"question": s.truncate(question)}
	}
	return s.append(ctx, &Event{
		EventType:      TypeStartConversation,
		UserID:         actor.UserID,
		UserEmail:      optional(actor.Email),
		UserName:       optional(actor.Name),
		ConversationID: optional(conversationID),
		MessageID:      optional(messageID),
		SessionID:      optional(sessionID),
		Metadata:       s.metadata(meta),
	})
}

func (s *Service) LogSendMessage(ctx context.Context, actor Actor, conversationID, messageID, sessionID, message string) error {
	var meta map[string]any
	if message != "" {
		meta = map[string]any{"message": s.truncate(message)}
	}
	return s.append(ctx, &Event{
		EventType:      TypeSendMessage,
		UserID:         actor.UserID,
		UserEmail:      optional(actor.Email),
		UserName:       optional(actor.Name),
		ConversationID: optional(conversationID),
		MessageID:      optional(messageID),
		SessionID:      optional(sessionID),
		Metadata:       s.metadata(meta),
	})
}

func (s *Service) LogSQLResponse(ctx context.Context, actor Actor, conversationID, messageID, sessionID, question, sqlQuery string) error {
	return s.append(ctx, &Event{
		EventType:      TypeSQLResponse,
		UserID:         actor.UserID,
		UserEmail:      optional(actor.Email),
		UserName:       optional(actor.Name),
		ConversationID: optional(conversationID),
		MessageID:      optional(messageID),
		SessionID:      optional(sessionID),
		Metadata: s.metadata(map[string]any{
			"question":  question,
			"sql_query": sqlQuery,
		}),
	})
}

// RecordFeedback upserts the thumbs up/down for one (user, conversation,
// message). Revising a rating rewrites the existing row; switching to
// positive clears any comment.
func (s *Service) RecordFeedback(ctx context.Context, actor Actor, conversationID, messageID, sessionID, feedbackType string) error {
	if feedbackType != FeedbackPositive && feedbackType != FeedbackNegative {
		return fmt.Errorf("event: invalid feedback_type %q", feedbackType)
	}

	existing, err := s.repo.FindFeedback(ctx, actor.UserID, conversationID, messageID)
	switch {
	case err == nil:
		if err := s.repo.UpdateFeedback(ctx, existing.EventID, feedbackType, time.Now().UTC()); err != nil {
			return fmt.Errorf("event: update feedback: %w", err)
		}
		s.notify(ctx, existing.EventID)
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.append(ctx, &Event{
			EventType:      TypeFeedback,
			UserID:         actor.UserID,
			UserEmail:      optional(actor.Email),
			UserName:       optional(actor.Name),
			ConversationID: optional(conversationID),
			MessageID:      optional(messageID),
			FeedbackType:   optional(feedbackType),
			SessionID:      optional(sessionID),
		})
	default:
		return fmt.Errorf("event: lookup feedback: %w", err)
	}
}

// AttachComment stores a user's explanation on their most recent negative
// feedback for the message.
func (s *Service) AttachComment(ctx context.Context, actor Actor, conversationID, messageID, comment string) error {
	err := s.repo.AttachComment(ctx, actor.UserID, conversationID, messageID, comment)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn("no negative feedback to attach comment to",
			zap.String("user_id", actor.UserID),
			zap.String("message_id", messageID))
		return err
	}
	return err
}

func (s *Service) List(ctx context.Context, f Filter) ([]Event, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Conversations(ctx context.Context, userID string, limit int) ([]ConversationSummary, error) {
	return s.repo.UserConversations(ctx, userID, limit)
}
