package genie

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mariogenie/genie-chat/internal/event"
)

// Turn is the assembled outcome of one question: the prose answer or the
// generated query plus its executed rows.
type Turn struct {
	ConversationID string       `json:"conversation_id"`
	MessageID      string       `json:"message_id"`
	Text           string       `json:"text,omitempty"`
	SQLQuery       string       `json:"sql_query,omitempty"`
	Result         *QueryResult `json:"result,omitempty"`
}

// Service runs conversation turns end to end: submit, poll, unpack
// attachments, and record the interaction in the event log. Event logging
// is fail-soft; a logging error never fails the user's question.
type Service struct {
	client  *Client
	events  *event.Service
	log     *zap.Logger
	timeout time.Duration
}

func NewService(client *Client, events *event.Service, log *zap.Logger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Service{client: client, events: events, log: log, timeout: timeout}
}

// Start opens a conversation with the question and waits for the answer.
func (s *Service) Start(ctx context.Context, actor event.Actor, sessionID, question string) (*Turn, error) {
	if question == "" {
		return nil, errors.New("genie: question is required")
	}

	started, err := s.client.StartConversation(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("genie: start conversation: %w", err)
	}

	if err := s.events.LogStartConversation(ctx, actor, started.ConversationID, started.MessageID, sessionID, question); err != nil {
		s.log.Warn("failed to log start_conversation", zap.Error(err))
	}

	return s.finish(ctx, actor, sessionID, question, started.ConversationID, started.MessageID)
}

// Continue appends the question to an existing conversation and waits.
func (s *Service) Continue(ctx context.Context, actor event.Actor, sessionID, conversationID, question string) (*Turn, error) {
	if conversationID == "" {
		return nil, errors.New("genie: conversation_id is required")
	}
	if question == "" {
		return nil, errors.New("genie: question is required")
	}

	sent, err := s.client.SendMessage(ctx, conversationID, question)
	if err != nil {
		return nil, fmt.Errorf("genie: send message: %w", err)
	}

	if err := s.events.LogSendMessage(ctx, actor, conversationID, sent.MessageID, sessionID, question); err != nil {
		s.log.Warn("failed to log send_message", zap.Error(err))
	}

	return s.finish(ctx, actor, sessionID, question, conversationID, sent.MessageID)
}

// History lists a conversation's turns from the service, oldest first.
func (s *Service) History(ctx context.Context, conversationID string) ([]Message, error) {
	return s.client.ListMessages(ctx, conversationID)
}

func (s *Service) finish(ctx context.Context, actor event.Actor, sessionID, question, conversationID, messageID string) (*Turn, error) {
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg, err := s.client.WaitForCompletion(wctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Status != StatusCompleted {
		if msg.Error != nil && msg.Error.Message != "" {
			return nil, fmt.Errorf("genie: message %s: %s", messageID, msg.Error.Message)
		}
		return nil, fmt.Errorf("genie: message %s ended with status %s", messageID, msg.Status)
	}

	turn := &Turn{ConversationID: conversationID, MessageID: messageID}
	for _, att := range msg.Attachments {
		switch {
		case att.Text != nil:
			turn.Text = att.Text.Content
		case att.Query != nil:
			turn.SQLQuery = att.Query.Query
			res, err := s.client.GetQueryResult(ctx, conversationID, messageID, att.AttachmentID)
			if err != nil {
				return nil, fmt.Errorf("genie: query result: %w", err)
			}
			turn.Result = &res
		}
	}
	if turn.Text == "" && turn.SQLQuery == "" {
		turn.Text = msg.Content
	}

	if turn.SQLQuery != "" {
		if err := s.events.LogSQLResponse(ctx, actor, conversationID, messageID, sessionID, question, turn.SQLQuery); err != nil {
			s.log.Warn("failed to log sql_response", zap.Error(err))
		}
	}
	return turn, nil
}
