// Package genie is a client for the hosted conversational query service.
// A space hosts conversations; each user message is processed
// asynchronously and must be polled to completion.
package genie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mariogenie/genie-chat/internal/token"
)

// Terminal message statuses. Anything else means still processing.
const (
	StatusCompleted = "COMPLETED"
	StatusError     = "ERROR"
	StatusFailed    = "FAILED"
)

type Client struct {
	host    string
	spaceID string
	tokens  *token.Source
	http    *http.Client

	// PollInterval is how often WaitForCompletion re-reads the message.
	PollInterval time.Duration
}

func NewClient(host, spaceID string, tokens *token.Source) *Client {
	return &Client{
		host:         host,
		spaceID:      spaceID,
		tokens:       tokens,
		http:         &http.Client{Timeout: 30 * time.Second},
		PollInterval: 2 * time.Second,
	}
}

// Message is the service's view of one turn in a conversation.
type Message struct {
	ID             string       `json:"id"`
	MessageID      string       `json:"message_id"`
	ConversationID string       `json:"conversation_id"`
	Status         string       `json:"status"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments"`
	Error          *struct {
		Type    string `json:"type"`
		Message string `json:"error"`
	} `json:"error,omitempty"`
}

// Attachment carries either prose or a generated query. Exactly one of
// Text and Query is set.
type Attachment struct {
	AttachmentID string `json:"attachment_id"`
	Text         *struct {
		Content string `json:"content"`
	} `json:"text,omitempty"`
	Query *struct {
		Query       string `json:"query"`
		Description string `json:"description"`
	} `json:"query,omitempty"`
}

// StartResponse identifies the conversation and first message created by
// start-conversation.
type StartResponse struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// QueryResult is the tabular output of an executed query attachment.
type QueryResult struct {
	Columns []string
	Rows    [][]string
}

type statementResponse struct {
	StatementResponse struct {
		Result struct {
			DataArray [][]string `json:"data_array"`
		} `json:"result"`
		Manifest struct {
			Schema struct {
				Columns []struct {
					Name string `json:"name"`
				} `json:"columns"`
			} `json:"schema"`
		} `json:"manifest"`
	} `json:"statement_response"`
}

// url builds a space-scoped endpoint. host is normally a bare workspace
// hostname; an explicit scheme is honored so local servers work too.
func (c *Client) url(path string, args ...any) string {
	base := c.host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/api/2.0/genie/spaces/%s", base, c.spaceID) +
		fmt.Sprintf(path, args...)
}

// do performs one authenticated request with retries on transient
// failures (network errors, 429, 5xx). 4xx other than 429 is permanent.
func (c *Client) do(ctx context.Context, method, url string, body, dest any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	tok, err := c.tokens.Token()
	if err != nil {
		return err
	}

	op := func() error {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("genie: %s %s: status %d", method, url, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("genie: %s %s: status %d: %s", method, url, resp.StatusCode, b))
		}
		if dest == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return backoff.Permanent(fmt.Errorf("genie: decode response: %w", err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(op, bo)
}

// StartConversation opens a new conversation seeded with the question.
func (c *Client) StartConversation(ctx context.Context, question string) (StartResponse, error) {
	var out StartResponse
	err := c.do(ctx, http.MethodPost, c.url("/start-conversation"),
		map[string]string{"content": question}, &out)
	return out, err
}

// SendMessage appends a follow-up question to an existing conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID, question string) (StartResponse, error) {
	var out StartResponse
	err := c.do(ctx, http.MethodPost, c.url("/conversations/%s/messages", conversationID),
		map[string]string{"content": question}, &out)
	if out.ConversationID == "" {
		out.ConversationID = conversationID
	}
	return out, err
}

// GetMessage reads the current state of a message, including attachments.
func (c *Client) GetMessage(ctx context.Context, conversationID, messageID string) (Message, error) {
	var out Message
	err := c.do(ctx, http.MethodGet, c.url("/conversations/%s/messages/%s", conversationID, messageID), nil, &out)
	if out.MessageID == "" {
		out.MessageID = out.ID
	}
	return out, err
}

// ListMessages returns the turns of a conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, c.url("/conversations/%s/messages", conversationID), nil, &out)
	return out.Messages, err
}

// GetQueryResult fetches the executed rows for a query attachment.
func (c *Client) GetQueryResult(ctx context.Context, conversationID, messageID, attachmentID string) (QueryResult, error) {
	var raw statementResponse
	err := c.do(ctx, http.MethodGet,
		c.url("/conversations/%s/messages/%s/attachments/%s/query-result", conversationID, messageID, attachmentID),
		nil, &raw)
	if err != nil {
		return QueryResult{}, err
	}

	res := QueryResult{Rows: raw.StatementResponse.Result.DataArray}
	for _, col := range raw.StatementResponse.Manifest.Schema.Columns {
		res.Columns = append(res.Columns, col.Name)
	}
	if len(res.Columns) == 0 && len(res.Rows) > 0 {
		for i := range res.Rows[0] {
			res.Columns = append(res.Columns, fmt.Sprintf("column_%d", i))
		}
	}
	return res, nil
}

// WaitForCompletion polls the message until it reaches a terminal status
// or ctx expires. Callers bound the wait with context.WithTimeout.
func (c *Client) WaitForCompletion(ctx context.Context, conversationID, messageID string) (Message, error) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		msg, err := c.GetMessage(ctx, conversationID, messageID)
		if err != nil {
			return Message{}, err
		}
		switch msg.Status {
		case StatusCompleted, StatusError, StatusFailed:
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return Message{}, fmt.Errorf("genie: message %s did not complete: %w", messageID, ctx.Err())
		case <-ticker.C:
		}
	}
}
