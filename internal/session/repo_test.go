package session

import (
	"context"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/mariogenie/genie-chat/internal/event"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&event.Event{}, &Session{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return gdb
}

func strptr(s string) *string { return &s }

func testEvents(sessionID string, base time.Time) []event.Event {
	sid := &sessionID
	return []event.Event{
		{EventType: event.TypePageVisit, UserID: "alice", UserEmail: strptr("alice@example.com"), SessionID: sid, Timestamp: base},
		{EventType: event.TypeStartConversation, UserID: "alice", SessionID: sid, Timestamp: base.Add(1 * time.Minute)},
		{EventType: event.TypeSendMessage, UserID: "alice", SessionID: sid, Timestamp: base.Add(2 * time.Minute)},
		{EventType: event.TypeSendMessage, UserID: "alice", SessionID: sid, Timestamp: base.Add(3 * time.Minute)},
		{EventType: event.TypeFeedback, UserID: "alice", SessionID: sid, FeedbackType: strptr(event.FeedbackPositive), Timestamp: base.Add(4 * time.Minute)},
		{EventType: event.TypeFeedback, UserID: "alice", SessionID: sid, FeedbackType: strptr(event.FeedbackNegative), Timestamp: base.Add(5 * time.Minute)},
	}
}

func assertTotals(t *testing.T, s *Session) {
	t.Helper()
	if s.TotalConversations != 1 {
		t.Fatalf("conversations = %d, want 1", s.TotalConversations)
	}
	if s.TotalMessages != 2 {
		t.Fatalf("messages = %d, want 2", s.TotalMessages)
	}
	if s.TotalPositiveFeedback != 1 {
		t.Fatalf("positive = %d, want 1", s.TotalPositiveFeedback)
	}
	if s.TotalNegativeFeedback != 1 {
		t.Fatalf("negative = %d, want 1", s.TotalNegativeFeedback)
	}
}

func TestApply_CountsPerEventType(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	events := testEvents("sess-1", base)
	for i := range events {
		if err := repo.Apply(ctx, &events[i]); err != nil {
			t.Fatalf("apply event %d: %v", i, err)
		}
	}

	s, err := repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assertTotals(t, s)
	if s.UserEmail == nil || *s.UserEmail != "alice@example.com" {
		t.Fatalf("expected email carried into rollup, got %v", s.UserEmail)
	}
	if !s.LastActivity.UTC().Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("last_activity = %v, want %v", s.LastActivity.UTC(), base.Add(5*time.Minute))
	}
}

func TestApply_SkipsEventsWithoutSession(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	e := event.Event{EventType: event.TypePageVisit, UserID: "alice", Timestamp: time.Now().UTC()}
	if err := repo.Apply(ctx, &e); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var n int64
	if err := repo.db.Model(&Session{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no rollup rows, got %d", n)
	}
}

func TestApply_LastActivityNeverMovesBackward(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	sid := "sess-1"
	later := event.Event{EventType: event.TypeSendMessage, UserID: "alice", SessionID: &sid, Timestamp: base.Add(time.Hour)}
	earlier := event.Event{EventType: event.TypeSendMessage, UserID: "alice", SessionID: &sid, Timestamp: base}

	// out-of-order delivery
	if err := repo.Apply(ctx, &later); err != nil {
		t.Fatalf("apply later: %v", err)
	}
	if err := repo.Apply(ctx, &earlier); err != nil {
		t.Fatalf("apply earlier: %v", err)
	}

	s, err := repo.Get(ctx, sid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !s.LastActivity.UTC().Equal(base.Add(time.Hour)) {
		t.Fatalf("last_activity moved backward: %v", s.LastActivity.UTC())
	}
	if s.TotalMessages != 2 {
		t.Fatalf("messages = %d, want 2", s.TotalMessages)
	}
}

func TestTouch_KeepsSessionWarmWithoutCounting(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	actor := event.Actor{UserID: "alice", Email: "alice@example.com"}
	if err := repo.Touch(ctx, "sess-1", actor, base); err != nil {
		t.Fatalf("touch new session: %v", err)
	}

	s, err := repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.UserID != "alice" || s.TotalConversations != 0 || s.TotalMessages != 0 {
		t.Fatalf("touch counted something: %+v", s)
	}

	sid := "sess-1"
	msg := event.Event{EventType: event.TypeSendMessage, UserID: "alice", SessionID: &sid, Timestamp: base.Add(time.Minute)}
	if err := repo.Apply(ctx, &msg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := repo.Touch(ctx, "sess-1", actor, base.Add(2*time.Minute)); err != nil {
		t.Fatalf("touch existing session: %v", err)
	}

	s, err = repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get after touch: %v", err)
	}
	if s.TotalMessages != 1 {
		t.Fatalf("messages = %d, want 1", s.TotalMessages)
	}
	if !s.LastActivity.UTC().Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("last_activity = %v, want touch time", s.LastActivity.UTC())
	}
}

func TestReconcile_ConvergesFromLog(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewRepo(gdb)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	events := testEvents("sess-1", base)
	for i := range events {
		if err := gdb.Create(&events[i]).Error; err != nil {
			t.Fatalf("insert event %d: %v", i, err)
		}
	}

	// Seed a skewed rollup row, as if notifications were lost.
	skewed := Session{
		SessionID:     "sess-1",
		UserID:        "alice",
		FirstVisit:    base,
		LastActivity:  base,
		TotalMessages: 99,
	}
	if err := gdb.Create(&skewed).Error; err != nil {
		t.Fatalf("seed rollup: %v", err)
	}

	n, err := repo.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n != 1 {
		t.Fatalf("reconciled %d sessions, want 1", n)
	}

	s, err := repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assertTotals(t, s)
	if !s.FirstVisit.UTC().Equal(base) {
		t.Fatalf("first_visit = %v, want %v", s.FirstVisit.UTC(), base)
	}
	if !s.LastActivity.UTC().Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("last_activity = %v, want %v", s.LastActivity.UTC(), base.Add(5*time.Minute))
	}
}

func TestReconcile_MatchesApply(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewRepo(gdb)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	events := testEvents("sess-1", base)
	for i := range events {
		if err := gdb.Create(&events[i]).Error; err != nil {
			t.Fatalf("insert event %d: %v", i, err)
		}
		if err := repo.Apply(ctx, &events[i]); err != nil {
			t.Fatalf("apply event %d: %v", i, err)
		}
	}

	applied, err := repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get applied: %v", err)
	}

	if err := repo.ReconcileSession(ctx, "sess-1"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	reconciled, err := repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get reconciled: %v", err)
	}

	if applied.TotalConversations != reconciled.TotalConversations ||
		applied.TotalMessages != reconciled.TotalMessages ||
		applied.TotalPositiveFeedback != reconciled.TotalPositiveFeedback ||
		applied.TotalNegativeFeedback != reconciled.TotalNegativeFeedback {
		t.Fatalf("apply and reconcile disagree: %+v vs %+v", applied, reconciled)
	}
}
