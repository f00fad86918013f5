package manager

import (
	"context"
	"testing"
	"time"

	"github.com/agentty-run/agentty/internal/agentkind"
	"github.com/agentty-run/agentty/internal/channel"
	"github.com/agentty-run/agentty/internal/db"
	"github.com/agentty-run/agentty/internal/status"
	"github.com/agentty-run/agentty/internal/worker"
)

func newTestManager(t *testing.T) (*Manager, *db.DB) {
	t.Helper()
	ctx := context.Background()

	database, err := db.OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	pool := worker.NewPool(database)
	m, err := New(ctx, database, pool, "/tmp/project", "main", map[agentkind.Kind]channel.AgentChannel{})
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}

	return m, database
}

func seedSession(t *testing.T, m *Manager, database *db.DB, id, st string) {
	t.Helper()
	ctx := context.Background()

	projectID, err := database.UpsertProject(ctx, "/tmp/project", "main")
	if err != nil {
		t.Fatalf("upsert project: %v", err)
	}
	if err := database.InsertSession(ctx, id, "claude", "claude-sonnet-4-6", "main", st, "do work", projectID); err != nil {
		t.Fatalf("insert session %s: %v", id, err)
	}
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func drainEvent(t *testing.T, m *Manager) AppEvent {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return AppEvent{}
	}
}

func TestApplyStatusChangeRejectsIllegalTransition(t *testing.T) {
	ctx := context.Background()
	m, database := newTestManager(t)
	seedSession(t, m, database, "sess1", "Review")
	drainEvent(t, m) // RefreshSessions from seedSession

	err := m.ApplyStatusChange(ctx, "sess1", status.Done)
	if err == nil {
		t.Fatal("expected illegal transition to be rejected")
	}

	s, ok := m.SessionByID("sess1")
	if !ok || s.Status != status.Review {
		t.Fatalf("expected session to remain Review, got %+v", s)
	}

	ev := drainEvent(t, m)
	if ev.Kind != EventStatusRejected {
		t.Errorf("expected EventStatusRejected, got %v", ev.Kind)
	}
}

func TestApplyStatusChangeAppliesLegalTransition(t *testing.T) {
	ctx := context.Background()
	m, database := newTestManager(t)
	seedSession(t, m, database, "sess1", "Review")
	drainEvent(t, m)

	if err := m.ApplyStatusChange(ctx, "sess1", status.InProgress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, ok := m.SessionByID("sess1")
	if !ok || s.Status != status.InProgress {
		t.Fatalf("expected session to be InProgress, got %+v", s)
	}

	ev := drainEvent(t, m)
	if ev.Kind != EventStatusChanged || ev.From != status.Review || ev.To != status.InProgress {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestRequestMergePromotesNextSessionWhenActiveLeavesMerging(t *testing.T) {
	ctx := context.Background()
	m, database := newTestManager(t)
	seedSession(t, m, database, "sess1", "Review")
	drainEvent(t, m)
	seedSession(t, m, database, "sess2", "Review")
	drainEvent(t, m)

	if err := m.RequestMerge(ctx, "sess1"); err != nil {
		t.Fatalf("request merge sess1: %v", err)
	}
	if ev := drainEvent(t, m); ev.Kind != EventMergeStarted || ev.SessionID != "sess1" {
		t.Fatalf("expected sess1 merge started, got %+v", ev)
	}
	if ev := drainEvent(t, m); ev.Kind != EventStatusChanged || ev.To != status.Merging {
		t.Fatalf("expected sess1 status changed to Merging, got %+v", ev)
	}

	if err := m.RequestMerge(ctx, "sess2"); err != nil {
		t.Fatalf("request merge sess2: %v", err)
	}

	activeID, hasActive := m.mergeQueue.ActiveSessionID()
	if !hasActive || activeID != "sess1" {
		t.Fatalf("expected sess1 to remain active, got %q (hasActive=%v)", activeID, hasActive)
	}

	if err := m.ApplyStatusChange(ctx, "sess1", status.Done); err != nil {
		t.Fatalf("completing merge for sess1: %v", err)
	}

	if ev := drainEvent(t, m); ev.Kind != EventStatusChanged || ev.To != status.Done {
		t.Fatalf("expected sess1 status changed to Done, got %+v", ev)
	}
	if ev := drainEvent(t, m); ev.Kind != EventMergeStarted || ev.SessionID != "sess2" {
		t.Fatalf("expected sess2 promoted into merge slot, got %+v", ev)
	}
	if ev := drainEvent(t, m); ev.Kind != EventStatusChanged || ev.SessionID != "sess2" || ev.To != status.Merging {
		t.Fatalf("expected sess2 status changed to Merging, got %+v", ev)
	}

	activeID, hasActive = m.mergeQueue.ActiveSessionID()
	if !hasActive || activeID != "sess2" {
		t.Fatalf("expected sess2 to now be active, got %q (hasActive=%v)", activeID, hasActive)
	}
}

func TestDispatchTurnEventUpdatesHandlesAndPublishes(t *testing.T) {
	m, database := newTestManager(t)
	seedSession(t, m, database, "sess1", "InProgress")
	drainEvent(t, m)

	m.dispatchTurnEvent("sess1", channel.TurnEvent{Kind: channel.EventAssistantDelta, Text: "hello"})
	ev := drainEvent(t, m)
	if ev.Kind != EventAppendOutput || ev.Text != "hello" {
		t.Errorf("unexpected event %+v", ev)
	}
	if got := m.HandlesFor("sess1", status.InProgress).Output(); got != "hello" {
		t.Errorf("handles output = %q, want %q", got, "hello")
	}

	pid := 4242
	m.dispatchTurnEvent("sess1", channel.TurnEvent{Kind: channel.EventPidUpdate, Pid: &pid})
	ev = drainEvent(t, m)
	if ev.Kind != EventPidUpdate || ev.Pid == nil || *ev.Pid != pid {
		t.Errorf("unexpected event %+v", ev)
	}
	if got := m.HandlesFor("sess1", status.InProgress).ChildPid(); got == nil || *got != pid {
		t.Errorf("handles child pid = %v, want %d", got, pid)
	}

	m.dispatchTurnEvent("sess1", channel.TurnEvent{Kind: channel.EventProgress, Text: "thinking…"})
	ev = drainEvent(t, m)
	if ev.Kind != EventProgressUpdate || ev.Text != "thinking…" {
		t.Errorf("unexpected event %+v", ev)
	}
	if got := m.HandlesFor("sess1", status.InProgress).Output(); got != "hello" {
		t.Errorf("progress must not be appended to transcript, got %q", got)
	}
}

func TestShouldShowOnboardingTracksSessionCount(t *testing.T) {
	m, database := newTestManager(t)
	if !m.ShouldShowOnboarding() {
		t.Fatal("expected onboarding with no sessions")
	}

	seedSession(t, m, database, "sess1", "Review")
	drainEvent(t, m)

	if m.ShouldShowOnboarding() {
		t.Fatal("expected onboarding to clear once a session exists")
	}
}
