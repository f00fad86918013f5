package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentty-run/agentty/internal/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.OpenInMemory(context.Background())
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestFailUnfinishedOperationsFromPreviousRunRestoresSessionReviewStatus(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	projectID, err := database.UpsertProject(ctx, "/tmp/project", "main")
	if err != nil {
		t.Fatalf("upsert project: %v", err)
	}
	if err := database.InsertSession(ctx, "sess1", "gemini", "gemini-3-flash-preview", "main", "InProgress", "do work", projectID); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if err := database.InsertSessionOperation(ctx, "op-1", "sess1", "reply"); err != nil {
		t.Fatalf("insert session operation: %v", err)
	}

	if err := FailUnfinishedOperationsFromPreviousRun(ctx, database); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sessions, err := database.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("load sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Status != "Review" {
		t.Fatalf("sessions = %+v, want one session with status Review", sessions)
	}

	unfinished, err := database.IsSessionOperationUnfinished(ctx, "op-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unfinished {
		t.Error("expected op-1 to no longer be unfinished")
	}
}

func TestShouldSkipWorkerCommandWhenCancelIsRequested(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	projectID, err := database.UpsertProject(ctx, "/tmp/project", "main")
	if err != nil {
		t.Fatalf("upsert project: %v", err)
	}
	if err := database.InsertSession(ctx, "sess1", "gemini", "gemini-3-flash-preview", "main", "InProgress", "do work", projectID); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if err := database.InsertSessionOperation(ctx, "op-1", "sess1", "reply"); err != nil {
		t.Fatalf("insert session operation: %v", err)
	}
	if err := database.RequestCancelForSessionOperations(ctx, "sess1"); err != nil {
		t.Fatalf("request cancel: %v", err)
	}

	if !shouldSkipWorkerCommand(ctx, database, "sess1", "op-1") {
		t.Error("expected command to be skipped once cancellation was requested")
	}

	unfinished, err := database.IsSessionOperationUnfinished(ctx, "op-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unfinished {
		t.Error("expected op-1 to be marked Canceled, not left unfinished")
	}
}

func TestPoolRunsCommandsSerializedPerSession(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	projectID, err := database.UpsertProject(ctx, "/tmp/project", "main")
	if err != nil {
		t.Fatalf("upsert project: %v", err)
	}
	if err := database.InsertSession(ctx, "sess1", "claude", "claude-sonnet-4-6", "main", "New", "do work", projectID); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	pool := NewPool(database)

	var mu sync.Mutex
	var order []int
	done := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		i := i
		err := pool.Enqueue(ctx, "sess1", Command{
			OperationID: operationIDFor(i),
			Kind:        KindStartPrompt,
			Run: func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				done <- struct{}{}
				return nil
			},
		})
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for commands to run")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 0 || order[1] != 1 {
		t.Errorf("order = %v, want [0 1]", order)
	}
}

func operationIDFor(i int) string {
	if i == 0 {
		return "op-a"
	}
	return "op-b"
}
