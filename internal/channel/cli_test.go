package channel

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

// fakeBackend lets tests control exactly which command gets spawned
// without depending on a real provider binary being installed.
type fakeBackend struct {
	build func(folder, prompt, model string) *exec.Cmd
}

func (f fakeBackend) BuildStartCommand(folder, prompt, model string) *exec.Cmd {
	return f.build(folder, prompt, model)
}

func (f fakeBackend) BuildResumeCommand(folder, prompt, model, _ string) *exec.Cmd {
	return f.build(folder, prompt, model)
}

func drainEvents(t *testing.T, events chan TurnEvent) []TurnEvent {
	t.Helper()
	close(events)
	var out []TurnEvent
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestRunTurnSpawnFailureEmitsErrorDeltaAndReturnsErr(t *testing.T) {
	backend := fakeBackend{build: func(folder, prompt, model string) *exec.Cmd {
		return exec.Command("/no-such-binary-agentty-test")
	}}
	channel := NewCliChannel(backend)
	events := make(chan TurnEvent, 8)

	_, err := channel.RunTurn(context.Background(), "sess-1", TurnRequest{
		Folder: t.TempDir(), Model: "claude-sonnet-4-6", Mode: TurnStart, Prompt: "Write a test",
	}, events)

	if err == nil {
		t.Fatal("expected error for spawn failure")
	}
	if !strings.Contains(err.Error(), "Failed to spawn process") {
		t.Errorf("unexpected error: %v", err)
	}

	got := drainEvents(t, events)
	if len(got) == 0 || got[0].Kind != EventAssistantDelta || !strings.Contains(got[0].Text, "Failed to spawn") {
		t.Errorf("expected a leading assistant delta describing the spawn failure, got %+v", got)
	}
}

func TestRunTurnKillSignalEmitsStoppedDeltaAndReturnsErr(t *testing.T) {
	backend := fakeBackend{build: func(folder, prompt, model string) *exec.Cmd {
		return exec.Command("sh", "-c", "kill -9 $$")
	}}
	channel := NewCliChannel(backend)
	events := make(chan TurnEvent, 8)

	_, err := channel.RunTurn(context.Background(), "sess-1", TurnRequest{
		Folder: t.TempDir(), Model: "claude-sonnet-4-6", Mode: TurnStart, Prompt: "Write a test",
	}, events)

	if err == nil || !strings.Contains(err.Error(), "[Stopped]") {
		t.Fatalf("expected [Stopped] error, got: %v", err)
	}

	got := drainEvents(t, events)
	var sawStopped bool
	for _, e := range got {
		if e.Kind == EventAssistantDelta && strings.Contains(e.Text, "[Stopped]") {
			sawStopped = true
		}
	}
	if !sawStopped {
		t.Errorf("expected a [Stopped] assistant delta among events: %+v", got)
	}
}

func TestRunTurnCleanExitReturnsResultWithoutContextReset(t *testing.T) {
	backend := fakeBackend{build: func(folder, prompt, model string) *exec.Cmd {
		return exec.Command("true")
	}}
	channel := NewCliChannel(backend)
	events := make(chan TurnEvent, 8)

	result, err := channel.RunTurn(context.Background(), "sess-1", TurnRequest{
		Folder: t.TempDir(), Model: "claude-sonnet-4-6", Mode: TurnStart, Prompt: "Write a test",
	}, events)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ContextReset {
		t.Error("expected ContextReset to be false for a CLI turn")
	}
	drainEvents(t, events)
}

func TestBuildResumePromptFillsTemplateWhenSessionOutputPresent(t *testing.T) {
	got := BuildResumePrompt("keep going", "previous transcript")
	if !strings.Contains(got, "Continue this session") || !strings.Contains(got, "previous transcript") || !strings.Contains(got, "keep going") {
		t.Errorf("unexpected resume prompt: %s", got)
	}
}

func TestBuildResumePromptReturnsPromptVerbatimWhenSessionOutputEmpty(t *testing.T) {
	got := BuildResumePrompt("keep going", "   ")
	if got != "keep going" {
		t.Errorf("BuildResumePrompt = %q, want verbatim prompt", got)
	}
}
