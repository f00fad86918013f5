package appserver

import (
	"context"
	"strings"
	"testing"
)

type testRuntime struct {
	model string
}

func TestTakeSessionReturnsStoredRuntime(t *testing.T) {
	sessions := NewSessionRegistry[testRuntime]("Test")
	sessions.StoreSession("session-1", testRuntime{model: "model-a"})

	runtime, ok := sessions.TakeSession("session-1")
	if !ok {
		t.Fatal("expected a stored runtime")
	}
	if runtime.model != "model-a" {
		t.Errorf("model = %s, want model-a", runtime.model)
	}

	if _, ok := sessions.TakeSession("session-1"); ok {
		t.Error("expected the runtime to be removed after TakeSession")
	}
}

func TestTurnPromptForRuntimeReturnsOriginalPromptWithoutContextReset(t *testing.T) {
	got := TurnPromptForRuntime("Implement feature", "prior context", false)
	if got != "Implement feature" {
		t.Errorf("got %q, want prompt verbatim", got)
	}
}

func TestTurnPromptForRuntimeReplaysSessionOutputAfterContextReset(t *testing.T) {
	got := TurnPromptForRuntime("Implement feature", "assistant: proposed plan", true)
	if !strings.Contains(got, "Continue this session using the full transcript below.") {
		t.Errorf("expected resume template, got %s", got)
	}
	if !strings.Contains(got, "assistant: proposed plan") || !strings.Contains(got, "Implement feature") {
		t.Errorf("expected transcript and prompt both present, got %s", got)
	}
}

func TestRunTurnWithRestartRetryRestartsOnceAfterFirstFailure(t *testing.T) {
	sessions := NewSessionRegistry[testRuntime]("Test")
	request := TurnRequest{
		Folder:        "/tmp",
		Model:         "model-a",
		Prompt:        "Do work",
		SessionOutput: "previous output",
		SessionID:     "session-1",
	}

	startCount, runCount, shutdownCount := 0, 0, 0

	response, err := RunTurnWithRestartRetry(
		context.Background(),
		sessions,
		request,
		func(r testRuntime, req TurnRequest) bool { return r.model == req.Model },
		func(r testRuntime) *int { pid := 42; return &pid },
		func(_ context.Context, req TurnRequest) (testRuntime, error) {
			startCount++
			return testRuntime{model: req.Model}, nil
		},
		func(_ context.Context, _ *testRuntime, _ string) (string, int64, int64, error) {
			attempt := runCount
			runCount++
			if attempt == 0 {
				return "", 0, 0, errFirstFailure
			}
			return "done", 7, 3, nil
		},
		func(_ context.Context, _ *testRuntime) {
			shutdownCount++
		},
	)

	if err != nil {
		t.Fatalf("expected retry to succeed, got: %v", err)
	}
	if response.AssistantMessage != "done" {
		t.Errorf("AssistantMessage = %s, want done", response.AssistantMessage)
	}
	if !response.ContextReset {
		t.Error("expected ContextReset to be true after a restart")
	}
	if response.InputTokens != 7 || response.OutputTokens != 3 {
		t.Errorf("tokens = (%d, %d), want (7, 3)", response.InputTokens, response.OutputTokens)
	}
	if response.Pid == nil || *response.Pid != 42 {
		t.Errorf("Pid = %v, want 42", response.Pid)
	}
	if startCount != 2 {
		t.Errorf("startCount = %d, want 2", startCount)
	}
	if runCount != 2 {
		t.Errorf("runCount = %d, want 2", runCount)
	}
	if shutdownCount != 1 {
		t.Errorf("shutdownCount = %d, want 1", shutdownCount)
	}
}

func TestRunTurnWithRestartRetryComposesBothErrorsOnDoubleFailure(t *testing.T) {
	sessions := NewSessionRegistry[testRuntime]("Test")
	request := TurnRequest{Model: "model-a", Prompt: "Do work", SessionID: "session-2"}

	_, err := RunTurnWithRestartRetry(
		context.Background(),
		sessions,
		request,
		func(r testRuntime, req TurnRequest) bool { return r.model == req.Model },
		func(r testRuntime) *int { return nil },
		func(_ context.Context, req TurnRequest) (testRuntime, error) {
			return testRuntime{model: req.Model}, nil
		},
		func(_ context.Context, _ *testRuntime, _ string) (string, int64, int64, error) {
			return "", 0, 0, errAlwaysFails
		},
		func(_ context.Context, _ *testRuntime) {},
	)

	if err == nil {
		t.Fatal("expected an error when both attempts fail")
	}
	if !strings.Contains(err.Error(), "first error") || !strings.Contains(err.Error(), "retry error") {
		t.Errorf("expected composed error message, got: %v", err)
	}
}

var (
	errFirstFailure = fmtError("first failure")
	errAlwaysFails  = fmtError("always fails")
)

type fmtError string

func (e fmtError) Error() string { return string(e) }
