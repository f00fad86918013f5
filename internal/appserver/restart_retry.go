package appserver

import (
	"context"
	"fmt"
	"strings"
)

// TurnRequest is the input for one app-server turn execution.
type TurnRequest struct {
	Folder        string
	Model         string
	Prompt        string
	SessionOutput string
	SessionID     string
}

// TurnResponse is the normalized outcome of one app-server turn.
type TurnResponse struct {
	AssistantMessage string
	ContextReset     bool
	InputTokens      int64
	OutputTokens     int64
	Pid              *int
}

// resumeWithSessionOutputTemplate mirrors the CLI channel's resume prompt:
// an app-server restart has to replay the transcript the same way a CLI
// resume does, since the provider runtime itself lost its context.
const resumeWithSessionOutputTemplate = `Continue this session using the full transcript below.

--- transcript ---
{session_output}
--- end transcript ---

{prompt}`

// TurnPromptForRuntime returns prompt unchanged unless contextReset is
// set, in which case it replays sessionOutput ahead of the prompt so the
// freshly started runtime has something to work from.
func TurnPromptForRuntime(prompt, sessionOutput string, contextReset bool) string {
	if !contextReset {
		return prompt
	}

	trimmed := strings.TrimSpace(sessionOutput)
	if trimmed == "" {
		return prompt
	}

	replaced := strings.ReplaceAll(resumeWithSessionOutputTemplate, "{session_output}", trimmed)
	return strings.ReplaceAll(replaced, "{prompt}", prompt)
}

// RunTurnWithRestartRetry runs one app-server turn with restart-and-retry
// semantics. Runtime lifecycle (start, execute, shutdown) is injected by
// the provider; this function owns invalidating a shape-mismatched
// runtime and retrying once, with full transcript replay, after the first
// failure.
func RunTurnWithRestartRetry[Runtime any](
	ctx context.Context,
	sessions *SessionRegistry[Runtime],
	request TurnRequest,
	matchesRequest func(Runtime, TurnRequest) bool,
	runtimePid func(Runtime) *int,
	startRuntime func(context.Context, TurnRequest) (Runtime, error),
	runTurn func(context.Context, *Runtime, string) (assistantMessage string, inputTokens, outputTokens int64, err error),
	shutdownRuntime func(context.Context, *Runtime),
) (TurnResponse, error) {
	contextReset := false
	sessionID := request.SessionID

	runtime, ok := sessions.TakeSession(sessionID)
	if ok && !matchesRequest(runtime, request) {
		shutdownRuntime(ctx, &runtime)
		ok = false
		contextReset = true
	}

	if !ok {
		started, err := startRuntime(ctx, request)
		if err != nil {
			return TurnResponse{}, err
		}
		runtime = started
	}

	firstPrompt := TurnPromptForRuntime(request.Prompt, request.SessionOutput, contextReset)
	assistantMessage, inputTokens, outputTokens, firstErr := runTurn(ctx, &runtime, firstPrompt)
	if firstErr == nil {
		pid := runtimePid(runtime)
		sessions.StoreSession(sessionID, runtime)

		return TurnResponse{
			AssistantMessage: assistantMessage,
			ContextReset:     contextReset,
			InputTokens:      inputTokens,
			OutputTokens:     outputTokens,
			Pid:              pid,
		}, nil
	}

	shutdownRuntime(ctx, &runtime)

	restarted, err := startRuntime(ctx, request)
	if err != nil {
		return TurnResponse{}, err
	}

	retryPrompt := TurnPromptForRuntime(request.Prompt, request.SessionOutput, true)
	assistantMessage, inputTokens, outputTokens, retryErr := runTurn(ctx, &restarted, retryPrompt)
	if retryErr == nil {
		pid := runtimePid(restarted)
		sessions.StoreSession(sessionID, restarted)

		return TurnResponse{
			AssistantMessage: assistantMessage,
			ContextReset:     true,
			InputTokens:      inputTokens,
			OutputTokens:     outputTokens,
			Pid:              pid,
		}, nil
	}

	shutdownRuntime(ctx, &restarted)

	return TurnResponse{}, fmt.Errorf(
		"%s app-server failed, then retry failed after restart: first error: %w; retry error: %v",
		sessions.ProviderName(), firstErr, retryErr,
	)
}
