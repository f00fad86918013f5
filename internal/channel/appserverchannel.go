package channel

import (
	"context"
	"encoding/json"

	"github.com/agentty-run/agentty/internal/appserver"
	"github.com/agentty-run/agentty/internal/session"
)

// AppServerBackend builds the command line for a provider's app-server
// subprocess from a turn's request shape.
type AppServerBackend struct {
	Command   string
	BuildArgs func(req TurnRequest) []string
}

// AppServerChannel drives a provider through a persistent app-server
// runtime per session, applying the restart-and-retry algorithm in
// internal/appserver to absorb a runtime crash or a shape mismatch
// transparently to the caller.
type AppServerChannel struct {
	backend  AppServerBackend
	sessions *appserver.SessionRegistry[appserver.Process]
}

// NewAppServerChannel returns an AgentChannel for a provider identified by
// providerName (used only in composed error messages), driven via backend.
func NewAppServerChannel(providerName string, backend AppServerBackend) *AppServerChannel {
	return &AppServerChannel{
		backend:  backend,
		sessions: appserver.NewSessionRegistry[appserver.Process](providerName),
	}
}

func (c *AppServerChannel) StartSession(_ context.Context, req StartSessionRequest) (SessionRef, error) {
	return SessionRef{SessionID: req.SessionID}, nil
}

// ShutdownSession closes stdin on the session's runtime, waits briefly, and
// force-kills it if it hasn't exited.
func (c *AppServerChannel) ShutdownSession(ctx context.Context, sessionID string) error {
	if proc, ok := c.sessions.TakeSession(sessionID); ok {
		proc.Shutdown(ctx)
	}
	return nil
}

// RunTurn executes one turn against sessionID's app-server runtime,
// restarting it once on the shape-mismatch or first-failure paths per
// internal/appserver.RunTurnWithRestartRetry.
func (c *AppServerChannel) RunTurn(ctx context.Context, sessionID string, req TurnRequest, events chan<- TurnEvent) (TurnResult, error) {
	request := appserver.TurnRequest{
		Folder:        req.Folder,
		Model:         req.Model,
		Prompt:        req.Prompt,
		SessionOutput: req.SessionOutput,
		SessionID:     sessionID,
	}

	resp, err := appserver.RunTurnWithRestartRetry(ctx, c.sessions, request,
		func(p appserver.Process, r appserver.TurnRequest) bool {
			return p.Folder == r.Folder && p.Model == r.Model
		},
		func(p appserver.Process) *int { return p.Pid() },
		func(ctx context.Context, r appserver.TurnRequest) (appserver.Process, error) {
			return appserver.StartProcess(ctx, c.backend.Command, c.backend.BuildArgs(TurnRequest{
				Folder: r.Folder, Model: r.Model, Prompt: r.Prompt, SessionOutput: r.SessionOutput,
			}), r.Folder, r.Model)
		},
		func(ctx context.Context, p *appserver.Process, prompt string) (string, int64, int64, error) {
			p.SetEventSink(func(ev appserver.RuntimeEvent) {
				events <- runtimeEventToTurnEvent(ev)
			})
			defer p.SetEventSink(nil)
			return p.RunTurn(ctx, prompt)
		},
		func(ctx context.Context, p *appserver.Process) {
			p.Shutdown(ctx)
		},
	)
	if err != nil {
		events <- TurnEvent{Kind: EventFailed, Text: err.Error()}
		return TurnResult{}, NewError("%s", err.Error())
	}

	events <- TurnEvent{Kind: EventPidUpdate, Pid: resp.Pid}
	events <- TurnEvent{
		Kind:         EventCompleted,
		ContextReset: resp.ContextReset,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}

	return TurnResult{
		AssistantMessage: resp.AssistantMessage,
		ContextReset:     resp.ContextReset,
		InputTokens:      resp.InputTokens,
		OutputTokens:     resp.OutputTokens,
	}, nil
}

// CodexUsageLimits queries the usage/limits RPC against any currently
// running session's app-server process, borrowing it from the registry and
// returning it when done exactly like a turn does. It returns (nil, nil)
// when no session is currently running rather than treating that as an
// error: the caller's merge falls back to the previous snapshot either way.
func (c *AppServerChannel) CodexUsageLimits(ctx context.Context) (*session.CodexUsageLimits, error) {
	sessionID, ok := c.sessions.AnySessionID()
	if !ok {
		return nil, nil
	}

	proc, ok := c.sessions.TakeSession(sessionID)
	if !ok {
		return nil, nil
	}
	defer c.sessions.StoreSession(sessionID, proc)

	result, err := proc.Call(ctx, "usage/limits", map[string]any{})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	var payload struct {
		Primary   *usageLimitWindowPayload `json:"primary"`
		Secondary *usageLimitWindowPayload `json:"secondary"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, err
	}

	return &session.CodexUsageLimits{
		Primary:   payload.Primary.toDomain(),
		Secondary: payload.Secondary.toDomain(),
	}, nil
}

type usageLimitWindowPayload struct {
	ResetsAt      *int64 `json:"resets_at"`
	UsedPercent   uint8  `json:"used_percent"`
	WindowMinutes *int64 `json:"window_minutes"`
}

func (p *usageLimitWindowPayload) toDomain() *session.CodexUsageLimitWindow {
	if p == nil {
		return nil
	}
	return &session.CodexUsageLimitWindow{
		ResetsAt:      p.ResetsAt,
		UsedPercent:   p.UsedPercent,
		WindowMinutes: p.WindowMinutes,
	}
}

func runtimeEventToTurnEvent(ev appserver.RuntimeEvent) TurnEvent {
	if ev.Kind == appserver.RuntimeProgress {
		return TurnEvent{Kind: EventProgress, Text: ev.Text}
	}
	return TurnEvent{Kind: EventAssistantDelta, Text: ev.Text}
}
