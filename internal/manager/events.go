package manager

import "github.com/agentty-run/agentty/internal/status"

// AppEventKind discriminates the variants of AppEvent, the sum type the
// Session Manager's reducer applies and republishes for observers (a TUI
// render loop, an operator command waiting on completion, a test).
type AppEventKind int

const (
	// EventAppendOutput reports text appended to a session's transcript.
	EventAppendOutput AppEventKind = iota
	// EventProgressUpdate reports a transient progress label (tool calls,
	// "thinking…") that never lands in the persisted transcript.
	EventProgressUpdate
	// EventPidUpdate reports the child process id backing a session's
	// active turn, or its clearing once the child exits.
	EventPidUpdate
	// EventTokensUpdated reports accumulated token counts for a session.
	EventTokensUpdated
	// EventTurnCompleted reports a turn finishing successfully.
	EventTurnCompleted
	// EventTurnFailed reports a turn failing.
	EventTurnFailed
	// EventStatusChanged reports a session's status transitioning.
	EventStatusChanged
	// EventStatusRejected reports an attempted status transition that (A)
	// rejected; no persisted or in-memory state changed.
	EventStatusRejected
	// EventMergeStarted reports a session being promoted into the active
	// merge slot.
	EventMergeStarted
	// EventRefreshSessions reports the in-memory session list having been
	// re-hydrated from persistence.
	EventRefreshSessions
)

// AppEvent is one published state mutation or notification. Exactly the
// fields relevant to Kind are meaningful.
type AppEvent struct {
	Kind      AppEventKind
	SessionID string

	// EventAppendOutput / EventProgressUpdate
	Text string

	// EventPidUpdate; nil once the child has exited.
	Pid *int

	// EventTokensUpdated / EventTurnCompleted
	InputTokens  int64
	OutputTokens int64
	ContextReset bool

	// EventTurnFailed
	Reason string

	// EventStatusChanged / EventStatusRejected
	From status.Status
	To   status.Status
}

// publish sends event to the manager's event stream without blocking the
// caller: a full buffer drops the event rather than stall a worker or the
// reducer, matching the fanout's "producers never await UI" contract. The
// buffer (256) is sized generously enough that a realistic observer never
// triggers this path in practice.
func (m *Manager) publish(event AppEvent) {
	select {
	case m.events <- event:
	default:
	}
}
