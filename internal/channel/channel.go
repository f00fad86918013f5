// Package channel defines the provider-agnostic agent channel abstraction
// used to drive a single session turn without coupling callers to a
// specific transport: a stateless CLI subprocess, or a persistent
// app-server JSON-RPC runtime.
package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentty-run/agentty/internal/session"
)

// TurnMode selects whether a turn starts fresh or resumes prior context.
type TurnMode int

const (
	TurnStart TurnMode = iota
	TurnResume
)

// TurnRequest is the input payload for one provider-agnostic agent turn.
type TurnRequest struct {
	Folder string
	// LiveSessionOutput is a shared live transcript buffer. Neither
	// CliChannel nor AppServerChannel reads it.
	LiveSessionOutput *SyncBuffer
	Model             string
	Mode              TurnMode
	// SessionOutput is the replay transcript used when Mode is TurnResume.
	SessionOutput string
	Prompt        string
}

// SyncBuffer is a mutex-guarded append-only string buffer shared between a
// session worker and the agent channel driving its live transcript.
type SyncBuffer struct {
	mu   sync.Mutex
	text string
}

func (b *SyncBuffer) Append(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text += s
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// TurnEventKind discriminates the variants of TurnEvent.
type TurnEventKind int

const (
	EventAssistantDelta TurnEventKind = iota
	EventCompleted
	EventFailed
	EventPidUpdate
	EventProgress
)

// TurnEvent is one incremental event emitted during a turn. Exactly one of
// the payload fields is meaningful, selected by Kind.
type TurnEvent struct {
	Kind TurnEventKind

	// EventAssistantDelta / EventProgress / EventFailed
	Text string

	// EventCompleted
	ContextReset bool
	InputTokens  int64
	OutputTokens int64

	// EventPidUpdate; nil once the child has exited.
	Pid *int
}

// TurnResult is the normalized outcome of a successful turn.
type TurnResult struct {
	AssistantMessage string
	ContextReset     bool
	InputTokens      int64
	OutputTokens     int64
}

// SessionRef is an opaque reference to an active provider session.
type SessionRef struct {
	SessionID string
}

// StartSessionRequest is the input for initiating a new provider session.
type StartSessionRequest struct {
	Folder    string
	SessionID string
}

// Error wraps a human-readable agent channel failure.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// AgentChannel bridges a specific transport to the unified TurnEvent
// stream consumed by session workers. Implementations must be safe for
// concurrent use by multiple sessions.
type AgentChannel interface {
	// StartSession initializes a provider session for sessionID.
	// Implementations that do not maintain persistent sessions return
	// immediately with a SessionRef wrapping the supplied id.
	StartSession(ctx context.Context, req StartSessionRequest) (SessionRef, error)

	// RunTurn executes one prompt turn, streaming incremental events to
	// events, and returns the final TurnResult. events is never closed by
	// the callee; the caller owns its lifetime.
	RunTurn(ctx context.Context, sessionID string, req TurnRequest, events chan<- TurnEvent) (TurnResult, error)

	// ShutdownSession tears down the provider session for sessionID.
	// Implementations that do not maintain persistent sessions treat this
	// as a no-op.
	ShutdownSession(ctx context.Context, sessionID string) error
}

// CodexUsageLimitsProvider is implemented by an AgentChannel that can report
// Codex's current rate-limit usage, queried opportunistically during
// session refresh. AppServerChannel implements it when driving Codex; other
// channels don't and are skipped by callers.
type CodexUsageLimitsProvider interface {
	CodexUsageLimits(ctx context.Context) (*session.CodexUsageLimits, error)
}
