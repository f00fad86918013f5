// Package worker runs each session's queued operations through a single
// per-session goroutine, so a session never has two turns executing at
// once even if multiple commands were enqueued for it in quick
// succession. Commands across different sessions run fully in parallel.
package worker

import (
	"context"
	"sync"

	"github.com/agentty-run/agentty/internal/db"
)

// RestartFailureReason is the failure_reason recorded on every operation
// that was still Queued or Running when the app last exited.
const RestartFailureReason = "Interrupted by app restart"

// CancelBeforeExecutionReason is the reason recorded when a queued
// command is discarded because cancellation was requested before it ran.
const CancelBeforeExecutionReason = "Session canceled before execution"

// Kind distinguishes the two operations a session worker executes, each
// persisted under the matching value in the operations log.
type Kind string

const (
	KindReply       Kind = "reply"
	KindStartPrompt Kind = "start_prompt"
)

// Command is one unit of serialized work for a session worker.
type Command struct {
	OperationID string
	Kind        Kind
	// Run executes the turn itself (agent channel invocation, status
	// transitions, transcript persistence) and is supplied by the caller
	// so this package stays agnostic of the session manager's internals.
	Run func(ctx context.Context) error
	// BeforeRun is invoked only for KindReply commands, before Run, to
	// transition the session into InProgress. StartPrompt commands arrive
	// already InProgress and need no such transition.
	BeforeRun func(ctx context.Context) error
}

// Pool holds one worker goroutine per session, created lazily on first
// use and kept alive for the life of the process.
type Pool struct {
	db *db.DB

	mu      sync.Mutex
	workers map[string]chan Command
}

// NewPool creates an empty worker pool backed by database.
func NewPool(database *db.DB) *Pool {
	return &Pool{db: database, workers: make(map[string]chan Command)}
}

// Enqueue persists cmd as a Queued operation and hands it to sessionID's
// worker, creating the worker if this is its first command.
func (p *Pool) Enqueue(ctx context.Context, sessionID string, cmd Command) error {
	if err := p.db.InsertSessionOperation(ctx, cmd.OperationID, sessionID, string(cmd.Kind)); err != nil {
		return err
	}

	ch := p.ensureWorker(ctx, sessionID)

	select {
	case ch <- cmd:
		return nil
	default:
		// The worker's command buffer is bounded; it is full when the
		// worker goroutine has stopped or when enough commands are already
		// waiting behind a running one. Fail the operation rather than
		// block forever.
		_ = p.db.MarkSessionOperationFailed(ctx, cmd.OperationID, "Session worker is not available")
		return errNotAvailable
	}
}

// ClearWorker drops the in-memory channel for sessionID so a future
// Enqueue call spawns a fresh worker goroutine. Used after a session is
// deleted or its worktree is torn down.
func (p *Pool) ClearWorker(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.workers, sessionID)
}

func (p *Pool) ensureWorker(ctx context.Context, sessionID string) chan Command {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ch, ok := p.workers[sessionID]; ok {
		return ch
	}

	ch := make(chan Command, 64)
	p.workers[sessionID] = ch
	go p.run(sessionID, ch)
	return ch
}

func (p *Pool) run(sessionID string, commands chan Command) {
	ctx := context.Background()

	for cmd := range commands {
		if shouldSkipWorkerCommand(ctx, p.db, sessionID, cmd.OperationID) {
			continue
		}

		if err := p.db.MarkSessionOperationRunning(ctx, cmd.OperationID); err != nil {
			continue
		}
		if shouldSkipWorkerCommand(ctx, p.db, sessionID, cmd.OperationID) {
			continue
		}

		var err error
		if cmd.Kind == KindReply && cmd.BeforeRun != nil {
			if err = cmd.BeforeRun(ctx); err == nil {
				err = cmd.Run(ctx)
			}
		} else {
			err = cmd.Run(ctx)
		}

		if err != nil {
			_ = p.db.MarkSessionOperationFailed(ctx, cmd.OperationID, err.Error())
		} else {
			_ = p.db.MarkSessionOperationDone(ctx, cmd.OperationID)
		}
	}
}

// shouldSkipWorkerCommand reports whether a queued command should be
// discarded before it runs: either it is no longer unfinished (already
// handled, e.g. by startup recovery), or cancellation was requested for
// its session while it waited in the queue.
func shouldSkipWorkerCommand(ctx context.Context, database *db.DB, sessionID, operationID string) bool {
	unfinished, err := database.IsSessionOperationUnfinished(ctx, operationID)
	if err != nil || !unfinished {
		return true
	}

	cancelRequested, err := database.IsCancelRequestedForSessionOperations(ctx, sessionID)
	if err != nil || !cancelRequested {
		return false
	}

	_ = database.MarkSessionOperationCanceled(ctx, operationID, CancelBeforeExecutionReason)
	return true
}

// FailUnfinishedOperationsFromPreviousRun resets every session with an
// operation still Queued or Running at startup back to Review, then
// marks those operations Failed(RestartFailureReason). Called once during
// startup recovery, before any new commands are enqueued.
func FailUnfinishedOperationsFromPreviousRun(ctx context.Context, database *db.DB) error {
	unfinished, err := database.LoadUnfinishedSessionOperations(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for _, op := range unfinished {
		if _, ok := seen[op.SessionID]; ok {
			continue
		}
		seen[op.SessionID] = struct{}{}
		_ = database.UpdateSessionStatus(ctx, op.SessionID, "Review")
	}

	return database.FailUnfinishedSessionOperations(ctx, RestartFailureReason)
}

type notAvailableError string

func (e notAvailableError) Error() string { return string(e) }

const errNotAvailable = notAvailableError("session worker is not available")
