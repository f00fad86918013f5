package manager

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/uuid"

	"github.com/agentty-run/agentty/internal/agentkind"
	"github.com/agentty-run/agentty/internal/assist"
	"github.com/agentty-run/agentty/internal/channel"
	"github.com/agentty-run/agentty/internal/git"
	"github.com/agentty-run/agentty/internal/session"
	"github.com/agentty-run/agentty/internal/status"
	"github.com/agentty-run/agentty/internal/worker"
)

// CreateSession materializes a new session: a worktree on a fresh branch, a
// Queued StartPrompt operation, and a session row in New. It immediately
// transitions the row to InProgress and hands the StartPrompt command to the
// session's worker, matching the "first prompt accepted by worker" edge in
// the status state machine.
func (m *Manager) CreateSession(ctx context.Context, prompt string, agent agentkind.Kind, model agentkind.Model, baseBranch string) (string, error) {
	sessionID := uuid.NewString()
	worktreePath := m.WorktreePath(sessionID)

	if err := m.git.CreateWorktree(ctx, worktreePath, git.BranchName(sessionID), baseBranch); err != nil {
		return "", fmt.Errorf("creating worktree for session %s: %w", sessionID, err)
	}

	if err := m.db.InsertSession(ctx, sessionID, string(agent), string(model), baseBranch, string(status.New), prompt, m.projectID); err != nil {
		return "", fmt.Errorf("inserting session %s: %w", sessionID, err)
	}

	if err := m.Refresh(ctx); err != nil {
		return "", err
	}

	if err := m.ApplyStatusChange(ctx, sessionID, status.InProgress); err != nil {
		return "", fmt.Errorf("starting session %s: %w", sessionID, err)
	}

	opID := uuid.NewString()
	err := m.pool.Enqueue(ctx, sessionID, worker.Command{
		OperationID: opID,
		Kind:        worker.KindStartPrompt,
		Run:         m.runTurnCommand(sessionID, prompt, channel.TurnStart),
	})
	if err != nil {
		return "", err
	}

	return sessionID, nil
}

// Reply enqueues a follow-up prompt for an existing session. The worker
// transitions the session Review -> InProgress immediately before running
// the turn (BeforeRun), so the UI reflects the new state the instant the
// command starts executing rather than only once it finishes.
func (m *Manager) Reply(ctx context.Context, sessionID, prompt string) error {
	opID := uuid.NewString()
	return m.pool.Enqueue(ctx, sessionID, worker.Command{
		OperationID: opID,
		Kind:        worker.KindReply,
		BeforeRun: func(ctx context.Context) error {
			return m.ApplyStatusChange(ctx, sessionID, status.InProgress)
		},
		Run: m.runTurnCommand(sessionID, prompt, channel.TurnResume),
	})
}

// runTurnCommand builds the worker.Command.Run closure that actually drives
// one agent turn: resolve the channel, stream its TurnEvents through the
// fanout, persist accumulated tokens, and land the session back in Review
// whether the turn succeeded or failed (per §4.4 steps 6-8).
func (m *Manager) runTurnCommand(sessionID, prompt string, mode channel.TurnMode) func(context.Context) error {
	return func(ctx context.Context) error {
		s, ok := m.SessionByID(sessionID)
		if !ok {
			return fmt.Errorf("session %s disappeared before its turn ran", sessionID)
		}

		ch, err := m.ChannelFor(s.Agent)
		if err != nil {
			return err
		}

		h := m.HandlesFor(sessionID, status.InProgress)

		events := make(chan channel.TurnEvent, 16)
		done := make(chan struct{})
		go m.streamEventsInto(sessionID, events, done)

		result, turnErr := ch.RunTurn(ctx, sessionID, channel.TurnRequest{
			Folder:        s.Folder,
			Model:         string(s.Model),
			Mode:          mode,
			SessionOutput: h.Output(),
			Prompt:        prompt,
		}, events)

		close(events)
		<-done

		if turnErr != nil {
			turnErr = m.runAssistLoop(ctx, sessionID, ch, s, h, turnErr)
		}

		if result.InputTokens != 0 || result.OutputTokens != 0 {
			_ = m.db.AddSessionTokens(ctx, sessionID, result.InputTokens, result.OutputTokens)
		}

		if statusErr := m.ApplyStatusChange(ctx, sessionID, status.Review); statusErr != nil {
			if turnErr == nil {
				return statusErr
			}
		}

		return turnErr
	}
}

// runAssistLoop retries a failed turn through the bounded, self-correcting
// recovery loop: each attempt is fed the previous failure's message and
// stops early once the same failure repeats too many times in a row, per
// the configured assist policy. Recovery text is appended to the
// transcript (and republished) exactly like a normal turn's output.
func (m *Manager) runAssistLoop(ctx context.Context, sessionID string, ch channel.AgentChannel, s session.Session, h *session.Handles, turnErr error) error {
	policy := m.currentAssistPolicy()
	if policy.MaxAttempts <= 0 {
		return turnErr
	}

	tracker := assist.NewFailureTracker(policy.MaxIdenticalFailureStreak)
	ac := &assist.Context{
		Channel:   ch,
		SessionID: sessionID,
		Folder:    s.Folder,
		Model:     string(s.Model),
		AppendOutput: func(text string) {
			h.AppendOutput(text)
			m.publish(AppEvent{Kind: EventAppendOutput, SessionID: sessionID, Text: text})
		},
	}

	lastErr := turnErr
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if tracker.Observe(lastErr.Error()) {
			return fmt.Errorf("assist loop made no progress after %d identical failures: %w", tracker.Streak(), lastErr)
		}

		detail := assist.FormatDetailLines(lastErr.Error())
		ac.AppendHeader("Recovery", attempt, policy.MaxAttempts, "Retrying after a failed turn.", detail)

		resumePrompt := fmt.Sprintf("The previous turn failed with:\n%s\n\nPlease address this and continue.", lastErr.Error())
		if runErr := ac.Run(ctx, resumePrompt); runErr != nil {
			lastErr = runErr
			continue
		}

		return nil
	}

	return lastErr
}

// RequestCancel propagates a cancellation intent (F): it flags every
// non-terminal operation for sessionID so queued commands short-circuit at
// their next checkpoint, then signals the session's live child process, if
// any, to stop.
func (m *Manager) RequestCancel(ctx context.Context, sessionID string) error {
	if err := m.db.RequestCancelForSessionOperations(ctx, sessionID); err != nil {
		return err
	}

	h := m.HandlesFor(sessionID, status.InProgress)
	if pid := h.ChildPid(); pid != nil {
		SendCancelSignal(*pid)
	}

	return nil
}

// RequestMerge enqueues sessionID for the project's single merge slot: if
// the slot is free it is promoted immediately, otherwise it waits in FIFO
// order behind whatever session currently holds it.
func (m *Manager) RequestMerge(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	alreadyQueued := m.mergeQueue.IsQueuedOrActive(sessionID)
	hasActive := m.mergeQueue.HasActive()
	if alreadyQueued {
		m.mu.Unlock()
		return nil
	}
	if !hasActive {
		m.mergeQueue.SetActive(sessionID)
	} else {
		m.mergeQueue.Enqueue(sessionID)
	}
	m.mu.Unlock()

	if !hasActive {
		m.publish(AppEvent{Kind: EventMergeStarted, SessionID: sessionID})
		return m.ApplyStatusChange(ctx, sessionID, status.Merging)
	}

	return nil
}

// Diff shells out to git to render sessionID's worktree diff against its
// base branch.
func (m *Manager) Diff(ctx context.Context, sessionID string) (string, error) {
	s, ok := m.SessionByID(sessionID)
	if !ok {
		return "", fmt.Errorf("unknown session %s", sessionID)
	}

	cmd := exec.CommandContext(ctx, "git", "diff", s.BaseBranch+"...HEAD")
	cmd.Dir = s.Folder

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git diff failed: %s", strings.TrimSpace(string(output)))
	}

	diff := string(output)
	m.recordDiffSize(sessionID, session.SizeFromDiffText(diff))

	return diff, nil
}

// Delete tears down a session: it requests cancellation for any in-flight
// operation, removes the git worktree, drops the in-memory worker and
// handles, and deletes the persisted row.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	s, ok := m.SessionByID(sessionID)
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}

	_ = m.RequestCancel(ctx, sessionID)

	if err := m.git.RemoveWorktree(ctx, s.Folder); err != nil {
		return err
	}

	if err := m.db.DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	m.pool.ClearWorker(sessionID)

	m.mu.Lock()
	delete(m.handles, sessionID)
	delete(m.progressMessages, sessionID)
	m.mu.Unlock()

	return m.Refresh(ctx)
}
