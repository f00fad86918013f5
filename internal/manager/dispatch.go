package manager

import (
	"context"
	"fmt"

	"github.com/agentty-run/agentty/internal/channel"
	"github.com/agentty-run/agentty/internal/mergequeue"
	"github.com/agentty-run/agentty/internal/status"
)

// dispatchTurnEvent applies one TurnEvent produced by an agent channel for
// sessionID to its handles and republishes it as an AppEvent, per the
// fanout table: assistant text lands in the transcript, progress labels
// never do, pid and token updates are recorded, and nothing here ever
// blocks the caller (the worker goroutine driving the turn).
func (m *Manager) dispatchTurnEvent(sessionID string, event channel.TurnEvent) {
	h := m.HandlesFor(sessionID, status.InProgress)

	switch event.Kind {
	case channel.EventAssistantDelta:
		h.AppendOutput(event.Text)
		m.publish(AppEvent{Kind: EventAppendOutput, SessionID: sessionID, Text: event.Text})

	case channel.EventProgress:
		m.mu.Lock()
		m.progressMessages[sessionID] = event.Text
		m.mu.Unlock()
		m.publish(AppEvent{Kind: EventProgressUpdate, SessionID: sessionID, Text: event.Text})

	case channel.EventPidUpdate:
		h.SetChildPid(event.Pid)
		m.publish(AppEvent{Kind: EventPidUpdate, SessionID: sessionID, Pid: event.Pid})

	case channel.EventCompleted:
		m.publish(AppEvent{
			Kind:         EventTokensUpdated,
			SessionID:    sessionID,
			InputTokens:  event.InputTokens,
			OutputTokens: event.OutputTokens,
			ContextReset: event.ContextReset,
		})
		m.publish(AppEvent{Kind: EventTurnCompleted, SessionID: sessionID})

	case channel.EventFailed:
		m.publish(AppEvent{Kind: EventTurnFailed, SessionID: sessionID, Reason: event.Text})
	}
}

// streamEventsInto drains events into dispatchTurnEvent until the caller
// running the turn closes the channel, then signals done. Meant to run in
// its own goroutine alongside a blocking RunTurn call.
func (m *Manager) streamEventsInto(sessionID string, events <-chan channel.TurnEvent, done chan<- struct{}) {
	defer close(done)
	for event := range events {
		m.dispatchTurnEvent(sessionID, event)
	}
}

// ApplyStatusChange validates sessionID's move to `to` through the status
// state machine (A) and, only if legal, persists it and updates the
// in-memory session, handles, and merge queue. A rejected transition is
// reported via an output append and an EventStatusRejected, and changes no
// state.
func (m *Manager) ApplyStatusChange(ctx context.Context, sessionID string, to status.Status) error {
	m.mu.Lock()
	from, ok := m.statusLocked(sessionID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}

	if err := status.Transition(from, to); err != nil {
		m.HandlesFor(sessionID, from).AppendOutput(fmt.Sprintf("\n[Status] %v\n", err))
		m.publish(AppEvent{Kind: EventStatusRejected, SessionID: sessionID, From: from, To: to})
		return err
	}

	if err := m.db.UpdateSessionStatus(ctx, sessionID, string(to)); err != nil {
		return err
	}

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.ID == sessionID {
			s.Status = to
			break
		}
	}
	m.mu.Unlock()

	m.HandlesFor(sessionID, to).SetStatus(to)
	m.publish(AppEvent{Kind: EventStatusChanged, SessionID: sessionID, From: from, To: to})

	m.advanceMergeQueue(ctx, sessionID, to,
		map[string]struct{}{sessionID: {}},
		map[string]status.Status{sessionID: from},
	)
	return nil
}

// statusLocked returns sessionID's current status. Callers must hold m.mu.
func (m *Manager) statusLocked(sessionID string) (status.Status, bool) {
	for _, s := range m.sessions {
		if s.ID == sessionID {
			return s.Status, true
		}
	}
	return "", false
}

// advanceMergeQueue runs the merge queue's transition rule (G) for one
// reduced batch and, on StartNext, promotes and starts the next queued
// session's merge.
func (m *Manager) advanceMergeQueue(ctx context.Context, sessionID string, currentStatus status.Status, touched map[string]struct{}, previous map[string]status.Status) {
	m.mu.Lock()
	activeID, hasActive := m.mergeQueue.ActiveSessionID()
	if !hasActive || activeID != sessionID {
		m.mu.Unlock()
		return
	}

	_, stillExists := m.statusLocked(sessionID)
	var currentPtr *status.Status
	if stillExists {
		s := currentStatus
		currentPtr = &s
	}

	progress := m.mergeQueue.ProgressFromStatusUpdates(currentPtr, touched, previous)
	var next string
	var hasNext bool
	if progress == mergequeue.StartNext {
		next, hasNext = m.mergeQueue.PopNext()
		if hasNext {
			m.mergeQueue.SetActive(next)
		}
	}
	m.mu.Unlock()

	if hasNext {
		m.publish(AppEvent{Kind: EventMergeStarted, SessionID: next})
		_ = m.ApplyStatusChange(ctx, next, status.Merging)
	}
}
