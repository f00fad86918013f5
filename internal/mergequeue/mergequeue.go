// Package mergequeue serializes the single merge slot every project
// shares: at most one session may be in Merging at a time, and every
// other session waiting to merge sits in a FIFO queue behind it.
package mergequeue

import "github.com/agentty-run/agentty/internal/status"

// Progress reports what MergeQueue.ProgressFromStatusUpdates decided to
// do as a result of a status change.
type Progress int

const (
	// NoAction means the queue's active slot is unaffected.
	NoAction Progress = iota
	// StartNext means the active slot was vacated. The queue does not
	// promote anyone itself: the caller pops the FIFO and, if a session was
	// waiting, makes it active and transitions it into Merging.
	StartNext
)

// MergeQueue holds the single active merge slot for one project plus the
// FIFO of sessions waiting for it.
type MergeQueue struct {
	activeSessionID  *string
	queuedSessionIDs []string
}

// New returns an empty merge queue.
func New() *MergeQueue {
	return &MergeQueue{}
}

// IsQueuedOrActive reports whether sessionID already holds, or is
// waiting for, the merge slot.
func (q *MergeQueue) IsQueuedOrActive(sessionID string) bool {
	if q.activeSessionID != nil && *q.activeSessionID == sessionID {
		return true
	}
	for _, id := range q.queuedSessionIDs {
		if id == sessionID {
			return true
		}
	}
	return false
}

// Enqueue appends sessionID to the end of the FIFO.
func (q *MergeQueue) Enqueue(sessionID string) {
	q.queuedSessionIDs = append(q.queuedSessionIDs, sessionID)
}

// HasActive reports whether a session currently holds the merge slot.
func (q *MergeQueue) HasActive() bool {
	return q.activeSessionID != nil
}

// ActiveSessionID returns the session currently holding the merge slot,
// if any.
func (q *MergeQueue) ActiveSessionID() (string, bool) {
	if q.activeSessionID == nil {
		return "", false
	}
	return *q.activeSessionID, true
}

// PopNext removes and returns the head of the FIFO, if any.
func (q *MergeQueue) PopNext() (string, bool) {
	if len(q.queuedSessionIDs) == 0 {
		return "", false
	}
	next := q.queuedSessionIDs[0]
	q.queuedSessionIDs = q.queuedSessionIDs[1:]
	return next, true
}

// SetActive assigns the merge slot to sessionID.
func (q *MergeQueue) SetActive(sessionID string) {
	id := sessionID
	q.activeSessionID = &id
}

// ProgressFromStatusUpdates resolves queue progression for one reduced
// batch of session status updates.
//
// currentActiveStatus is the active session's status after the batch was
// applied (absent if the session no longer exists at all). touchedIDs is
// the set of session ids the batch actually updated. previousStatuses
// maps every touched session id to its status before the batch.
//
// It clears the active merge once that session transitions away from
// Merging, and reports StartNext exactly when the slot was vacated - so
// the caller can pop the FIFO and promote the next session into Merging.
func (q *MergeQueue) ProgressFromStatusUpdates(
	currentActiveStatus *status.Status,
	touchedIDs map[string]struct{},
	previousStatuses map[string]status.Status,
) Progress {
	if q.activeSessionID == nil {
		return NoAction
	}
	activeID := *q.activeSessionID

	if _, touched := touchedIDs[activeID]; !touched {
		if currentActiveStatus == nil {
			q.activeSessionID = nil
			return StartNext
		}
		return NoAction
	}

	previous, hadPrevious := previousStatuses[activeID]
	if !hadPrevious || previous != status.Merging {
		return NoAction
	}

	if currentActiveStatus != nil && *currentActiveStatus == status.Merging {
		return NoAction
	}

	q.activeSessionID = nil
	return StartNext
}
