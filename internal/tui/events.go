package tui

import "github.com/agentty-run/agentty/internal/manager"

// applyEvent folds one published AppEvent into the model's view of the
// world. Every event that can change what the session list or status line
// should show re-reads the authoritative Sessions() snapshot rather than
// hand-patching local state, so the view can never drift from the manager.
func (m *Model) applyEvent(ev manager.AppEvent) {
	switch ev.Kind {
	case manager.EventRefreshSessions:
		m.reloadSessions()

	case manager.EventStatusChanged:
		m.reloadSessions()

	case manager.EventStatusRejected:
		m.statusMsg = "rejected transition"
		m.statusErr = true

	case manager.EventTurnFailed:
		m.statusMsg = "turn failed: " + ev.Reason
		m.statusErr = true
		m.reloadSessions()

	case manager.EventTurnCompleted:
		m.statusErr = false
		m.reloadSessions()

	case manager.EventMergeStarted:
		m.statusMsg = "merge started: " + ev.SessionID[:minInt(8, len(ev.SessionID))]
		m.statusErr = false
		m.reloadSessions()

	case manager.EventTokensUpdated, manager.EventPidUpdate,
		manager.EventAppendOutput, manager.EventProgressUpdate:
		// Transcript/stats-only; reloadSessions picks up token totals, and
		// refreshSelectedTranscript (called by the caller) handles output.
		m.reloadSessions()
	}
}

func (m *Model) reloadSessions() {
	m.sessions = m.mgr.Sessions()
	if m.selected >= len(m.sessions) {
		m.selected = len(m.sessions) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
