// Package session holds Agentty's core domain types: a Session record and
// the handles a running session keeps in memory alongside its persisted
// row.
package session

import (
	"strings"
	"sync"

	"github.com/agentty-run/agentty/internal/agentkind"
	"github.com/agentty-run/agentty/internal/status"
)

// Size buckets a session's diff by how many lines it touched, so the UI
// can show a coarse sense of scale without rendering the full diff.
type Size string

const (
	SizeXS  Size = "XS"
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

// SizeFromDiff buckets a changed-line count into a Size. Bucket edges
// follow the same scale an engineer skimming a PR list would expect:
// anything under a page is XS/S, a full file rewrite lands around L.
func SizeFromDiff(changedLines int) Size {
	switch {
	case changedLines <= 10:
		return SizeXS
	case changedLines <= 30:
		return SizeS
	case changedLines <= 80:
		return SizeM
	case changedLines <= 200:
		return SizeL
	case changedLines <= 500:
		return SizeXL
	default:
		return SizeXXL
	}
}

// SizeFromDiffText buckets a unified diff's text by counting added/removed
// content lines (those starting with "+"/"-", excluding the "+++"/"---"
// file headers) and bucketing the count with SizeFromDiff.
func SizeFromDiffText(diff string) Size {
	changedLines := 0
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, "-"):
			changedLines++
		}
	}
	return SizeFromDiff(changedLines)
}

// CodexUsageLimitWindow is one Codex rate-limit window (the rolling 5-hour
// "primary" window, or the weekly "secondary" one), as reported by the
// Codex app-server's usage/limits RPC.
type CodexUsageLimitWindow struct {
	ResetsAt      *int64
	UsedPercent   uint8
	WindowMinutes *int64
}

// CodexUsageLimits is a snapshot of Codex's rate-limit windows.
type CodexUsageLimits struct {
	Primary   *CodexUsageLimitWindow
	Secondary *CodexUsageLimitWindow
}

// MergeCodexUsageLimits folds a freshly refreshed usage-limit snapshot onto
// the previous one. A refresh can fail transiently (no Codex session
// currently running, an app-server timeout), in which case refreshed is
// nil and the previous snapshot is kept so usage bars don't disappear
// between replies.
func MergeCodexUsageLimits(previous, refreshed *CodexUsageLimits) *CodexUsageLimits {
	if refreshed != nil {
		return refreshed
	}
	return previous
}

// Stats tracks cumulative token usage for a session across every turn.
type Stats struct {
	InputTokens  int64
	OutputTokens int64
}

// Session is one agent session: a prompt executed against a git worktree
// by a particular agent, tracked through the status state machine.
type Session struct {
	ID             string
	ProjectName    string
	Folder         string
	BaseBranch     string
	Agent          agentkind.Kind
	Model          agentkind.Model
	PermissionMode agentkind.PermissionMode
	Prompt         string
	Title          string
	Summary        string
	Status         status.Status
	Size           Size
	Stats          Stats
}

// DisplayTitle returns Title, falling back to a placeholder before the
// agent has produced one.
func (s Session) DisplayTitle() string {
	if s.Title == "" {
		return "No title"
	}
	return s.Title
}

// Handles are the in-memory, concurrently-accessed pieces of a running
// session that don't belong in the database: the live output transcript,
// the child process id (for cancellation signals), and a fast-access copy
// of the current status used by code that can't await a database round
// trip.
type Handles struct {
	mu       sync.Mutex
	output   string
	status   status.Status
	childPid *int
}

// NewHandles returns Handles initialized to st with an empty transcript.
func NewHandles(st status.Status) *Handles {
	return &Handles{status: st}
}

// AppendOutput appends text to the live transcript buffer.
func (h *Handles) AppendOutput(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.output += text
}

// Output returns a snapshot of the live transcript.
func (h *Handles) Output() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.output
}

// SetStatus updates the fast-access status copy.
func (h *Handles) SetStatus(st status.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = st
}

// Status returns the fast-access status copy.
func (h *Handles) Status() status.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// SetChildPid records the currently running child process id, or clears
// it (nil) once the process has exited.
func (h *Handles) SetChildPid(pid *int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.childPid = pid
}

// ChildPid returns the currently running child process id, if any.
func (h *Handles) ChildPid() *int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.childPid
}
