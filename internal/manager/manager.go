// Package manager owns the in-memory session list, the live handles backing
// it, and the merge queue, and reduces TurnEvents and status transitions
// into persisted state plus a stream of events for an observer (a TUI, a
// CLI command waiting on completion, a test).
package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentty-run/agentty/internal/agentkind"
	"github.com/agentty-run/agentty/internal/assist"
	"github.com/agentty-run/agentty/internal/channel"
	"github.com/agentty-run/agentty/internal/db"
	"github.com/agentty-run/agentty/internal/git"
	"github.com/agentty-run/agentty/internal/mergequeue"
	"github.com/agentty-run/agentty/internal/session"
	"github.com/agentty-run/agentty/internal/status"
	"github.com/agentty-run/agentty/internal/worker"
)

// WorktreeDirName is the subdirectory, relative to a project's base path,
// holding every session's git worktree.
const WorktreeDirName = "wt"

// refreshState tracks the low-frequency fallback timer used to detect
// whether the in-memory session list has drifted from persistence.
type refreshState struct {
	deadline     time.Time
	rowCount     int64
	updatedAtMax int64
}

const sessionRefreshInterval = 5 * time.Second

// Manager owns everything one running Agentty process needs to drive
// sessions for a single project: the persisted session list's in-memory
// mirror, live handles, the worker pool, the merge queue, and the agent
// channels used to actually run turns.
type Manager struct {
	db           *db.DB
	git          git.GitClient
	pool         *worker.Pool
	channels     map[agentkind.Kind]channel.AgentChannel
	basePath     string
	projectID    int64
	assistPolicy assist.Policy

	events chan AppEvent

	mu               sync.Mutex
	sessions         []*session.Session
	handles          map[string]*session.Handles
	progressMessages map[string]string
	sizes            map[string]session.Size
	codexUsageLimits *session.CodexUsageLimits
	mergeQueue       *mergequeue.MergeQueue
	refresh          refreshState
}

// New opens (creating if necessary) the project row for workingDir, hydrates
// the session list, and returns a Manager ready to accept operations.
// channels supplies one AgentChannel per provider family the process knows
// how to drive.
func New(ctx context.Context, database *db.DB, pool *worker.Pool, workingDir string, gitBranch string, channels map[agentkind.Kind]channel.AgentChannel) (*Manager, error) {
	return NewWithGitClient(ctx, database, pool, workingDir, gitBranch, channels, git.NewGit(workingDir))
}

// NewWithGitClient is New with the GitClient boundary supplied explicitly,
// letting tests substitute a fake instead of driving a real on-disk
// repository.
func NewWithGitClient(ctx context.Context, database *db.DB, pool *worker.Pool, workingDir string, gitBranch string, channels map[agentkind.Kind]channel.AgentChannel, gitClient git.GitClient) (*Manager, error) {
	projectID, err := database.UpsertProject(ctx, workingDir, gitBranch)
	if err != nil {
		return nil, fmt.Errorf("upserting project: %w", err)
	}

	m := &Manager{
		db:               database,
		git:              gitClient,
		pool:             pool,
		channels:         channels,
		basePath:         workingDir,
		projectID:        projectID,
		assistPolicy:     assist.DefaultPolicy(),
		events:           make(chan AppEvent, 256),
		handles:          make(map[string]*session.Handles),
		progressMessages: make(map[string]string),
		sizes:            make(map[string]session.Size),
		mergeQueue:       mergequeue.New(),
	}

	if err := m.hydrate(ctx); err != nil {
		return nil, err
	}

	return m, nil
}

// Events returns the channel AppEvents are published on. A single consumer
// (the TUI render loop, or a test) should drain it; publishing never blocks
// the producer (see events.go).
func (m *Manager) Events() <-chan AppEvent {
	return m.events
}

// WorktreePath returns the filesystem path a session's worktree lives (or
// will live) at.
func (m *Manager) WorktreePath(sessionID string) string {
	return filepath.Join(m.basePath, WorktreeDirName, sessionID)
}

// ShouldShowOnboarding reports whether the session list is empty, mirroring
// the first-run onboarding screen condition.
func (m *Manager) ShouldShowOnboarding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions) == 0
}

// Sessions returns a snapshot of the current session list.
func (m *Manager) Sessions() []session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]session.Session, len(m.sessions))
	for i, s := range m.sessions {
		out[i] = *s
	}
	return out
}

// SessionByID returns a copy of one session's state, if loaded.
func (m *Manager) SessionByID(sessionID string) (session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.ID == sessionID {
			return *s, true
		}
	}
	return session.Session{}, false
}

// HandlesFor returns the live handles for sessionID, creating them in status
// st if this is the first time they have been requested.
func (m *Manager) HandlesFor(sessionID string, st status.Status) *session.Handles {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handles[sessionID]; ok {
		return h
	}
	h := session.NewHandles(st)
	m.handles[sessionID] = h
	return h
}

// SetAssistPolicy overrides the bounded-retry policy runTurnCommand falls
// back to when a turn fails, normally sourced from ~/.agentty/config.toml.
func (m *Manager) SetAssistPolicy(p assist.Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assistPolicy = p
}

// currentAssistPolicy returns the bounded-retry policy under the session
// list's mutex, matching how every other piece of Manager state is read.
func (m *Manager) currentAssistPolicy() assist.Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assistPolicy
}

// ChannelFor resolves the agent channel for a provider kind.
func (m *Manager) ChannelFor(kind agentkind.Kind) (channel.AgentChannel, error) {
	ch, ok := m.channels[kind]
	if !ok {
		return nil, fmt.Errorf("no agent channel configured for %s", kind)
	}
	return ch, nil
}

// hydrate reloads the session list from persistence, preserving no UI
// selection state of its own (callers that render a table own clamping
// their selection to the nearest surviving index).
func (m *Manager) hydrate(ctx context.Context) error {
	rows, err := m.db.LoadSessions(ctx)
	if err != nil {
		return err
	}

	sessions := make([]*session.Session, 0, len(rows))
	for _, row := range rows {
		s, err := m.sessionFromRow(row)
		if err != nil {
			// A row with a value this process doesn't recognize (e.g. a model
			// retired since the row was written) is skipped rather than
			// aborting the whole hydration.
			continue
		}
		sessions = append(sessions, s)
	}

	rowCount, updatedAtMax, err := m.db.LoadSessionsMetadata(ctx)
	if err != nil {
		return err
	}

	refreshed := m.loadCodexUsageLimits(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = sessions
	m.codexUsageLimits = session.MergeCodexUsageLimits(m.codexUsageLimits, refreshed)
	m.refresh = refreshState{
		deadline:     time.Now().Add(sessionRefreshInterval),
		rowCount:     rowCount,
		updatedAtMax: updatedAtMax,
	}
	return nil
}

// CodexUsageLimits returns the last known Codex usage-limit snapshot, or nil
// if one has never been loaded.
func (m *Manager) CodexUsageLimits() *session.CodexUsageLimits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codexUsageLimits
}

// loadCodexUsageLimits best-effort queries the Codex channel for a fresh
// usage-limit snapshot. It returns nil whenever one couldn't be obtained (no
// Codex channel configured, no Codex session currently running, or the
// query itself failed) rather than treating that as fatal: hydrate's merge
// falls back to whatever snapshot was already known.
func (m *Manager) loadCodexUsageLimits(ctx context.Context) *session.CodexUsageLimits {
	ch, ok := m.channels[agentkind.Codex]
	if !ok {
		return nil
	}

	provider, ok := ch.(channel.CodexUsageLimitsProvider)
	if !ok {
		return nil
	}

	limits, err := provider.CodexUsageLimits(ctx)
	if err != nil {
		return nil
	}
	return limits
}

// RefreshIfStale re-hydrates the session list when the low-frequency
// fallback timer has elapsed and persistence reports a row count or
// updated_at high-water mark different from the last hydration, per the
// Session Manager's refresh policy. It always emits RefreshSessions when it
// actually reloads.
func (m *Manager) RefreshIfStale(ctx context.Context) error {
	m.mu.Lock()
	due := time.Now().After(m.refresh.deadline)
	lastRowCount, lastUpdatedAtMax := m.refresh.rowCount, m.refresh.updatedAtMax
	m.mu.Unlock()

	if !due {
		return nil
	}

	rowCount, updatedAtMax, err := m.db.LoadSessionsMetadata(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.refresh.deadline = time.Now().Add(sessionRefreshInterval)
	m.mu.Unlock()

	if rowCount == lastRowCount && updatedAtMax == lastUpdatedAtMax {
		return nil
	}

	if err := m.hydrate(ctx); err != nil {
		return err
	}

	m.publish(AppEvent{Kind: EventRefreshSessions})
	return nil
}

// Refresh force-reloads the session list regardless of the fallback timer,
// used after operator actions (create/delete) that the caller already knows
// changed persistence.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := m.hydrate(ctx); err != nil {
		return err
	}
	m.publish(AppEvent{Kind: EventRefreshSessions})
	return nil
}

func (m *Manager) sessionFromRow(row db.SessionRow) (*session.Session, error) {
	agent, err := agentkind.ParseKind(row.Agent)
	if err != nil {
		return nil, err
	}
	st, err := status.Parse(row.Status)
	if err != nil {
		return nil, err
	}
	permissionMode, err := agentkind.ParsePermissionMode(row.PermissionMode)
	if err != nil {
		return nil, err
	}

	return &session.Session{
		ID:             row.ID,
		Folder:         m.WorktreePath(row.ID),
		BaseBranch:     row.BaseBranch,
		Agent:          agent,
		Model:          agentkind.Model(row.Model),
		PermissionMode: permissionMode,
		Prompt:         row.Prompt,
		Title:          row.Title.String,
		Summary:        row.Summary.String,
		Status:         st,
		Size:           m.sizeFor(row.ID),
		Stats: session.Stats{
			InputTokens:  row.InputTokens,
			OutputTokens: row.OutputTokens,
		},
	}, nil
}

// sizeFor returns the last diff-derived Size computed for sessionID (see
// Diff), defaulting to SizeXS before any diff has been computed, matching
// the zero-changed-lines bucket.
func (m *Manager) sizeFor(sessionID string) session.Size {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sz, ok := m.sizes[sessionID]; ok {
		return sz
	}
	return session.SizeXS
}

// recordDiffSize caches sessionID's diff-derived Size and updates the
// in-memory session list entry directly, so the table reflects it without
// waiting for the next hydrate.
func (m *Manager) recordDiffSize(sessionID string, sz session.Size) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[sessionID] = sz
	for _, s := range m.sessions {
		if s.ID == sessionID {
			s.Size = sz
			break
		}
	}
}
