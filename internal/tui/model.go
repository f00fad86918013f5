// Package tui renders Agentty's session list and per-session transcript as
// an interactive terminal program, driven entirely off the events a
// manager.Manager publishes.
package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentty-run/agentty/internal/agentkind"
	"github.com/agentty-run/agentty/internal/config"
	"github.com/agentty-run/agentty/internal/manager"
	"github.com/agentty-run/agentty/internal/session"
)

const refreshPollInterval = 2 * time.Second

// inputMode selects what the bottom prompt line is currently collecting.
type inputMode int

const (
	modeNone inputMode = iota
	modeNewPrompt
	modeReplyPrompt
)

var agentCycle = []agentkind.Kind{agentkind.Claude, agentkind.Gemini, agentkind.Codex}

// Model is the root bubbletea model for the session list + transcript view.
type Model struct {
	mgr    *manager.Manager
	ctx    context.Context
	cfg    config.Config
	branch string

	width  int
	height int

	keys     KeyMap
	help     help.Model
	showHelp bool

	sessions []session.Session
	selected int

	transcript viewport.Model
	showDiff   bool
	diffText   string

	mode        inputMode
	input       textinput.Model
	agentIndex  int
	replyTarget string

	statusMsg string
	statusErr bool

	done      chan struct{}
	closeOnce sync.Once
}

// New builds the root model for mgr, rooted at branch. cfg is stored on the
// model but does not pick the agent or model of new sessions: those start
// with the agent chosen by Tab cycling (Claude first) and that agent's
// agentkind.DefaultModelFor model.
func New(ctx context.Context, mgr *manager.Manager, cfg config.Config, branch string) *Model {
	ti := textinput.New()
	ti.Placeholder = "describe what the agent should do"
	ti.CharLimit = 4000

	h := help.New()
	h.ShowAll = false

	return &Model{
		mgr:        mgr,
		ctx:        ctx,
		cfg:        cfg,
		branch:     branch,
		keys:       DefaultKeyMap(),
		help:       h,
		transcript: viewport.New(0, 0),
		input:      ti,
		done:       make(chan struct{}),
	}
}

type appEventMsg manager.AppEvent
type refreshTickMsg struct{}
type operationErrMsg struct{ err error }
type sessionCreatedMsg struct{ id string }
type diffLoadedMsg struct{ text string }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listenForEvents(), m.refreshTick(), m.loadSessions())
}

// listenForEvents blocks on the manager's event stream and feeds the
// bubbletea update loop one AppEvent per message, matching the teacher's
// single-listener-goroutine pattern (re-issuing the listen command after
// each delivery rather than draining in a background goroutine).
func (m *Model) listenForEvents() tea.Cmd {
	events := m.mgr.Events()
	done := m.done
	return func() tea.Msg {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			return appEventMsg(ev)
		case <-done:
			return nil
		}
	}
}

func (m *Model) refreshTick() tea.Cmd {
	return tea.Tick(refreshPollInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (m *Model) loadSessions() tea.Cmd {
	return func() tea.Msg {
		_ = m.mgr.RefreshIfStale(m.ctx)
		return nil
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case appEventMsg:
		m.applyEvent(manager.AppEvent(msg))
		m.refreshSelectedTranscript()
		return m, m.listenForEvents()

	case refreshTickMsg:
		return m, tea.Batch(m.loadSessions(), m.refreshTick())

	case operationErrMsg:
		m.statusMsg = msg.err.Error()
		m.statusErr = true
		return m, nil

	case sessionCreatedMsg:
		m.statusMsg = fmt.Sprintf("started session %s", msg.id[:8])
		m.statusErr = false
		return m, nil

	case diffLoadedMsg:
		m.showDiff = true
		m.diffText = msg.text
		m.transcript.SetContent(m.diffText)
		return m, nil
	}

	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.Update(msg)
	return m, cmd
}

// layout recomputes the list and transcript pane sizes from the terminal
// dimensions.
func (m *Model) layout() {
	headerHeight := 2
	footerHeight := 2
	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 4 {
		contentHeight = 4
	}

	transcriptWidth := m.width - listPaneWidth(m.width) - 4
	if transcriptWidth < 10 {
		transcriptWidth = 10
	}

	m.transcript.Width = transcriptWidth
	m.transcript.Height = contentHeight - 2
}

func listPaneWidth(totalWidth int) int {
	w := totalWidth / 3
	if w < 24 {
		w = 24
	}
	if w > 60 {
		w = 60
	}
	return w
}

func (m *Model) selectedSession() (session.Session, bool) {
	if m.selected < 0 || m.selected >= len(m.sessions) {
		return session.Session{}, false
	}
	return m.sessions[m.selected], true
}

// refreshSelectedTranscript re-reads the live transcript for the selected
// session into the viewport, jumping to the bottom only when the view was
// already at the bottom (a live tail) and otherwise leaving the user's scroll
// position alone, mirroring how a log follower behaves.
func (m *Model) refreshSelectedTranscript() {
	if m.showDiff {
		return
	}
	s, ok := m.selectedSession()
	if !ok {
		m.transcript.SetContent("")
		return
	}
	atBottom := m.transcript.AtBottom()
	h := m.mgr.HandlesFor(s.ID, s.Status)
	m.transcript.SetContent(h.Output())
	if atBottom {
		m.transcript.GotoBottom()
	}
}
