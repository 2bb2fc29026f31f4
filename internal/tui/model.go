package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/revise"
	"github.com/slidesmith-dev/slidesmith/internal/store"
)

// Session is what the review screen drives.
type Session interface {
	Revise(ctx context.Context, sessionID string, req revise.Request) (*store.Artifact, error)
	Rollback(ctx context.Context, sessionID string, revision int) (*store.Artifact, error)
	History(ctx context.Context, sessionID string) ([]store.Artifact, error)
}

// Command is one line of user input, parsed.
type Command struct {
	Quit     bool
	Rollback int // revision to restore, -1 for none
	Feedback string
}

// ParseCommand reads a review input line. "quit" and "exit" end the loop,
// "rollback N" restores revision N, and anything else is feedback.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{Rollback: -1}, errors.New("empty input")
	}
	switch strings.ToLower(fields[0]) {
	case "quit", "exit", ":q":
		return Command{Quit: true, Rollback: -1}, nil
	case "rollback":
		if len(fields) != 2 {
			return Command{Rollback: -1}, errors.New("usage: rollback <revision>")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return Command{Rollback: -1}, fmt.Errorf("invalid revision %q", fields[1])
		}
		return Command{Rollback: n}, nil
	}
	return Command{Rollback: -1, Feedback: line}, nil
}

// Model is the review screen: revision history on top, a feedback prompt
// below. One request runs at a time.
type Model struct {
	ctx       context.Context
	session   Session
	sessionID string
	title     string

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	keys     KeyMap

	revisions []store.Artifact
	busy      bool
	status    string
	err       error
	width     int
	height    int
}

// NewModel creates the review screen for one session.
func NewModel(ctx context.Context, s Session, sessionID, title string) Model {
	ti := textinput.New()
	ti.Placeholder = `feedback, "rollback N" or "quit"`
	ti.Prompt = "› "
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = busyText

	return Model{
		ctx:       ctx,
		session:   s,
		sessionID: sessionID,
		title:     title,
		input:     ti,
		spinner:   sp,
		viewport:  viewport.New(80, 16),
		keys:      DefaultKeyMap,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadHistory())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-8, 4)
		m.input.Width = msg.Width - 6
		m.viewport.SetContent(m.renderHistory())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			if m.busy {
				return m, nil
			}
			return m.submit()
		case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDn):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case historyMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.revisions = msg.revisions
			m.viewport.SetContent(m.renderHistory())
			m.viewport.GotoBottom()
		}
		return m, nil

	case resultMsg:
		m.busy = false
		m.err = msg.err
		switch {
		case msg.artifact != nil && msg.artifact.Status == deck.StatusCompiled:
			m.status = fmt.Sprintf("revision %d compiled", msg.artifact.Revision)
		case msg.artifact != nil:
			m.status = fmt.Sprintf("revision %d failed; the latest compiled revision is unchanged", msg.artifact.Revision)
		default:
			m.status = ""
		}
		return m, m.loadHistory()

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	c, err := ParseCommand(m.input.Value())
	if err != nil {
		m.err = err
		return m, nil
	}
	if c.Quit {
		return m, tea.Quit
	}
	m.input.Reset()
	m.busy = true
	m.err = nil

	if c.Rollback >= 0 {
		m.status = fmt.Sprintf("restoring revision %d", c.Rollback)
		return m, tea.Batch(m.spinner.Tick, m.run(func() (*store.Artifact, error) {
			return m.session.Rollback(m.ctx, m.sessionID, c.Rollback)
		}))
	}
	m.status = "revising"
	return m, tea.Batch(m.spinner.Tick, m.run(func() (*store.Artifact, error) {
		return m.session.Revise(m.ctx, m.sessionID, revise.Request{Feedback: c.Feedback})
	}))
}

func (m Model) run(fn func() (*store.Artifact, error)) tea.Cmd {
	return func() tea.Msg {
		art, err := fn()
		return resultMsg{artifact: art, err: err}
	}
}

func (m Model) loadHistory() tea.Cmd {
	return func() tea.Msg {
		revs, err := m.session.History(m.ctx, m.sessionID)
		return historyMsg{revisions: revs, err: err}
	}
}

func (m Model) renderHistory() string {
	if len(m.revisions) == 0 {
		return mutedText.Render("no revisions yet")
	}
	var b strings.Builder
	for _, r := range m.revisions {
		b.WriteString(RevisionLine(r))
		b.WriteString("\n")
	}
	return b.String()
}

// RevisionLine renders one revision for the history list.
func RevisionLine(r store.Artifact) string {
	line := fmt.Sprintf("%s %3d  %-8s  %-8s  attempts %d", StatusIcon(r.Status), r.Revision, r.Status, r.Origin, r.Attempts)
	switch {
	case r.Origin == deck.OriginRollback:
		line += mutedText.Render(fmt.Sprintf("  restores %d", r.BaseRevision))
	case r.Feedback != "":
		line += mutedText.Render("  " + truncate(r.Feedback, 60))
	}
	if r.Status == deck.StatusFailed && r.ErrorKind != "" {
		line += errText.Render("  " + r.ErrorKind)
	}
	return line
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleText.Render("slidesmith review: " + m.title))
	b.WriteString("\n")
	b.WriteString(historyBox.Render(m.viewport.View()))
	b.WriteString("\n")

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " " + m.status)
	case m.err != nil:
		b.WriteString(errText.Render(firstLine(m.err.Error())))
		if diag := deck.Diagnostics(m.err); diag != "" {
			b.WriteString("\n" + mutedText.Render(truncate(firstLine(diag), 100)))
		}
	case m.status != "":
		b.WriteString(okText.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpBarText.Render(m.keys.helpLine()))
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
