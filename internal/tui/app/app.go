package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/votecast/backend/internal/tui/client"
	"github.com/votecast/backend/internal/tui/theme"
)

const (
	optionA = "optionA"
	optionB = "optionB"
	blank   = "blank"

	barWidth = 30
)

// voteSentMsg reports the outcome of a local vote write.
type voteSentMsg struct{ err error }

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	units map[string]client.Unit
	order []string // unit IDs by display position
	seq   uint64

	selectedIdx int

	connected bool
	admin     bool
	status    string
	errText   string
}

// New creates the root model.
func New(ws *client.WSClient) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:     ws,
		ctx:    ctx,
		cancel: cancel,
		keys:   DefaultKeyMap(),
		units:  make(map[string]client.Unit),
		status: "connecting",
	}
}

// Init starts the WebSocket connection.
func (m Model) Init() tea.Cmd {
	return m.ws.Listen(m.ctx)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.seq = 0
		m.status = "connected"
		m.errText = ""
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.admin = false
		m.status = "disconnected, reconnecting"
		return m, m.ws.Listen(m.ctx)

	case client.WSVoteUpdateMsg:
		m.applySnapshot(msg)
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSAdminGrantedMsg:
		m.admin = true
		m.errText = ""
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSAdminDeniedMsg:
		m.admin = false
		m.errText = "admin denied: " + msg.Reason
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSVoteRejectedMsg:
		m.errText = fmt.Sprintf("vote rejected (%s) for %s", msg.Payload.Reason, msg.Payload.UnitID)
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSErrorMsg:
		m.errText = "server error: " + msg.Reason
		return m, m.ws.ReadLoop(m.ctx)

	case voteSentMsg:
		if msg.err != nil {
			m.errText = "send failed: " + msg.err.Error()
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) applySnapshot(msg client.WSVoteUpdateMsg) {
	if msg.Seq < m.seq {
		return
	}
	m.seq = msg.Seq

	var selected string
	if m.selectedIdx < len(m.order) {
		selected = m.order[m.selectedIdx]
	}

	m.units = msg.Units
	m.rebuildOrder()

	m.selectedIdx = 0
	for i, id := range m.order {
		if id == selected {
			m.selectedIdx = i
			break
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		if len(m.order) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.order)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.order) > 0 {
			m.selectedIdx = (m.selectedIdx - 1 + len(m.order)) % len(m.order)
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		ws := m.ws
		return m, func() tea.Msg {
			return voteSentMsg{err: ws.RequestVoteData()}
		}

	case key.Matches(msg, m.keys.VoteA):
		return m, m.vote(optionA)

	case key.Matches(msg, m.keys.VoteB):
		return m, m.vote(optionB)

	case key.Matches(msg, m.keys.VoteBlank):
		return m, m.vote(blank)
	}

	return m, nil
}

// vote returns a command submitting option for the selected unit, or nil
// when this client holds no admin rights or nothing is selected.
func (m Model) vote(option string) tea.Cmd {
	if !m.admin || len(m.order) == 0 {
		return nil
	}
	ws := m.ws
	unitID := m.order[m.selectedIdx]
	return func() tea.Msg {
		return voteSentMsg{err: ws.SubmitVote(unitID, option)}
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{m.renderHeader()}
	if len(m.order) == 0 {
		sections = append(sections, theme.StyleDimmed.Render("  No tally data yet"))
	}
	for i, id := range m.order {
		sections = append(sections, m.renderUnit(m.units[id], i == m.selectedIdx))
	}
	if m.errText != "" {
		sections = append(sections, theme.StyleError.Render("  "+m.errText))
	}
	sections = append(sections, m.renderHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := theme.StyleHeader.Render("VOTECAST")
	state := theme.StyleDimmed.Render(fmt.Sprintf("%s  v%d", m.status, m.seq))
	if m.admin {
		state += "  " + theme.StyleAdmin.Render("ADMIN")
	}
	return title + "  " + state
}

func (m Model) renderUnit(u client.Unit, selected bool) string {
	style := theme.StyleBorder
	if selected {
		style = theme.StyleSelectedBorder
	}

	name := u.Name
	if name == "" {
		name = u.ID
	}
	lines := []string{theme.StyleHeader.Render(name)}
	lines = append(lines,
		renderOptionLine(labelOr(u.CandidateA, "Candidate A"), u.Votes.OptionA, share(u.Votes, optionA), optionA),
		renderOptionLine(labelOr(u.CandidateB, "Candidate B"), u.Votes.OptionB, share(u.Votes, optionB), optionB),
		renderOptionLine("Blank", u.Votes.Blank, share(u.Votes, blank), blank),
	)

	total := u.Votes.Total()
	if u.Eligible > 0 {
		pct := float64(total) / float64(u.Eligible)
		turnout := fmt.Sprintf("turnout %d/%d (%.1f%%)", total, u.Eligible, pct*100)
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.TurnoutColor(pct)).Render(turnout))
	} else {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("total %d", total)))
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderOptionLine(label string, count uint64, pct float64, option string) string {
	if len(label) > 20 {
		label = label[:19] + "."
	}
	return fmt.Sprintf("%-20s %s %5d %5.1f%%", label, renderBar(barWidth, pct, option), count, pct)
}

// renderBar draws a width-cell bar filled to pct percent.
func renderBar(width int, pct float64, option string) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(pct / 100 * float64(width)))
	filled = max(0, min(filled, width))
	bar := lipgloss.NewStyle().Foreground(theme.OptionColor(option)).Render(strings.Repeat("█", filled))
	return bar + theme.StyleDimmed.Render(strings.Repeat("░", width-filled))
}

// share returns option's percentage of the unit's votes, rounded to one
// decimal place. A unit with no votes has a zero share for every option.
func share(c client.Counters, option string) float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	var n uint64
	switch option {
	case optionA:
		n = c.OptionA
	case optionB:
		n = c.OptionB
	default:
		n = c.Blank
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

func labelOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func (m Model) renderHelp() string {
	var parts []string
	for _, b := range m.keys.ShortHelp(m.admin) {
		h := b.Help()
		parts = append(parts, h.Key+":"+h.Desc)
	}
	return theme.StyleDimmed.Render("  " + strings.Join(parts, "  "))
}

func (m *Model) rebuildOrder() {
	m.order = make([]string, 0, len(m.units))
	for id := range m.units {
		m.order = append(m.order, id)
	}
	sort.Slice(m.order, func(i, j int) bool {
		ui := m.units[m.order[i]]
		uj := m.units[m.order[j]]
		if ui.Position != uj.Position {
			return ui.Position < uj.Position
		}
		return ui.ID < uj.ID
	})
}
