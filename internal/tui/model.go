// Package tui is the terminal front-end for a review run. Playback keys live
// in the player window; the terminal owns marking, navigation, and status.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/behaviorlab/framereview/internal/review"
	"github.com/behaviorlab/framereview/internal/session"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	markedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// PlotFunc regenerates the summary plots for the session; nil disables the
// plot key.
type PlotFunc func() error

// plotDoneMsg carries the plot generation outcome back into Update.
type plotDoneMsg struct{ err error }

// Model is the bubbletea model for a review session.
type Model struct {
	ctrl         *review.Controller
	logger       zerolog.Logger
	showIdentity bool
	plot         PlotFunc

	gotoActive bool
	gotoInput  string
	status     string
	lastErr    string
	plotting   bool
}

// New builds the model. The controller must already be started; blind
// sessions pass showIdentity=false so the scorer never sees file names.
func New(logger zerolog.Logger, ctrl *review.Controller, showIdentity bool, plot PlotFunc) Model {
	return Model{
		ctrl:         ctrl,
		logger:       logger.With().Str("component", "tui").Logger(),
		showIdentity: showIdentity,
		plot:         plot,
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case plotDoneMsg:
		m.plotting = false
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		} else {
			m.status = "summary plots written"
		}
		return m, nil
	case tea.KeyMsg:
		if m.gotoActive {
			return m.updateGoto(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status, m.lastErr = "", ""

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "enter":
		done, err := m.ctrl.MarkCurrentFrame()
		return m.afterMark(done, err)

	case "esc", "n":
		done, err := m.ctrl.MarkCurrentNoEvent()
		return m.afterMark(done, err)

	case "ctrl+right", "right":
		m.noteErr(m.ctrl.Advance())
		return m, nil

	case "ctrl+left", "left":
		m.noteErr(m.ctrl.Retreat())
		return m, nil

	case "u":
		m.noteErr(m.ctrl.JumpToNextUnmarked())
		return m, nil

	case "g":
		m.gotoActive = true
		m.gotoInput = ""
		return m, nil

	case "p":
		if m.plot == nil || m.plotting {
			return m, nil
		}
		m.plotting = true
		plot := m.plot
		return m, func() tea.Msg { return plotDoneMsg{err: plot()} }
	}
	return m, nil
}

func (m Model) updateGoto(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.gotoActive = false
		return m, nil
	case "enter":
		m.gotoActive = false
		n, err := strconv.Atoi(m.gotoInput)
		if err != nil {
			m.lastErr = "enter a video number"
			return m, nil
		}
		m.noteErr(m.ctrl.JumpTo(n))
		return m, nil
	case "backspace":
		if len(m.gotoInput) > 0 {
			m.gotoInput = m.gotoInput[:len(m.gotoInput)-1]
		}
		return m, nil
	}
	if s := msg.String(); len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		m.gotoInput += s
	}
	return m, nil
}

// afterMark applies the outcome of a mark-and-advance.
func (m Model) afterMark(done bool, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.lastErr = err.Error()
		return m, nil
	}
	if done {
		m.status = "all videos scored, results merged"
	}
	return m, nil
}

// noteErr records navigation errors for the status line without quitting; a
// load failure is a per-item condition the reviewer navigates around.
func (m *Model) noteErr(err error) {
	if err != nil {
		m.lastErr = err.Error()
	}
}

func (m Model) View() string {
	sess := m.ctrl.Session()
	reviewed, total := sess.Progress()

	var b strings.Builder
	b.WriteString(titleStyle.Render("framereview") + "  " +
		labelStyle.Render("scorer ") + valueStyle.Render(sess.Name()) + "\n\n")

	b.WriteString(labelStyle.Render("video  ") +
		valueStyle.Render(fmt.Sprintf("%d / %d", m.ctrl.CurrentIndex()+1, total)))
	if m.showIdentity {
		b.WriteString("  " + valueStyle.Render(m.ctrl.Current().Identity))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("mark   ") + renderMark(sess.ReadMark(m.ctrl.Current())) + "\n")
	b.WriteString(labelStyle.Render("scored ") +
		valueStyle.Render(fmt.Sprintf("%d / %d", reviewed, total)) + "\n")

	if m.ctrl.Completed() {
		b.WriteString("\n" + doneStyle.Render("session complete, results.csv written") + "\n")
	}
	if m.plotting {
		b.WriteString("\n" + labelStyle.Render("generating plots...") + "\n")
	}
	if m.status != "" {
		b.WriteString("\n" + markedStyle.Render(m.status) + "\n")
	}
	if m.lastErr != "" {
		b.WriteString("\n" + errorStyle.Render(m.lastErr) + "\n")
	}

	if m.gotoActive {
		b.WriteString("\n" + promptStyle.Render("go to video: ") + valueStyle.Render(m.gotoInput+"_") + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(m.helpLine()) + "\n")
	return b.String()
}

func (m Model) helpLine() string {
	keys := []string{
		"enter mark frame",
		"esc no event",
		"←/→ prev/next",
		"u next unscored",
		"g go to",
	}
	if m.plot != nil {
		keys = append(keys, "p plots")
	}
	keys = append(keys, "q quit")
	return strings.Join(keys, " · ")
}

func renderMark(mark session.Mark) string {
	switch mark.State {
	case session.MarkFrame:
		return markedStyle.Render(fmt.Sprintf("frame %d", mark.Frame))
	case session.MarkNoEvent:
		return markedStyle.Render("no event")
	default:
		return labelStyle.Render("unscored")
	}
}
