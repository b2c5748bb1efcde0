package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stockpicks/internal/display"
	"stockpicks/internal/domain"
	"stockpicks/internal/selection"
	"stockpicks/internal/snapshot"
)

// Styles.
var (
	topPickStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	lossStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	fileStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	fileActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	summaryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).PaddingLeft(4)
	errorStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1"))
)

// backend is the session the TUI drives: a local controller or a remote
// stream.
type backend interface {
	SetDate(date string) error
	SetFile(file string) error
}

// Messages.
type viewMsg selection.View
type errMsg struct{ err error }
type closedMsg struct{}

// listen waits for the next message from the session feed.
func listen(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return msg
	}
}

type model struct {
	be     backend
	feed   <-chan tea.Msg
	today  func() string
	source string

	view    selection.View
	loaded  bool
	errText string

	viewport      viewport.Model
	ready         bool
	width, height int
	showSummary   bool
}

func initialModel(be backend, feed <-chan tea.Msg, today func() string, source string) model {
	return model{be: be, feed: feed, today: today, source: source}
}

func (m model) Init() tea.Cmd {
	return listen(m.feed)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "left", "right":
			date := m.view.Date
			if date == "" {
				date = m.today()
			}
			delta := -1
			if msg.String() == "right" {
				delta = 1
			}
			m.setErr(m.be.SetDate(snapshot.ShiftDate(date, delta)))
			return m, nil
		case "t":
			m.setErr(m.be.SetDate(m.today()))
			return m, nil
		case "tab", "shift+tab":
			if next, ok := m.cycleFile(msg.String() == "tab"); ok {
				m.setErr(m.be.SetFile(next))
			}
			return m, nil
		case "s":
			m.showSummary = !m.showSummary
			m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 3 // header, file bar, footer
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case viewMsg:
		m.view = selection.View(msg)
		m.loaded = true
		m.errText = ""
		m.refresh()
		m.viewport.GotoTop()
		return m, listen(m.feed)

	case errMsg:
		m.setErr(msg.err)
		return m, listen(m.feed)

	case closedMsg:
		m.errText = "session closed"
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) setErr(err error) {
	if err == nil {
		return
	}
	m.errText = err.Error()
}

func (m *model) refresh() {
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

// cycleFile returns the candidate after (or before) the current file.
func (m model) cycleFile(forward bool) (string, bool) {
	n := len(m.view.Candidates)
	if n < 2 {
		return "", false
	}
	cur := 0
	for i, c := range m.view.Candidates {
		if c.Name == m.view.File {
			cur = i
			break
		}
	}
	if forward {
		cur = (cur + 1) % n
	} else {
		cur = (cur - 1 + n) % n
	}
	return m.view.Candidates[cur].Name, true
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	date := m.view.Date
	if date == "" {
		date = "-"
	}
	headerText := fmt.Sprintf(" Stock Picks  %s    picks: %s    catalog: %s    %s ",
		date,
		display.FormatInt(len(m.view.Stocks)),
		display.FormatInt(m.view.CatalogSize),
		m.source,
	)
	headerBar := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("4")).
		Render(padOrTrunc(headerText, m.width))

	var fileBar string
	if m.errText != "" {
		fileBar = errorStyle.Render(padOrTrunc(" "+m.errText, m.width))
	} else {
		fileBar = m.renderFiles()
	}

	pct := m.viewport.ScrollPercent() * 100
	footerLeft := " q quit  left/right date  t today  tab file  s summaries  pgup/dn scroll"
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := m.width - len(footerLeft) - len(footerRight)
	if gap < 0 {
		gap = 0
	}
	footerBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("8")).
		Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	return headerBar + "\n" + fileBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m model) renderFiles() string {
	if len(m.view.Candidates) == 0 {
		return dimStyle.Render(" no snapshots for this date")
	}
	var b strings.Builder
	b.WriteString(" ")
	for _, c := range m.view.Candidates {
		if c.Name == m.view.File {
			b.WriteString(fileActiveStyle.Render(" " + c.Label + " "))
		} else {
			b.WriteString(fileStyle.Render(" " + c.Label + " "))
		}
		b.WriteString(" ")
	}
	return b.String()
}

func (m model) renderContent() string {
	if !m.loaded {
		return dimStyle.Render("  loading catalog...")
	}
	if len(m.view.Stocks) == 0 {
		if m.view.File == "" {
			return dimStyle.Render("  nothing selected")
		}
		return dimStyle.Render("  no picks in " + m.view.File)
	}

	var b strings.Builder
	for i, s := range m.view.Stocks {
		b.WriteString(rowStyle(s).Render(display.Line(i, s)))
		b.WriteString("\n")
		if m.showSummary && s.Summary != "" {
			b.WriteString(summaryStyle.Render(s.Summary))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func rowStyle(s domain.RankedStock) lipgloss.Style {
	switch {
	case s.IsTopPick:
		return topPickStyle
	case !domain.IsFinite(s.PotentialUpside):
		return dimStyle
	case s.PotentialUpside < 0:
		return lossStyle
	default:
		return lipgloss.NewStyle()
	}
}

func padOrTrunc(s string, w int) string {
	if w <= 0 {
		return s
	}
	if len(s) > w {
		return s[:w]
	}
	return s + strings.Repeat(" ", w-len(s))
}
