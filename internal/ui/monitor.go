package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"weave/internal/asyncrt"
)

// monitorModel renders a live view of one Scheduler's table occupancy,
// fed StatsSnapshot values polled off the scheduler's own goroutine by
// watchCmd at a fixed interval.
type monitorModel struct {
	title   string
	snaps   <-chan asyncrt.StatsSnapshot
	spinner spinner.Model
	prog    progress.Model
	last    asyncrt.StatsSnapshot
	width   int
	done    bool
}

type snapMsg asyncrt.StatsSnapshot
type doneMsg struct{}

// NewMonitorModel returns a Bubble Tea model that renders a scheduler's
// StatsSnapshot stream as it arrives on snaps, until snaps is closed.
func NewMonitorModel(title string, snaps <-chan asyncrt.StatsSnapshot) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &monitorModel{
		title:   title,
		snaps:   snaps,
		spinner: sp,
		prog:    prog,
		width:   80,
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForSnap())
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapMsg:
		m.last = asyncrt.StatsSnapshot(msg)
		pct := 0.0
		if m.last.MailboxCap > 0 {
			pct = float64(m.last.MailboxLen) / float64(m.last.MailboxCap)
		}
		cmd := m.prog.SetPercent(pct)
		return m, tea.Batch(cmd, m.listenForSnap())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progModel, cmd := m.prog.Update(msg)
		m.prog = progModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *monitorModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := truncate(m.title, m.width-4)
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	rows := []struct {
		label string
		value int
	}{
		{"thread", int(m.last.ThreadID)},
		{"tasks", m.last.TaskCount},
		{"ready", m.last.ReadyCount},
		{"waiting on fd", m.last.WaitFDCount},
		{"waiting on stream", m.last.WaitStreamCount},
		{"stopped (unreaped)", m.last.Stopped},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "  %-20s %d\n", row.label, row.value)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "  mailbox %d/%d\n", m.last.MailboxLen, m.last.MailboxCap)
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *monitorModel) listenForSnap() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.snaps
		if !ok {
			return doneMsg{}
		}
		return snapMsg(snap)
	}
}

// truncate shortens value to fit width cells, replacing the tail with "..."
// when it must cut. Measured in terminal cell width rather than byte or
// rune count so wide characters in a scheduler/thread label don't blow past
// a narrow terminal.
func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
