package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scribe/notify"
)

// TUI message types
type ProgressMsg struct{ Done, Total int }
type MemoryMsg struct{ UsagePct float64 }
type DoneMsg struct{ Outcome notify.Outcome }
type FailedMsg struct{ Err error }
type tickMsg time.Time

var (
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	spinFrames  = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

type tuiModel struct {
	frame     int
	started   time.Time
	done      int
	total     int
	memPct    float64
	memSeen   time.Time
	lastText  string
	lastErr   string
	width     int
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case ProgressMsg:
		m.done = msg.Done
		m.total = msg.Total

	case MemoryMsg:
		m.memPct = msg.UsagePct
		m.memSeen = time.Now()

	case DoneMsg:
		m.lastText = msg.Outcome.Transcript
		m.lastErr = ""

	case FailedMsg:
		m.lastErr = msg.Err.Error()
	}
	return m, nil
}

func (m tuiModel) View() string {
	var b strings.Builder

	spin := spinFrames[m.frame%len(spinFrames)]
	elapsed := time.Since(m.started).Round(time.Second)
	b.WriteString(recStyle.Render(fmt.Sprintf("%s REC %s", spin, elapsed)) + "\n")

	if m.total > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d/%d chunks transcribed", m.done, m.total)) + "\n")
	}

	// memory warnings fade after 10s
	if m.memPct > 0 && time.Since(m.memSeen) < 10*time.Second {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  ⚠ queue memory %.0f%%", m.memPct)) + "\n")
	}

	if m.lastErr != "" {
		b.WriteString(warnStyle.Render("  "+m.lastErr) + "\n")
	} else if m.lastText != "" {
		b.WriteString("\n" + okStyle.Render("✓ done") + "\n")
		wrap := m.width - 2
		if wrap < 20 {
			wrap = 60
		}
		for _, line := range wrapText(m.lastText, wrap) {
			b.WriteString(textStyle.Render(line) + "\n")
		}
	}

	b.WriteString("\n" + dimStyle.Render("ctrl+c to stop"))
	return b.String()
}

// tuiRunner pumps sink events into the bubbletea program and tears it
// down when the session ends.
type tuiRunner struct {
	program *tea.Program
	events  *notify.ChanSink
	quit    chan struct{}
}

func startTUI(events *notify.ChanSink) *tuiRunner {
	p := tea.NewProgram(tuiModel{started: time.Now()})
	r := &tuiRunner{program: p, events: events, quit: make(chan struct{})}

	go func() {
		if _, err := p.Run(); err != nil {
			return
		}
	}()
	go func() {
		for {
			select {
			case e := <-events.C:
				switch e.Kind {
				case "progress":
					p.Send(ProgressMsg{Done: e.Done, Total: e.Total})
				case "memory":
					p.Send(MemoryMsg{UsagePct: e.UsagePct})
				case "done":
					p.Send(DoneMsg{Outcome: e.Outcome})
				case "failed":
					p.Send(FailedMsg{Err: e.Err})
				}
			case <-r.quit:
				return
			}
		}
	}()
	return r
}

func (r *tuiRunner) stop() {
	close(r.quit)
	r.program.Quit()
	r.program.Wait()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
