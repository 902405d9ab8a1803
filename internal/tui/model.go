// Package tui provides a terminal user interface for mirror runs using Bubbletea.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kilimcininkoroglu/stickermirror/internal/download"
	"github.com/kilimcininkoroglu/stickermirror/internal/ui"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	highlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// SnapshotMsg carries the tracker state after a completed task
type SnapshotMsg download.Snapshot

// DoneMsg is sent once every task has completed
type DoneMsg struct {
	Snapshot download.Snapshot
}

// Model is the Bubbletea model for a mirror run
type Model struct {
	Snapshot download.Snapshot
	Done     bool
	Started  time.Time
	Elapsed  time.Duration

	progress progress.Model
	spinner  spinner.Model
	width    int
	quitting bool
}

// NewModel creates a model for a pool of the given size
func NewModel(workers int) Model {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return Model{
		Snapshot: download.Snapshot{Workers: workers},
		Started:  time.Now(),
		progress: p,
		spinner:  s,
		width:    80,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		// Hides the display only; downloads keep running.
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(msg.Width-10, 80)

	case spinner.TickMsg:
		if m.Done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SnapshotMsg:
		m.Snapshot = download.Snapshot(msg)
		m.Elapsed = time.Since(m.Started)
		return m, nil

	case DoneMsg:
		m.Snapshot = msg.Snapshot
		m.Done = true
		m.Elapsed = time.Since(m.Started)
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Sticker Mirror"))
	b.WriteString("\n")

	b.WriteString(m.renderProgress())
	b.WriteString("\n\n")

	b.WriteString(m.renderCounts())
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus())

	if !m.Done {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("q: hide progress"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderProgress() string {
	s := m.Snapshot

	var b strings.Builder
	b.WriteString(m.progress.ViewAs(s.Percent / 100))
	b.WriteString("  ")
	b.WriteString(highlightStyle.Render(fmt.Sprintf("%.1f%%", s.Percent)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Progress: %d/%d", s.Completed, s.Total))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  │  Workers: %d", s.Workers)))
	if s.Label != "" {
		b.WriteString(dimStyle.Render("  │  " + ui.TruncateLabel(s.Label)))
	}
	return b.String()
}

func (m Model) renderCounts() string {
	s := m.Snapshot

	parts := []string{
		successStyle.Render(fmt.Sprintf("fetched %d", s.Fetched)),
		fmt.Sprintf("skipped %d", s.Skipped),
	}
	if s.Failed > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("failed %d", s.Failed)))
	} else {
		parts = append(parts, "failed 0")
	}
	parts = append(parts, ui.FormatBytes(s.Bytes))
	if m.Elapsed > 0 {
		parts = append(parts, dimStyle.Render("Elapsed: "+ui.FormatDuration(m.Elapsed)))
	}

	return strings.Join(parts, "  │  ")
}

func (m Model) renderStatus() string {
	switch {
	case m.Done && m.Snapshot.Failed > 0:
		return warningStyle.Render(fmt.Sprintf("✓ Mirror complete, %d failed", m.Snapshot.Failed))
	case m.Done:
		return successStyle.Render("✓ Mirror complete")
	default:
		return m.spinner.View() + " Mirroring..."
	}
}
