package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/meshforge/cli/reader"
	"github.com/justapithecus/meshforge/lode"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_jobs":
		content = m.renderStatsJobs()
	case "stats_metrics":
		content = m.renderStatsMetrics()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsJobs() string {
	data, ok := m.data.(*reader.JobStats)
	if !ok {
		return "Invalid data type for stats_jobs"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Job Statistics"))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Total", fmt.Sprintf("%d", data.Total), highlightColor),
		renderStatBox("Completed", fmt.Sprintf("%d", data.Completed), successColor),
		renderStatBox("Failed", fmt.Sprintf("%d", data.Failed), errorColor),
		renderStatBox("Cancelled", fmt.Sprintf("%d", data.Cancelled), mutedColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Mean quality", fmt.Sprintf("%.1f", data.MeanQuality), primaryColor),
		renderStatBox("With warnings", fmt.Sprintf("%d", data.WithWarning), warningColor),
	))
	b.WriteString("\n")
	b.WriteString(renderCounts("Failures by kind", data.ByErrorKind))

	return b.String()
}

func (m StatsModel) renderStatsMetrics() string {
	data, ok := m.data.(lode.MetricsRecord)
	if !ok {
		return "Invalid data type for stats_metrics"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Metrics at " + data.Timestamp))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Submitted", fmt.Sprintf("%d", data.JobsSubmitted), highlightColor),
		renderStatBox("Completed", fmt.Sprintf("%d", data.JobsCompleted), successColor),
		renderStatBox("Failed", fmt.Sprintf("%d", data.JobsFailed), errorColor),
		renderStatBox("Cancelled", fmt.Sprintf("%d", data.JobsCancelled), mutedColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Decim. warnings", fmt.Sprintf("%d", data.DecimationWarnings), warningColor),
		renderStatBox("Fallbacks", fmt.Sprintf("%d", data.DecimationFallbacks), warningColor),
		renderStatBox("LOD warnings", fmt.Sprintf("%d", data.LODWarnings), warningColor),
	))
	b.WriteString("\n")

	failed := make(map[string]int, len(data.FailedByKind))
	for k, v := range data.FailedByKind {
		failed[k] = int(v)
	}
	b.WriteString(renderCounts("Failures by kind", failed))
	fmt.Fprintf(&b, "%s %s / %s / %s\n", LabelStyle.Render("Backends:"),
		ValueStyle.Render(data.Generator), ValueStyle.Render(data.QueueBackend), ValueStyle.Render(data.StorageBackend))

	return b.String()
}

func renderCounts(title string, counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	slices.Sort(names)

	var b strings.Builder
	b.WriteString(LabelStyle.Width(0).Render(title))
	b.WriteString("\n")
	for _, n := range names {
		fmt.Fprintf(&b, "  %s %d\n", LabelStyle.Render(n), counts[n])
	}
	return b.String()
}

func renderStatBox(label, value string, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	p := tea.NewProgram(NewStatsModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders a stats view without a program loop.
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
