package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/meshforge/runtime"
)

const (
	defaultWatchInterval = 200 * time.Millisecond
	progressWidth        = 20
)

// Feed supplies live job statuses to the watch view.
type Feed struct {
	// Statuses is polled once per Interval.
	Statuses func() []runtime.Status
	// Done, when closed, ends the view after a final poll.
	Done     <-chan struct{}
	Interval time.Duration
}

type tickMsg time.Time

// WatchModel is a Bubble Tea model that polls job progress.
type WatchModel struct {
	feed     Feed
	statuses []runtime.Status
	finished bool
	quitting bool
}

// NewWatchModel creates a watch model over feed.
func NewWatchModel(feed Feed) WatchModel {
	if feed.Interval <= 0 {
		feed.Interval = defaultWatchInterval
	}
	m := WatchModel{feed: feed}
	if feed.Statuses != nil {
		m.statuses = feed.Statuses()
	}
	return m
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.feed.Interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		if m.feed.Statuses != nil {
			m.statuses = m.feed.Statuses()
		}
		select {
		case <-m.feed.Done:
			m.finished = true
			return m, tea.Quit
		default:
		}
		return m, m.tick()
	}
	return m, nil
}

// View implements tea.Model.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Jobs"))
	b.WriteString("\n")
	if len(m.statuses) == 0 {
		b.WriteString(MutedStyle.Render("(no jobs)"))
		b.WriteString("\n")
	}
	for _, s := range m.statuses {
		state := string(s.State)
		fmt.Fprintf(&b, "%-36s %s %s %s\n",
			s.ID,
			StateStyle(state).Render(fmt.Sprintf("%-14s", state)),
			progressBar(s.Progress),
			MutedStyle.Render(detail(s)))
	}

	if m.finished {
		b.WriteString(HelpStyle.Render("All jobs finished"))
	} else {
		b.WriteString(HelpStyle.Render("Press q or Ctrl+C to quit"))
	}
	return b.String()
}

func detail(s runtime.Status) string {
	if s.Error != "" {
		return fmt.Sprintf("%s: %s", s.ErrorKind, s.Error)
	}
	return s.Message
}

func progressBar(p float64) string {
	p = min(max(p, 0), 1)
	filled := int(p * progressWidth)
	return SuccessStyle.Render(strings.Repeat("█", filled)) +
		MutedStyle.Render(strings.Repeat("░", progressWidth-filled)) +
		fmt.Sprintf(" %3.0f%%", p*100)
}

// RunWatchTUI runs the live job view. data must be a Feed.
func RunWatchTUI(data any) error {
	feed, ok := data.(Feed)
	if !ok {
		return fmt.Errorf("invalid data type for watch_jobs: %T", data)
	}
	_, err := tea.NewProgram(NewWatchModel(feed)).Run()
	return err
}
