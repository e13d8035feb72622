// Package tui provides read-only Bubble Tea views for the meshforge CLI.
//
// TUI is opt-in (--tui) and renders the same payloads the json, yaml and
// table formats do.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// Run starts the view for viewType.
func Run(viewType string, data any) error {
	switch {
	case !IsTUISupported(viewType):
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	case strings.HasPrefix(viewType, "inspect_"):
		return RunInspectTUI(viewType, data)
	case strings.HasPrefix(viewType, "stats_"):
		return RunStatsTUI(viewType, data)
	default:
		return RunWatchTUI(data)
	}
}

// IsTUISupported reports whether viewType has a TUI view.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews lists every view type with a TUI.
func SupportedTUIViews() []string {
	return []string{
		"inspect_mesh",
		"inspect_lod",
		"inspect_job",
		"stats_jobs",
		"stats_metrics",
		"watch_jobs",
	}
}

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
