package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/sdlink/metrics"
	"github.com/pithecene-io/sdlink/types"
)

// RunBrowser opens the tree browser in the alternate screen and blocks
// until the user quits.
func RunBrowser(root *types.FileNode, onSelect SelectFunc) error {
	_, err := tea.NewProgram(NewBrowserModel(root, onSelect), tea.WithAltScreen()).Run()
	return err
}

// RunSummary shows the session summary and blocks until the user quits.
func RunSummary(snap metrics.Snapshot) error {
	_, err := tea.NewProgram(NewSummaryModel(snap)).Run()
	return err
}
