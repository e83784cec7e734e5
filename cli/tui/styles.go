// Package tui provides Bubble Tea views for the sdlink CLI.
//
// TUI mode is opt-in (--tui) and shows the same data the plain renderers
// print: the file tree browser for listings and a summary panel for
// session metrics.
package tui

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette so the views look the same on basic serial consoles.
var (
	accent = lipgloss.Color("99")
	good   = lipgloss.Color("42")
	bad    = lipgloss.Color("203")
	dim    = lipgloss.Color("245")
	dirFg  = lipgloss.Color("75")
)

var base = lipgloss.NewStyle()

var (
	TitleStyle  = base.Bold(true).Foreground(accent)
	PathStyle   = base.Foreground(dim)
	DirStyle    = base.Bold(true).Foreground(dirFg)
	FileStyle   = base
	SizeStyle   = base.Foreground(dim).Width(10).Align(lipgloss.Right)
	CursorStyle = base.Foreground(lipgloss.Color("231")).Background(accent)
	StatusStyle = base.Foreground(good)
	ErrorStyle  = base.Foreground(bad)

	// Summary panel.
	BoxStyle       = base.Border(lipgloss.RoundedBorder()).BorderForeground(dim).Padding(0, 1)
	StatBoxStyle   = base.Border(lipgloss.RoundedBorder()).BorderForeground(dirFg).Padding(0, 2).Width(20).Align(lipgloss.Center)
	StatLabelStyle = base.Foreground(dim).Align(lipgloss.Center)
	StatValueStyle = base.Bold(true).Align(lipgloss.Center)
)
