package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/sdlink/metrics"
)

// SummaryModel shows a session metrics snapshot.
type SummaryModel struct {
	snap     metrics.Snapshot
	quitting bool
}

// NewSummaryModel creates a summary view for snap.
func NewSummaryModel(snap metrics.Snapshot) SummaryModel {
	return SummaryModel{snap: snap}
}

// Init implements tea.Model.
func (m SummaryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SummaryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m SummaryModel) View() string {
	if m.quitting {
		return ""
	}
	s := m.snap

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session " + s.SessionID))
	if s.Device != "" {
		b.WriteString(" " + PathStyle.Render(s.Device))
	}
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Completed", s.TransfersCompleted),
		statBox("Failed", s.TransfersFailed),
		statBox("Expired", s.TransfersExpired),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Envelopes", s.EnvelopesReceived),
		statBox("Duplicates", s.DuplicateChunks),
		statBox("Malformed", s.EnvelopesMalformed),
	))
	b.WriteString("\n")

	var detail strings.Builder
	row := func(label string, v any) {
		detail.WriteString(fmt.Sprintf("%-22s %v\n", label, v))
	}
	row("bytes reassembled", s.BytesReassembled)
	row("decode errors", s.DecodeErrors)
	row("noise lines", s.NoiseLines)
	row("superseded", s.TransfersSuperseded)
	row("store writes ok/fail", fmt.Sprintf("%d/%d", s.StoreWriteSuccess, s.StoreWriteFailure))
	row("publishes ok/fail", fmt.Sprintf("%d/%d", s.AdapterPublishSuccess, s.AdapterPublishFailure))

	kinds := make([]string, 0, len(s.CompletedByType))
	for t := range s.CompletedByType {
		kinds = append(kinds, t)
	}
	sort.Strings(kinds)
	for _, t := range kinds {
		row("completed "+t, s.CompletedByType[t])
	}
	b.WriteString(BoxStyle.Render(strings.TrimRight(detail.String(), "\n")))
	b.WriteString("\n")
	b.WriteString(PathStyle.Render("Press q or Ctrl+C to quit"))
	return b.String()
}

func statBox(label string, value int64) string {
	return StatBoxStyle.Render(
		StatValueStyle.Render(fmt.Sprintf("%d", value)) + "\n" + StatLabelStyle.Render(label),
	)
}
