package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/roomrelay/roomrelay/internal/relay"
	"github.com/roomrelay/roomrelay/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	State   string
	UserID  string
	Region  string
	Cluster string
	Counts  relay.Counts
	Width   int
}

// New creates a status bar model.
func New() Model {
	return Model{State: "disconnected"}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	connStr := lipgloss.NewStyle().
		Foreground(theme.StateColor(m.State)).
		Render(theme.StateGlyph(m.State) + " " + m.State)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr
	if m.UserID != "" {
		content += sep + "user " + theme.StyleSelected.Render(m.UserID)
	}
	if m.Region != "" {
		content += sep + theme.StyleDimmed.Render(m.Region+"/"+m.Cluster)
	}
	content += sep + fmt.Sprintf("%d games  %d in game  %d online",
		m.Counts.GamesRunning, m.Counts.PlayersIngame, m.Counts.PlayersOnline)

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
