// Package room renders the lobby room list and the current room.
package room

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roomrelay/roomrelay/internal/session"
	"github.com/roomrelay/roomrelay/internal/tui/theme"
)

// Model is what the panel shows. Room is nil outside a room.
type Model struct {
	Rooms  []string
	Room   *session.RoomState
	Master bool
	Width  int
}

func (m Model) View() string {
	width := m.Width - 4
	if width < 36 {
		width = 36
	}
	panel := theme.StyleBorder.Width(width).Padding(0, 1)
	if m.Room == nil {
		return panel.Render(m.lobby())
	}
	return panel.Render(m.room())
}

func (m Model) lobby() string {
	lines := []string{theme.StyleHeader.Render(fmt.Sprintf(" LOBBY (%d rooms) ", len(m.Rooms)))}
	if len(m.Rooms) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No rooms"))
	}
	for _, name := range m.Rooms {
		lines = append(lines, "  "+name)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) room() string {
	r := m.Room
	role := theme.StyleDimmed.Render("member")
	if m.Master {
		role = lipgloss.NewStyle().Foreground(theme.ColorMaster).Render("master")
	}

	lines := []string{
		theme.StyleHeader.Render(" ROOM " + r.Name + " "),
		fmt.Sprintf("  players %d/%d   open %s   visible %s   %s",
			r.ActiveCount(), r.MaxPlayers, theme.Flag(r.IsOpen), theme.Flag(r.IsVisible), role),
	}

	var members []string
	for _, mb := range r.Members {
		label := fmt.Sprintf("#%d", mb.ID)
		switch {
		case mb.ID == r.LocalID:
			label = theme.StyleSelected.Render(label + " (you)")
		case mb.Inactive:
			label = theme.StyleDimmed.Render(label + " (away)")
		}
		if mb.ID == r.MasterID {
			label += lipgloss.NewStyle().Foreground(theme.ColorMaster).Render("*")
		}
		members = append(members, label)
	}
	lines = append(lines, "  members "+strings.Join(members, "  "))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
