// Package theme provides the Lip Gloss color palette and reusable styles
// for the roomrelay demo. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection state colors.
var (
	ColorDisconnected = lipgloss.Color("#dc2626")
	ColorConnecting   = lipgloss.Color("#d97706")
	ColorLobby        = lipgloss.Color("#2563eb")
	ColorInRoom       = lipgloss.Color("#16a34a")
)

// Log kind colors.
var (
	ColorEvent  = lipgloss.Color("#06b6d4")
	ColorMember = lipgloss.Color("#7c3aed")
	ColorRoom   = lipgloss.Color("#22c55e")
	ColorMaster = lipgloss.Color("#f59e0b")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StateColor returns the color for a connection state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "disconnected":
		return ColorDisconnected
	case "connecting":
		return ColorConnecting
	case "connected_to_lobby":
		return ColorLobby
	case "joining_or_in_room":
		return ColorInRoom
	default:
		return ColorDefault
	}
}

// StateGlyph returns a Unicode glyph representing a connection state.
func StateGlyph(state string) string {
	switch state {
	case "disconnected":
		return "○"
	case "connecting":
		return "◌"
	case "connected_to_lobby":
		return "●"
	case "joining_or_in_room":
		return "◎"
	default:
		return "·"
	}
}

// KindColor returns the color for an event log kind.
func KindColor(kind string) lipgloss.Color {
	switch kind {
	case "conn":
		return ColorLobby
	case "room":
		return ColorRoom
	case "mbr":
		return ColorMember
	case "mstr":
		return ColorMaster
	case "evt":
		return ColorEvent
	case "err":
		return ColorDanger
	default:
		return ColorDimmed
	}
}

// Flag renders a boolean room property as a colored yes/no.
func Flag(on bool) string {
	if on {
		return lipgloss.NewStyle().Foreground(ColorHealthy).Render("yes")
	}
	return lipgloss.NewStyle().Foreground(ColorDanger).Render("no")
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)
)
