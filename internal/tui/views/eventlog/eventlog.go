// Package eventlog provides the scrollable log of session callbacks shown by
// the demo. Entries carry the player and event code they concern so the
// panel can lay them out in columns.
package eventlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/roomrelay/roomrelay/internal/tui/theme"
)

const maxEntries = 200

// Kind classifies an entry.
type Kind string

const (
	KindConn   Kind = "conn"
	KindRoom   Kind = "room"
	KindMember Kind = "mbr"
	KindMaster Kind = "mstr"
	KindEvent  Kind = "evt"
	KindError  Kind = "err"
)

// Event is the custom event an entry of KindEvent describes.
type Event struct {
	Code    uint8
	Payload string // payload type, e.g. "Array<Triangle>"
}

// Entry is a single event log line. Player is zero when the entry concerns
// no particular room member.
type Entry struct {
	Time    time.Time
	Kind    Kind
	Player  int32
	Event   *Event
	Message string
}

// Note is an entry about the session itself.
func Note(kind Kind, message string) Entry {
	return Entry{Time: time.Now(), Kind: kind, Message: message}
}

// Member is an entry about a room member.
func Member(kind Kind, player int32, message string) Entry {
	return Entry{Time: time.Now(), Kind: kind, Player: player, Message: message}
}

// Received is the entry for a custom event from sender.
func Received(sender int32, code uint8, payload, summary string) Entry {
	return Entry{
		Time:    time.Now(),
		Kind:    KindEvent,
		Player:  sender,
		Event:   &Event{Code: code, Payload: payload},
		Message: summary,
	}
}

// Text is the entry without time or styling.
func (e Entry) Text() string {
	var b strings.Builder
	if e.Player != 0 {
		fmt.Fprintf(&b, "player %d ", e.Player)
	}
	if e.Event != nil {
		fmt.Fprintf(&b, "sent #%d %s: ", e.Event.Code, e.Event.Payload)
	}
	b.WriteString(e.Message)
	return b.String()
}

// Model holds event log state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)

	received int
	errors   int
}

// New creates an empty log.
func New() Model {
	return Model{}
}

// Add appends a session note and caps the buffer.
func (m *Model) Add(kind Kind, message string) {
	m.Append(Note(kind, message))
}

// Append adds entries that were recorded elsewhere, keeping their times.
func (m *Model) Append(entries ...Entry) {
	if len(entries) == 0 {
		return
	}
	for _, e := range entries {
		switch e.Kind {
		case KindEvent:
			m.received++
		case KindError:
			m.errors++
		}
	}
	m.Entries = append(m.Entries, entries...)
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Received returns the number of custom events logged, including entries
// already dropped from the buffer.
func (m Model) Received() int { return m.received }

// Errors returns the number of errors logged.
func (m Model) Errors() int { return m.errors }

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder)
}

var (
	playerStyle = lipgloss.NewStyle().Foreground(theme.ColorMember).Width(4)
	codeStyle   = lipgloss.NewStyle().Foreground(theme.ColorEvent).Width(4)
)

// line renders e in columns: time, kind, player, event code, message.
func (e Entry) line(width int) string {
	player, code := "", ""
	if e.Player != 0 {
		player = fmt.Sprintf("p%d", e.Player)
	}
	msg := e.Message
	if e.Event != nil {
		code = fmt.Sprintf("#%d", e.Event.Code)
		msg = e.Event.Payload + " " + msg
	}
	// time, kind, player and code columns with their separators
	room := width - 27
	if room > 3 && len(msg) > room {
		msg = msg[:room-3] + "..."
	}
	return fmt.Sprintf("%s %s %s %s %s",
		theme.StyleDimmed.Render(e.Time.Format("15:04:05.000")),
		lipgloss.NewStyle().Foreground(theme.KindColor(string(e.Kind))).Width(4).Render(string(e.Kind)),
		playerStyle.Render(player),
		codeStyle.Render(code),
		msg)
}

// View renders the log as a panel of the given size.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visibleLines := max(height-4, 3)

	header := fmt.Sprintf(" EVENTS (%d) ", len(m.Entries))
	if m.received > 0 || m.errors > 0 {
		header += fmt.Sprintf("· %d received · %d errors ", m.received, m.errors)
	}
	title := theme.StyleHeader.Render(header)

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No events yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visibleLines, 0)

	lines := make([]string, 0, end-start+1)
	for _, e := range m.Entries[start:end] {
		lines = append(lines, e.line(innerW))
	}
	if m.Offset > 0 {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset)))
	}
	return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")))
}
