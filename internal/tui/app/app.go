// Package app is the demo host loop: a Bubble Tea model that services the
// session on every tick and renders its state.
package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roomrelay/roomrelay/internal/codec"
	"github.com/roomrelay/roomrelay/internal/session"
	"github.com/roomrelay/roomrelay/internal/tui/theme"
	"github.com/roomrelay/roomrelay/internal/tui/views/eventlog"
	"github.com/roomrelay/roomrelay/internal/tui/views/room"
	"github.com/roomrelay/roomrelay/internal/tui/views/status"
)

// Event codes raised by the demo.
const (
	CodeTriangles uint8 = 33
	CodeGrid      uint8 = 34
)

const defaultTick = 16 * time.Millisecond

type (
	tickMsg    time.Time
	connectMsg struct{}
)

// Options configure the demo player.
type Options struct {
	UserName   string
	RoomName   string
	MaxPlayers int
	Tick       time.Duration
}

// Model is the root Bubble Tea model.
type Model struct {
	sess  *session.Session
	inbox *Inbox
	opts  Options

	keys   KeyMap
	width  int
	height int

	statusBar status.Model
	events    eventlog.Model

	lastRoom string
	sent     int
}

// New creates the root model. The session must have been built with
// inbox.Handlers().
func New(sess *session.Session, inbox *Inbox, opts Options) Model {
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = 4
	}
	return Model{
		sess:      sess,
		inbox:     inbox,
		opts:      opts,
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		events:    eventlog.New(),
	}
}

// Init connects and starts the service tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return connectMsg{} },
		m.tick(),
	)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case connectMsg:
		m.do("connect", m.sess.Connect(m.opts.UserName, session.WithDefaultRoom(m.opts.RoomName)))
		return m, nil

	case tickMsg:
		m.service()
		return m, m.tick()
	}

	return m, nil
}

// service runs the session's callbacks and folds their results into the
// model.
func (m *Model) service() {
	m.sess.Service()

	entries, noMatch := m.inbox.drain()
	m.events.Append(entries...)
	if noMatch {
		m.do("create room", m.sess.CreateRoom(m.opts.RoomName, m.opts.MaxPlayers))
	}

	if name := m.sess.CurrentRoomName(); name != "" {
		m.lastRoom = name
	}
	m.statusBar.State = m.sess.State().String()
	m.statusBar.UserID = m.sess.UserID()
	m.statusBar.Region = m.sess.Region()
	m.statusBar.Cluster = m.sess.Cluster()
	m.statusBar.Counts = m.sess.Counts()
}

// do logs a rejected request.
func (m *Model) do(what string, err error) {
	if err != nil {
		m.events.Add(eventlog.KindError, fmt.Sprintf("%s: %v", what, err))
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.sess.IsConnected() {
			m.sess.Disconnect()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Connect):
		m.do("connect", m.sess.Connect(m.opts.UserName, session.WithDefaultRoom(m.opts.RoomName)))

	case key.Matches(msg, m.keys.Disconnect):
		m.do("disconnect", m.sess.Disconnect())

	case key.Matches(msg, m.keys.JoinRandom):
		m.do("join random room", m.sess.JoinRandomRoom(m.opts.MaxPlayers))

	case key.Matches(msg, m.keys.Create):
		m.do("create room", m.sess.CreateRoom(m.opts.RoomName, m.opts.MaxPlayers))

	case key.Matches(msg, m.keys.Rejoin):
		name := m.lastRoom
		if name == "" {
			name = m.opts.RoomName
		}
		m.do("rejoin room", m.sess.JoinRoom(name, true))

	case key.Matches(msg, m.keys.Leave):
		m.do("leave room", m.sess.LeaveRoom())

	case key.Matches(msg, m.keys.ToggleOpen):
		m.do("set open", m.sess.SetIsOpenInCurrentRoom(!m.sess.IsOpenInCurrentRoom()))

	case key.Matches(msg, m.keys.ToggleVisible):
		m.do("set visible", m.sess.SetIsVisibleInCurrentRoom(!m.sess.IsVisibleInCurrentRoom()))

	case key.Matches(msg, m.keys.SendShapes):
		m.sent++
		m.do("send triangles", session.RaiseArray(m.sess, CodeTriangles, m.triangles()))

	case key.Matches(msg, m.keys.SendGrid):
		m.sent++
		g, err := m.grid()
		if err == nil {
			err = m.sess.RaiseEvent(CodeGrid, g)
		}
		m.do("send grid", err)

	case key.Matches(msg, m.keys.Up):
		m.events.ScrollUp(1)

	case key.Matches(msg, m.keys.Down):
		m.events.ScrollDown(1)
	}
	return m, nil
}

// triangles is a row of three shapes that moves down with every send.
func (m Model) triangles() []codec.Triangle {
	y := 100 + float64(m.sent)*10
	return []codec.Triangle{
		codec.TriangleAt(codec.Vec2{X: 100, Y: y}, 40),
		codec.TriangleAt(codec.Vec2{X: 160, Y: y}, 40),
		codec.TriangleAt(codec.Vec2{X: 220, Y: y}, 40),
	}
}

func (m Model) grid() (codec.Grid[codec.Vec4], error) {
	n := float64(m.sent)
	return codec.NewGrid([][]codec.Vec4{
		{{X: 1, Y: 2, Z: 3, W: n}, {X: 4, Y: 5, Z: 6, W: n}, {X: 7, Y: 8, Z: 9, W: n}},
		{{X: 10, Y: 11, Z: 12, W: n}, {X: 13, Y: 14, Z: 15, W: n}, {X: 16, Y: 17, Z: 18, W: n}},
	})
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	panel := room.Model{
		Rooms:  m.sess.RoomNameList(),
		Master: m.sess.IsMasterClient(),
		Width:  m.width,
	}
	if r, ok := m.sess.Room(); ok {
		panel.Room = &r
	}

	top := lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), panel.View())
	help := theme.StyleDimmed.Render("  c:connect  r:random  n:create  J:rejoin  l:leave  o/v:open/visible  t/g:send  x:disconnect  q:quit")
	logHeight := m.height - lipgloss.Height(top) - lipgloss.Height(help)

	return lipgloss.JoinVertical(lipgloss.Left, top, m.events.View(m.width, logHeight), help)
}
