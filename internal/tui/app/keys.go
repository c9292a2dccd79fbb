package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the demo.
type KeyMap struct {
	Connect       key.Binding
	Disconnect    key.Binding
	JoinRandom    key.Binding
	Create        key.Binding
	Rejoin        key.Binding
	Leave         key.Binding
	ToggleOpen    key.Binding
	ToggleVisible key.Binding
	SendShapes    key.Binding
	SendGrid      key.Binding
	Up            key.Binding
	Down          key.Binding
	Quit          key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Connect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "disconnect"),
		),
		JoinRandom: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "join random room"),
		),
		Create: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "create room"),
		),
		Rejoin: key.NewBinding(
			key.WithKeys("J"),
			key.WithHelp("J", "rejoin room"),
		),
		Leave: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "leave room"),
		),
		ToggleOpen: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "toggle open"),
		),
		ToggleVisible: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "toggle visible"),
		),
		SendShapes: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "send triangles"),
		),
		SendGrid: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "send grid"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
