package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	VoteA     key.Binding
	VoteB     key.Binding
	VoteBlank key.Binding
	Refresh   key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev unit"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next unit"),
		),
		VoteA: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "vote candidate A"),
		),
		VoteB: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "vote candidate B"),
		),
		VoteBlank: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "blank vote"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp lists the bindings shown in the footer. Vote keys only appear
// for admins.
func (k KeyMap) ShortHelp(admin bool) []key.Binding {
	if admin {
		return []key.Binding{k.Up, k.Down, k.VoteA, k.VoteB, k.VoteBlank, k.Refresh, k.Quit}
	}
	return []key.Binding{k.Up, k.Down, k.Refresh, k.Quit}
}
