package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap binds every key the session list and transcript views respond to.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	New     key.Binding
	Reply   key.Binding
	Cancel  key.Binding
	Merge   key.Binding
	Delete  key.Binding
	Diff    key.Binding
	Confirm key.Binding
	Escape  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the session list's standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k")),
		Down:    key.NewBinding(key.WithKeys("down", "j")),
		New:     key.NewBinding(key.WithKeys("n")),
		Reply:   key.NewBinding(key.WithKeys("r")),
		Cancel:  key.NewBinding(key.WithKeys("c")),
		Merge:   key.NewBinding(key.WithKeys("m")),
		Delete:  key.NewBinding(key.WithKeys("x")),
		Diff:    key.NewBinding(key.WithKeys("v")),
		Confirm: key.NewBinding(key.WithKeys("enter")),
		Escape:  key.NewBinding(key.WithKeys("esc")),
		Help:    key.NewBinding(key.WithKeys("?")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
	}
}
