package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the console.
type keyMap struct {
	send    key.Binding
	history key.Binding
	up      key.Binding
	down    key.Binding
	rerun   key.Binding
	back    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		send:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		history: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "history")),
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		rerun:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run again")),
		back:    key.NewBinding(key.WithKeys("esc", "tab"), key.WithHelp("esc", "back")),
		quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.send, k.history, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.send, k.history},
		{k.up, k.down, k.rerun, k.back},
		{k.quit},
	}
}
