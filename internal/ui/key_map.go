package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	submit        key.Binding
	clear         key.Binding
	history       key.Binding
	vocals        key.Binding
	accompaniment key.Binding
	both          key.Binding
	playVocals    key.Binding
	playAccomp    key.Binding
	copy          key.Binding
	restart       key.Binding
	dismiss       key.Binding
	back          key.Binding
	quit          key.Binding
	forceQuit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		submit:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "upload")),
		clear:         key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
		history:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "history")),
		vocals:        key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "save vocals")),
		accompaniment: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "save accompaniment")),
		both:          key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "save both")),
		playVocals:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "play vocals")),
		playAccomp:    key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "play accompaniment")),
		copy:          key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy job id")),
		restart:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "process another file")),
		dismiss:       key.NewBinding(key.WithKeys("enter", "esc"), key.WithHelp("enter", "dismiss")),
		back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		forceQuit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.submit, k.clear, k.history},
		{k.vocals, k.accompaniment, k.both},
		{k.playVocals, k.playAccomp, k.copy},
		{k.restart, k.quit},
	}
}
