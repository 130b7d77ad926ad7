package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Submit  key.Binding
	Newline key.Binding
	Copy    key.Binding
	Clear   key.Binding
	AutoRun key.Binding
	Quit    key.Binding

	FocusNext key.Binding
	FocusPrev key.Binding
	LineUp    key.Binding
	LineDown  key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "run"),
		),
		Newline: key.NewBinding(
			key.WithKeys("ctrl+j"),
			key.WithHelp("ctrl+j", "newline"),
		),
		Copy: key.NewBinding(
			key.WithKeys("alt+1", "alt+2", "alt+3", "alt+4", "alt+5", "alt+6", "alt+7", "alt+8", "alt+9"),
			key.WithHelp("alt+1…9", "copy panel"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
		AutoRun: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "toggle auto-run"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
		FocusNext: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next panel"),
		),
		FocusPrev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous panel"),
		),
		LineUp: key.NewBinding(
			key.WithKeys("alt+up"),
			key.WithHelp("alt+↑", "scroll up"),
		),
		LineDown: key.NewBinding(
			key.WithKeys("alt+down"),
			key.WithHelp("alt+↓", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Newline, k.Copy, k.FocusNext, k.PageDown, k.Clear, k.AutoRun, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Newline},
		{k.Copy, k.Clear, k.AutoRun},
		{k.FocusNext, k.FocusPrev, k.LineUp, k.LineDown, k.PageUp, k.PageDown},
		{k.Quit},
	}
}

// copyPanel maps "alt+n" to the 0-based slot n-1.
func copyPanel(keyName string) (int, bool) {
	if len(keyName) != len("alt+1") || keyName[:4] != "alt+" {
		return 0, false
	}
	d := keyName[4]
	if d < '1' || d > '9' {
		return 0, false
	}
	return int(d - '1'), true
}
