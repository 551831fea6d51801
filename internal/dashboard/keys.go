package dashboard

import "github.com/charmbracelet/bubbles/key"

// keyMap implements help.KeyMap for the help overlay.
type keyMap struct {
	Quit    key.Binding
	Help    key.Binding
	EditURL key.Binding
	Pause   key.Binding
	Retry   key.Binding
	Sort    key.Binding
	Filter  key.Binding
	Up      key.Binding
	Down    key.Binding
	Top     key.Binding
	Bottom  key.Binding
	Toggle  key.Binding
	Cancel  key.Binding
	Confirm key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.EditURL, k.Pause, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.EditURL, k.Pause, k.Retry, k.Toggle, k.Help, k.Quit},
		{k.Sort, k.Filter, k.Up, k.Down, k.Top, k.Bottom},
		{k.Confirm, k.Cancel},
	}
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	EditURL: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "server url")),
	Pause:   key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause")),
	Retry:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry server")),
	Sort:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort processes")),
	Filter:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter processes")),
	Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/up", "process up")),
	Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/dn", "process down")),
	Top:     key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "first process")),
	Bottom:  key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "last process")),
	Toggle:  key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "toggle panel")),
	Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
}
