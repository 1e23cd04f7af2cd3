package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard key bindings.
type KeyMap struct {
	NextView    key.Binding
	ViewSwap    key.Binding
	ViewNuma    key.Binding
	ViewGPU     key.Binding
	ViewUnified key.Binding

	UnitsKB key.Binding
	UnitsMB key.Binding
	UnitsGB key.Binding

	Sort      key.Binding
	Aggregate key.Binding

	Faster  key.Binding // Shorten the refresh interval.
	Slower  key.Binding // Lengthen the refresh interval.
	Refresh key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	NextView: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "next view"),
	),
	ViewSwap: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "swap"),
	),
	ViewNuma: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "numa"),
	),
	ViewGPU: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "gpu"),
	),
	ViewUnified: key.NewBinding(
		key.WithKeys("4"),
		key.WithHelp("4", "unified"),
	),
	UnitsKB: key.NewBinding(
		key.WithKeys("k"),
		key.WithHelp("k", "KB"),
	),
	UnitsMB: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "MB"),
	),
	UnitsGB: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "GB"),
	),
	Sort: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "sort"),
	),
	Aggregate: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "aggregate"),
	),
	Faster: key.NewBinding(
		key.WithKeys("left", "-"),
		key.WithHelp("←/-", "faster"),
	),
	Slower: key.NewBinding(
		key.WithKeys("right", "+"),
		key.WithHelp("→/+", "slower"),
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

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextView, k.UnitsKB, k.UnitsMB, k.UnitsGB, k.Sort, k.Aggregate, k.Faster, k.Slower, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextView, k.ViewSwap, k.ViewNuma, k.ViewGPU, k.ViewUnified},
		{k.UnitsKB, k.UnitsMB, k.UnitsGB, k.Sort, k.Aggregate},
		{k.Faster, k.Slower, k.Refresh, k.Quit},
	}
}
