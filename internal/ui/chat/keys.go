// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the overlay key bindings.
type KeyMap struct {
	Submit      key.Binding
	Newline     key.Binding
	Escape      key.Binding
	Cycle       key.Binding
	Stop        key.Binding
	Continue    key.Binding
	Undo        key.Binding
	Search      key.Binding
	NextMatch   key.Binding
	PrevMatch   key.Binding
	SelectPrev  key.Binding
	SelectNext  key.Binding
	Copy        key.Binding
	Regenerate  key.Binding
	Edit        key.Binding
	Fork        key.Binding
	Delete      key.Binding
	Attach      key.Binding
	DismissHint key.Binding
	DragUp      key.Binding
	DragDown    key.Binding
	DragLeft    key.Binding
	DragRight   key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter"),
			key.WithHelp("Alt+Enter", "new line"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "collapse"),
		),
		Cycle: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "cycle mode"),
		),
		Stop: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "stop"),
		),
		Continue: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "continue"),
		),
		Undo: key.NewBinding(
			key.WithKeys("ctrl+z"),
			key.WithHelp("C-z", "undo delete"),
		),
		Search: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("C-f", "search"),
		),
		NextMatch: key.NewBinding(
			key.WithKeys("enter", "down"),
			key.WithHelp("Enter", "next match"),
		),
		PrevMatch: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("S-Tab", "previous match"),
		),
		SelectPrev: key.NewBinding(
			key.WithKeys("ctrl+up", "ctrl+p"),
			key.WithHelp("C-p", "select previous"),
		),
		SelectNext: key.NewBinding(
			key.WithKeys("ctrl+down"),
			key.WithHelp("C-down", "select next"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy"),
		),
		Regenerate: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "regenerate"),
		),
		Edit: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "edit"),
		),
		Fork: key.NewBinding(
			key.WithKeys("alt+e"),
			key.WithHelp("Alt+e", "edit from here"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "delete"),
		),
		Attach: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "attach screenshot"),
		),
		DismissHint: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "dismiss hint"),
		),
		DragUp:    key.NewBinding(key.WithKeys("alt+up")),
		DragDown:  key.NewBinding(key.WithKeys("alt+down")),
		DragLeft:  key.NewBinding(key.WithKeys("alt+left")),
		DragRight: key.NewBinding(key.WithKeys("alt+right")),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-q", "quit"),
		),
	}
}

// ShortHelp lists the bindings shown in the Card status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Cycle, k.Stop, k.Search, k.Attach, k.Quit}
}
