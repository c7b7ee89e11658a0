// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-overlay/internal/generation"
	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/mode"
	"github.com/jeranaias/rigrun-overlay/internal/timeline"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.drag != nil {
			m.drag.SetScreen(host.Size{Width: msg.Width * host.CellWidth, Height: msg.Height * host.CellHeight})
			m.win.Moved()
		}
		m.refresh()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case noticeMsg:
		m.setNotice(msg.text, msg.isErr)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

// fail shows err as an error notice and reports whether there was one.
func (m *Model) fail(err error) bool {
	if err == nil {
		return false
	}
	m.setNotice(describeError(err), true)
	return true
}

// describeError turns window errors into short user-facing text.
func describeError(err error) string {
	var verr *generation.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, generation.ErrBusy), errors.Is(err, timeline.ErrBusy):
		return "Still answering. C-x stops it."
	case errors.Is(err, generation.ErrContinueNotSupported):
		return "This backend cannot continue a stopped answer."
	case errors.Is(err, generation.ErrNothingToContinue):
		return "Nothing to continue."
	case errors.Is(err, timeline.ErrNothingToUndo):
		return "Nothing to undo."
	case errors.Is(err, timeline.ErrNotAgent):
		return "Only answers can be regenerated."
	case errors.Is(err, timeline.ErrNoOriginalPrompt):
		return "The question for this answer is gone."
	}
	return err.Error()
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	m.setNotice("", false)
	if m.searching {
		return m.handleSearchKey(msg)
	}

	var cmd tea.Cmd
	switch {
	case key.Matches(msg, m.keys.Submit):
		cmd = m.submit()

	case key.Matches(msg, m.keys.Cycle):
		m.win.Cycle()
		if m.win.Mode() == mode.Mini {
			m.composer.Blur()
		}

	case key.Matches(msg, m.keys.Escape):
		m.win.Escape()
		m.composer.Blur()

	case key.Matches(msg, m.keys.Stop):
		if !m.win.Stop() {
			m.setNotice("Nothing to stop.", false)
		}

	case key.Matches(msg, m.keys.Continue):
		m.fail(m.win.Continue())

	case key.Matches(msg, m.keys.Undo):
		m.fail(m.win.Undo())

	case key.Matches(msg, m.keys.Search):
		if m.view.Mode != mode.Card {
			break
		}
		m.searching = true
		m.composer.Blur()
		m.search.SetValue("")
		cmd = m.search.Focus()

	case key.Matches(msg, m.keys.SelectPrev):
		m.moveSelection(-1)

	case key.Matches(msg, m.keys.SelectNext):
		m.moveSelection(1)

	case key.Matches(msg, m.keys.Copy):
		if i := m.target(timeline.KindAgent); i >= 0 {
			if !m.fail(m.win.Copy(i)) {
				m.setNotice("Copied.", false)
			}
		}

	case key.Matches(msg, m.keys.Regenerate):
		if i := m.target(timeline.KindAgent); i >= 0 {
			m.fail(m.win.Regenerate(i))
		}

	case key.Matches(msg, m.keys.Edit), key.Matches(msg, m.keys.Fork):
		if i := m.target(timeline.KindUser); i >= 0 {
			if !m.fail(m.win.Edit(i, key.Matches(msg, m.keys.Fork))) {
				m.composer.SetValue(m.win.View().ComposerText)
				cmd = m.composer.Focus()
			}
		}

	case key.Matches(msg, m.keys.Delete):
		i := m.selected
		if i < 0 {
			i = len(m.view.Timeline) - 1
		}
		if i >= 0 && !m.fail(m.win.Delete(i)) {
			m.setNotice("Deleted. C-z to undo.", false)
		}

	case key.Matches(msg, m.keys.Attach):
		cmd = m.attach()

	case key.Matches(msg, m.keys.DismissHint):
		m.fail(m.win.DismissHint())

	case key.Matches(msg, m.keys.DragUp):
		m.dragBy(0, -dragStep)
	case key.Matches(msg, m.keys.DragDown):
		m.dragBy(0, dragStep)
	case key.Matches(msg, m.keys.DragLeft):
		m.dragBy(-dragStep, 0)
	case key.Matches(msg, m.keys.DragRight):
		m.dragBy(dragStep, 0)

	default:
		cmd = m.typeInComposer(msg)
	}

	m.refresh()
	return m, cmd
}

// typeInComposer forwards a key to the composer, expanding a Mini window
// and focusing the composer first.
func (m *Model) typeInComposer(msg tea.KeyMsg) tea.Cmd {
	var cmds []tea.Cmd
	if !m.composer.Focused() {
		if msg.Type != tea.KeyRunes && msg.Type != tea.KeySpace {
			return nil
		}
		if m.view.Mode == mode.Mini {
			m.win.Expand()
		}
		m.win.FocusComposer()
		cmds = append(cmds, m.composer.Focus())
	}

	before := m.composer.Value()
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	cmds = append(cmds, cmd)
	if after := m.composer.Value(); after != before {
		m.win.SetComposerText(after, false)
	}
	return tea.Batch(cmds...)
}

// submit sends the composer text, or runs it as a slash command.
func (m *Model) submit() tea.Cmd {
	text := m.composer.Value()
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "/") {
		cmd := m.runSlash(trimmed)
		m.resetComposer()
		return cmd
	}
	if m.fail(m.win.Submit(text)) {
		return nil
	}
	m.selected = -1
	m.resetComposer()
	return nil
}

func (m *Model) resetComposer() {
	m.composer.Reset()
	m.win.SetComposerText("", false)
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.searching = false
		m.search.Blur()
		m.win.Search("")
	case key.Matches(msg, m.keys.NextMatch):
		m.win.NextMatch()
	case key.Matches(msg, m.keys.PrevMatch):
		m.win.PrevMatch()
	default:
		before := m.search.Value()
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		if q := m.search.Value(); q != before {
			if _, ok := m.win.Search(q); !ok && q != "" {
				m.setNotice("No matches.", false)
			}
		}
		m.refresh()
		return m, cmd
	}
	m.refresh()
	return m, nil
}

// =============================================================================
// SELECTION
// =============================================================================

// moveSelection steps the selected entry and reports it as hovered.
func (m *Model) moveSelection(delta int) {
	n := len(m.view.Timeline)
	if n == 0 {
		return
	}
	switch {
	case m.selected < 0 && delta < 0:
		m.selected = n - 1
	case m.selected < 0:
		m.selected = 0
	default:
		m.selected += delta
	}
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected >= n {
		m.selected = n - 1
	}
	m.win.SetHovered(m.view.Timeline[m.selected].ID)
}

// target is the selected entry when it has kind k, else the newest entry of
// kind k. It returns -1 when there is none.
func (m *Model) target(k timeline.Kind) int {
	entries := m.view.Timeline
	if m.selected >= 0 && m.selected < len(entries) && entries[m.selected].Kind == k {
		return m.selected
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == k {
			return i
		}
	}
	m.setNotice("Nothing selected.", false)
	return -1
}

// dragBy moves the virtual window and lets the overlay re-clamp it.
func (m *Model) dragBy(dx, dy int) {
	if m.drag == nil {
		m.setNotice("This window cannot be moved.", false)
		return
	}
	m.drag.Move(dx, dy)
	m.win.Moved()
}
