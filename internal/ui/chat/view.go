// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-overlay/internal/mode"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the window in its current mode.
func (m Model) View() string {
	switch m.view.Mode {
	case mode.Mini:
		return renderBadge(m.theme, m.view, m.spinner.View())
	case mode.Bar:
		return m.viewBar()
	}
	return m.viewCard()
}

// viewBar is a single composer line with the status on the right.
func (m Model) viewBar() string {
	w, _ := m.frameSize()
	inner := w - 4

	status := m.theme.Muted.Render(statusLine(m.view))
	if m.view.IsThinking || m.view.IsStreaming {
		status = m.spinner.View() + " " + status
	}
	input := m.composer.View()
	if room := inner - lipgloss.Width(status) - 1; room > 0 {
		input = lipgloss.NewStyle().Width(room).MaxWidth(room).MaxHeight(1).Render(input)
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, input, " ", status)

	out := m.theme.BarFrame.Width(w - 2).Render(line)
	if n := m.renderNotice(inner); n != "" {
		out = lipgloss.JoinVertical(lipgloss.Left, out, n)
	}
	return out
}

// viewCard is the full conversation view.
func (m Model) viewCard() string {
	w, _ := m.frameSize()
	inner := w - 4
	th := m.theme
	v := m.view

	sections := []string{m.renderHeader(inner)}
	if v.IsThinking || v.IsStreaming {
		sections = append(sections, m.progress.ViewAs(float64(v.Progress)/100))
	}
	sections = append(sections, m.viewport.View())
	for _, extra := range []string{
		renderSuggestions(th, v, inner),
		renderAttachment(th, v),
		renderHint(th, v),
	} {
		if extra != "" {
			sections = append(sections, extra)
		}
	}
	if m.searching {
		sections = append(sections, m.search.View())
	} else {
		sections = append(sections, m.composer.View())
	}
	if n := m.renderNotice(inner); n != "" {
		sections = append(sections, n)
	}
	sections = append(sections, th.StatusBar.Render(renderShortcuts(th, m.keys, inner)))

	return th.CardFrame.Width(w - 2).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// renderHeader shows the brand, role, generation status and connectivity.
func (m Model) renderHeader(width int) string {
	th := m.theme
	v := m.view

	status := statusLine(v)
	if v.IsThinking || v.IsStreaming {
		status = m.spinner.View() + " " + status
	}
	if v.HasMatch {
		status += fmt.Sprintf(" · match %d/%d", v.Match.Ordinal, v.Match.Total)
	}
	parts := []string{
		th.Brand.Render("rigrun"),
		th.Muted.Render(string(v.Role)),
		th.Muted.Render(status),
		renderConnection(th, v),
	}
	if v.Local {
		parts = append(parts, th.Muted.Render("local"))
	}
	return th.Header.Width(width).Render(strings.Join(parts, "  "))
}

// renderNotice shows the last notice, if any.
func (m Model) renderNotice(width int) string {
	if m.notice == "" {
		return ""
	}
	style := m.theme.Notice
	if m.noticeErr {
		style = m.theme.NoticeError
	}
	return style.Width(width).Render(m.notice)
}
