// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled pieces of the overlay.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Mini badge
	Badge         lipgloss.Style
	BadgeThinking lipgloss.Style

	// Bar and Card frames
	BarFrame  lipgloss.Style
	CardFrame lipgloss.Style
	Header    lipgloss.Style
	Brand     lipgloss.Style
	Muted     lipgloss.Style

	// Timeline entries
	User      lipgloss.Style
	Agent     lipgloss.Style
	Thought   lipgloss.Style
	Debug     lipgloss.Style
	Error     lipgloss.Style
	Selected  lipgloss.Style
	Match     lipgloss.Style
	Timing    lipgloss.Style
	KindLabel lipgloss.Style

	// Composer and chrome
	Prompt       lipgloss.Style
	Suggestion   lipgloss.Style
	Attachment   lipgloss.Style
	Notice       lipgloss.Style
	NoticeError  lipgloss.Style
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Online       lipgloss.Style
	Offline      lipgloss.Style
	Hint         lipgloss.Style
}

// NewTheme detects the terminal and builds the theme.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// Plain returns a theme with no colors, for tests and dumb terminals.
func Plain() *Theme {
	t := &Theme{ColorProfile: termenv.Ascii}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Badge = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Cyan).
		Padding(0, 1)

	t.BadgeThinking = t.Badge.Background(Amber)

	t.BarFrame = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 1)

	t.CardFrame = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay)

	t.Brand = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)

	t.User = lipgloss.NewStyle().
		Foreground(UserFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Cyan).
		PaddingLeft(1)

	t.Agent = lipgloss.NewStyle().Foreground(AgentFg)

	t.Thought = lipgloss.NewStyle().
		Foreground(ThoughtFg).
		Italic(true).
		PaddingLeft(2)

	t.Debug = lipgloss.NewStyle().
		Foreground(DebugFg).
		Background(DebugBg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Emerald).
		PaddingLeft(1)

	t.Error = lipgloss.NewStyle().
		Foreground(ErrorFg).
		Background(ErrorBg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Rose).
		PaddingLeft(1)

	t.Selected = lipgloss.NewStyle().Background(SurfaceBright)
	t.Match = lipgloss.NewStyle().Background(MatchBg)
	t.Timing = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.KindLabel = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary)

	t.Prompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.Suggestion = lipgloss.NewStyle().Foreground(TextSecondary).PaddingLeft(2)
	t.Attachment = lipgloss.NewStyle().Foreground(Amber)
	t.Notice = lipgloss.NewStyle().Foreground(Amber)
	t.NoticeError = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)
	t.Online = lipgloss.NewStyle().Foreground(Emerald)
	t.Offline = lipgloss.NewStyle().Foreground(Rose)
	t.Hint = lipgloss.NewStyle().Foreground(Amber).Italic(true)
}
