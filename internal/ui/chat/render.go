// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/rigrun-overlay/internal/generation"
	"github.com/jeranaias/rigrun-overlay/internal/overlay"
	"github.com/jeranaias/rigrun-overlay/internal/state"
	"github.com/jeranaias/rigrun-overlay/internal/timeline"
	"github.com/jeranaias/rigrun-overlay/internal/ui/styles"
	"github.com/jeranaias/rigrun-overlay/internal/util"
)

// =============================================================================
// TIMELINE
// =============================================================================

// renderTimeline lays out every entry. selected is highlighted; the current
// search match is marked.
func renderTimeline(th *styles.Theme, md *Markdown, entries []timeline.Entry, width, selected int, v overlay.View) string {
	out, _ := layoutTimeline(th, md, entries, width, selected, v)
	return out
}

// layoutTimeline is renderTimeline plus the first line of each entry.
func layoutTimeline(th *styles.Theme, md *Markdown, entries []timeline.Entry, width, selected int, v overlay.View) (string, []int) {
	if len(entries) == 0 {
		return th.Muted.Render("No messages yet."), nil
	}
	blocks := make([]string, 0, len(entries))
	offsets := make([]int, len(entries))
	line := 0
	for i, e := range entries {
		block := renderEntry(th, md, e, width)
		if v.HasMatch && v.Match.EntryID == e.ID {
			block = th.Match.Render(block)
		}
		if i == selected {
			block = th.Selected.Render(block)
		}
		offsets[i] = line
		line += lipgloss.Height(block) + 1
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n"), offsets
}

// renderEntry formats one entry according to its kind.
func renderEntry(th *styles.Theme, md *Markdown, e timeline.Entry, width int) string {
	inner := width - 2
	if inner < 10 {
		inner = 10
	}
	switch e.Kind {
	case timeline.KindUser:
		return th.User.Width(inner).Render(e.Content)

	case timeline.KindAgent:
		var b strings.Builder
		b.WriteString(th.KindLabel.Render(e.Kind.DisplayName()))
		b.WriteString("\n")
		b.WriteString(th.Agent.Render(md.Render(e.Content)))
		if len(e.Facts) > 0 {
			b.WriteString("\n")
			for _, f := range e.Facts {
				b.WriteString(th.Muted.Render("  • " + f))
				b.WriteString("\n")
			}
		}
		if t := renderTiming(e.Timing); t != "" {
			b.WriteString("\n")
			b.WriteString(th.Timing.Render(t))
		}
		return strings.TrimRight(b.String(), "\n")

	case timeline.KindThought:
		label := "Thinking"
		if e.Step != nil {
			label = fmt.Sprintf("Step %d", e.Step.Number)
		}
		if e.Collapsed {
			return th.Thought.Render("▸ " + label)
		}
		return th.Thought.Width(inner).Render("▾ " + label + ": " + e.Content)

	case timeline.KindDebug:
		content := e.Content
		if th.ColorProfile != termenv.Ascii {
			content = highlightCommand(content)
		}
		return th.Debug.Width(inner).Render(content)

	case timeline.KindError:
		return th.Error.Width(inner).Render(e.Content)
	}
	return e.Content
}

// renderTiming summarizes how an answer was produced.
func renderTiming(t *timeline.Timing) string {
	if t == nil {
		return ""
	}
	var parts []string
	if t.Cached {
		parts = append(parts, "cached")
	} else if t.TTFTMs > 0 {
		parts = append(parts, fmt.Sprintf("first token %dms", t.TTFTMs))
	}
	if t.TotalMs > 0 {
		parts = append(parts, fmt.Sprintf("total %dms", t.TotalMs))
	}
	if t.ExecutionMs > 0 {
		parts = append(parts, fmt.Sprintf("backend %dms", t.ExecutionMs))
	}
	return strings.Join(parts, " · ")
}

// =============================================================================
// CHROME
// =============================================================================

// renderBadge is the Mini window: a single pill.
func renderBadge(th *styles.Theme, v overlay.View, spin string) string {
	if v.IsThinking || v.IsStreaming {
		return th.BadgeThinking.Render(spin + " rigrun")
	}
	label := "● rigrun"
	if n := len(v.Timeline); n > 0 {
		label = fmt.Sprintf("● rigrun (%d)", n)
	}
	return th.Badge.Render(label)
}

// statusLine describes the generation state in a few words.
func statusLine(v overlay.View) string {
	switch v.Generation {
	case generation.Connecting:
		return "connecting"
	case generation.Thinking:
		return "thinking"
	case generation.Answering:
		if v.Revealing {
			return "recalling"
		}
		return "answering"
	case generation.Aborted:
		if v.Status == generation.StatusContinueUnsupported {
			return "stopped (continue unsupported)"
		}
		return "stopped"
	case generation.Errored:
		return "error"
	}
	if v.IsThinking {
		return "thinking"
	}
	if v.IsStreaming {
		return "answering"
	}
	return "ready"
}

// renderConnection shows the backend connectivity flag.
func renderConnection(th *styles.Theme, v overlay.View) string {
	if v.IsConnected {
		return th.Online.Render("online")
	}
	return th.Offline.Render("offline")
}

// renderSuggestions lists related past prompts.
func renderSuggestions(th *styles.Theme, v overlay.View, width int) string {
	if !v.ShowSuggestions || len(v.SimilarGoals) == 0 {
		return ""
	}
	lines := make([]string, 0, len(v.SimilarGoals)+1)
	lines = append(lines, th.Muted.Render("Related:"))
	for _, g := range v.SimilarGoals {
		lines = append(lines, th.Suggestion.Render(util.TruncateWidth(g, width-4)))
	}
	return strings.Join(lines, "\n")
}

// renderAttachment shows a pending screenshot.
func renderAttachment(th *styles.Theme, v overlay.View) string {
	if v.Screenshot == nil {
		return ""
	}
	return th.Attachment.Render(fmt.Sprintf("📎 screenshot (%d bytes)", v.Screenshot.Size))
}

// renderHint is the first-run hint.
func renderHint(th *styles.Theme, v overlay.View) string {
	switch v.Onboarding {
	case state.OnboardingWelcome:
		return th.Hint.Render("Welcome! Type a question and press Enter.")
	case state.OnboardingHint:
		return th.Hint.Render("Tip: C-o cycles the window size, C-f searches. C-g hides this.")
	}
	return ""
}

// renderShortcuts renders as many key hints as fit in width.
func renderShortcuts(th *styles.Theme, keys KeyMap, width int) string {
	var parts []string
	used := 0
	for _, b := range keys.ShortHelp() {
		h := b.Help()
		w := util.StringWidth(h.Key) + 1 + util.StringWidth(h.Desc)
		if len(parts) > 0 {
			w += 2
		}
		if used+w > width {
			break
		}
		used += w
		parts = append(parts, th.ShortcutKey.Render(h.Key)+" "+th.ShortcutDesc.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
