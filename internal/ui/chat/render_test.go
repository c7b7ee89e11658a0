// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-overlay/internal/generation"
	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/overlay"
	"github.com/jeranaias/rigrun-overlay/internal/state"
	"github.com/jeranaias/rigrun-overlay/internal/timeline"
	"github.com/jeranaias/rigrun-overlay/internal/ui/styles"
	"github.com/jeranaias/rigrun-overlay/internal/util"
)

func TestRenderTiming(t *testing.T) {
	require.Empty(t, renderTiming(nil))
	require.Equal(t, "first token 120ms · total 900ms · backend 40ms",
		renderTiming(&timeline.Timing{TTFTMs: 120, TotalMs: 900, ExecutionMs: 40}))
	require.Equal(t, "cached · total 3ms",
		renderTiming(&timeline.Timing{TTFTMs: 1, TotalMs: 3, Cached: true}))
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name string
		view overlay.View
		want string
	}{
		{"idle", overlay.View{}, "ready"},
		{"connecting", overlay.View{Generation: generation.Connecting}, "connecting"},
		{"thinking", overlay.View{Generation: generation.Thinking}, "thinking"},
		{"answering", overlay.View{Generation: generation.Answering}, "answering"},
		{"revealing", overlay.View{Generation: generation.Answering, Revealing: true}, "recalling"},
		{"stopped", overlay.View{Generation: generation.Aborted}, "stopped"},
		{"no continue", overlay.View{Generation: generation.Aborted, Status: generation.StatusContinueUnsupported}, "stopped (continue unsupported)"},
		{"error", overlay.View{Generation: generation.Errored}, "error"},
		{"remote thinking", overlay.View{Snapshot: state.Snapshot{IsThinking: true}}, "thinking"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, statusLine(tt.view))
		})
	}
}

func TestRenderThought(t *testing.T) {
	th := styles.Plain()
	e := timeline.NewEntry(timeline.KindThought, "counting words")
	e.Step = &timeline.StepMeta{Number: 2}

	require.Contains(t, renderEntry(th, nil, e, 40), "▾ Step 2: counting words")
	e.Collapsed = true
	require.Equal(t, "▸ Step 2", strings.TrimSpace(renderEntry(th, nil, e, 40)))
}

func TestRenderAgentEntry(t *testing.T) {
	th := styles.Plain()
	e := timeline.NewEntry(timeline.KindAgent, "The answer.")
	e.Facts = []string{"word count: 2"}
	e.Timing = &timeline.Timing{TotalMs: 12}

	out := renderEntry(th, nil, e, 60)
	require.Contains(t, out, "Assistant")
	require.Contains(t, out, "The answer.")
	require.Contains(t, out, "• word count: 2")
	require.Contains(t, out, "total 12ms")
}

func TestRenderBadge(t *testing.T) {
	th := styles.Plain()
	require.Equal(t, "● rigrun", strings.TrimSpace(renderBadge(th, overlay.View{}, "*")))

	v := overlay.View{Snapshot: state.Snapshot{Timeline: []timeline.Entry{
		timeline.NewEntry(timeline.KindUser, "hi"),
	}}}
	require.Contains(t, renderBadge(th, v, "*"), "rigrun (1)")

	v.IsThinking = true
	require.Contains(t, renderBadge(th, v, "*"), "* rigrun")
}

func TestRenderExtras(t *testing.T) {
	th := styles.Plain()
	v := overlay.View{}
	require.Empty(t, renderSuggestions(th, v, 40))
	require.Empty(t, renderAttachment(th, v))

	v.ShowSuggestions = true
	v.SimilarGoals = []string{"how do I reset my password"}
	require.Contains(t, renderSuggestions(th, v, 40), "Related:")

	v.Screenshot = &host.Screenshot{Size: 42}
	require.Contains(t, renderAttachment(th, v), "42 bytes")

	v.Onboarding = state.OnboardingWelcome
	require.Contains(t, renderHint(th, v), "Welcome")
	v.Onboarding = state.OnboardingDone
	require.Empty(t, renderHint(th, v))
}

func TestRenderShortcutsFitsWidth(t *testing.T) {
	th := styles.Plain()
	keys := DefaultKeyMap()

	wide := renderShortcuts(th, keys, 200)
	require.Contains(t, wide, "Enter send")
	require.Contains(t, wide, "C-q quit")

	narrow := renderShortcuts(th, keys, 20)
	require.LessOrEqual(t, util.StringWidth(narrow), 20)
	require.Contains(t, narrow, "Enter send")
	require.NotContains(t, narrow, "quit")
}

func TestRenderTimelineHighlightsMatch(t *testing.T) {
	th := styles.Plain()
	entries := []timeline.Entry{
		timeline.NewEntry(timeline.KindUser, "first"),
		timeline.NewEntry(timeline.KindDebug, "$ ls"),
	}
	require.Equal(t, "No messages yet.", renderTimeline(th, nil, nil, 40, -1, overlay.View{}))

	out, offsets := layoutTimeline(th, nil, entries, 40, -1, overlay.View{})
	require.Contains(t, out, "first")
	require.Contains(t, out, "$ ls")
	require.Equal(t, []int{0, 2}, offsets)
}

func TestHighlightCommand(t *testing.T) {
	require.Equal(t, "plain text", highlightCommand("plain text"))

	out := highlightCommand("$ echo hi\nhi")
	require.True(t, strings.HasPrefix(out, "$ "))
	require.True(t, strings.HasSuffix(out, "\nhi"))
	require.Contains(t, out, "echo")
}
