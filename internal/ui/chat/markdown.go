// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// Markdown renders agent answers. A nil *Markdown renders plain text.
type Markdown struct {
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer wrapping at width columns. It returns nil
// if glamour cannot be initialized, which callers treat as plain text.
func NewMarkdown(width int) *Markdown {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return &Markdown{width: width, renderer: r}
}

// Width returns the wrap width.
func (md *Markdown) Width() int {
	if md == nil {
		return 0
	}
	return md.width
}

// Render formats content, falling back to the raw text on failure.
func (md *Markdown) Render(content string) string {
	if md == nil || md.renderer == nil {
		return content
	}
	out, err := md.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
