// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat renders one overlay window in the terminal with Bubble Tea.
//
// The model is a thin shell: every keystroke becomes a Window operation and
// every Window change notification triggers a re-render from Window.View.
// Host actions that block (screenshots, shell commands, links) run as
// tea.Cmds so the event loop never waits on them.
package chat
