// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package overlay assembles one overlay window.
//
// A Window owns an executor, a timer registry and one of each component:
// the mode state machine, the geometry manager, the generation controller,
// the conversation timeline, the draft store and the broadcast bus. The
// replicated part of its state is a state.Snapshot; everything else,
// including the window mode, stays local.
package overlay
