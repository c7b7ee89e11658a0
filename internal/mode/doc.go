// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mode implements the window mode state machine over Mini, Bar and
// Card.
//
// All edges live in one transition table keyed by mode and trigger. A
// card-role window starts in Card and refuses every edge out of it; a
// pill-role window starts in Mini and remembers its last mode per screen
// position bucket.
//
// Transitions notify listeners; the window uses them to resize the frame
// and publish state.
package mode
