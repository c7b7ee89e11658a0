// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the overlay palette and the lip gloss theme used by
// the terminal renderer.
package styles
