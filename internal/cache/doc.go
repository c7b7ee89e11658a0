// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the response cache consulted before any backend
// request.
//
// Lookups match exactly on the normalized prompt first, then fall back to a
// near-duplicate match: the best cosine similarity over term-frequency
// vectors must reach the semantic threshold (0.92 by default). Similar
// returns related prompts above a lower threshold for composer suggestions.
//
// Entries are kept in LRU order and written through to a Store (the SQLite
// responses table) so answers survive restarts.
package cache
