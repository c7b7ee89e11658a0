// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package timeline implements the overlay's conversation log: an ordered,
// mutable list of user, agent, thought, debug and error entries.
//
// Beyond appending, the timeline supports copying an entry, regenerating an
// answer from its prompt, editing (in place or as a fork that discards later
// entries), deleting with a single-slot undo buffer that expires on a named
// timer, and case-insensitive search with a wrap-around cursor.
//
// Sequence numbers come from a per-timeline counter that never goes back,
// even when a sibling window's entries are adopted with Replace.
package timeline
