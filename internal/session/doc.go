// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the per-window execution primitives shared by
// every overlay component.
//
// # Key Types
//
//   - WindowID: opaque identity of one window instance, used to filter
//     self-originated broadcasts
//   - Executor: serializes all state mutation for a window (Serial in
//     production, Inline in tests)
//   - Timers: registry of named, cancellable timer handles owned by a window
//
// # Usage
//
//	exec := session.NewSerial()
//	timers := session.NewTimers(clock.Real(), exec)
//	defer timers.Close()
//
//	// Re-arming a name cancels the previous handle (debounce).
//	timers.After("draft:main", 500*time.Millisecond, save)
//
// Timer callbacks always run through the executor, so components never need
// their own locks.
package session
