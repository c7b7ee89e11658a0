// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across the overlay packages.
//
// # Key Functions
//
//   - AtomicWriteFile: Crash-safe file writing with fsync and rename
//   - TruncateRunes, TruncateWidth: UTF-8 and column aware truncation
//   - StringWidth: Display width in terminal columns
//   - MaskSecret: Redacts API keys for display
package util
