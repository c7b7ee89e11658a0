// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bus synchronizes shared overlay state between windows over a
// best-effort broadcast transport. Windows announce themselves, request a
// bootstrap snapshot from peers, and publish updates whenever their
// shared state changes. Publishes are deduplicated by content signature
// and remote snapshots are applied under a guard so they are never echoed.
package bus
