// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides best-effort local persistence for the overlay.
//
// Everything the overlay persists is a plain string key-value pair: the
// composer draft per session, the remembered mode per screen-position bucket,
// the recent-command list and the onboarding hint flag. The response cache
// lives in its own table of the same SQLite file.
//
// # Key Types
//
//   - DB: SQLite database (modernc.org/sqlite, no cgo)
//   - KV: key-value interface implemented by DB and MemoryKV
//   - Prefs: typed accessors for mode memory, recent commands, hint flag
//
// Several windows may share one database file; there is no locking beyond
// SQLite's own, and the last writer wins.
package storage
