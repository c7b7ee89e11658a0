// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigrun-overlay command line.
//
// Commands:
//
//	rigrun-overlay [--config path] [--role pill|card] [--demo]
//	                                      Run one overlay window in the terminal
//	rigrun-overlay bus tail               Print broadcast traffic
//	rigrun-overlay cache stats [--json]   Show response cache statistics
//	rigrun-overlay cache clear            Empty the response cache
//	rigrun-overlay config show            Print the effective configuration
//	rigrun-overlay config init [--force]  Write the default configuration file
//	rigrun-overlay config path            Print the configuration file path
//	rigrun-overlay version                Print version information
//
// Windows started with the same session and spool directory share one
// conversation. Start a pill and a card in two terminals to see both.
package cli
