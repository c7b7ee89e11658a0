// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generation runs the request lifecycle of one window:
//
//	Idle -> Connecting -> Thinking -> Answering -> Completed | Aborted | Errored
//
// Submissions are validated by length before anything else happens. The
// response cache is consulted before the network; a hit completes at once
// and the cached answer is revealed word by word on a named timer.
//
// Each session gets its own cancellation handle. Stop cancels it locally;
// events still arriving from the cancelled request are dropped because the
// session is no longer current. A user stop is never reported as an error.
//
// Backend failures are classified (network, timeout, auth, rate limit,
// server, unknown) and produce an error entry and a notification. Network
// failures also clear the connectivity flag until the next successful
// event.
package generation
