// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend defines the assistant backend contract and its HTTP/SSE
// client.
//
// A request streams events: partial reasoning (message), numbered steps
// (step_number + reasoning), answer tokens (token), a completion payload
// (final_response, steps, facts_extracted, execution_time) or an error.
//
// # Key Types
//
//   - Backend: the streaming Send contract
//   - Continuer: optional capability to resume a stopped answer
//   - Client: HTTP + Server-Sent Events implementation, paced by a
//     golang.org/x/time/rate token bucket
//   - Scripted: local replaying backend
//
// Classify maps any Send error to one of the user-facing failure kinds:
// network, timeout, auth, rate limit, server or unknown.
package backend
