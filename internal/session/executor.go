// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "sync"

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor gives a window the single-writer property of an event loop.
//
// Do runs fn with exclusive access to the window's state. Go starts
// background work (network calls, host calls); the work must hand its result
// back through Do.
//
// Do is not reentrant: code already running inside Do must call component
// methods directly.
type Executor interface {
	Do(fn func())
	Go(fn func())
}

// Serial is the production executor: a mutex around every mutation and a
// goroutine per background task.
type Serial struct {
	mu     sync.Mutex
	closed bool
}

// NewSerial returns a ready Serial executor.
func NewSerial() *Serial {
	return &Serial{}
}

// Do runs fn under the window lock. Calls after Close are dropped so late
// timer or network callbacks cannot touch a torn-down window.
func (s *Serial) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fn()
}

// Go runs fn on a new goroutine.
func (s *Serial) Go(fn func()) {
	go fn()
}

// Close runs fn (if non-nil) as the final serialized task and rejects every
// later Do.
func (s *Serial) Close(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if fn != nil {
		fn()
	}
	s.closed = true
}

// Inline runs everything synchronously on the caller's goroutine. It is meant
// for tests that drive components directly.
type Inline struct{}

// Do calls fn.
func (Inline) Do(fn func()) { fn() }

// Go calls fn.
func (Inline) Go(fn func()) { fn() }
