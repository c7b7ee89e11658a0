// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/rigrun-overlay/internal/clock"
)

// =============================================================================
// NAMED TIMERS
// =============================================================================

// Timers owns every debounce, poll and countdown timer of one window.
//
// Each timer has a name. Scheduling a name that is already pending cancels
// the old handle first, which is exactly debounce semantics. Close cancels
// everything and refuses new timers, so no timer outlives its window.
type Timers struct {
	clk  clock.Clock
	exec Executor

	mu      sync.Mutex
	handles map[string]*handle
	nextGen uint64
	closed  bool
}

type handle struct {
	gen   uint64
	timer clock.Timer
}

// NewTimers creates a registry whose callbacks run through exec.
func NewTimers(clk clock.Clock, exec Executor) *Timers {
	if clk == nil {
		clk = clock.Real()
	}
	if exec == nil {
		exec = Inline{}
	}
	return &Timers{
		clk:     clk,
		exec:    exec,
		handles: make(map[string]*handle),
	}
}

// Clock returns the clock timers are scheduled on.
func (t *Timers) Clock() clock.Clock {
	return t.clk
}

// After schedules fn once after d under name, replacing any pending timer
// with the same name.
func (t *Timers) After(name string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.cancelLocked(name)

	t.nextGen++
	gen := t.nextGen
	h := &handle{gen: gen}
	t.handles[name] = h
	h.timer = t.clk.AfterFunc(d, func() {
		t.exec.Do(func() {
			if !t.claim(name, gen) {
				return
			}
			fn()
		})
	})
}

// Every runs fn every d under name until cancelled. The next tick is armed
// before fn runs, so fn may cancel its own timer.
func (t *Timers) Every(name string, d time.Duration, fn func()) {
	var tick func()
	tick = func() {
		t.After(name, d, tick)
		fn()
	}
	t.After(name, d, tick)
}

// Cancel stops the named timer. It reports whether a timer was pending.
func (t *Timers) Cancel(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked(name)
}

// Pending reports whether the named timer is armed.
func (t *Timers) Pending(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.handles[name]
	return ok
}

// Names lists the pending timers, sorted.
func (t *Timers) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.handles))
	for name := range t.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close cancels every pending timer and rejects new ones.
func (t *Timers) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name := range t.handles {
		t.cancelLocked(name)
	}
	t.closed = true
}

// claim removes the handle if it is still the current generation for name.
// A timer that was cancelled or superseded after firing loses the claim.
func (t *Timers) claim(name string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[name]
	if !ok || h.gen != gen {
		return false
	}
	delete(t.handles, name)
	return true
}

// cancelLocked stops and forgets the handle (must hold lock).
func (t *Timers) cancelLocked(name string) bool {
	h, ok := t.handles[name]
	if !ok {
		return false
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	delete(t.handles, name)
	return true
}
