// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-overlay/internal/clock"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// =============================================================================
// TIMER REGISTRY TESTS
// =============================================================================

func TestTimers_AfterReplacesPendingName(t *testing.T) {
	clk := clock.Fake(epoch)
	timers := NewTimers(clk, Inline{})

	var fired []string
	timers.After("debounce", 80*time.Millisecond, func() { fired = append(fired, "first") })
	clk.Advance(50 * time.Millisecond)
	timers.After("debounce", 80*time.Millisecond, func() { fired = append(fired, "second") })

	clk.Advance(50 * time.Millisecond)
	require.Empty(t, fired, "first handle should have been superseded")

	clk.Advance(40 * time.Millisecond)
	require.Equal(t, []string{"second"}, fired)
	require.False(t, timers.Pending("debounce"))
}

func TestTimers_Cancel(t *testing.T) {
	clk := clock.Fake(epoch)
	timers := NewTimers(clk, Inline{})

	fired := false
	timers.After("undo", time.Second, func() { fired = true })
	require.True(t, timers.Cancel("undo"))
	require.False(t, timers.Cancel("undo"))

	clk.Advance(2 * time.Second)
	require.False(t, fired)
}

func TestTimers_Every(t *testing.T) {
	clk := clock.Fake(epoch)
	timers := NewTimers(clk, Inline{})

	ticks := 0
	timers.Every("clamp", 100*time.Millisecond, func() {
		ticks++
		if ticks == 3 {
			timers.Cancel("clamp")
		}
	})

	clk.Advance(time.Second)
	require.Equal(t, 3, ticks)
	require.False(t, timers.Pending("clamp"))
}

func TestTimers_CloseReleasesEverything(t *testing.T) {
	clk := clock.Fake(epoch)
	timers := NewTimers(clk, Inline{})

	fired := 0
	timers.After("a", time.Second, func() { fired++ })
	timers.Every("b", time.Second, func() { fired++ })
	require.Equal(t, []string{"a", "b"}, timers.Names())

	timers.Close()
	timers.After("c", time.Second, func() { fired++ })

	clk.Advance(5 * time.Second)
	require.Zero(t, fired)
	require.Empty(t, timers.Names())
	require.Zero(t, clk.Pending())
}

func TestTimers_CallbacksRunThroughExecutor(t *testing.T) {
	clk := clock.Fake(epoch)
	exec := NewSerial()
	timers := NewTimers(clk, exec)

	ran := false
	timers.After("x", time.Millisecond, func() { ran = true })
	exec.Close(nil)

	clk.Advance(time.Second)
	require.False(t, ran, "callbacks after executor close must be dropped")
}

// =============================================================================
// IDENTITY TESTS
// =============================================================================

func TestNewWindowID(t *testing.T) {
	a := NewWindowID(epoch)
	b := NewWindowID(epoch)

	if a == b {
		t.Fatalf("window ids should be unique, both were %q", a)
	}
	if !strings.HasPrefix(a.String(), "1740819600000-") {
		t.Errorf("window id %q should start with the unix millis timestamp", a)
	}
	parts := strings.SplitN(a.String(), "-", 2)
	if len(parts[1]) != 8 {
		t.Errorf("suffix %q should be 8 characters", parts[1])
	}
}
