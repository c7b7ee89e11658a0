// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mode

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-overlay/internal/clock"
	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/session"
	"github.com/jeranaias/rigrun-overlay/internal/storage"
)

type fakeGeometry struct {
	bounds       host.Rect
	inTransition bool
}

func (g *fakeGeometry) InTransition() bool { return g.inTransition }

func (g *fakeGeometry) Position() (host.Rect, bool) { return g.bounds, true }

type harness struct {
	c     *Controller
	clk   *clock.FakeClock
	geom  *fakeGeometry
	prefs *storage.Prefs
	seen  []Mode
}

func newHarness(t *testing.T, role Role) *harness {
	t.Helper()
	clk := clock.Fake(time.UnixMilli(1740819600000))
	timers := session.NewTimers(clk, session.Inline{})
	t.Cleanup(timers.Close)

	h := &harness{
		clk:   clk,
		geom:  &fakeGeometry{bounds: host.Rect{X: 310, Y: 190, Width: 64, Height: 64}},
		prefs: storage.NewPrefs(storage.NewMemoryKV(), 20),
	}
	h.c = NewController(Deps{
		Role:            role,
		Timers:          timers,
		AutoExpandDelay: 80 * time.Millisecond,
		BarColumns:      56,
		BucketGrid:      100,
		Prefs:           h.prefs,
		Geometry:        h.geom,
	})
	h.c.OnChange(func(from, to Mode, trig Trigger) { h.seen = append(h.seen, to) })
	return h
}

func TestCycleIsClosed(t *testing.T) {
	h := newHarness(t, RolePill)
	require.Equal(t, Mini, h.c.Mode())

	for i := 0; i < 2; i++ {
		require.True(t, h.c.Cycle())
		require.Equal(t, Bar, h.c.Mode())
		require.True(t, h.c.Cycle())
		require.Equal(t, Card, h.c.Mode())
		require.True(t, h.c.Cycle())
		require.Equal(t, Mini, h.c.Mode())
	}
	require.Equal(t, []Mode{Bar, Card, Mini, Bar, Card, Mini}, h.seen)
}

func TestEscapeFromCard(t *testing.T) {
	h := newHarness(t, RolePill)
	h.c.Cycle()
	h.c.Cycle()
	require.Equal(t, Card, h.c.Mode())

	require.Equal(t, EscapeBlurred, h.c.Escape("unsent text"))
	require.Equal(t, Card, h.c.Mode())

	require.Equal(t, EscapeCollapsed, h.c.Escape(""))
	require.Equal(t, Mini, h.c.Mode())

	require.Equal(t, EscapeIgnored, h.c.Escape(""))
}

func TestEscapeFromBar(t *testing.T) {
	h := newHarness(t, RolePill)
	require.True(t, h.c.Expand())
	require.Equal(t, EscapeBlurred, h.c.Escape("x"))
	require.Equal(t, Bar, h.c.Mode())
	require.Equal(t, EscapeCollapsed, h.c.Escape(""))
	require.Equal(t, Mini, h.c.Mode())
}

func TestFocusNeedsHistory(t *testing.T) {
	h := newHarness(t, RolePill)
	h.c.Expand()

	require.False(t, h.c.FocusComposer(0))
	require.Equal(t, Bar, h.c.Mode())
	require.True(t, h.c.FocusComposer(3))
	require.Equal(t, Card, h.c.Mode())
}

func TestCardRoleIsLocked(t *testing.T) {
	h := newHarness(t, RoleCard)
	require.Equal(t, Card, h.c.Mode())

	require.ErrorIs(t, h.c.Fire(TriggerCycle), ErrCardLocked)
	require.False(t, h.c.Cycle())
	require.Equal(t, EscapeIgnored, h.c.Escape(""))
	require.Equal(t, Card, h.c.Mode())
	require.Empty(t, h.seen)
}

func TestAutoExpandDebounced(t *testing.T) {
	h := newHarness(t, RolePill)
	h.c.Expand()

	h.c.ComposerChanged("line one\n", false)
	h.clk.Advance(50 * time.Millisecond)
	h.c.ComposerChanged("line one\nline", false)
	h.clk.Advance(50 * time.Millisecond)
	require.Equal(t, Bar, h.c.Mode())

	h.clk.Advance(30 * time.Millisecond)
	require.Equal(t, Card, h.c.Mode())
}

func TestAutoExpandOnWidth(t *testing.T) {
	h := newHarness(t, RolePill)
	h.c.Expand()

	h.c.ComposerChanged(strings.Repeat("a", 56), false)
	h.clk.Advance(100 * time.Millisecond)
	require.Equal(t, Bar, h.c.Mode())

	h.c.ComposerChanged(strings.Repeat("界", 29), false)
	h.clk.Advance(100 * time.Millisecond)
	require.Equal(t, Card, h.c.Mode())
}

func TestAutoExpandSkippedWhileComposingOrResizing(t *testing.T) {
	h := newHarness(t, RolePill)
	h.c.Expand()

	h.c.ComposerChanged("a\nb", true)
	h.clk.Advance(100 * time.Millisecond)
	require.Equal(t, Bar, h.c.Mode())

	h.geom.inTransition = true
	h.c.ComposerChanged("a\nb", false)
	h.clk.Advance(100 * time.Millisecond)
	require.Equal(t, Bar, h.c.Mode())

	h.geom.inTransition = false
	h.c.ComposerChanged("a\nb", false)
	h.clk.Advance(100 * time.Millisecond)
	require.Equal(t, Card, h.c.Mode())
}

func TestAttachedExpands(t *testing.T) {
	h := newHarness(t, RolePill)
	require.True(t, h.c.Attached())
	require.Equal(t, Card, h.c.Mode())
	require.False(t, h.c.Attached())
}

func TestModeMemoryPerBucket(t *testing.T) {
	h := newHarness(t, RolePill)
	h.c.Expand()

	m, ok := h.prefs.ModeFor("3:2")
	require.True(t, ok)
	require.Equal(t, "bar", m)

	other := newHarness(t, RolePill)
	other.prefs = h.prefs
	other.c.deps.Prefs = h.prefs
	require.Equal(t, Bar, other.c.Mount(host.Rect{X: 290, Y: 210}))
	require.Equal(t, []Mode{Bar}, other.seen)

	require.Equal(t, Mini, other.c.Mount(host.Rect{X: 900, Y: 900}))
}

func TestCardRoleDoesNotPersist(t *testing.T) {
	h := newHarness(t, RoleCard)
	require.Equal(t, Card, h.c.Mount(h.geom.bounds))
	_, ok := h.prefs.ModeFor(Bucket(h.geom.bounds, 100))
	require.False(t, ok)
}

func TestBucketAndParse(t *testing.T) {
	require.Equal(t, "3:2", Bucket(host.Rect{X: 310, Y: 190}, 100))
	require.Equal(t, "0:0", Bucket(host.Rect{X: 49, Y: 0}, 0))

	m, err := ParseMode(" Card ")
	require.NoError(t, err)
	require.Equal(t, Card, m)
	_, err = ParseMode("open")
	require.Error(t, err)

	require.Equal(t, RoleCard, ParseRole("CARD"))
	require.Equal(t, RolePill, ParseRole(""))
	_, err = Next(Mini, TriggerEscape)
	require.ErrorIs(t, err, ErrNoTransition)
}
