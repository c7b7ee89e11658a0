// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package geometry keeps a window's frame in step with its mode and inside
// the screen.
package geometry

import (
	"context"
	"time"

	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/config"
	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/mode"
	"github.com/jeranaias/rigrun-overlay/internal/session"
)

// TimerClamp is the named clamp poll timer.
const TimerClamp = "geometry.clamp"

// Deps configures a Manager.
type Deps struct {
	Host          host.Host
	Exec          session.Executor
	Timers        *session.Timers
	Sizes         map[mode.Mode]host.Size
	Margin        int
	ClampInterval time.Duration
	Logger        pslog.Logger
}

// SizesFromConfig maps the configured sizes to modes.
func SizesFromConfig(g config.GeometryConfig) map[mode.Mode]host.Size {
	return map[mode.Mode]host.Size{
		mode.Mini: {Width: g.Mini.Width, Height: g.Mini.Height},
		mode.Bar:  {Width: g.Bar.Width, Height: g.Bar.Height},
		mode.Card: {Width: g.Card.Width, Height: g.Card.Height},
	}
}

// Manager applies mode sizes and clamps the window to the screen.
//
// Methods must run on the window executor; host calls are made from
// background work and their results come back through the executor.
type Manager struct {
	deps Deps
	ctx  context.Context
	log  pslog.Logger

	inTransition bool
	resizeGen    uint64
	last         host.Rect
	haveLast     bool
	warned       map[string]bool
}

// New creates a geometry manager. ctx bounds every host call.
func New(ctx context.Context, deps Deps) *Manager {
	if deps.Exec == nil {
		deps.Exec = session.Inline{}
	}
	if deps.Timers == nil {
		deps.Timers = session.NewTimers(nil, deps.Exec)
	}
	return &Manager{
		deps:   deps,
		ctx:    ctx,
		log:    logx.WithComponent(logx.OrDiscard(deps.Logger), "geometry"),
		warned: make(map[string]bool),
	}
}

// InTransition reports whether a resize is in flight.
func (m *Manager) InTransition() bool {
	return m.inTransition
}

// Position returns the last observed window bounds.
func (m *Manager) Position() (host.Rect, bool) {
	return m.last, m.haveLast
}

// Refresh reads the current bounds synchronously.
func (m *Manager) Refresh() (host.Rect, bool) {
	b, err := m.deps.Host.Bounds(m.ctx)
	if err != nil {
		m.unavailable("bounds", err)
		return m.last, m.haveLast
	}
	m.last, m.haveLast = b, true
	return b, true
}

// ApplyMode resizes the window to the mode's target size. The transition
// flag stays set until the host reports back.
func (m *Manager) ApplyMode(md mode.Mode) {
	size, ok := m.deps.Sizes[md]
	if !ok || size.Width <= 0 || size.Height <= 0 {
		return
	}
	m.inTransition = true
	m.resizeGen++
	gen := m.resizeGen

	m.deps.Exec.Go(func() {
		err := m.deps.Host.Resize(m.ctx, size.Width, size.Height)
		bounds, berr := m.deps.Host.Bounds(m.ctx)

		m.deps.Exec.Do(func() {
			if gen == m.resizeGen {
				m.inTransition = false
			}
			if err != nil {
				m.unavailable("resize", err)
				return
			}
			if berr == nil {
				m.last, m.haveLast = bounds, true
			}
			m.log.Debug("window resized", "mode", md, "width", size.Width, "height", size.Height)
		})
	})
}

// ClampToScreen moves the window back inside the screen when any edge has
// crossed the margin. A window already inside issues no command.
func (m *Manager) ClampToScreen() {
	m.deps.Exec.Go(func() {
		bounds, moved, err := Clamp(m.ctx, m.deps.Host, m.deps.Margin)
		m.deps.Exec.Do(func() {
			if err != nil {
				m.unavailable("clamp", err)
				return
			}
			m.last, m.haveLast = bounds, true
			if moved {
				m.log.Debug("window clamped", "x", bounds.X, "y", bounds.Y)
			}
		})
	})
}

// StartClamp polls ClampToScreen on the configured interval.
func (m *Manager) StartClamp() {
	if m.deps.ClampInterval <= 0 {
		return
	}
	m.deps.Timers.Every(TimerClamp, m.deps.ClampInterval, m.ClampToScreen)
}

// StopClamp cancels the clamp poll.
func (m *Manager) StopClamp() {
	m.deps.Timers.Cancel(TimerClamp)
}

func (m *Manager) unavailable(op string, err error) {
	if host.IsUnavailable(err) {
		if !m.warned[op] {
			m.warned[op] = true
			m.log.Info("host window operation unavailable", "op", op)
		}
		return
	}
	m.log.Warn("host window operation failed", "op", op, "err", err)
}

// =============================================================================
// CLAMPING
// =============================================================================

// Clamp reads the window and screen from h and issues a position-only
// SetBounds when the window is out of bounds. It returns the resulting
// bounds and whether a move was issued.
func Clamp(ctx context.Context, h host.Host, margin int) (host.Rect, bool, error) {
	bounds, err := h.Bounds(ctx)
	if err != nil {
		return host.Rect{}, false, err
	}
	screen, err := h.ScreenSize(ctx)
	if err != nil {
		return bounds, false, err
	}
	target, moved := ClampRect(bounds, screen, margin)
	if !moved {
		return bounds, false, nil
	}
	if err := h.SetBounds(ctx, target); err != nil {
		return bounds, false, err
	}
	return target, true, nil
}

// ClampRect returns r moved so every edge sits at least margin inside the
// screen. Width and height are never changed; a window larger than the
// screen is pinned to the top-left margin.
func ClampRect(r host.Rect, screen host.Size, margin int) (host.Rect, bool) {
	out := r
	out.X = clampAxis(r.X, r.Width, screen.Width, margin)
	out.Y = clampAxis(r.Y, r.Height, screen.Height, margin)
	return out, out != r
}

func clampAxis(pos, length, screen, margin int) int {
	maxPos := screen - margin - length
	if pos > maxPos {
		pos = maxPos
	}
	if pos < margin {
		pos = margin
	}
	return pos
}
