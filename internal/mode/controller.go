// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mode

import (
	"errors"
	"time"

	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/session"
)

// TimerAutoExpand is the composer debounce timer.
const TimerAutoExpand = "mode.auto_expand"

// EscapeResult says what an Escape press did.
type EscapeResult int

const (
	// EscapeIgnored: nothing to collapse.
	EscapeIgnored EscapeResult = iota
	// EscapeCollapsed: the window went to Mini.
	EscapeCollapsed
	// EscapeBlurred: the composer holds text, so only focus was dropped.
	EscapeBlurred
)

// Listener is told about every transition.
type Listener func(from, to Mode, t Trigger)

// Preferences remembers a mode per position bucket.
type Preferences interface {
	ModeFor(bucket string) (string, bool)
	SaveMode(bucket, mode string) error
}

// Geometry is what the controller needs to know about the window's frame.
type Geometry interface {
	InTransition() bool
	Position() (host.Rect, bool)
}

// Deps configures a Controller.
type Deps struct {
	Role            Role
	Timers          *session.Timers
	AutoExpandDelay time.Duration
	BarColumns      int
	BucketGrid      int
	Prefs           Preferences
	Geometry        Geometry
	Logger          pslog.Logger
}

// Controller is the mode state machine of one window.
//
// Not safe for concurrent use; the owning window serializes access.
type Controller struct {
	deps Deps
	log  pslog.Logger

	mode      Mode
	composing bool
	pending   string
	listeners []Listener
}

// NewController creates a controller in the role's initial mode.
func NewController(deps Deps) *Controller {
	if deps.Role == "" {
		deps.Role = RolePill
	}
	if deps.Timers == nil {
		deps.Timers = session.NewTimers(nil, session.Inline{})
	}
	return &Controller{
		deps: deps,
		log:  logx.WithComponent(logx.OrDiscard(deps.Logger), "mode"),
		mode: deps.Role.Initial(),
	}
}

// OnChange registers a transition listener.
func (c *Controller) OnChange(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Role returns the window role.
func (c *Controller) Role() Role {
	return c.deps.Role
}

// Mount restores the mode remembered for the window's position. Card-role
// windows always mount in Card. Listeners are notified even when the mode
// does not change, so geometry is applied once at startup.
func (c *Controller) Mount(bounds host.Rect) Mode {
	from := c.mode
	to := c.deps.Role.Initial()

	if c.deps.Role != RoleCard && c.deps.Prefs != nil {
		if v, ok := c.deps.Prefs.ModeFor(Bucket(bounds, c.deps.BucketGrid)); ok {
			if m, err := ParseMode(v); err == nil {
				to = m
			}
		}
	}
	c.mode = to
	c.log.Debug("mode mounted", "mode", to)
	c.notify(from, to, TriggerMount)
	return to
}

// Fire applies trigger t through the transition table.
func (c *Controller) Fire(t Trigger) error {
	to, err := Next(c.mode, t)
	if err != nil {
		return err
	}
	if c.deps.Role == RoleCard && to != Card {
		return ErrCardLocked
	}
	from := c.mode
	c.mode = to
	if to == Bar || to == Mini {
		c.deps.Timers.Cancel(TimerAutoExpand)
	}
	c.log.Debug("mode transition", "from", from, "to", to, "trigger", t)
	c.persist()
	c.notify(from, to, t)
	return nil
}

// Expand handles a click on the Mini icon.
func (c *Controller) Expand() bool {
	return c.Fire(TriggerExpand) == nil
}

// FocusComposer handles focusing the bar; it expands to Card only when
// there is history to show.
func (c *Controller) FocusComposer(historyLen int) bool {
	if historyLen == 0 {
		return false
	}
	return c.Fire(TriggerFocus) == nil
}

// Cycle handles the global hotkey: Mini, Bar, Card, Mini.
func (c *Controller) Cycle() bool {
	return c.Fire(TriggerCycle) == nil
}

// Escape collapses to Mini only when the composer is empty. Unsent text is
// never discarded; the composer just loses focus.
func (c *Controller) Escape(composerText string) EscapeResult {
	if composerText != "" {
		return EscapeBlurred
	}
	if c.Fire(TriggerEscape) == nil {
		return EscapeCollapsed
	}
	return EscapeIgnored
}

// Attached expands to Card right away after a screenshot or file attach.
func (c *Controller) Attached() bool {
	return c.Fire(TriggerAttach) == nil
}

// ComposerChanged re-arms the auto-expand debounce. composing is true while
// an IME composition is in progress.
func (c *Controller) ComposerChanged(text string, composing bool) {
	c.composing = composing
	c.pending = text
	if c.mode != Bar {
		c.deps.Timers.Cancel(TimerAutoExpand)
		return
	}
	c.deps.Timers.After(TimerAutoExpand, c.deps.AutoExpandDelay, c.evaluateAutoExpand)
}

// SetComposing updates the IME composition flag.
func (c *Controller) SetComposing(composing bool) {
	c.composing = composing
}

func (c *Controller) evaluateAutoExpand() {
	if c.mode != Bar || c.composing {
		return
	}
	if c.deps.Geometry != nil && c.deps.Geometry.InTransition() {
		return
	}
	if !IsMultiline(c.pending, c.deps.BarColumns) {
		return
	}
	if err := c.Fire(TriggerAutoExpand); err != nil && !errors.Is(err, ErrNoTransition) {
		c.log.Debug("auto expand refused", "err", err)
	}
}

// persist remembers the mode for the current position bucket.
func (c *Controller) persist() {
	if c.deps.Role == RoleCard || c.deps.Prefs == nil || c.deps.Geometry == nil {
		return
	}
	bounds, ok := c.deps.Geometry.Position()
	if !ok {
		return
	}
	bucket := Bucket(bounds, c.deps.BucketGrid)
	if err := c.deps.Prefs.SaveMode(bucket, string(c.mode)); err != nil {
		c.log.Warn("mode preference not saved", "bucket", bucket, "err", err)
	}
}

func (c *Controller) notify(from, to Mode, t Trigger) {
	for _, l := range c.listeners {
		l(from, to, t)
	}
}
