// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mode

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/rigrun-overlay/internal/host"
)

// =============================================================================
// MODE AND ROLE
// =============================================================================

// Mode is a window's visual state, from most collapsed to most expanded.
type Mode string

const (
	Mini Mode = "mini"
	Bar  Mode = "bar"
	Card Mode = "card"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == Mini || m == Bar || m == Card
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("mode: unknown mode %q", s)
	}
	return m, nil
}

// Role is what a window was created for.
type Role string

const (
	// RolePill is the persistent tray window; it starts Mini.
	RolePill Role = "pill"
	// RoleCard hosts the full panel; it starts and stays Card.
	RoleCard Role = "card"
)

// ParseRole parses a role name, defaulting to RolePill.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleCard)) {
		return RoleCard
	}
	return RolePill
}

// Initial returns the mode a window of this role starts in.
func (r Role) Initial() Mode {
	if r == RoleCard {
		return Card
	}
	return Mini
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

// Trigger is an input that may change the mode.
type Trigger string

const (
	TriggerExpand     Trigger = "expand"
	TriggerFocus      Trigger = "focus"
	TriggerCycle      Trigger = "cycle"
	TriggerEscape     Trigger = "escape"
	TriggerAutoExpand Trigger = "auto_expand"
	TriggerAttach     Trigger = "attach"

	// TriggerMount is reported to listeners for the startup mode; it has no
	// table edges.
	TriggerMount Trigger = "mount"
)

var (
	// ErrNoTransition is returned when the trigger has no edge from the
	// current mode.
	ErrNoTransition = errors.New("mode: no transition")

	// ErrCardLocked is returned when a card-role window is asked to leave
	// Card.
	ErrCardLocked = errors.New("mode: card window is locked to card")
)

var transitions = map[Mode]map[Trigger]Mode{
	Mini: {
		TriggerExpand: Bar,
		TriggerCycle:  Bar,
		TriggerAttach: Card,
	},
	Bar: {
		TriggerFocus:      Card,
		TriggerCycle:      Card,
		TriggerEscape:     Mini,
		TriggerAutoExpand: Card,
		TriggerAttach:     Card,
	},
	Card: {
		TriggerCycle:  Mini,
		TriggerEscape: Mini,
	},
}

// Next returns the mode reached from m on t.
func Next(m Mode, t Trigger) (Mode, error) {
	to, ok := transitions[m][t]
	if !ok {
		return m, fmt.Errorf("%w: %s on %s", ErrNoTransition, m, t)
	}
	return to, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// IsMultiline reports whether composer text needs more than one bar line:
// it contains a newline or is wider than columns display cells.
func IsMultiline(text string, columns int) bool {
	if strings.ContainsAny(text, "\r\n") {
		return true
	}
	return columns > 0 && runewidth.StringWidth(text) > columns
}

// Bucket returns the position bucket key for a window at r: its top-left
// corner rounded to a grid.
func Bucket(r host.Rect, grid int) string {
	if grid <= 0 {
		grid = 100
	}
	bx := int(math.Round(float64(r.X) / float64(grid)))
	by := int(math.Round(float64(r.Y) / float64(grid)))
	return fmt.Sprintf("%d:%d", bx, by)
}
