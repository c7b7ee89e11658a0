// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

import (
	"context"
	"fmt"
	"sync"
)

// Op names a Host operation, used to switch operations off in a Virtual.
type Op string

// Host operations.
const (
	OpResize     Op = "resize"
	OpBounds     Op = "bounds"
	OpSetBounds  Op = "set_bounds"
	OpScreenSize Op = "screen_size"
	OpScreenshot Op = "screenshot"
	OpExecute    Op = "execute"
	OpOpen       Op = "open"
	OpClipboard  Op = "clipboard"
	OpNotify     Op = "notify"
)

// Notification is one Notify call recorded by Virtual.
type Notification struct {
	Title   string
	Message string
}

// Virtual is an in-memory window manager. The terminal UI draws it and
// tests inspect it.
type Virtual struct {
	mu sync.Mutex

	bounds      Rect
	screen      Size
	unavailable map[Op]bool

	screenshot    *Screenshot
	commands      func(cmd string) CommandResult
	clipboard     string
	opened        []string
	notifications []Notification
	calls         map[Op]int
}

// NewVirtual creates a Virtual window with the given bounds on a screen.
func NewVirtual(bounds Rect, screen Size) *Virtual {
	return &Virtual{
		bounds:      bounds,
		screen:      screen,
		unavailable: make(map[Op]bool),
		calls:       make(map[Op]int),
	}
}

// Disable makes ops return ErrUnavailable.
func (v *Virtual) Disable(ops ...Op) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, op := range ops {
		v.unavailable[op] = true
	}
}

// SetScreenshot sets what TakeScreenshot returns.
func (v *Virtual) SetScreenshot(s Screenshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.screenshot = &s
}

// SetCommandHandler sets how ExecuteCommand answers.
func (v *Virtual) SetCommandHandler(fn func(cmd string) CommandResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.commands = fn
}

// SetScreen changes the screen size.
func (v *Virtual) SetScreen(s Size) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.screen = s
}

// Move drags the window by dx/dy without any bounds checking, the way a
// user drag would.
func (v *Virtual) Move(dx, dy int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bounds.X += dx
	v.bounds.Y += dy
}

// Current returns the bounds without counting a call.
func (v *Virtual) Current() Rect {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bounds
}

// Screen returns the screen size without counting a call.
func (v *Virtual) Screen() Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.screen
}

// Calls returns how many times op was invoked.
func (v *Virtual) Calls(op Op) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[op]
}

// Clipboard returns the last copied text.
func (v *Virtual) Clipboard() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clipboard
}

// Opened returns the URLs passed to OpenExternal.
func (v *Virtual) Opened() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.opened...)
}

// Notifications returns the recorded Notify calls.
func (v *Virtual) Notifications() []Notification {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Notification(nil), v.notifications...)
}

// enter counts the call and reports ErrUnavailable (must hold lock).
func (v *Virtual) enterLocked(op Op) error {
	v.calls[op]++
	if v.unavailable[op] {
		return ErrUnavailable
	}
	return nil
}

// Resize implements Host. The top-left corner stays put.
func (v *Virtual) Resize(ctx context.Context, width, height int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enterLocked(OpResize); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("host: invalid size %dx%d", width, height)
	}
	v.bounds.Width = width
	v.bounds.Height = height
	return nil
}

// Bounds implements Host.
func (v *Virtual) Bounds(ctx context.Context) (Rect, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enterLocked(OpBounds); err != nil {
		return Rect{}, err
	}
	return v.bounds, nil
}

// SetBounds implements Host.
func (v *Virtual) SetBounds(ctx context.Context, r Rect) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enterLocked(OpSetBounds); err != nil {
		return err
	}
	v.bounds = r
	return nil
}

// ScreenSize implements Host.
func (v *Virtual) ScreenSize(ctx context.Context) (Size, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enterLocked(OpScreenSize); err != nil {
		return Size{}, err
	}
	return v.screen, nil
}

// TakeScreenshot implements Host.
func (v *Virtual) TakeScreenshot(ctx context.Context) (Screenshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enterLocked(OpScreenshot); err != nil {
		return Screenshot{}, err
	}
	if v.screenshot == nil {
		return Screenshot{}, ErrUnavailable
	}
	return *v.screenshot, nil
}

// ExecuteCommand implements Host.
func (v *Virtual) ExecuteCommand(ctx context.Context, cmd string) (CommandResult, error) {
	v.mu.Lock()
	if err := v.enterLocked(OpExecute); err != nil {
		v.mu.Unlock()
		return CommandResult{}, err
	}
	handler := v.commands
	v.mu.Unlock()

	if handler == nil {
		return CommandResult{Success: true, Message: "ok: " + cmd}, nil
	}
	return handler(cmd), nil
}

// OpenExternal implements Host.
func (v *Virtual) OpenExternal(ctx context.Context, url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enterLocked(OpOpen); err != nil {
		return err
	}
	v.opened = append(v.opened, url)
	return nil
}

// CopyToClipboard implements Host.
func (v *Virtual) CopyToClipboard(ctx context.Context, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enterLocked(OpClipboard); err != nil {
		return err
	}
	v.clipboard = text
	return nil
}

// Notify implements Host.
func (v *Virtual) Notify(ctx context.Context, title, message string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enterLocked(OpNotify); err != nil {
		return err
	}
	v.notifications = append(v.notifications, Notification{Title: title, Message: message})
	return nil
}
