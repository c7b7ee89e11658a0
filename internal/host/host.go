// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package host abstracts the window manager and desktop services the overlay
// runs on. Operations the environment cannot provide return ErrUnavailable
// and callers treat the feature as a no-op.
package host

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by host operations the environment lacks.
var ErrUnavailable = errors.New("host: operation unavailable")

// Rect is a window's position and size.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size is a width/height pair.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Screenshot is a captured screen image.
type Screenshot struct {
	Base64 string `json:"base64"`
	Size   int    `json:"size"`
}

// CommandResult is the outcome of ExecuteCommand.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Host is the set of primitives the overlay needs from its environment.
type Host interface {
	Resize(ctx context.Context, width, height int) error
	Bounds(ctx context.Context) (Rect, error)
	SetBounds(ctx context.Context, r Rect) error
	ScreenSize(ctx context.Context) (Size, error)
	TakeScreenshot(ctx context.Context) (Screenshot, error)
	ExecuteCommand(ctx context.Context, cmd string) (CommandResult, error)
	OpenExternal(ctx context.Context, url string) error
	CopyToClipboard(ctx context.Context, text string) error
	Notify(ctx context.Context, title, message string) error
}

// IsUnavailable reports whether err means the host lacks the operation.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
