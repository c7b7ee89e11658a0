// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gen2brain/beeep"
	"golang.org/x/term"

	"github.com/jeranaias/rigrun-overlay/internal/util"
)

// Terminal cell size used to express the terminal as a screen in host units.
const (
	CellWidth  = 10
	CellHeight = 20
)

const (
	commandTimeout   = 30 * time.Second
	maxCommandOutput = 4000
)

// System is the desktop host: real clipboard, notifications, shell commands
// and browser launching. Window geometry is delegated to Window when set;
// without it the geometry operations are unavailable.
type System struct {
	// Window provides geometry for terminal-drawn windows.
	Window *Virtual
	// Shell overrides the command interpreter (default bash -c, cmd /C on
	// Windows).
	Shell []string
}

// NewSystem returns a System host drawing its window on w (may be nil).
func NewSystem(w *Virtual) *System {
	return &System{Window: w}
}

// Resize implements Host.
func (s *System) Resize(ctx context.Context, width, height int) error {
	if s.Window == nil {
		return ErrUnavailable
	}
	return s.Window.Resize(ctx, width, height)
}

// Bounds implements Host.
func (s *System) Bounds(ctx context.Context) (Rect, error) {
	if s.Window == nil {
		return Rect{}, ErrUnavailable
	}
	return s.Window.Bounds(ctx)
}

// SetBounds implements Host.
func (s *System) SetBounds(ctx context.Context, r Rect) error {
	if s.Window == nil {
		return ErrUnavailable
	}
	return s.Window.SetBounds(ctx, r)
}

// ScreenSize implements Host. The virtual window's screen wins; otherwise
// the controlling terminal's size is converted to host units.
func (s *System) ScreenSize(ctx context.Context) (Size, error) {
	if s.Window != nil {
		return s.Window.ScreenSize(ctx)
	}
	return TerminalScreen()
}

// TerminalScreen returns the terminal size in host units.
func TerminalScreen() (Size, error) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return Size{}, ErrUnavailable
	}
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return Size{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Size{Width: cols * CellWidth, Height: rows * CellHeight}, nil
}

// TakeScreenshot implements Host. Terminals cannot capture the screen.
func (s *System) TakeScreenshot(ctx context.Context) (Screenshot, error) {
	if s.Window != nil {
		return s.Window.TakeScreenshot(ctx)
	}
	return Screenshot{}, ErrUnavailable
}

// ExecuteCommand implements Host by running cmd through the shell.
func (s *System) ExecuteCommand(ctx context.Context, cmd string) (CommandResult, error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return CommandResult{Success: false, Message: "empty command"}, nil
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	shell := s.Shell
	if len(shell) == 0 {
		if runtime.GOOS == "windows" {
			shell = []string{"cmd", "/C"}
		} else {
			shell = []string{"bash", "-c"}
		}
	}
	args := append(append([]string(nil), shell[1:]...), cmd)
	c := exec.CommandContext(cmdCtx, shell[0], args...)

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	err := c.Run()
	message := util.TruncateRunes(strings.TrimSpace(out.String()), maxCommandOutput)

	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return CommandResult{Success: false, Message: "command timed out"}, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if message == "" {
				message = fmt.Sprintf("command exited with code %d", exitErr.ExitCode())
			}
			return CommandResult{Success: false, Message: message}, nil
		}
		return CommandResult{}, fmt.Errorf("host: run command: %w", err)
	}
	return CommandResult{Success: true, Message: message}, nil
}

// OpenExternal implements Host using the platform's URL opener.
func (s *System) OpenExternal(ctx context.Context, url string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		c = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		c = exec.CommandContext(ctx, "open", url)
	default:
		c = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := c.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return ErrUnavailable
		}
		return fmt.Errorf("host: open %s: %w", url, err)
	}
	go c.Wait()
	return nil
}

// CopyToClipboard implements Host.
func (s *System) CopyToClipboard(ctx context.Context, text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("host: clipboard: %w", err)
	}
	return nil
}

// Notify implements Host with a desktop notification.
func (s *System) Notify(ctx context.Context, title, message string) error {
	if err := beeep.Notify(title, message, ""); err != nil {
		return fmt.Errorf("%w: notify: %v", ErrUnavailable, err)
	}
	return nil
}
