// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVirtualGeometry(t *testing.T) {
	ctx := context.Background()
	v := NewVirtual(Rect{X: 10, Y: 20, Width: 64, Height: 64}, Size{Width: 1920, Height: 1080})

	require.NoError(t, v.Resize(ctx, 560, 640))
	b, err := v.Bounds(ctx)
	require.NoError(t, err)
	require.Equal(t, Rect{X: 10, Y: 20, Width: 560, Height: 640}, b)

	v.Move(5, -5)
	require.Equal(t, Rect{X: 15, Y: 15, Width: 560, Height: 640}, v.Current())
	require.Equal(t, 1, v.Calls(OpResize))
	require.Error(t, v.Resize(ctx, 0, 10))
}

func TestVirtualDisable(t *testing.T) {
	ctx := context.Background()
	v := NewVirtual(Rect{}, Size{})
	v.Disable(OpResize, OpClipboard)

	require.ErrorIs(t, v.Resize(ctx, 1, 1), ErrUnavailable)
	require.True(t, IsUnavailable(v.CopyToClipboard(ctx, "x")))
	require.Equal(t, "", v.Clipboard())

	_, err := v.TakeScreenshot(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestVirtualServices(t *testing.T) {
	ctx := context.Background()
	v := NewVirtual(Rect{}, Size{})
	v.SetCommandHandler(func(cmd string) CommandResult {
		return CommandResult{Success: cmd == "ls", Message: "ran " + cmd}
	})

	res, err := v.ExecuteCommand(ctx, "ls")
	require.NoError(t, err)
	require.True(t, res.Success)

	require.NoError(t, v.OpenExternal(ctx, "https://example.com"))
	require.NoError(t, v.Notify(ctx, "t", "m"))
	require.Equal(t, []string{"https://example.com"}, v.Opened())
	require.Equal(t, []Notification{{Title: "t", Message: "m"}}, v.Notifications())
}

func TestSystemWithoutWindow(t *testing.T) {
	s := NewSystem(nil)
	ctx := context.Background()

	require.ErrorIs(t, s.Resize(ctx, 10, 10), ErrUnavailable)
	_, err := s.Bounds(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = s.TakeScreenshot(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSystemExecuteCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell test requires a POSIX shell")
	}
	s := &System{Shell: []string{"sh", "-c"}}
	ctx := context.Background()

	res, err := s.ExecuteCommand(ctx, "echo hello")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "hello", res.Message)

	res, err = s.ExecuteCommand(ctx, "exit 3")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Message, "3")

	res, err = s.ExecuteCommand(ctx, "   ")
	require.NoError(t, err)
	require.False(t, res.Success)
}
