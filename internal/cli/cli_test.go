// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-overlay/internal/bus"
	"github.com/jeranaias/rigrun-overlay/internal/config"
	"github.com/jeranaias/rigrun-overlay/internal/session"
	"github.com/jeranaias/rigrun-overlay/internal/state"
	"github.com/jeranaias/rigrun-overlay/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// withHome points the config directory at a temp dir.
func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OVERLAY_ROLE", "")
	t.Setenv("OVERLAY_BUS_TRANSPORT", "")
	t.Setenv("OVERLAY_LOG_LEVEL", "error")
	return home
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigInitShowPath(t *testing.T) {
	home := withHome(t)
	want := filepath.Join(home, ".rigrun-overlay", "config.toml")

	out, err := run(t, "config", "path")
	require.NoError(t, err)
	require.Equal(t, want, strings.TrimSpace(out))

	out, err = run(t, "config", "init")
	require.NoError(t, err)
	require.Contains(t, out, want)
	require.FileExists(t, want)

	_, err = run(t, "config", "init")
	require.ErrorIs(t, err, ErrConfigExists)
	_, err = run(t, "config", "init", "--force")
	require.NoError(t, err)

	out, err = run(t, "config", "show")
	require.NoError(t, err)
	require.Contains(t, out, `role = "pill"`)
}

func TestRoleFlag(t *testing.T) {
	withHome(t)

	out, err := run(t, "config", "show", "--role", "card")
	require.NoError(t, err)
	require.Contains(t, out, `role = "card"`)

	_, err = run(t, "config", "show", "--role", "bogus")
	require.Error(t, err)
	require.Contains(t, err.Error(), "window.role")
}

func TestExplicitConfigFile(t *testing.T) {
	withHome(t)
	path := filepath.Join(t.TempDir(), "overlay.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\nrole = \"card\"\nsession_id = \"work\"\n"), 0600))

	out, err := run(t, "config", "show", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, `role = "card"`)
	require.Contains(t, out, `session_id = "work"`)
}

// =============================================================================
// CACHE
// =============================================================================

func TestCacheStatsAndClear(t *testing.T) {
	withHome(t)
	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := storage.Open(cfg.Storage.Path)
	require.NoError(t, err)
	for _, p := range []string{"what is go", "how do channels work"} {
		require.NoError(t, db.SaveResponse(storage.ResponseRecord{Prompt: p, Answer: "answer", CreatedAt: time.Now()}))
	}
	require.NoError(t, db.Close())

	out, err := run(t, "cache", "stats", "--json")
	require.NoError(t, err)
	var st cacheStatsJSON
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Equal(t, 2, st.Entries)
	require.Equal(t, cfg.Storage.Path, st.Path)

	out, err = run(t, "cache", "clear")
	require.NoError(t, err)
	require.Contains(t, out, "cleared 2 cached responses")

	out, err = run(t, "cache", "stats")
	require.NoError(t, err)
	require.Contains(t, out, "0 / 1000")
}

// =============================================================================
// BUS
// =============================================================================

func TestBusTailPrintsMessages(t *testing.T) {
	withHome(t)
	t.Setenv("OVERLAY_BUS_TRANSPORT", "memory")

	done := make(chan struct{})
	var (
		out    string
		runErr error
	)
	go func() {
		defer close(done)
		out, runErr = run(t, "bus", "tail", "--count", "1")
	}()

	sender := bus.SharedHub().Endpoint()
	defer sender.Close()
	data, err := bus.Encode(bus.Message{
		Type:   bus.KindUpdate,
		Source: session.WindowID("peer-1"),
		State:  &state.Snapshot{Progress: 40, IsThinking: true},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_ = sender.Send(data)
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, runErr)
	require.Contains(t, out, "peer-1")
	require.Contains(t, out, "progress=40%")
	require.Contains(t, out, "thinking")
}

func TestDescribeMalformed(t *testing.T) {
	require.Contains(t, describeMessage([]byte("{")), "malformed")
	line := describeMessage([]byte(`{"type":"announce","source":"w1"}`))
	require.Contains(t, line, "announce")
	require.Contains(t, line, "w1")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "rigrun-overlay "+Version)
}
