// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = "/tmp/overlay.db"
	cfg.Bus.SpoolDir = "/tmp/bus"

	require.NoError(t, cfg.Validate())
	require.Equal(t, 2, cfg.Composer.MinLength)
	require.Equal(t, 2000, cfg.Composer.MaxLength)
	require.Equal(t, 80*time.Millisecond, cfg.Composer.AutoExpandDelay())
	require.Equal(t, 0.92, cfg.Cache.SemanticThreshold)
}

func TestLoadFromPath_TOMLFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[window]
role = "card"

[composer]
max_length = 500

[storage]
path = "` + filepath.ToSlash(filepath.Join(dir, "kv.db")) + `"

[bus]
transport = "memory"
spool_dir = "` + filepath.ToSlash(filepath.Join(dir, "bus")) + `"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "card", cfg.Window.Role)
	require.Equal(t, 500, cfg.Composer.MaxLength)
	require.Equal(t, 2, cfg.Composer.MinLength, "unset values come from defaults")
	require.Equal(t, "memory", cfg.Bus.Transport)
	require.Equal(t, 640, cfg.Geometry.Card.Height)
}

func TestLoadFromPath_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{"window": {"role": "pill"}, "generation": {"reveal_interval_ms": 10},
		"storage": {"path": "kv.db"}, "bus": {"spool_dir": "bus"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, cfg.Generation.RevealInterval())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Window.Role = "sidebar"
	cfg.Composer.MinLength = 10
	cfg.Composer.MaxLength = 5
	cfg.Bus.Transport = "carrier-pigeon"

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 3)
	require.Contains(t, err.Error(), "window.role")
	require.Contains(t, err.Error(), "composer.max_length")
	require.Contains(t, err.Error(), "bus.transport")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("OVERLAY_ROLE", "card")
	t.Setenv("OVERLAY_BUS_TRANSPORT", "none")
	t.Setenv("OVERLAY_API_KEY", "sk-test-1234567890")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	require.Equal(t, "card", cfg.Window.Role)
	require.Equal(t, "none", cfg.Bus.Transport)
	require.Equal(t, "sk-test-1234567890", cfg.Backend.APIKey)
}

func TestSaveTOML_RoundTripsAndMasksString(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Backend.APIKey = "sk-secret-abcdefgh"
	cfg.Storage.Path = filepath.Join(dir, "kv.db")
	cfg.Bus.SpoolDir = filepath.Join(dir, "bus")
	require.NoError(t, SaveTOML(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Backend.APIKey, loaded.Backend.APIKey)

	rendered := cfg.String()
	require.False(t, strings.Contains(rendered, "sk-secret-abcdefgh"), "String must not leak the API key")
}
