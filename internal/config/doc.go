// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the overlay.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - GeometryConfig: Mode sizes, screen margin and clamp interval
//   - ComposerConfig: Input validation bounds and composer timers
//   - GenerationConfig: Request lifecycle timers
//   - BusConfig: Broadcast transport selection
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (OVERLAY_*)
//   - ~/.rigrun-overlay/config.toml
//   - ~/.rigrun-overlay/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Composer.MaxLength)
package config
