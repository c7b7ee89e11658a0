// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the overlay.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.rigrun-overlay/config.toml
//   - ~/.rigrun-overlay/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigrun-overlay/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete overlay configuration.
type Config struct {
	Window     WindowConfig     `toml:"window" json:"window"`
	Geometry   GeometryConfig   `toml:"geometry" json:"geometry"`
	Composer   ComposerConfig   `toml:"composer" json:"composer"`
	Generation GenerationConfig `toml:"generation" json:"generation"`
	Timeline   TimelineConfig   `toml:"timeline" json:"timeline"`
	Cache      CacheConfig      `toml:"cache" json:"cache"`
	Bus        BusConfig        `toml:"bus" json:"bus"`
	Storage    StorageConfig    `toml:"storage" json:"storage"`
	Backend    BackendConfig    `toml:"backend" json:"backend"`
	Log        LogConfig        `toml:"log" json:"log"`
}

// WindowConfig selects what kind of window this process hosts.
type WindowConfig struct {
	// Role is "pill" (persistent tray object, starts Mini) or "card"
	// (hosts the full panel, locked to Card).
	Role string `toml:"role" json:"role"`
	// SessionID names the logical session; windows sharing it share drafts.
	SessionID string `toml:"session_id" json:"session_id"`
	// ScreenWidth/ScreenHeight size the virtual screen when no native
	// window manager is available. Zero means "derive from the terminal".
	ScreenWidth  int `toml:"screen_width" json:"screen_width"`
	ScreenHeight int `toml:"screen_height" json:"screen_height"`
}

// Size is a width/height pair in host units.
type Size struct {
	Width  int `toml:"width" json:"width"`
	Height int `toml:"height" json:"height"`
}

// GeometryConfig maps modes to window sizes and controls screen clamping.
type GeometryConfig struct {
	Mini Size `toml:"mini" json:"mini"`
	Bar  Size `toml:"bar" json:"bar"`
	Card Size `toml:"card" json:"card"`
	// MarginPx is the minimum distance kept between the window and the
	// screen edge.
	MarginPx int `toml:"margin_px" json:"margin_px"`
	// ClampIntervalMs is how often the window is checked against the screen.
	ClampIntervalMs int `toml:"clamp_interval_ms" json:"clamp_interval_ms"`
	// BucketGridPx is the grid used to key per-position mode memory.
	BucketGridPx int `toml:"bucket_grid_px" json:"bucket_grid_px"`
}

// ComposerConfig controls input validation and composer timers.
type ComposerConfig struct {
	MinLength           int `toml:"min_length" json:"min_length"`
	MaxLength           int `toml:"max_length" json:"max_length"`
	AutoExpandDelayMs   int `toml:"auto_expand_delay_ms" json:"auto_expand_delay_ms"`
	BarColumns          int `toml:"bar_columns" json:"bar_columns"`
	DraftDebounceMs     int `toml:"draft_debounce_ms" json:"draft_debounce_ms"`
	SuggestionDelayMs   int `toml:"suggestion_delay_ms" json:"suggestion_delay_ms"`
	RecentCommandsLimit int `toml:"recent_commands_limit" json:"recent_commands_limit"`
}

// GenerationConfig controls the request lifecycle timers.
type GenerationConfig struct {
	ConnectDelayMs        int  `toml:"connect_delay_ms" json:"connect_delay_ms"`
	StopCollapseThreshold int  `toml:"stop_collapse_threshold_ms" json:"stop_collapse_threshold_ms"`
	CollapseGraceMs       int  `toml:"collapse_grace_ms" json:"collapse_grace_ms"`
	RevealIntervalMs      int  `toml:"reveal_interval_ms" json:"reveal_interval_ms"`
	RequestTimeoutSecs    int  `toml:"request_timeout_secs" json:"request_timeout_secs"`
	SupportsContinue      bool `toml:"supports_continue" json:"supports_continue"`
}

// TimelineConfig controls timeline editing.
type TimelineConfig struct {
	UndoExpiryMs int `toml:"undo_expiry_ms" json:"undo_expiry_ms"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// SemanticThreshold is the minimum similarity score for near-duplicate
	// hits (0.0-1.0).
	SemanticThreshold float64 `toml:"semantic_threshold" json:"semantic_threshold"`
	MaxEntries        int     `toml:"max_entries" json:"max_entries"`
	SuggestionLimit   int     `toml:"suggestion_limit" json:"suggestion_limit"`
	// SuggestionThreshold is the minimum similarity for a related prompt.
	SuggestionThreshold float64 `toml:"suggestion_threshold" json:"suggestion_threshold"`
}

// BusConfig selects the broadcast transport.
type BusConfig struct {
	// Transport is "spool" (cross-process directory), "memory" (in-process)
	// or "none" (local-only).
	Transport string `toml:"transport" json:"transport"`
	// SpoolDir is where the spool transport exchanges messages.
	SpoolDir string `toml:"spool_dir" json:"spool_dir"`
	// Channel separates unrelated sessions sharing one spool directory.
	Channel string `toml:"channel" json:"channel"`
	// RetainSecs is how long spool files are kept before pruning.
	RetainSecs int `toml:"retain_secs" json:"retain_secs"`
}

// StorageConfig locates the local key-value database.
type StorageConfig struct {
	Path string `toml:"path" json:"path"`
}

// BackendConfig configures the assistant backend.
type BackendConfig struct {
	URL               string  `toml:"url" json:"url"`
	APIKey            string  `toml:"api_key" json:"api_key"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// Format is "console" or "json".
	Format string `toml:"format" json:"format"`
	// File receives logs when set; otherwise stderr is used.
	File string `toml:"file" json:"file"`
}

// =============================================================================
// DURATION HELPERS
// =============================================================================

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// ClampInterval returns the clamp poll interval.
func (g GeometryConfig) ClampInterval() time.Duration { return ms(g.ClampIntervalMs) }

// AutoExpandDelay returns the multi-line evaluation debounce.
func (c ComposerConfig) AutoExpandDelay() time.Duration { return ms(c.AutoExpandDelayMs) }

// DraftDebounce returns the draft write debounce.
func (c ComposerConfig) DraftDebounce() time.Duration { return ms(c.DraftDebounceMs) }

// SuggestionDelay returns the suggestion lookup debounce.
func (c ComposerConfig) SuggestionDelay() time.Duration { return ms(c.SuggestionDelayMs) }

// ConnectDelay returns the Connecting→Thinking delay.
func (g GenerationConfig) ConnectDelay() time.Duration { return ms(g.ConnectDelayMs) }

// CollapseThreshold returns the elapsed time under which a stopped thought
// collapses immediately.
func (g GenerationConfig) CollapseThreshold() time.Duration { return ms(g.StopCollapseThreshold) }

// CollapseGrace returns the delay before a long thought auto-collapses.
func (g GenerationConfig) CollapseGrace() time.Duration { return ms(g.CollapseGraceMs) }

// RevealInterval returns the per-word delay for cached answers.
func (g GenerationConfig) RevealInterval() time.Duration { return ms(g.RevealIntervalMs) }

// RequestTimeout returns the backend request timeout.
func (g GenerationConfig) RequestTimeout() time.Duration {
	return time.Duration(g.RequestTimeoutSecs) * time.Second
}

// UndoExpiry returns how long a deleted entry can be restored.
func (t TimelineConfig) UndoExpiry() time.Duration { return ms(t.UndoExpiryMs) }

// Retain returns how long spool files are kept.
func (b BusConfig) Retain() time.Duration { return time.Duration(b.RetainSecs) * time.Second }

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Role:      "pill",
			SessionID: "default",
		},
		Geometry: GeometryConfig{
			Mini:            Size{Width: 64, Height: 64},
			Bar:             Size{Width: 560, Height: 64},
			Card:            Size{Width: 560, Height: 640},
			MarginPx:        8,
			ClampIntervalMs: 1000,
			BucketGridPx:    100,
		},
		Composer: ComposerConfig{
			MinLength:           2,
			MaxLength:           2000,
			AutoExpandDelayMs:   80,
			BarColumns:          56,
			DraftDebounceMs:     500,
			SuggestionDelayMs:   300,
			RecentCommandsLimit: 20,
		},
		Generation: GenerationConfig{
			ConnectDelayMs:        150,
			StopCollapseThreshold: 2000,
			CollapseGraceMs:       3000,
			RevealIntervalMs:      30,
			RequestTimeoutSecs:    120,
			SupportsContinue:      false,
		},
		Timeline: TimelineConfig{
			UndoExpiryMs: 5000,
		},
		Cache: CacheConfig{
			Enabled:             true,
			SemanticThreshold:   0.92,
			MaxEntries:          1000,
			SuggestionLimit:     3,
			SuggestionThreshold: 0.5,
		},
		Bus: BusConfig{
			Transport:  "spool",
			Channel:    "overlay",
			RetainSecs: 30,
		},
		Backend: BackendConfig{
			URL:               "http://127.0.0.1:8787",
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the overlay configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun-overlay"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg and fills missing values.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file into cfg and fills missing values.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// finish resolves derived paths and validates.
func (c *Config) finish() error {
	if err := c.resolvePaths(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// resolvePaths fills storage and spool locations under the config dir.
func (c *Config) resolvePaths() error {
	if c.Storage.Path != "" && c.Bus.SpoolDir != "" {
		return nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(dir, "overlay.db")
	}
	if c.Bus.SpoolDir == "" {
		c.Bus.SpoolDir = filepath.Join(dir, "bus")
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Window.Role == "" {
		cfg.Window.Role = d.Window.Role
	}
	if cfg.Window.SessionID == "" {
		cfg.Window.SessionID = d.Window.SessionID
	}

	fillSize(&cfg.Geometry.Mini, d.Geometry.Mini)
	fillSize(&cfg.Geometry.Bar, d.Geometry.Bar)
	fillSize(&cfg.Geometry.Card, d.Geometry.Card)
	fillInt(&cfg.Geometry.MarginPx, d.Geometry.MarginPx)
	fillInt(&cfg.Geometry.ClampIntervalMs, d.Geometry.ClampIntervalMs)
	fillInt(&cfg.Geometry.BucketGridPx, d.Geometry.BucketGridPx)

	fillInt(&cfg.Composer.MinLength, d.Composer.MinLength)
	fillInt(&cfg.Composer.MaxLength, d.Composer.MaxLength)
	fillInt(&cfg.Composer.AutoExpandDelayMs, d.Composer.AutoExpandDelayMs)
	fillInt(&cfg.Composer.BarColumns, d.Composer.BarColumns)
	fillInt(&cfg.Composer.DraftDebounceMs, d.Composer.DraftDebounceMs)
	fillInt(&cfg.Composer.SuggestionDelayMs, d.Composer.SuggestionDelayMs)
	fillInt(&cfg.Composer.RecentCommandsLimit, d.Composer.RecentCommandsLimit)

	fillInt(&cfg.Generation.ConnectDelayMs, d.Generation.ConnectDelayMs)
	fillInt(&cfg.Generation.StopCollapseThreshold, d.Generation.StopCollapseThreshold)
	fillInt(&cfg.Generation.CollapseGraceMs, d.Generation.CollapseGraceMs)
	fillInt(&cfg.Generation.RevealIntervalMs, d.Generation.RevealIntervalMs)
	fillInt(&cfg.Generation.RequestTimeoutSecs, d.Generation.RequestTimeoutSecs)

	fillInt(&cfg.Timeline.UndoExpiryMs, d.Timeline.UndoExpiryMs)

	if cfg.Cache.SemanticThreshold == 0 {
		cfg.Cache.SemanticThreshold = d.Cache.SemanticThreshold
	}
	if cfg.Cache.SuggestionThreshold == 0 {
		cfg.Cache.SuggestionThreshold = d.Cache.SuggestionThreshold
	}
	fillInt(&cfg.Cache.MaxEntries, d.Cache.MaxEntries)
	fillInt(&cfg.Cache.SuggestionLimit, d.Cache.SuggestionLimit)

	if cfg.Bus.Transport == "" {
		cfg.Bus.Transport = d.Bus.Transport
	}
	if cfg.Bus.Channel == "" {
		cfg.Bus.Channel = d.Bus.Channel
	}
	fillInt(&cfg.Bus.RetainSecs, d.Bus.RetainSecs)

	if cfg.Backend.URL == "" {
		cfg.Backend.URL = d.Backend.URL
	}
	if cfg.Backend.RequestsPerSecond == 0 {
		cfg.Backend.RequestsPerSecond = d.Backend.RequestsPerSecond
	}
	fillInt(&cfg.Backend.Burst, d.Backend.Burst)

	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
}

func fillInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func fillSize(v *Size, def Size) {
	if v.Width == 0 {
		v.Width = def.Width
	}
	if v.Height == 0 {
		v.Height = def.Height
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration to path as TOML.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# rigrun-overlay configuration file")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch strings.ToLower(c.Window.Role) {
	case "pill", "card":
	default:
		add("window.role", "invalid role '%s', must be one of: pill, card", c.Window.Role)
	}

	for name, size := range map[string]Size{
		"geometry.mini": c.Geometry.Mini,
		"geometry.bar":  c.Geometry.Bar,
		"geometry.card": c.Geometry.Card,
	} {
		if size.Width <= 0 || size.Height <= 0 {
			add(name, "width and height must be positive, got %dx%d", size.Width, size.Height)
		}
	}
	if c.Geometry.MarginPx < 0 {
		add("geometry.margin_px", "must not be negative")
	}

	if c.Composer.MinLength < 1 {
		add("composer.min_length", "must be at least 1")
	}
	if c.Composer.MaxLength < c.Composer.MinLength {
		add("composer.max_length", "must be >= min_length (%d)", c.Composer.MinLength)
	}

	if c.Cache.SemanticThreshold < 0 || c.Cache.SemanticThreshold > 1 {
		add("cache.semantic_threshold", "must be between 0.0 and 1.0, got %v", c.Cache.SemanticThreshold)
	}
	if c.Cache.SuggestionThreshold < 0 || c.Cache.SuggestionThreshold > 1 {
		add("cache.suggestion_threshold", "must be between 0.0 and 1.0, got %v", c.Cache.SuggestionThreshold)
	}

	switch strings.ToLower(c.Bus.Transport) {
	case "spool", "memory", "none":
	default:
		add("bus.transport", "invalid transport '%s', must be one of: spool, memory, none", c.Bus.Transport)
	}

	if c.Backend.RequestsPerSecond < 0 {
		add("backend.requests_per_second", "must not be negative")
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		add("log.format", "invalid format '%s', must be one of: console, json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - OVERLAY_ROLE: overrides window.role
//   - OVERLAY_SESSION: overrides window.session_id
//   - OVERLAY_BACKEND_URL: overrides backend.url
//   - OVERLAY_API_KEY: overrides backend.api_key
//   - OVERLAY_BUS_TRANSPORT: overrides bus.transport
//   - OVERLAY_SPOOL_DIR: overrides bus.spool_dir
//   - OVERLAY_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if role := os.Getenv("OVERLAY_ROLE"); role != "" {
		c.Window.Role = role
	}
	if session := os.Getenv("OVERLAY_SESSION"); session != "" {
		c.Window.SessionID = session
	}
	if url := os.Getenv("OVERLAY_BACKEND_URL"); url != "" {
		c.Backend.URL = url
	}
	if key := os.Getenv("OVERLAY_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}
	if transport := os.Getenv("OVERLAY_BUS_TRANSPORT"); transport != "" {
		c.Bus.Transport = transport
	}
	if dir := os.Getenv("OVERLAY_SPOOL_DIR"); dir != "" {
		c.Bus.SpoolDir = dir
	}
	if level := os.Getenv("OVERLAY_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// String renders the configuration as TOML with the API key masked.
func (c *Config) String() string {
	clone := *c
	if clone.Backend.APIKey != "" {
		clone.Backend.APIKey = util.MaskSecret(clone.Backend.APIKey)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(&clone); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}
