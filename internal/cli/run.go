// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/backend"
	"github.com/jeranaias/rigrun-overlay/internal/bus"
	"github.com/jeranaias/rigrun-overlay/internal/cache"
	"github.com/jeranaias/rigrun-overlay/internal/config"
	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/overlay"
	"github.com/jeranaias/rigrun-overlay/internal/storage"
	"github.com/jeranaias/rigrun-overlay/internal/ui/chat"
)

// demoDelay paces the scripted backend so streaming is visible.
const demoDelay = 60 * time.Millisecond

// fallbackScreen is used when neither the config nor the terminal gives a
// screen size.
var fallbackScreen = host.Size{Width: 1920, Height: 1080}

type runOptions struct {
	demo        bool
	noAltScreen bool
}

// =============================================================================
// WINDOW
// =============================================================================

// runWindow hosts one overlay window in the terminal until the user quits.
func runWindow(cmd *cobra.Command, opts *globalOptions, run *runOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := openLogFile(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log := logx.New(cfg.Log, logFile)
	ctx := logx.ContextWithLogger(cmd.Context(), log)

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	// On error the transport is nil and the bus runs local-only; bus.New
	// reports it.
	transport, _ := bus.OpenTransport(cfg.Bus, log)

	virtual := host.NewVirtual(startBounds(cfg), screenSize(cfg))
	win, err := overlay.New(overlay.Deps{
		Config:    *cfg,
		Host:      host.NewSystem(virtual),
		Backend:   newBackend(cfg, run.demo, log),
		Cache:     newCache(cfg, db, log),
		KV:        db,
		Transport: transport,
		Logger:    log,
	})
	if err != nil {
		if transport != nil {
			_ = transport.Close()
		}
		return err
	}
	defer win.Close()

	if err := win.Mount(ctx); err != nil {
		return fmt.Errorf("mount window: %w", err)
	}
	log.Info("window running", "window", win.ID(), "role", win.Role(), "session", cfg.Window.SessionID)

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if !run.noAltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	p := tea.NewProgram(chat.New(win, chat.WithDrag(virtual)), progOpts...)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run window: %w", err)
	}
	return nil
}

// openLogFile opens the configured log file, defaulting to overlay.log next
// to the database.
func openLogFile(cfg *config.Config) (*os.File, error) {
	path := cfg.Log.File
	if path == "" {
		path = filepath.Join(filepath.Dir(cfg.Storage.Path), "overlay.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// newBackend returns the scripted demo backend or the HTTP client.
func newBackend(cfg *config.Config, demo bool, log pslog.Logger) backend.Backend {
	if demo || cfg.Backend.URL == "demo" {
		return &backend.Scripted{Delay: demoDelay}
	}
	return backend.NewClient(cfg.Backend, cfg.Generation.SupportsContinue, backend.WithLogger(log))
}

// newCache builds the response cache backed by db, or nil when disabled.
func newCache(cfg *config.Config, db *storage.DB, log pslog.Logger) *cache.Manager {
	if !cfg.Cache.Enabled {
		return nil
	}
	m := cache.NewManager(cache.Options{
		MaxEntries:          cfg.Cache.MaxEntries,
		SemanticThreshold:   cfg.Cache.SemanticThreshold,
		SuggestionThreshold: cfg.Cache.SuggestionThreshold,
		Store:               db,
		Logger:              log,
	})
	if err := m.Load(); err != nil {
		log.Warn("response cache not loaded", "err", err)
	}
	return m
}

// screenSize is the configured virtual screen, else the terminal's size.
func screenSize(cfg *config.Config) host.Size {
	if cfg.Window.ScreenWidth > 0 && cfg.Window.ScreenHeight > 0 {
		return host.Size{Width: cfg.Window.ScreenWidth, Height: cfg.Window.ScreenHeight}
	}
	if s, err := host.TerminalScreen(); err == nil {
		return s
	}
	return fallbackScreen
}

// startBounds places a new window in the bottom-right corner of the screen.
func startBounds(cfg *config.Config) host.Rect {
	screen := screenSize(cfg)
	size := cfg.Geometry.Mini
	if cfg.Window.Role == "card" {
		size = cfg.Geometry.Card
	}
	margin := cfg.Geometry.MarginPx
	x := screen.Width - size.Width - margin
	y := screen.Height - size.Height - margin
	if x < margin {
		x = margin
	}
	if y < margin {
		y = margin
	}
	return host.Rect{X: x, Y: y, Width: size.Width, Height: size.Height}
}
