// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logx builds the overlay's structured logger and annotates it with
// window identity.
package logx

import (
	"context"
	"io"
	"os"
	"strings"

	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/config"
)

// New builds a logger from the log configuration. A nil writer means stderr.
// Unknown level names fall back to info.
func New(cfg config.LogConfig, w io.Writer) pslog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := pslog.Options{
		Mode:     pslog.ModeConsole,
		MinLevel: pslog.InfoLevel,
	}
	if strings.EqualFold(cfg.Format, "json") {
		opts.Mode = pslog.ModeStructured
		opts.NoColor = true
		opts.VerboseFields = true
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "warn", "warning":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	}
	return pslog.NewWithOptions(w, opts)
}

// Ctx returns the logger bound to ctx.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithWindow annotates the logger with the window id and role.
func WithWindow(log pslog.Logger, windowID, role string) pslog.Logger {
	if windowID != "" {
		log = log.With("window", windowID)
	}
	if role != "" {
		log = log.With("role", role)
	}
	return log
}

// WithComponent annotates the logger with a component name.
func WithComponent(log pslog.Logger, component string) pslog.Logger {
	if component == "" {
		return log
	}
	return log.With("component", component)
}

// ContextWithLogger attaches the logger to the context.
func ContextWithLogger(ctx context.Context, log pslog.Logger) context.Context {
	return pslog.ContextWithLogger(ctx, log)
}

// Discard returns a logger that drops everything. Used by tests and by
// components constructed without a logger.
func Discard() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.ErrorLevel,
	})
}

// OrDiscard returns log, or a discarding logger when log is nil.
func OrDiscard(log pslog.Logger) pslog.Logger {
	if log == nil {
		return Discard()
	}
	return log
}
