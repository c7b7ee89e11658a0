// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-overlay/internal/cache"
	"github.com/jeranaias/rigrun-overlay/internal/config"
	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/storage"
)

// =============================================================================
// CACHE COMMAND
// =============================================================================

// cacheStatsJSON is the --json form of cache stats.
type cacheStatsJSON struct {
	Path       string `json:"path"`
	Enabled    bool   `json:"enabled"`
	Entries    int    `json:"entries"`
	MaxEntries int    `json:"max_entries"`
}

func newCacheCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	var asJSON bool
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show response cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, m, db, err := openCache(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			st := m.Stats()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cacheStatsJSON{
					Path:       cfg.Storage.Path,
					Enabled:    cfg.Cache.Enabled,
					Entries:    st.Entries,
					MaxEntries: cfg.Cache.MaxEntries,
				})
			}
			fmt.Fprintln(out, TitleStyle.Render("Response cache"))
			fmt.Fprintln(out, RenderField("Database", cfg.Storage.Path))
			fmt.Fprintln(out, RenderField("Enabled", fmt.Sprintf("%t", cfg.Cache.Enabled)))
			fmt.Fprintln(out, RenderField("Entries", fmt.Sprintf("%d / %d", st.Entries, cfg.Cache.MaxEntries)))
			fmt.Fprintln(out, RenderField("Match threshold", fmt.Sprintf("%.2f", cfg.Cache.SemanticThreshold)))
			return nil
		},
	}
	stats.Flags().BoolVar(&asJSON, "json", false, "output JSON")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, m, db, err := openCache(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			n := m.Stats().Entries
			if err := m.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("cleared %d cached responses", n)))
			return nil
		},
	}

	cmd.AddCommand(stats, clearCmd)
	return cmd
}

// openCache opens the database and loads the persisted responses.
func openCache(cmd *cobra.Command, opts *globalOptions) (*config.Config, *cache.Manager, *storage.DB, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx := commandContext(cmd, cfg)
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open storage: %w", err)
	}
	m := cache.NewManager(cache.Options{
		MaxEntries:          cfg.Cache.MaxEntries,
		SemanticThreshold:   cfg.Cache.SemanticThreshold,
		SuggestionThreshold: cfg.Cache.SuggestionThreshold,
		Store:               db,
		Logger:              logx.Ctx(ctx),
	})
	if err := m.Load(); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("load cache: %w", err)
	}
	return cfg, m, db, nil
}
