// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-overlay/internal/config"
	"github.com/jeranaias/rigrun-overlay/internal/logx"
)

// Version information, set from main.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	role       string
	session    string
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// Execute runs the command line and returns the process exit code.
func Execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ErrorText(err))
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	run := &runOptions{}

	root := &cobra.Command{
		Use:   "rigrun-overlay",
		Short: "Floating assistant overlay for the terminal",
		Long: `rigrun-overlay runs one overlay window. A "pill" window starts as a small
badge and grows into a bar and a full card; a "card" window always shows the
full conversation. Windows of the same session share their conversation.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWindow(cmd, opts, run)
		},
	}
	root.SetVersionTemplate(versionTemplate())

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.rigrun-overlay/config.toml)")
	pf.StringVar(&opts.role, "role", "", "window role: pill or card")
	pf.StringVar(&opts.session, "session", "", "session id shared by cooperating windows")

	root.Flags().BoolVar(&run.demo, "demo", false, "answer with the built-in scripted backend")
	root.Flags().BoolVar(&run.noAltScreen, "inline", false, "render inline instead of the alternate screen")

	root.AddCommand(newBusCmd(opts))
	root.AddCommand(newCacheCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func versionTemplate() string {
	return fmt.Sprintf("rigrun-overlay %s\n  commit: %s\n  built:  %s\n", Version, GitCommit, BuildDate)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), versionTemplate())
		},
	}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.role != "" {
		cfg.Window.Role = opts.role
	}
	if opts.session != "" {
		cfg.Window.SessionID = opts.session
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// commandContext attaches a stderr logger to the command context.
func commandContext(cmd *cobra.Command, cfg *config.Config) context.Context {
	log := logx.New(cfg.Log, cmd.ErrOrStderr())
	return logx.ContextWithLogger(cmd.Context(), log)
}

// ErrorText formats a command error for the terminal.
func ErrorText(err error) string {
	return WarningStyle.Render("error: ") + err.Error()
}
