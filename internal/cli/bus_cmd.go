// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-overlay/internal/bus"
	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/session"
)

// =============================================================================
// BUS COMMAND
// =============================================================================

func newBusCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bus",
		Short: "Inspect the broadcast channel shared by windows",
	}
	cmd.AddCommand(newBusTailCmd(opts))
	cmd.AddCommand(newBusRequestCmd(opts))
	return cmd
}

func newBusTailCmd(opts *globalOptions) *cobra.Command {
	var (
		raw   bool
		count int
	)
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print broadcast messages as they arrive",
		Example: `  rigrun-overlay bus tail
  rigrun-overlay bus tail --raw --count 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd, cfg)
			t, err := bus.OpenTransport(cfg.Bus, logx.Ctx(ctx))
			if err != nil {
				return err
			}
			defer t.Close()

			lines := make(chan string, 64)
			unsubscribe, err := t.Subscribe(func(data []byte) {
				line := strings.TrimSpace(string(data))
				if !raw {
					line = describeMessage(data)
				}
				select {
				case lines <- line:
				default:
				}
			})
			if err != nil {
				return err
			}
			defer unsubscribe()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("listening on %s (%s)", cfg.Bus.Channel, cfg.Bus.Transport)))
			for seen := 0; count <= 0 || seen < count; seen++ {
				select {
				case <-ctx.Done():
					return nil
				case line := <-lines:
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the JSON envelope unchanged")
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many messages")
	return cmd
}

func newBusRequestCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "request",
		Short: "Ask running windows to publish their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd, cfg)
			t, err := bus.OpenTransport(cfg.Bus, logx.Ctx(ctx))
			if err != nil {
				return err
			}
			defer t.Close()

			data, err := bus.Encode(bus.Message{Type: bus.KindRequest, Source: session.NewWindowID(time.Now())})
			if err != nil {
				return err
			}
			if err := t.Send(data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("state requested"))
			return nil
		},
	}
}

// describeMessage renders one message as a single readable line.
func describeMessage(data []byte) string {
	m, err := bus.Decode(data)
	if err != nil {
		return WarningStyle.Render("malformed: ") + err.Error()
	}
	head := fmt.Sprintf("%s %-8s %s", time.Now().Format("15:04:05.000"), m.Type, m.Source)
	if m.Type != bus.KindUpdate {
		return head
	}
	s := m.State
	var flags []string
	if s.IsThinking {
		flags = append(flags, "thinking")
	}
	if s.IsStreaming {
		flags = append(flags, "streaming")
	}
	if s.CurrentCommand != "" {
		flags = append(flags, "running "+s.CurrentCommand)
	}
	if len(flags) == 0 {
		flags = append(flags, "idle")
	}
	return fmt.Sprintf("%s entries=%d progress=%d%% %s", head, len(s.Timeline), s.Progress, strings.Join(flags, ","))
}

