// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// slashCommand is a composer command starting with "/".
type slashCommand struct {
	usage string
	desc  string
	run   func(m *Model, arg string) tea.Cmd
}

var slashCommands = map[string]slashCommand{
	"run": {
		usage: "/run <command>",
		desc:  "run a shell command and log its output",
		run: func(m *Model, arg string) tea.Cmd {
			if arg == "" {
				m.setNotice("usage: /run <command>", true)
				return nil
			}
			win := m.win
			return func() tea.Msg {
				res, err := win.RunCommand(win.Context(), arg)
				if err != nil {
					return noticeMsg{text: err.Error(), isErr: true}
				}
				if !res.Success {
					return noticeMsg{text: "Command failed.", isErr: true}
				}
				return noticeMsg{text: "Command finished."}
			}
		},
	},
	"open": {
		usage: "/open <url>",
		desc:  "open a link in the browser",
		run: func(m *Model, arg string) tea.Cmd {
			win := m.win
			return func() tea.Msg {
				if err := win.OpenLink(win.Context(), arg); err != nil {
					return noticeMsg{text: err.Error(), isErr: true}
				}
				return noticeMsg{text: "Opened " + arg}
			}
		},
	},
	"attach": {
		usage: "/attach",
		desc:  "attach a screenshot to the next message",
		run:   func(m *Model, _ string) tea.Cmd { return m.attach() },
	},
	"detach": {
		usage: "/detach",
		desc:  "drop the pending screenshot",
		run: func(m *Model, _ string) tea.Cmd {
			m.win.DetachScreenshot()
			return nil
		},
	},
	"continue": {
		usage: "/continue",
		desc:  "continue a stopped answer",
		run: func(m *Model, _ string) tea.Cmd {
			m.fail(m.win.Continue())
			return nil
		},
	},
	"clear": {
		usage: "/clear",
		desc:  "clear the conversation in every window",
		run: func(m *Model, _ string) tea.Cmd {
			m.win.ClearConversation()
			m.selected = -1
			return nil
		},
	},
	"hint": {
		usage: "/hint",
		desc:  "hide the first-run hint",
		run: func(m *Model, _ string) tea.Cmd {
			m.fail(m.win.DismissHint())
			return nil
		},
	},
	"recent": {
		usage: "/recent",
		desc:  "list recently run commands",
		run: func(m *Model, _ string) tea.Cmd {
			recent := m.win.RecentCommands()
			if len(recent) == 0 {
				m.setNotice("No recent commands.", false)
				return nil
			}
			m.setNotice("Recent: "+strings.Join(recent, ", "), false)
			return nil
		},
	},
}

// runSlash dispatches "/name arg".
func (m *Model) runSlash(line string) tea.Cmd {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	if name == "help" {
		m.setNotice(slashHelp(), false)
		return nil
	}
	c, ok := slashCommands[name]
	if !ok {
		m.setNotice(fmt.Sprintf("Unknown command /%s. Try /help.", name), true)
		return nil
	}
	return c.run(m, arg)
}

// slashHelp lists the commands, one per line.
func slashHelp() string {
	names := make([]string, 0, len(slashCommands))
	for n := range slashCommands {
		names = append(names, n)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, n := range names {
		c := slashCommands[n]
		lines = append(lines, fmt.Sprintf("%-16s %s", c.usage, c.desc))
	}
	return strings.Join(lines, "\n")
}

// attach captures a screenshot off the update loop.
func (m *Model) attach() tea.Cmd {
	win := m.win
	return func() tea.Msg {
		if err := win.AttachScreenshot(win.Context()); err != nil {
			return noticeMsg{text: err.Error(), isErr: true}
		}
		return noticeMsg{text: "Screenshot attached."}
	}
}
