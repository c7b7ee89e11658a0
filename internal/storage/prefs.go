// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"strings"
)

// Key prefixes for persisted overlay state.
const (
	keyModePrefix     = "mode:"
	keyDraftPrefix    = "draft:"
	keyRecentCommands = "recent_commands"
	keyHintDismissed  = "hint_dismissed"
)

// DraftKey returns the KV key holding the draft for sessionID.
func DraftKey(sessionID string) string {
	return keyDraftPrefix + sessionID
}

// =============================================================================
// PREFERENCES
// =============================================================================

// Prefs wraps a KV with the overlay's small persisted preferences.
// Failures are swallowed: preferences are best-effort.
type Prefs struct {
	kv          KV
	recentLimit int
}

// NewPrefs creates a Prefs over kv keeping at most recentLimit commands.
func NewPrefs(kv KV, recentLimit int) *Prefs {
	if recentLimit <= 0 {
		recentLimit = 20
	}
	return &Prefs{kv: kv, recentLimit: recentLimit}
}

// ModeFor returns the mode remembered for a position bucket.
func (p *Prefs) ModeFor(bucket string) (string, bool) {
	v, ok, err := p.kv.Get(keyModePrefix + bucket)
	if err != nil || !ok {
		return "", false
	}
	return v, true
}

// SaveMode remembers mode for a position bucket.
func (p *Prefs) SaveMode(bucket, mode string) error {
	return p.kv.Set(keyModePrefix+bucket, mode)
}

// RecentCommands returns the recent-command list, newest first.
func (p *Prefs) RecentCommands() []string {
	v, ok, err := p.kv.Get(keyRecentCommands)
	if err != nil || !ok {
		return nil
	}
	var cmds []string
	if err := json.Unmarshal([]byte(v), &cmds); err != nil {
		return nil
	}
	return cmds
}

// PushRecentCommand moves cmd to the front of the recent list.
func (p *Prefs) PushRecentCommand(cmd string) error {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return nil
	}
	cmds := []string{cmd}
	for _, c := range p.RecentCommands() {
		if c != cmd && len(cmds) < p.recentLimit {
			cmds = append(cmds, c)
		}
	}
	data, err := json.Marshal(cmds)
	if err != nil {
		return err
	}
	return p.kv.Set(keyRecentCommands, string(data))
}

// HintDismissed reports whether the onboarding hint was dismissed.
func (p *Prefs) HintDismissed() bool {
	v, ok, err := p.kv.Get(keyHintDismissed)
	return err == nil && ok && v == "true"
}

// SetHintDismissed persists the hint-dismissed flag.
func (p *Prefs) SetHintDismissed() error {
	return p.kv.Set(keyHintDismissed, "true")
}
