// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state defines the session snapshot windows replicate to each other
// and its comparison signature.
package state

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/timeline"
)

// Onboarding is the first-run hint state.
type Onboarding string

const (
	OnboardingWelcome Onboarding = "welcome"
	OnboardingHint    Onboarding = "hint"
	OnboardingDone    Onboarding = "done"
)

// Profile identifies the signed-in user.
type Profile struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Plan  string `json:"plan,omitempty"`
}

// Snapshot is the replicated session state. Every field is independently
// overwritable; the last window to publish wins.
//
// Window mode is not part of the snapshot; each window owns its own mode.
type Snapshot struct {
	Profile         Profile          `json:"profile"`
	Timeline        []timeline.Entry `json:"timeline"`
	Progress        int              `json:"progress"`
	CurrentCommand  string           `json:"current_command"`
	IsThinking      bool             `json:"is_thinking"`
	SimilarGoals    []string         `json:"similar_goals"`
	ShowSuggestions bool             `json:"show_suggestions"`
	ComposerText    string           `json:"composer_text"`
	IsStreaming     bool             `json:"is_streaming"`
	IsConnected     bool             `json:"is_connected"`
	Screenshot      *host.Screenshot `json:"screenshot,omitempty"`
	Onboarding      Onboarding       `json:"onboarding"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Timeline = timeline.CloneEntries(s.Timeline)
	if s.SimilarGoals != nil {
		out.SimilarGoals = append([]string(nil), s.SimilarGoals...)
	}
	if s.Screenshot != nil {
		shot := *s.Screenshot
		out.Screenshot = &shot
	}
	return out
}

var encMode = sync.OnceValues(func() (cbor.EncMode, error) {
	return cbor.CoreDetEncOptions().EncMode()
})

// Signature returns a stable hex digest of s. Two snapshots with equal
// content always have equal signatures; nil and empty slices are treated
// the same.
func Signature(s Snapshot) (string, error) {
	em, err := encMode()
	if err != nil {
		return "", fmt.Errorf("state: cbor mode: %w", err)
	}
	norm := s
	if len(norm.Timeline) == 0 {
		norm.Timeline = nil
	}
	if len(norm.SimilarGoals) == 0 {
		norm.SimilarGoals = nil
	}
	data, err := em.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("state: encode snapshot: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// MustSignature is Signature for snapshots known to encode.
func MustSignature(s Snapshot) string {
	sig, err := Signature(s)
	if err != nil {
		panic(err)
	}
	return sig
}
