// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/rigrun-overlay/internal/session"
	"github.com/jeranaias/rigrun-overlay/internal/state"
)

// Kind is the message type on the wire.
type Kind string

const (
	// KindAnnounce signals that a window is present. No reply is required.
	KindAnnounce Kind = "announce"
	// KindRequest asks peers to publish their current state.
	KindRequest Kind = "request"
	// KindUpdate carries a snapshot to adopt.
	KindUpdate Kind = "update"
)

// Message is one broadcast envelope:
//
//	{"type": "update", "source": "<window id>", "state": {...}}
type Message struct {
	Type   Kind             `json:"type"`
	Source session.WindowID `json:"source"`
	State  *state.Snapshot  `json:"state,omitempty"`
}

// ErrMalformed is returned by Decode for messages that cannot be used.
var ErrMalformed = errors.New("bus: malformed message")

// Encode serializes m.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses and checks a message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Source == "" {
		return Message{}, fmt.Errorf("%w: missing source", ErrMalformed)
	}
	switch m.Type {
	case KindAnnounce, KindRequest:
	case KindUpdate:
		if m.State == nil {
			return Message{}, fmt.Errorf("%w: update without state", ErrMalformed)
		}
	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Type)
	}
	return m, nil
}
