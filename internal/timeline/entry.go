// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"github.com/google/uuid"
)

// =============================================================================
// KIND TYPE
// =============================================================================

// Kind identifies what produced a timeline entry.
type Kind string

const (
	KindUser    Kind = "user"
	KindAgent   Kind = "agent"
	KindThought Kind = "thought"
	KindDebug   Kind = "debug"
	KindError   Kind = "error"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// DisplayName returns a human-readable label for the kind.
func (k Kind) DisplayName() string {
	switch k {
	case KindUser:
		return "You"
	case KindAgent:
		return "Assistant"
	case KindThought:
		return "Thinking"
	case KindDebug:
		return "Debug"
	case KindError:
		return "Error"
	default:
		return string(k)
	}
}

// Searchable reports whether search considers entries of this kind.
func (k Kind) Searchable() bool {
	return k == KindUser || k == KindAgent
}

// =============================================================================
// ENTRY TYPE
// =============================================================================

// StepMeta describes a numbered reasoning step.
type StepMeta struct {
	Number int `json:"number"`
}

// Timing records how long a completed answer took.
type Timing struct {
	// TTFTMs is the time to first token; zero for cache hits.
	TTFTMs int64 `json:"ttft_ms"`
	// TotalMs is wall time from submit to completion.
	TotalMs int64 `json:"total_ms"`
	// ExecutionMs is the backend-reported execution time.
	ExecutionMs int64 `json:"execution_ms,omitempty"`
	// Cached is set when the answer came from the response cache.
	Cached bool `json:"cached,omitempty"`
}

// Entry is one unit of the conversation log.
type Entry struct {
	ID      string    `json:"id"`
	Seq     uint64    `json:"seq"`
	Kind    Kind      `json:"kind"`
	Content string    `json:"content"`
	Step    *StepMeta `json:"step,omitempty"`
	Timing  *Timing   `json:"timing,omitempty"`

	// Collapsed hides a thought's body.
	Collapsed bool `json:"collapsed,omitempty"`
	// Frozen marks a thought that stopped receiving updates.
	Frozen bool `json:"frozen,omitempty"`

	// Facts are derived facts attached to an agent answer.
	Facts []string `json:"facts,omitempty"`
}

// NewEntry creates an entry with a fresh ID. Seq is assigned on Append.
func NewEntry(kind Kind, content string) Entry {
	return Entry{
		ID:      uuid.NewString(),
		Kind:    kind,
		Content: content,
	}
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	out := e
	if e.Step != nil {
		s := *e.Step
		out.Step = &s
	}
	if e.Timing != nil {
		t := *e.Timing
		out.Timing = &t
	}
	if e.Facts != nil {
		out.Facts = append([]string(nil), e.Facts...)
	}
	return out
}

// CloneEntries deep-copies a slice of entries.
func CloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
