// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle stage of a generation session.
type State int

const (
	Idle State = iota
	Connecting
	Thinking
	Answering
	Completed
	Aborted
	Errored
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Thinking:
		return "thinking"
	case Answering:
		return "answering"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Active reports whether a request is in flight in this state.
func (s State) Active() bool {
	return s == Connecting || s == Thinking || s == Answering
}

// Status is a user-visible notice about the last action.
type Status string

const (
	StatusNone                Status = ""
	StatusContinueUnsupported Status = "continue_unsupported"
)

// Progress milestones.
const (
	progressConnecting = 10
	progressThinking   = 30
	progressStepMax    = 80
	progressStep       = 10
	progressAnswering  = 90
	progressDone       = 100
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned when a request is already in flight.
	ErrBusy = errors.New("generation: a request is already active")

	// ErrContinueNotSupported is returned by Continue when the backend cannot
	// resume answers.
	ErrContinueNotSupported = errors.New("generation: continue not supported by backend")

	// ErrNothingToContinue is returned by Continue without a stopped partial
	// answer.
	ErrNothingToContinue = errors.New("generation: nothing to continue")

	// ErrEmptyStream is returned when a stream ends with no answer.
	ErrEmptyStream = errors.New("generation: stream ended without an answer")
)

// Reason says why input was rejected.
type Reason string

const (
	ReasonEmpty    Reason = "empty"
	ReasonTooShort Reason = "too_short"
	ReasonTooLong  Reason = "too_long"
)

// ValidationError is returned for input outside the accepted length.
type ValidationError struct {
	Reason Reason
	Length int
	Min    int
	Max    int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return "message is empty"
	case ReasonTooShort:
		return fmt.Sprintf("message is too short (%d characters, minimum %d)", e.Length, e.Min)
	case ReasonTooLong:
		return fmt.Sprintf("message is too long (%d characters, maximum %d)", e.Length, e.Max)
	default:
		return "invalid message"
	}
}

// Validate checks text against the length bounds, counted in runes after
// trimming surrounding whitespace.
func Validate(text string, minLen, maxLen int) error {
	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n == 0:
		return &ValidationError{Reason: ReasonEmpty, Min: minLen, Max: maxLen}
	case n < minLen:
		return &ValidationError{Reason: ReasonTooShort, Length: n, Min: minLen, Max: maxLen}
	case maxLen > 0 && n > maxLen:
		return &ValidationError{Reason: ReasonTooLong, Length: n, Min: minLen, Max: maxLen}
	}
	return nil
}
