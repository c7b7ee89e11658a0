// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/rigrun-overlay/internal/host"
)

// =============================================================================
// REQUEST AND EVENTS
// =============================================================================

// Turn is one prior exchange sent as context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one outgoing message.
type Request struct {
	Message    string           `json:"message"`
	Context    []Turn           `json:"context,omitempty"`
	Screenshot *host.Screenshot `json:"screenshot,omitempty"`
}

// ContinueRequest resumes an answer that was stopped part way.
type ContinueRequest struct {
	Message string `json:"message"`
	Partial string `json:"partial"`
	Context []Turn `json:"context,omitempty"`
}

// EventType identifies a streamed event.
type EventType string

const (
	// EventMessage carries partial reasoning text.
	EventMessage EventType = "message"
	// EventStep carries a numbered reasoning step.
	EventStep EventType = "step"
	// EventToken carries a piece of the answer.
	EventToken EventType = "token"
	// EventFinal completes the answer.
	EventFinal EventType = "final"
	// EventError reports a backend-side failure.
	EventError EventType = "error"
)

// Final is the completion payload.
type Final struct {
	Response string   `json:"final_response"`
	Steps    []string `json:"steps,omitempty"`
	Facts    []string `json:"facts_extracted,omitempty"`
	// ExecutionTime is the backend's own timing in seconds.
	ExecutionTime float64 `json:"execution_time,omitempty"`
}

// Event is one streamed update.
type Event struct {
	Type       EventType
	Message    string
	StepNumber int
	Reasoning  string
	Token      string
	Final      *Final
	Error      string
}

// MessageEvent builds a partial-reasoning event.
func MessageEvent(text string) Event { return Event{Type: EventMessage, Message: text} }

// StepEvent builds a numbered-step event.
func StepEvent(n int, reasoning string) Event {
	return Event{Type: EventStep, StepNumber: n, Reasoning: reasoning}
}

// TokenEvent builds an answer-token event.
func TokenEvent(tok string) Event { return Event{Type: EventToken, Token: tok} }

// FinalEvent builds a completion event.
func FinalEvent(f Final) Event { return Event{Type: EventFinal, Final: &f} }

// ErrorEvent builds a backend error event.
func ErrorEvent(msg string) Event { return Event{Type: EventError, Error: msg} }

// wireEvent is the JSON shape of one streamed event.
type wireEvent struct {
	Message       *string  `json:"message,omitempty"`
	StepNumber    int      `json:"step_number,omitempty"`
	Reasoning     string   `json:"reasoning,omitempty"`
	Token         *string  `json:"token,omitempty"`
	FinalResponse *string  `json:"final_response,omitempty"`
	Steps         []string `json:"steps,omitempty"`
	Facts         []string `json:"facts_extracted,omitempty"`
	ExecutionTime float64  `json:"execution_time,omitempty"`
	Error         *string  `json:"error,omitempty"`
}

// ErrUnknownEvent is returned by ParseEvent for payloads with no known field.
var ErrUnknownEvent = errors.New("backend: unknown event")

// ParseEvent decodes one event payload. The first matching field wins in
// the order error, final_response, step_number, token, message.
func ParseEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("backend: decode event: %w", err)
	}
	switch {
	case w.Error != nil:
		return ErrorEvent(*w.Error), nil
	case w.FinalResponse != nil:
		return FinalEvent(Final{
			Response:      *w.FinalResponse,
			Steps:         w.Steps,
			Facts:         w.Facts,
			ExecutionTime: w.ExecutionTime,
		}), nil
	case w.StepNumber > 0:
		return StepEvent(w.StepNumber, w.Reasoning), nil
	case w.Token != nil:
		return TokenEvent(*w.Token), nil
	case w.Message != nil:
		return MessageEvent(*w.Message), nil
	}
	return Event{}, ErrUnknownEvent
}

// MarshalJSON encodes the event in the wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	var w wireEvent
	switch e.Type {
	case EventMessage:
		w.Message = &e.Message
	case EventStep:
		w.StepNumber = e.StepNumber
		w.Reasoning = e.Reasoning
	case EventToken:
		w.Token = &e.Token
	case EventFinal:
		f := Final{}
		if e.Final != nil {
			f = *e.Final
		}
		w.FinalResponse = &f.Response
		w.Steps = f.Steps
		w.Facts = f.Facts
		w.ExecutionTime = f.ExecutionTime
	case EventError:
		w.Error = &e.Error
	default:
		return nil, ErrUnknownEvent
	}
	return json.Marshal(w)
}

// =============================================================================
// INTERFACES
// =============================================================================

// Backend streams answers. Send blocks until the stream ends, the context
// is cancelled or an error occurs; onEvent is called on the sending
// goroutine.
type Backend interface {
	Send(ctx context.Context, req Request, onEvent func(Event)) error
}

// Continuer is implemented by backends that can resume a stopped answer.
type Continuer interface {
	Continue(ctx context.Context, req ContinueRequest, onEvent func(Event)) error
}
