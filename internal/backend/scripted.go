// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Scripted is a local backend that replays a fixed script. It backs the
// "demo" backend URL and integration tests.
type Scripted struct {
	// Script returns the events for a request. Nil uses EchoScript.
	Script func(req Request) []Event
	// Delay is slept between events.
	Delay time.Duration
	// Err, when set, is returned after the script has played.
	Err error

	mu       sync.Mutex
	requests []Request
}

// Send implements Backend.
func (s *Scripted) Send(ctx context.Context, req Request, onEvent func(Event)) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	script := s.Script
	s.mu.Unlock()

	if script == nil {
		script = EchoScript
	}
	for _, ev := range script(req) {
		if s.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		onEvent(ev)
	}
	return s.Err
}

// Requests returns the requests received so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// EchoScript reasons in two steps and answers with the message itself.
func EchoScript(req Request) []Event {
	words := strings.Fields(req.Message)
	events := []Event{
		MessageEvent("Reading the request"),
		StepEvent(1, fmt.Sprintf("The message has %d words", len(words))),
		StepEvent(2, "Composing an answer"),
	}
	var answer strings.Builder
	answer.WriteString("You said: ")
	for i, w := range words {
		if i > 0 {
			answer.WriteByte(' ')
		}
		answer.WriteString(w)
	}
	text := answer.String()
	for _, tok := range strings.SplitAfter(text, " ") {
		events = append(events, TokenEvent(tok))
	}
	events = append(events, FinalEvent(Final{
		Response:      text,
		Steps:         []string{"Read the request", "Composed an answer"},
		Facts:         []string{fmt.Sprintf("word count: %d", len(words))},
		ExecutionTime: 0.01,
	}))
	return events
}
