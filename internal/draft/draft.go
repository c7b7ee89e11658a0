// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package draft persists composer text per session with a debounce, so a
// window reopened mid-sentence gets its text back.
package draft

import (
	"time"

	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/session"
	"github.com/jeranaias/rigrun-overlay/internal/storage"
)

// TimerPrefix prefixes the per-session debounce timer names.
const TimerPrefix = "draft.save:"

// Store debounces draft writes to a key-value store.
//
// Not safe for concurrent use; the owning window serializes access.
type Store struct {
	kv     storage.KV
	timers *session.Timers
	delay  time.Duration
	log    pslog.Logger

	pending map[string]string
}

// New creates a draft store writing to kv after delay of inactivity.
func New(kv storage.KV, timers *session.Timers, delay time.Duration, log pslog.Logger) *Store {
	return &Store{
		kv:      kv,
		timers:  timers,
		delay:   delay,
		log:     logx.WithComponent(logx.OrDiscard(log), "draft"),
		pending: make(map[string]string),
	}
}

// Save schedules text to be written for sessionID, replacing any pending
// write for that session.
func (s *Store) Save(sessionID, text string) {
	s.pending[sessionID] = text
	s.timers.After(TimerPrefix+sessionID, s.delay, func() {
		s.write(sessionID)
	})
}

// Load returns the stored draft for sessionID.
func (s *Store) Load(sessionID string) string {
	if text, ok := s.pending[sessionID]; ok {
		return text
	}
	v, ok, err := s.kv.Get(storage.DraftKey(sessionID))
	if err != nil {
		s.log.Warn("draft load failed", "session", sessionID, "err", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// Clear drops any pending write and deletes the stored draft.
func (s *Store) Clear(sessionID string) {
	s.timers.Cancel(TimerPrefix + sessionID)
	delete(s.pending, sessionID)
	if err := s.kv.Delete(storage.DraftKey(sessionID)); err != nil {
		s.log.Warn("draft clear failed", "session", sessionID, "err", err)
	}
}

// Flush writes every pending draft now.
func (s *Store) Flush() {
	for id := range s.pending {
		s.timers.Cancel(TimerPrefix + id)
		s.write(id)
	}
}

func (s *Store) write(sessionID string) {
	text, ok := s.pending[sessionID]
	if !ok {
		return
	}
	delete(s.pending, sessionID)

	var err error
	if text == "" {
		err = s.kv.Delete(storage.DraftKey(sessionID))
	} else {
		err = s.kv.Set(storage.DraftKey(sessionID), text)
	}
	if err != nil {
		s.log.Warn("draft save failed", "session", sessionID, "err", err)
		return
	}
	s.log.Trace("draft saved", "session", sessionID, "chars", len(text))
}
