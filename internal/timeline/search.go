// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"strings"

	"golang.org/x/text/cases"
)

// Match is the current search position.
type Match struct {
	// Index is the timeline index of the matching entry.
	Index int
	// EntryID identifies the matching entry.
	EntryID string
	// Ordinal is the 1-based match number; Total the number of matches.
	Ordinal int
	Total   int
}

// Search finds entries whose user or agent content contains q, ignoring
// case, and moves the cursor to the first match. An empty query clears the
// search.
func (t *Timeline) Search(q string) (Match, bool) {
	t.query = q
	t.cursor = 0
	t.refreshMatches()
	return t.current(true)
}

// Query returns the active search query.
func (t *Timeline) Query() string {
	return t.query
}

// NextMatch advances the cursor, wrapping at the end.
func (t *Timeline) NextMatch() (Match, bool) {
	if len(t.matches) == 0 {
		return Match{}, false
	}
	t.cursor = (t.cursor + 1) % len(t.matches)
	return t.current(true)
}

// PrevMatch moves the cursor back, wrapping at the start.
func (t *Timeline) PrevMatch() (Match, bool) {
	if len(t.matches) == 0 {
		return Match{}, false
	}
	t.cursor = (t.cursor - 1 + len(t.matches)) % len(t.matches)
	return t.current(true)
}

// CurrentMatch returns the cursor position without scrolling.
func (t *Timeline) CurrentMatch() (Match, bool) {
	return t.current(false)
}

func (t *Timeline) current(scroll bool) (Match, bool) {
	if len(t.matches) == 0 {
		return Match{}, false
	}
	idx := t.matches[t.cursor]
	m := Match{
		Index:   idx,
		EntryID: t.entries[idx].ID,
		Ordinal: t.cursor + 1,
		Total:   len(t.matches),
	}
	if scroll && t.deps.Scroller != nil {
		t.deps.Scroller.ScrollTo(m.EntryID)
	}
	return m, true
}

// refreshMatches recomputes matches after a query or timeline change,
// keeping the cursor in range.
func (t *Timeline) refreshMatches() {
	t.matches = t.matches[:0]
	if t.query == "" {
		t.cursor = 0
		return
	}
	fold := cases.Fold()
	needle := fold.String(t.query)
	for i, e := range t.entries {
		if !e.Kind.Searchable() {
			continue
		}
		if strings.Contains(fold.String(e.Content), needle) {
			t.matches = append(t.matches, i)
		}
	}
	if t.cursor >= len(t.matches) {
		t.cursor = 0
	}
}
