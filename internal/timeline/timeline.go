// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/rigrun-overlay/internal/session"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned by Regenerate while a request is in flight.
	ErrBusy = errors.New("timeline: a request is already active")

	// ErrIndexOutOfRange is returned for an index outside the timeline.
	ErrIndexOutOfRange = errors.New("timeline: index out of range")

	// ErrNoOriginalPrompt is returned by Regenerate when no user entry
	// precedes the target.
	ErrNoOriginalPrompt = errors.New("timeline: no original prompt")

	// ErrNotAgent is returned by Regenerate for a non-agent target.
	ErrNotAgent = errors.New("timeline: entry is not an agent answer")

	// ErrNothingToUndo is returned by Undo with an empty undo buffer.
	ErrNothingToUndo = errors.New("timeline: nothing to undo")
)

// TimerUndo is the named timer that expires the undo buffer.
const TimerUndo = "timeline.undo"

// =============================================================================
// COLLABORATORS
// =============================================================================

// Clipboard receives copied entry text.
type Clipboard interface {
	CopyToClipboard(ctx context.Context, text string) error
}

// Resubmitter reruns a prompt without appending a new user entry.
type Resubmitter interface {
	Busy() bool
	Resubmit(prompt string) error
}

// Composer accepts text loaded for editing.
type Composer interface {
	SetComposerText(text string)
}

// Scroller brings an entry into view.
type Scroller interface {
	ScrollTo(entryID string)
}

// Deps are the timeline's collaborators. Any may be nil.
type Deps struct {
	Timers      *session.Timers
	UndoExpiry  time.Duration
	Clipboard   Clipboard
	Resubmitter Resubmitter
	Composer    Composer
	Scroller    Scroller
}

// =============================================================================
// TIMELINE
// =============================================================================

type undoSlot struct {
	entry Entry
	index int
}

// Timeline is an ordered, mutable conversation log.
//
// It is not safe for concurrent use; the owning window serializes access.
type Timeline struct {
	deps Deps

	entries []Entry
	nextSeq uint64
	undo    *undoSlot

	query   string
	matches []int
	cursor  int

	onChange func()
}

// New creates an empty timeline.
func New(deps Deps) *Timeline {
	return &Timeline{deps: deps, nextSeq: 1}
}

// SetResubmitter wires the generation controller after construction.
func (t *Timeline) SetResubmitter(r Resubmitter) {
	t.deps.Resubmitter = r
}

// OnChange registers fn to run after every mutation.
func (t *Timeline) OnChange(fn func()) {
	t.onChange = fn
}

func (t *Timeline) changed() {
	if t.query != "" {
		t.refreshMatches()
	}
	if t.onChange != nil {
		t.onChange()
	}
}

// Len returns the number of active entries.
func (t *Timeline) Len() int {
	return len(t.entries)
}

// Entries returns a deep copy of the active entries.
func (t *Timeline) Entries() []Entry {
	return CloneEntries(t.entries)
}

// At returns a copy of the entry at i.
func (t *Timeline) At(i int) (Entry, error) {
	if i < 0 || i >= len(t.entries) {
		return Entry{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return t.entries[i].Clone(), nil
}

// IndexOf returns the index of the entry with id, or -1.
func (t *Timeline) IndexOf(id string) int {
	for i := range t.entries {
		if t.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// Append adds e at the end, assigning the next sequence number (and an ID
// if e has none). It returns the stored entry.
func (t *Timeline) Append(e Entry) Entry {
	if e.ID == "" {
		e.ID = NewEntry(e.Kind, "").ID
	}
	e.Seq = t.nextSeq
	t.nextSeq++
	t.entries = append(t.entries, e.Clone())
	t.changed()
	return e
}

// Update applies fn to the entry with id in place. It reports whether the
// entry exists.
func (t *Timeline) Update(id string, fn func(e *Entry)) bool {
	i := t.IndexOf(id)
	if i < 0 {
		return false
	}
	fn(&t.entries[i])
	t.changed()
	return true
}

// Replace adopts entries wholesale, as received from a sibling window. The
// sequence counter only moves forward.
func (t *Timeline) Replace(entries []Entry) {
	t.entries = CloneEntries(entries)
	for _, e := range t.entries {
		if e.Seq >= t.nextSeq {
			t.nextSeq = e.Seq + 1
		}
	}
	t.changed()
}

// Clear removes every entry and the undo buffer.
func (t *Timeline) Clear() {
	t.entries = nil
	t.dropUndo()
	t.changed()
}

// =============================================================================
// ENTRY ACTIONS
// =============================================================================

// Copy puts the content of entry i on the clipboard.
func (t *Timeline) Copy(ctx context.Context, i int) error {
	e, err := t.At(i)
	if err != nil {
		return err
	}
	if t.deps.Clipboard == nil {
		return nil
	}
	return t.deps.Clipboard.CopyToClipboard(ctx, e.Content)
}

// Regenerate removes the agent entry at i and resubmits the nearest
// preceding user prompt. Nothing changes when the resubmitter is busy.
func (t *Timeline) Regenerate(i int) error {
	e, err := t.At(i)
	if err != nil {
		return err
	}
	if e.Kind != KindAgent {
		return ErrNotAgent
	}

	prompt := ""
	found := false
	for j := i - 1; j >= 0; j-- {
		if t.entries[j].Kind == KindUser {
			prompt = t.entries[j].Content
			found = true
			break
		}
	}
	if !found {
		return ErrNoOriginalPrompt
	}
	r := t.deps.Resubmitter
	if r != nil && r.Busy() {
		return ErrBusy
	}

	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	t.changed()

	if r == nil {
		return nil
	}
	return r.Resubmit(prompt)
}

// Edit loads entry i into the composer. With fork set every entry after i
// is discarded.
func (t *Timeline) Edit(i int, fork bool) error {
	e, err := t.At(i)
	if err != nil {
		return err
	}
	if t.deps.Composer != nil {
		t.deps.Composer.SetComposerText(e.Content)
	}
	if fork && i+1 < len(t.entries) {
		t.entries = t.entries[:i+1]
		t.changed()
	}
	return nil
}

// DeleteWithUndo removes entry i into the single-slot undo buffer,
// replacing whatever was there.
func (t *Timeline) DeleteWithUndo(i int) error {
	e, err := t.At(i)
	if err != nil {
		return err
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	t.undo = &undoSlot{entry: e, index: i}

	if t.deps.Timers != nil && t.deps.UndoExpiry > 0 {
		t.deps.Timers.After(TimerUndo, t.deps.UndoExpiry, func() {
			t.undo = nil
			t.changed()
		})
	}
	t.changed()
	return nil
}

// CanUndo reports whether the undo buffer holds an entry.
func (t *Timeline) CanUndo() bool {
	return t.undo != nil
}

// Undo reinserts the deleted entry at its original index.
func (t *Timeline) Undo() error {
	if t.undo == nil {
		return ErrNothingToUndo
	}
	slot := t.undo
	t.dropUndo()

	idx := slot.index
	if idx > len(t.entries) {
		idx = len(t.entries)
	}
	t.entries = append(t.entries, Entry{})
	copy(t.entries[idx+1:], t.entries[idx:])
	t.entries[idx] = slot.entry
	t.changed()
	return nil
}

func (t *Timeline) dropUndo() {
	t.undo = nil
	if t.deps.Timers != nil {
		t.deps.Timers.Cancel(TimerUndo)
	}
}
