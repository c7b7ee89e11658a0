// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jeranaias/rigrun-overlay/internal/generation"
	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/mode"
	"github.com/jeranaias/rigrun-overlay/internal/session"
	"github.com/jeranaias/rigrun-overlay/internal/state"
	"github.com/jeranaias/rigrun-overlay/internal/timeline"
)

// =============================================================================
// VIEW
// =============================================================================

// View is everything a renderer needs, read in one executor turn.
type View struct {
	state.Snapshot

	WindowID     session.WindowID
	Role         mode.Role
	Mode         mode.Mode
	Generation   generation.State
	Status       generation.Status
	Revealing    bool
	InTransition bool
	Bounds       host.Rect
	CanUndo      bool
	Query        string
	Match        timeline.Match
	HasMatch     bool
	ScrollTo     string
	Editing      bool
	Local        bool
}

// View returns the current render state.
func (w *Window) View() View {
	var v View
	w.exec.Do(func() {
		bounds, _ := w.geo.Position()
		match, ok := w.tl.CurrentMatch()
		v = View{
			Snapshot:     w.snapshot(),
			WindowID:     w.id,
			Role:         w.modes.Role(),
			Mode:         w.modes.Mode(),
			Generation:   w.gen.State(),
			Status:       w.gen.Status(),
			Revealing:    w.gen.Revealing(),
			InTransition: w.geo.InTransition(),
			Bounds:       bounds,
			CanUndo:      w.tl.CanUndo(),
			Query:        w.tl.Query(),
			Match:        match,
			HasMatch:     ok,
			ScrollTo:     w.scrollTarget,
			Editing:      w.editing,
			Local:        w.bus.Local(),
		}
	})
	return v
}

// Mode returns the window's own mode.
func (w *Window) Mode() mode.Mode {
	var m mode.Mode
	w.exec.Do(func() { m = w.modes.Mode() })
	return m
}

// =============================================================================
// MODE
// =============================================================================

// Expand opens a Mini window into Bar.
func (w *Window) Expand() bool {
	var ok bool
	w.do(func() { ok = w.modes.Expand() })
	return ok
}

// FocusComposer focuses the composer; a Bar window with history opens into
// Card.
func (w *Window) FocusComposer() bool {
	var ok bool
	w.do(func() {
		w.setEditing(true)
		ok = w.modes.FocusComposer(w.tl.Len())
	})
	return ok
}

// BlurComposer drops composer focus.
func (w *Window) BlurComposer() {
	w.do(func() { w.setEditing(false) })
}

// Cycle steps Mini, Bar, Card and back.
func (w *Window) Cycle() bool {
	var ok bool
	w.do(func() { ok = w.modes.Cycle() })
	return ok
}

// Escape collapses to Mini when the composer is empty and otherwise only
// blurs it.
func (w *Window) Escape() mode.EscapeResult {
	res := mode.EscapeIgnored
	w.do(func() {
		res = w.modes.Escape(w.composerText)
		w.setEditing(false)
	})
	return res
}

func (w *Window) setEditing(editing bool) {
	w.editing = editing
	w.bus.SetEditingComposer(editing)
}

// =============================================================================
// COMPOSER
// =============================================================================

// SetComposerText records a composer edit. composing is true while an IME
// composition is in progress.
func (w *Window) SetComposerText(text string, composing bool) {
	w.do(func() {
		w.setEditing(true)
		w.composerText = text
		w.drafts.Save(w.cfg.Window.SessionID, text)
		w.modes.ComposerChanged(text, composing)
		w.scheduleSuggestions(text)
	})
}

// SetComposing updates the IME composition flag.
func (w *Window) SetComposing(composing bool) {
	w.exec.Do(func() { w.modes.SetComposing(composing) })
}

func (w *Window) scheduleSuggestions(text string) {
	if w.deps.Cache == nil {
		return
	}
	if strings.TrimSpace(text) == "" {
		w.timers.Cancel(TimerSuggest)
		w.clearSuggestions()
		return
	}
	w.timers.After(TimerSuggest, w.cfg.Composer.SuggestionDelay(), func() {
		if w.closed {
			return
		}
		goals := w.deps.Cache.Similar(w.composerText, w.cfg.Cache.SuggestionLimit)
		w.similar = goals
		w.showSuggestions = len(goals) > 0
		w.sync()
	})
}

func (w *Window) clearSuggestions() {
	w.timers.Cancel(TimerSuggest)
	w.similar = nil
	w.showSuggestions = false
}

// HideSuggestions closes the suggestion list.
func (w *Window) HideSuggestions() {
	w.do(func() { w.showSuggestions = false })
}

// Submit sends text as a new message. A *generation.ValidationError leaves
// the window unchanged.
func (w *Window) Submit(text string) error {
	var err error
	ran := w.do(func() {
		err = w.gen.Submit(text, w.screenshot)
		if err != nil {
			return
		}
		w.screenshot = nil
		if w.onboarding == state.OnboardingWelcome {
			w.onboarding = state.OnboardingHint
		}
		w.modes.FocusComposer(w.tl.Len())
	})
	return errClosed(ran, err)
}

// Stop aborts the current request.
func (w *Window) Stop() bool {
	var ok bool
	w.do(func() { ok = w.gen.Stop() })
	return ok
}

// Continue resumes an aborted answer when the backend supports it.
func (w *Window) Continue() error {
	var err error
	ran := w.do(func() { err = w.gen.Continue() })
	return errClosed(ran, err)
}

// SetHovered records the entry under the pointer.
func (w *Window) SetHovered(entryID string) {
	w.exec.Do(func() { w.gen.SetHovered(entryID) })
}

// =============================================================================
// TIMELINE
// =============================================================================

// Copy puts entry i on the clipboard.
func (w *Window) Copy(i int) error {
	var err error
	ran := w.do(func() { err = w.tl.Copy(w.ctx, i) })
	return errClosed(ran, err)
}

// Regenerate replaces agent entry i with a fresh answer.
func (w *Window) Regenerate(i int) error {
	var err error
	ran := w.do(func() { err = w.tl.Regenerate(i) })
	return errClosed(ran, err)
}

// Edit loads user entry i into the composer; fork drops everything after it.
func (w *Window) Edit(i int, fork bool) error {
	var err error
	ran := w.do(func() {
		err = w.tl.Edit(i, fork)
		if err == nil {
			w.setEditing(true)
		}
	})
	return errClosed(ran, err)
}

// Delete removes entry i, keeping it for a short undo window.
func (w *Window) Delete(i int) error {
	var err error
	ran := w.do(func() { err = w.tl.DeleteWithUndo(i) })
	return errClosed(ran, err)
}

// Undo restores the last deleted entry.
func (w *Window) Undo() error {
	var err error
	ran := w.do(func() { err = w.tl.Undo() })
	return errClosed(ran, err)
}

// Search highlights entries containing q. An empty q clears the search.
func (w *Window) Search(q string) (timeline.Match, bool) {
	var (
		m  timeline.Match
		ok bool
	)
	w.do(func() { m, ok = w.tl.Search(q) })
	return m, ok
}

// NextMatch moves to the next search hit.
func (w *Window) NextMatch() (timeline.Match, bool) {
	var (
		m  timeline.Match
		ok bool
	)
	w.do(func() { m, ok = w.tl.NextMatch() })
	return m, ok
}

// PrevMatch moves to the previous search hit.
func (w *Window) PrevMatch() (timeline.Match, bool) {
	var (
		m  timeline.Match
		ok bool
	)
	w.do(func() { m, ok = w.tl.PrevMatch() })
	return m, ok
}

// ClearConversation empties the timeline for every window.
func (w *Window) ClearConversation() {
	w.do(func() {
		w.tl.Clear()
		w.scrollTarget = ""
	})
}

// =============================================================================
// HOST ACTIONS
// =============================================================================

// RunCommand runs cmd through the host and records the result as a debug
// entry. The host call happens outside the executor.
func (w *Window) RunCommand(ctx context.Context, cmd string) (host.CommandResult, error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return host.CommandResult{}, ErrEmptyCommand
	}
	ran := w.do(func() {
		w.currentCommand = cmd
		if err := w.prefs.PushRecentCommand(cmd); err != nil {
			w.log.Warn("recent command not saved", "err", err)
		}
	})
	if !ran {
		return host.CommandResult{}, ErrClosed
	}

	res, err := w.deps.Host.ExecuteCommand(ctx, cmd)

	w.do(func() {
		if w.currentCommand == cmd {
			w.currentCommand = ""
		}
		var out string
		switch {
		case err != nil:
			out = fmt.Sprintf("$ %s\n%v", cmd, err)
		case res.Success:
			out = fmt.Sprintf("$ %s\n%s", cmd, res.Message)
		default:
			out = fmt.Sprintf("$ %s (failed)\n%s", cmd, res.Message)
		}
		w.tl.Append(timeline.NewEntry(timeline.KindDebug, strings.TrimRight(out, "\n")))
	})
	if err != nil {
		return res, fmt.Errorf("run command: %w", err)
	}
	return res, nil
}

// RecentCommands returns recently run commands, newest first.
func (w *Window) RecentCommands() []string {
	var out []string
	w.exec.Do(func() { out = w.prefs.RecentCommands() })
	return out
}

// AttachScreenshot captures the screen, attaches it to the next message and
// expands to Card.
func (w *Window) AttachScreenshot(ctx context.Context) error {
	shot, err := w.deps.Host.TakeScreenshot(ctx)
	if err != nil {
		return fmt.Errorf("attach screenshot: %w", err)
	}
	ran := w.do(func() {
		w.screenshot = &shot
		w.modes.Attached()
	})
	return errClosed(ran, nil)
}

// DetachScreenshot drops the pending attachment.
func (w *Window) DetachScreenshot() {
	w.do(func() { w.screenshot = nil })
}

// OpenLink opens an http or https URL in the system browser.
func (w *Window) OpenLink(ctx context.Context, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedLink, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrUnsupportedLink
	}
	if err := w.deps.Host.OpenExternal(ctx, u.String()); err != nil {
		return fmt.Errorf("open link: %w", err)
	}
	return nil
}

// DismissHint hides the first-run hint for good.
func (w *Window) DismissHint() error {
	var err error
	ran := w.do(func() {
		err = w.prefs.SetHintDismissed()
		w.onboarding = state.OnboardingDone
	})
	return errClosed(ran, err)
}

// SetProfile records the signed-in user.
func (w *Window) SetProfile(p state.Profile) {
	w.do(func() { w.profile = p })
}

// =============================================================================
// GEOMETRY
// =============================================================================

// Moved tells the window its frame was dragged; the position is re-read
// and clamped.
func (w *Window) Moved() {
	w.do(func() {
		w.geo.Refresh()
		w.geo.ClampToScreen()
	})
}
