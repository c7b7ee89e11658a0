// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"context"
	"errors"

	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/backend"
	"github.com/jeranaias/rigrun-overlay/internal/bus"
	"github.com/jeranaias/rigrun-overlay/internal/cache"
	"github.com/jeranaias/rigrun-overlay/internal/clock"
	"github.com/jeranaias/rigrun-overlay/internal/config"
	"github.com/jeranaias/rigrun-overlay/internal/draft"
	"github.com/jeranaias/rigrun-overlay/internal/generation"
	"github.com/jeranaias/rigrun-overlay/internal/geometry"
	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/mode"
	"github.com/jeranaias/rigrun-overlay/internal/session"
	"github.com/jeranaias/rigrun-overlay/internal/state"
	"github.com/jeranaias/rigrun-overlay/internal/storage"
	"github.com/jeranaias/rigrun-overlay/internal/timeline"
)

// TimerSuggest debounces semantic suggestion lookups.
const TimerSuggest = "overlay.suggest"

var (
	// ErrNoBackend is returned by New when Deps.Backend is nil.
	ErrNoBackend = errors.New("overlay: backend required")
	// ErrNoHost is returned by New when Deps.Host is nil.
	ErrNoHost = errors.New("overlay: host required")
	// ErrClosed is returned by operations on a closed window.
	ErrClosed = errors.New("overlay: window closed")
	// ErrEmptyCommand is returned by RunCommand for blank input.
	ErrEmptyCommand = errors.New("overlay: empty command")
	// ErrUnsupportedLink is returned by OpenLink for non-web URLs.
	ErrUnsupportedLink = errors.New("overlay: only http and https links can be opened")
)

// Deps are the collaborators of one window.
type Deps struct {
	Config    config.Config
	Host      host.Host
	Backend   backend.Backend
	Cache     *cache.Manager
	KV        storage.KV
	Transport bus.Transport
	Clock     clock.Clock
	Exec      session.Executor
	ID        session.WindowID
	Logger    pslog.Logger
}

// =============================================================================
// WINDOW
// =============================================================================

// Window is one overlay window: the mode machine, geometry, generation,
// timeline, drafts and the broadcast bus around a single executor.
//
// Every exported method is safe for concurrent use. Work is serialized on
// the window executor and each mutating call ends with a publish.
type Window struct {
	deps   Deps
	id     session.WindowID
	cfg    config.Config
	log    pslog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	exec   session.Executor
	timers *session.Timers
	prefs  *storage.Prefs
	drafts *draft.Store
	tl     *timeline.Timeline
	gen    *generation.Controller
	modes  *mode.Controller
	geo    *geometry.Manager
	bus    *bus.Bus

	profile         state.Profile
	currentCommand  string
	similar         []string
	showSuggestions bool
	composerText    string
	editing         bool
	screenshot      *host.Screenshot
	onboarding      state.Onboarding
	scrollTarget    string

	listeners []func()
	mounted   bool
	closed    bool
}

// New builds a window. Nothing touches the host or the transport until
// Mount.
func New(deps Deps) (*Window, error) {
	if deps.Host == nil {
		return nil, ErrNoHost
	}
	if deps.Backend == nil {
		return nil, ErrNoBackend
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Exec == nil {
		deps.Exec = session.NewSerial()
	}
	if deps.KV == nil {
		deps.KV = storage.NewMemoryKV()
	}
	if deps.ID == "" {
		deps.ID = session.NewWindowID(deps.Clock.Now())
	}

	cfg := deps.Config
	role := mode.ParseRole(cfg.Window.Role)
	log := logx.WithWindow(logx.OrDiscard(deps.Logger), deps.ID.String(), string(role))
	ctx, cancel := context.WithCancel(logx.ContextWithLogger(context.Background(), log))

	w := &Window{
		deps:       deps,
		id:         deps.ID,
		cfg:        cfg,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		exec:       deps.Exec,
		onboarding: state.OnboardingWelcome,
	}
	w.timers = session.NewTimers(deps.Clock, deps.Exec)
	w.prefs = storage.NewPrefs(deps.KV, cfg.Composer.RecentCommandsLimit)
	w.drafts = draft.New(deps.KV, w.timers, cfg.Composer.DraftDebounce(), log)

	w.tl = timeline.New(timeline.Deps{
		Timers:     w.timers,
		UndoExpiry: cfg.Timeline.UndoExpiry(),
		Clipboard:  deps.Host,
		Composer:   composerHook{w},
		Scroller:   scrollHook{w},
	})

	w.geo = geometry.New(ctx, geometry.Deps{
		Host:          deps.Host,
		Exec:          deps.Exec,
		Timers:        w.timers,
		Sizes:         geometry.SizesFromConfig(cfg.Geometry),
		Margin:        cfg.Geometry.MarginPx,
		ClampInterval: cfg.Geometry.ClampInterval(),
		Logger:        log,
	})

	w.modes = mode.NewController(mode.Deps{
		Role:            role,
		Timers:          w.timers,
		AutoExpandDelay: cfg.Composer.AutoExpandDelay(),
		BarColumns:      cfg.Composer.BarColumns,
		BucketGrid:      cfg.Geometry.BucketGridPx,
		Prefs:           w.prefs,
		Geometry:        w.geo,
		Logger:          log,
	})

	var respCache generation.Cache
	if deps.Cache != nil {
		respCache = deps.Cache
	}
	w.gen = generation.New(ctx, generation.Deps{
		Backend:  deps.Backend,
		Cache:    respCache,
		Timeline: w.tl,
		Exec:     deps.Exec,
		Timers:   w.timers,
		Notifier: deps.Host,
		Composer: composerHook{w},
		Config:   cfg.Generation,
		MinLen:   cfg.Composer.MinLength,
		MaxLen:   cfg.Composer.MaxLength,
		Logger:   log,
	})
	w.tl.SetResubmitter(w.gen)

	w.bus = bus.New(deps.ID, deps.Transport, deps.Exec, log)

	w.tl.OnChange(w.sync)
	w.gen.OnChange(w.sync)
	w.modes.OnChange(func(_, to mode.Mode, _ mode.Trigger) {
		w.geo.ApplyMode(to)
		w.sync()
	})

	return w, nil
}

// ID returns the window id.
func (w *Window) ID() session.WindowID { return w.id }

// Role returns the window role.
func (w *Window) Role() mode.Role { return w.modes.Role() }

// Context returns the window lifetime context.
func (w *Window) Context() context.Context { return w.ctx }

// OnChange registers fn to run after every change. fn runs on the window
// executor and must not block or call back into the window.
func (w *Window) OnChange(fn func()) {
	w.exec.Do(func() {
		w.listeners = append(w.listeners, fn)
	})
}

// Mount restores the remembered mode and draft, joins the bus and starts
// the clamp poll. The window closes when ctx is done.
func (w *Window) Mount(ctx context.Context) error {
	err := ErrClosed
	w.exec.Do(func() {
		if w.closed {
			return
		}
		err = nil
		if w.mounted {
			return
		}

		bounds, _ := w.geo.Refresh()
		w.modes.Mount(bounds)

		w.composerText = w.drafts.Load(w.cfg.Window.SessionID)
		if w.prefs.HintDismissed() {
			w.onboarding = state.OnboardingDone
		}

		if berr := w.bus.Bind(replica{w}); berr != nil {
			w.log.Warn("bus subscribe failed", "err", berr)
		}
		w.bus.Announce()
		if w.tl.Len() == 0 {
			w.bus.RequestBootstrap()
		}

		w.geo.StartClamp()
		w.mounted = true
		w.log.Info("window mounted", "mode", w.modes.Mode(), "local", w.bus.Local())
		w.notify()
	})
	if err != nil {
		return err
	}
	if ctx != nil {
		context.AfterFunc(ctx, func() { _ = w.Close() })
	}
	return nil
}

// Close tears the window down: in-flight requests, timers, the clamp poll,
// pending drafts and the bus subscription.
func (w *Window) Close() error {
	shutdown := func() {
		if w.closed {
			return
		}
		w.closed = true
		w.gen.Close()
		w.geo.StopClamp()
		w.drafts.Flush()
		w.timers.Close()
		w.cancel()
		w.log.Info("window closed")
	}
	if s, ok := w.exec.(*session.Serial); ok {
		s.Close(shutdown)
	} else {
		w.exec.Do(shutdown)
	}
	return w.bus.Close()
}

// do runs fn on the executor and publishes afterwards.
func (w *Window) do(fn func()) bool {
	ran := false
	w.exec.Do(func() {
		if w.closed {
			return
		}
		fn()
		ran = true
		w.sync()
	})
	return ran
}

// sync publishes the current snapshot and notifies listeners. It runs on
// the executor.
func (w *Window) sync() {
	if w.closed {
		return
	}
	if w.mounted {
		w.bus.Publish(w.snapshot())
	}
	w.notify()
}

func (w *Window) notify() {
	for _, fn := range w.listeners {
		fn()
	}
}

// =============================================================================
// REPLICATED STATE
// =============================================================================

func (w *Window) snapshot() state.Snapshot {
	v := w.gen.View()
	snap := state.Snapshot{
		Profile:         w.profile,
		Timeline:        w.tl.Entries(),
		Progress:        v.Progress,
		CurrentCommand:  w.currentCommand,
		IsThinking:      v.IsThinking,
		SimilarGoals:    append([]string(nil), w.similar...),
		ShowSuggestions: w.showSuggestions,
		ComposerText:    w.composerText,
		IsStreaming:     v.IsStreaming,
		IsConnected:     v.IsConnected,
		Onboarding:      w.onboarding,
	}
	if w.screenshot != nil {
		shot := *w.screenshot
		snap.Screenshot = &shot
	}
	return snap
}

// apply adopts every replicated field of snap. Mode is never touched.
func (w *Window) apply(snap state.Snapshot, opts bus.ApplyOptions) {
	if w.closed {
		return
	}
	snap = snap.Clone()
	w.profile = snap.Profile
	w.currentCommand = snap.CurrentCommand
	w.similar = snap.SimilarGoals
	w.showSuggestions = snap.ShowSuggestions
	if !opts.SkipComposer {
		w.composerText = snap.ComposerText
	}
	w.screenshot = snap.Screenshot
	if snap.Onboarding != "" {
		w.onboarding = snap.Onboarding
	}
	w.gen.ApplyView(generation.View{
		Progress:    snap.Progress,
		IsThinking:  snap.IsThinking,
		IsStreaming: snap.IsStreaming,
		IsConnected: snap.IsConnected,
	})
	w.tl.Replace(snap.Timeline)
	w.notify()
}

// Snapshot returns the replicated state.
func (w *Window) Snapshot() state.Snapshot {
	var snap state.Snapshot
	w.exec.Do(func() { snap = w.snapshot() })
	return snap
}

// Apply adopts snap as if it had arrived from a sibling window.
func (w *Window) Apply(snap state.Snapshot) {
	w.exec.Do(func() {
		w.apply(snap, bus.ApplyOptions{SkipComposer: w.editing})
	})
}

// replica is the bus view of a window. Its methods already run on the
// executor.
type replica struct{ w *Window }

func (r replica) Snapshot() state.Snapshot { return r.w.snapshot() }

func (r replica) Apply(snap state.Snapshot, opts bus.ApplyOptions) { r.w.apply(snap, opts) }

// HasState is false for a window that has seen no conversation yet, so it
// never answers a bootstrap request with an empty timeline.
func (r replica) HasState() bool {
	return r.w.tl.Len() > 0 || r.w.gen.State().Active()
}

// composerHook lets the timeline and generation controller write the
// composer.
type composerHook struct{ w *Window }

// ClearComposer empties the composer and forgets its draft.
func (h composerHook) ClearComposer() {
	w := h.w
	w.composerText = ""
	w.drafts.Clear(w.cfg.Window.SessionID)
	w.clearSuggestions()
	w.modes.ComposerChanged("", false)
}

// SetComposerText loads text into the composer for editing.
func (h composerHook) SetComposerText(text string) {
	w := h.w
	w.composerText = text
	w.drafts.Save(w.cfg.Window.SessionID, text)
	w.modes.ComposerChanged(text, false)
}

type scrollHook struct{ w *Window }

func (h scrollHook) ScrollTo(id string) { h.w.scrollTarget = id }

func errClosed(ran bool, err error) error {
	if !ran {
		return ErrClosed
	}
	return err
}
