// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/backend"
	"github.com/jeranaias/rigrun-overlay/internal/cache"
	"github.com/jeranaias/rigrun-overlay/internal/config"
	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/session"
	"github.com/jeranaias/rigrun-overlay/internal/timeline"
)

// Named timers owned by the controller.
const (
	TimerConnect  = "generation.connect"
	TimerCollapse = "generation.collapse"
	TimerReveal   = "generation.reveal"
)

// contextTurns is how many prior user/agent entries are sent as context.
const contextTurns = 10

// =============================================================================
// COLLABORATORS
// =============================================================================

// Cache is the response cache consulted before the backend.
type Cache interface {
	Lookup(q string) (string, cache.HitType)
	Store(q, answer string)
}

// Notifier shows transient notifications.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Composer is cleared when a message is accepted.
type Composer interface {
	ClearComposer()
}

// Deps configures a Controller.
type Deps struct {
	Backend  backend.Backend
	Cache    Cache
	Timeline *timeline.Timeline
	Exec     session.Executor
	Timers   *session.Timers
	Notifier Notifier
	Composer Composer
	Config   config.GenerationConfig
	MinLen   int
	MaxLen   int
	Logger   pslog.Logger
}

// View is the replicated part of the controller state.
type View struct {
	Progress    int
	IsThinking  bool
	IsStreaming bool
	IsConnected bool
}

// Info describes the current session.
type Info struct {
	ID           uint64
	Prompt       string
	State        State
	StartedAt    time.Time
	FirstTokenAt time.Time
	PartialText  string
	Steps        []string
	Cached       bool
}

// genSession is one request lifecycle. At most one is current per window.
type genSession struct {
	id           uint64
	prompt       string
	state        State
	startedAt    time.Time
	firstTokenAt time.Time
	cancel       context.CancelFunc
	partial      strings.Builder
	steps        []string
	thoughtID    string
	reasoningID  string
	agentID      string
	cached       bool
	userStopped  bool
	revealWords  []string
	revealIndex  int
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs one cancellable request per outgoing message.
//
// Methods must run on the window executor. Backend events arrive on a
// background goroutine and are handed back through the executor; events
// for a session that is no longer current are dropped.
type Controller struct {
	deps Deps
	ctx  context.Context
	log  pslog.Logger

	current *genSession
	nextID  uint64
	view    View
	status  Status
	hovered string
	closed  bool

	onChange func()
}

// New creates a controller. ctx is the window lifetime.
func New(ctx context.Context, deps Deps) *Controller {
	if deps.Exec == nil {
		deps.Exec = session.Inline{}
	}
	if deps.Timers == nil {
		deps.Timers = session.NewTimers(nil, deps.Exec)
	}
	return &Controller{
		deps: deps,
		ctx:  ctx,
		log:  logx.WithComponent(logx.OrDiscard(deps.Logger), "generation"),
		view: View{IsConnected: true},
	}
}

// OnChange registers fn to run after every state change.
func (c *Controller) OnChange(fn func()) {
	c.onChange = fn
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Controller) now() time.Time {
	return c.deps.Timers.Clock().Now()
}

// State returns the current session state, Idle when there is none.
func (c *Controller) State() State {
	if c.current == nil {
		return Idle
	}
	return c.current.state
}

// Status returns the last notice.
func (c *Controller) Status() Status {
	return c.status
}

// View returns the replicated view fields.
func (c *Controller) View() View {
	return c.view
}

// ApplyView adopts view fields received from a sibling window.
func (c *Controller) ApplyView(v View) {
	c.view = v
}

// Info returns the current session, if any.
func (c *Controller) Info() (Info, bool) {
	s := c.current
	if s == nil {
		return Info{}, false
	}
	return Info{
		ID:           s.id,
		Prompt:       s.prompt,
		State:        s.state,
		StartedAt:    s.startedAt,
		FirstTokenAt: s.firstTokenAt,
		PartialText:  s.partial.String(),
		Steps:        append([]string(nil), s.steps...),
		Cached:       s.cached,
	}, true
}

// SetHovered records which entry the pointer is over ("" for none).
func (c *Controller) SetHovered(entryID string) {
	c.hovered = entryID
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit validates text, appends it as a user entry and starts a session.
// A *ValidationError leaves the timeline untouched.
func (c *Controller) Submit(text string, shot *host.Screenshot) error {
	if c.State().Active() {
		return ErrBusy
	}
	if err := Validate(text, c.deps.MinLen, c.deps.MaxLen); err != nil {
		return err
	}
	prompt := strings.TrimSpace(text)

	c.deps.Timeline.Append(timeline.NewEntry(timeline.KindUser, prompt))
	if c.deps.Composer != nil {
		c.deps.Composer.ClearComposer()
	}
	c.view.Progress = 0
	c.start(prompt, shot, true)
	return nil
}

// Resubmit starts a session for prompt without adding a user entry. It
// always asks the backend; the new answer replaces the cached one.
func (c *Controller) Resubmit(prompt string) error {
	if c.Busy() {
		return ErrBusy
	}
	c.view.Progress = 0
	c.start(prompt, nil, false)
	return nil
}

// Busy reports whether a session is in flight.
func (c *Controller) Busy() bool {
	return c.State().Active()
}

func (c *Controller) start(prompt string, shot *host.Screenshot, useCache bool) {
	if prev := c.current; prev != nil && c.Revealing() {
		c.revealAll(prev)
	}
	c.deps.Timers.Cancel(TimerConnect)
	c.deps.Timers.Cancel(TimerReveal)
	c.status = StatusNone
	c.nextID++
	s := &genSession{id: c.nextID, prompt: prompt, startedAt: c.now()}
	c.current = s

	if useCache && c.deps.Cache != nil && shot == nil {
		if answer, hit := c.deps.Cache.Lookup(prompt); hit != cache.HitNone {
			c.log.Debug("cache hit", "session", s.id, "hit", hit)
			c.completeFromCache(s, answer)
			return
		}
	}

	s.state = Connecting
	c.view.Progress = progressConnecting
	c.view.IsThinking = true
	c.view.IsStreaming = false
	c.log.Debug("generation started", "session", s.id)
	c.changed()

	c.deps.Timers.After(TimerConnect, c.deps.Config.ConnectDelay(), func() {
		if c.current == s && s.state == Connecting {
			c.setThinking(s)
			c.changed()
		}
	})

	req := backend.Request{
		Message:    prompt,
		Context:    c.contextTurns(),
		Screenshot: shot,
	}
	c.launch(s, func(ctx context.Context, onEvent func(backend.Event)) error {
		return c.deps.Backend.Send(ctx, req, onEvent)
	})
}

// launch runs send in the background with a fresh cancellation handle.
func (c *Controller) launch(s *genSession, send func(context.Context, func(backend.Event)) error) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout := c.deps.Config.RequestTimeout(); timeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(c.ctx)
	}
	s.cancel = cancel

	c.deps.Exec.Go(func() {
		err := send(ctx, func(ev backend.Event) {
			c.deps.Exec.Do(func() { c.handleEvent(s, ev) })
		})
		c.deps.Exec.Do(func() { c.finish(s, err) })
	})
}

// contextTurns collects prior user/agent entries, excluding the prompt just
// appended.
func (c *Controller) contextTurns() []backend.Turn {
	entries := c.deps.Timeline.Entries()
	if n := len(entries); n > 0 && entries[n-1].Kind == timeline.KindUser {
		entries = entries[:n-1]
	}
	var turns []backend.Turn
	for i := len(entries) - 1; i >= 0 && len(turns) < contextTurns; i-- {
		e := entries[i]
		switch e.Kind {
		case timeline.KindUser:
			turns = append(turns, backend.Turn{Role: "user", Content: e.Content})
		case timeline.KindAgent:
			turns = append(turns, backend.Turn{Role: "assistant", Content: e.Content})
		}
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns
}

// =============================================================================
// EVENTS
// =============================================================================

func (c *Controller) handleEvent(s *genSession, ev backend.Event) {
	if c.closed || c.current != s || !s.state.Active() {
		return
	}
	c.view.IsConnected = true

	switch ev.Type {
	case backend.EventMessage:
		c.deps.Timers.Cancel(TimerConnect)
		if s.state == Connecting {
			c.setThinking(s)
		}
		if s.reasoningID == "" || !c.deps.Timeline.Update(s.reasoningID, func(e *timeline.Entry) {
			e.Content = ev.Message
		}) {
			s.reasoningID = c.deps.Timeline.Append(timeline.NewEntry(timeline.KindThought, ev.Message)).ID
		}
		s.thoughtID = s.reasoningID

	case backend.EventStep:
		c.deps.Timers.Cancel(TimerConnect)
		if s.state == Connecting {
			c.setThinking(s)
		}
		entry := timeline.NewEntry(timeline.KindThought, ev.Reasoning)
		entry.Step = &timeline.StepMeta{Number: ev.StepNumber}
		s.thoughtID = c.deps.Timeline.Append(entry).ID
		s.reasoningID = ""
		s.steps = append(s.steps, ev.Reasoning)
		if c.view.Progress < progressStepMax {
			c.view.Progress = min(progressStepMax, c.view.Progress+progressStep)
		}

	case backend.EventToken:
		if s.state != Answering {
			c.deps.Timers.Cancel(TimerConnect)
			s.state = Answering
			s.firstTokenAt = c.now()
			c.view.Progress = progressAnswering
			c.view.IsThinking = false
			c.view.IsStreaming = true
		}
		s.partial.WriteString(ev.Token)
		c.upsertAgent(s, s.partial.String())

	case backend.EventFinal:
		c.complete(s, ev.Final)
		return

	case backend.EventError:
		c.fail(s, &backend.RemoteError{Message: ev.Error})
		return
	}
	c.changed()
}

func (c *Controller) setThinking(s *genSession) {
	s.state = Thinking
	if c.view.Progress < progressThinking {
		c.view.Progress = progressThinking
	}
}

func (c *Controller) upsertAgent(s *genSession, content string) {
	if s.agentID != "" && c.deps.Timeline.Update(s.agentID, func(e *timeline.Entry) {
		e.Content = content
	}) {
		return
	}
	s.agentID = c.deps.Timeline.Append(timeline.NewEntry(timeline.KindAgent, content)).ID
}

func (c *Controller) complete(s *genSession, final *backend.Final) {
	answer := s.partial.String()
	var facts []string
	var execMs int64
	if final != nil {
		if final.Response != "" {
			answer = final.Response
		}
		facts = final.Facts
		execMs = int64(final.ExecutionTime * 1000)
		if len(s.steps) == 0 {
			s.steps = final.Steps
		}
	}

	now := c.now()
	timing := &timeline.Timing{
		TotalMs:     now.Sub(s.startedAt).Milliseconds(),
		ExecutionMs: execMs,
	}
	if !s.firstTokenAt.IsZero() {
		timing.TTFTMs = s.firstTokenAt.Sub(s.startedAt).Milliseconds()
	}

	c.upsertAgent(s, answer)
	c.deps.Timeline.Update(s.agentID, func(e *timeline.Entry) {
		e.Timing = timing
		e.Facts = append([]string(nil), facts...)
	})
	if s.thoughtID != "" {
		c.deps.Timeline.Update(s.thoughtID, func(e *timeline.Entry) { e.Frozen = true })
	}

	s.state = Completed
	if s.cancel != nil {
		s.cancel()
	}
	c.view.Progress = progressDone
	c.view.IsThinking = false
	c.view.IsStreaming = false

	if c.deps.Cache != nil && answer != "" {
		c.deps.Cache.Store(s.prompt, answer)
	}
	c.log.Debug("generation completed", "session", s.id, "total_ms", timing.TotalMs)
	c.changed()
}

// finish handles the end of the background send.
func (c *Controller) finish(s *genSession, err error) {
	if c.current != s || !s.state.Active() {
		return
	}
	if c.closed {
		s.state = Aborted
		return
	}
	switch {
	case err == nil:
		if s.partial.Len() > 0 {
			c.complete(s, nil)
			return
		}
		c.fail(s, ErrEmptyStream)
	case backend.IsAbort(err):
		c.abort(s)
	case errors.Is(err, backend.ErrContinueUnsupported):
		c.status = StatusContinueUnsupported
		c.abort(s)
	default:
		c.fail(s, err)
	}
}

// abort ends a session that was cancelled without a user Stop.
func (c *Controller) abort(s *genSession) {
	s.state = Aborted
	c.deps.Timers.Cancel(TimerConnect)
	c.view.IsThinking = false
	c.view.IsStreaming = false
	c.changed()
}

func (c *Controller) fail(s *genSession, err error) {
	if s.cancel != nil {
		s.cancel()
	}
	kind := backend.Classify(err)
	msg := kind.Message()

	c.deps.Timers.Cancel(TimerConnect)
	s.state = Errored
	c.view.Progress = 0
	c.view.IsThinking = false
	c.view.IsStreaming = false
	if kind == backend.KindNetwork {
		c.view.IsConnected = false
	}

	c.deps.Timeline.Append(timeline.NewEntry(timeline.KindError, msg))
	if c.deps.Notifier != nil {
		if nerr := c.deps.Notifier.Notify(c.ctx, "Assistant", msg); nerr != nil && !host.IsUnavailable(nerr) {
			c.log.Debug("notification failed", "err", nerr)
		}
	}
	c.log.Warn("generation failed", "session", s.id, "kind", kind, "err", err)
	c.changed()
}

// =============================================================================
// CACHE REVEAL
// =============================================================================

func (c *Controller) completeFromCache(s *genSession, answer string) {
	s.cached = true
	s.state = Completed
	s.agentID = c.deps.Timeline.Append(timeline.Entry{
		Kind:   timeline.KindAgent,
		Timing: &timeline.Timing{Cached: true},
	}).ID
	c.view.Progress = progressDone
	c.view.IsThinking = false
	c.view.IsConnected = true

	s.revealWords = strings.SplitAfter(answer, " ")
	if answer == "" || c.deps.Config.RevealInterval() <= 0 {
		c.revealAll(s)
		c.changed()
		return
	}
	c.view.IsStreaming = true
	c.changed()
	c.deps.Timers.Every(TimerReveal, c.deps.Config.RevealInterval(), func() {
		c.revealNext(s)
	})
}

func (c *Controller) revealNext(s *genSession) {
	if c.current != s || s.revealIndex >= len(s.revealWords) {
		c.deps.Timers.Cancel(TimerReveal)
		return
	}
	s.partial.WriteString(s.revealWords[s.revealIndex])
	s.revealIndex++
	c.deps.Timeline.Update(s.agentID, func(e *timeline.Entry) {
		e.Content = s.partial.String()
	})
	if s.revealIndex >= len(s.revealWords) {
		c.deps.Timers.Cancel(TimerReveal)
		c.finishReveal(s)
	}
	c.changed()
}

func (c *Controller) revealAll(s *genSession) {
	for s.revealIndex < len(s.revealWords) {
		s.partial.WriteString(s.revealWords[s.revealIndex])
		s.revealIndex++
	}
	c.deps.Timeline.Update(s.agentID, func(e *timeline.Entry) {
		e.Content = s.partial.String()
	})
	c.finishReveal(s)
}

func (c *Controller) finishReveal(s *genSession) {
	c.view.IsStreaming = false
	c.deps.Timeline.Update(s.agentID, func(e *timeline.Entry) {
		if e.Timing != nil {
			e.Timing.TotalMs = c.now().Sub(s.startedAt).Milliseconds()
		}
	})
}

// Revealing reports whether a cached answer is still being revealed.
func (c *Controller) Revealing() bool {
	s := c.current
	return s != nil && s.cached && s.revealIndex < len(s.revealWords)
}

// =============================================================================
// STOP AND CONTINUE
// =============================================================================

// Stop cancels the active request. Further events from it are ignored. The
// active thought is frozen and collapsed: right away for short runs, after
// a grace delay otherwise unless the user is hovering it then.
func (c *Controller) Stop() bool {
	s := c.current
	if s == nil {
		return false
	}
	if s.cached && c.Revealing() {
		c.deps.Timers.Cancel(TimerReveal)
		c.revealAll(s)
		c.changed()
		return true
	}
	if !s.state.Active() {
		return false
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.userStopped = true
	s.state = Aborted
	c.deps.Timers.Cancel(TimerConnect)
	c.view.IsThinking = false
	c.view.IsStreaming = false

	if id := s.thoughtID; id != "" {
		c.deps.Timeline.Update(id, func(e *timeline.Entry) { e.Frozen = true })
		elapsed := c.now().Sub(s.startedAt)
		if elapsed < c.deps.Config.CollapseThreshold() {
			c.collapse(id)
		} else {
			c.deps.Timers.After(TimerCollapse, c.deps.Config.CollapseGrace(), func() {
				if c.hovered == id {
					return
				}
				c.collapse(id)
				c.changed()
			})
		}
	}

	c.log.Debug("generation stopped", "session", s.id)
	c.changed()
	return true
}

func (c *Controller) collapse(id string) {
	c.deps.Timeline.Update(id, func(e *timeline.Entry) { e.Collapsed = true })
}

// Continue resumes a stopped answer when the backend supports it.
func (c *Controller) Continue() error {
	s := c.current
	if s == nil || s.state != Aborted || s.partial.Len() == 0 {
		return ErrNothingToContinue
	}

	cont, ok := c.deps.Backend.(backend.Continuer)
	if capable, has := c.deps.Backend.(interface{ SupportsContinue() bool }); has && !capable.SupportsContinue() {
		ok = false
	}
	if !ok {
		c.status = StatusContinueUnsupported
		c.changed()
		return ErrContinueNotSupported
	}

	c.deps.Timers.Cancel(TimerConnect)
	c.status = StatusNone
	c.nextID++
	next := &genSession{
		id:           c.nextID,
		prompt:       s.prompt,
		state:        Answering,
		startedAt:    c.now(),
		firstTokenAt: c.now(),
		agentID:      s.agentID,
		steps:        s.steps,
	}
	next.partial.WriteString(s.partial.String())
	c.current = next
	c.view.IsStreaming = true
	c.view.Progress = progressAnswering
	c.changed()

	req := backend.ContinueRequest{
		Message: s.prompt,
		Partial: s.partial.String(),
		Context: c.contextTurns(),
	}
	c.launch(next, func(ctx context.Context, onEvent func(backend.Event)) error {
		return cont.Continue(ctx, req, onEvent)
	})
	return nil
}

// Close cancels any in-flight request without recording an error.
func (c *Controller) Close() {
	c.closed = true
	c.cancelTimers()
	if s := c.current; s != nil && s.cancel != nil {
		s.cancel()
	}
}

func (c *Controller) cancelTimers() {
	c.deps.Timers.Cancel(TimerConnect)
	c.deps.Timers.Cancel(TimerReveal)
	c.deps.Timers.Cancel(TimerCollapse)
}
