// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-overlay/internal/backend"
	"github.com/jeranaias/rigrun-overlay/internal/cache"
	"github.com/jeranaias/rigrun-overlay/internal/clock"
	"github.com/jeranaias/rigrun-overlay/internal/config"
	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/session"
	"github.com/jeranaias/rigrun-overlay/internal/timeline"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type call struct {
	ctx  context.Context
	req  backend.Request
	cont *backend.ContinueRequest
	emit func(backend.Event)
	done chan error
}

// manualBackend hands every Send to the test, which drives its events.
type manualBackend struct {
	calls chan *call
}

func newManualBackend() *manualBackend {
	return &manualBackend{calls: make(chan *call, 8)}
}

func (m *manualBackend) run(ctx context.Context, c *call) error {
	m.calls <- c
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *manualBackend) Send(ctx context.Context, req backend.Request, onEvent func(backend.Event)) error {
	return m.run(ctx, &call{ctx: ctx, req: req, emit: onEvent, done: make(chan error, 1)})
}

type continuingBackend struct {
	*manualBackend
}

func (b continuingBackend) Continue(ctx context.Context, req backend.ContinueRequest, onEvent func(backend.Event)) error {
	return b.run(ctx, &call{ctx: ctx, cont: &req, emit: onEvent, done: make(chan error, 1)})
}

type composer struct{ cleared int }

func (c *composer) ClearComposer() { c.cleared++ }

type harness struct {
	c        *Controller
	exec     *session.Serial
	clk      *clock.FakeClock
	tl       *timeline.Timeline
	be       *manualBackend
	cache    *cache.Manager
	host     *host.Virtual
	composer *composer
	changes  int
}

func newHarness(t *testing.T, be backend.Backend) *harness {
	t.Helper()
	exec := session.NewSerial()
	clk := clock.Fake(time.UnixMilli(1740819600000))
	timers := session.NewTimers(clk, exec)
	t.Cleanup(timers.Close)

	cfg := config.Default()
	h := &harness{
		exec:     exec,
		clk:      clk,
		tl:       timeline.New(timeline.Deps{Timers: timers}),
		cache:    cache.NewManager(cache.Options{}),
		host:     host.NewVirtual(host.Rect{}, host.Size{}),
		composer: &composer{},
	}
	switch b := be.(type) {
	case *manualBackend:
		h.be = b
	case continuingBackend:
		h.be = b.manualBackend
	}
	h.c = New(context.Background(), Deps{
		Backend:  be,
		Cache:    h.cache,
		Timeline: h.tl,
		Exec:     exec,
		Timers:   timers,
		Notifier: h.host,
		Composer: h.composer,
		Config:   cfg.Generation,
		MinLen:   cfg.Composer.MinLength,
		MaxLen:   cfg.Composer.MaxLength,
	})
	h.c.OnChange(func() { h.changes++ })
	t.Cleanup(func() { exec.Do(h.c.Close) })
	return h
}

func (h *harness) do(fn func()) {
	h.exec.Do(fn)
}

func (h *harness) submit(t *testing.T, text string) error {
	t.Helper()
	var err error
	h.do(func() { err = h.c.Submit(text, nil) })
	return err
}

func (h *harness) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-h.be.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("backend was not called")
		return nil
	}
}

func (h *harness) state() State {
	var st State
	h.do(func() { st = h.c.State() })
	return st
}

func (h *harness) view() View {
	var v View
	h.do(func() { v = h.c.View() })
	return v
}

func (h *harness) entries() []timeline.Entry {
	var out []timeline.Entry
	h.do(func() { out = h.tl.Entries() })
	return out
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.state() == want }, 2*time.Second, 5*time.Millisecond)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateBoundaries(t *testing.T) {
	require.NoError(t, Validate("hi", 2, 2000))
	require.NoError(t, Validate(strings.Repeat("a", 2000), 2, 2000))

	var verr *ValidationError
	require.ErrorAs(t, Validate("h", 2, 2000), &verr)
	require.Equal(t, ReasonTooShort, verr.Reason)

	require.ErrorAs(t, Validate(strings.Repeat("a", 2001), 2, 2000), &verr)
	require.Equal(t, ReasonTooLong, verr.Reason)

	require.ErrorAs(t, Validate("   ", 2, 2000), &verr)
	require.Equal(t, ReasonEmpty, verr.Reason)

	require.NoError(t, Validate("日本", 2, 2000))
}

func TestRejectedInputNeverEntersTimeline(t *testing.T) {
	h := newHarness(t, newManualBackend())

	var verr *ValidationError
	require.ErrorAs(t, h.submit(t, "h"), &verr)
	require.ErrorAs(t, h.submit(t, strings.Repeat("x", 2001)), &verr)
	require.Empty(t, h.entries())
	require.Equal(t, 0, h.composer.cleared)
	require.Equal(t, Idle, h.state())
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestSubmitLifecycle(t *testing.T) {
	h := newHarness(t, newManualBackend())

	require.NoError(t, h.submit(t, "hi"))
	c := h.next(t)
	require.Equal(t, "hi", c.req.Message)
	require.Equal(t, Connecting, h.state())
	require.Equal(t, 10, h.view().Progress)
	require.Equal(t, 1, h.composer.cleared)

	h.clk.Advance(150 * time.Millisecond)
	require.Equal(t, Thinking, h.state())
	require.Equal(t, 30, h.view().Progress)

	c.emit(backend.MessageEvent("Looking"))
	c.emit(backend.MessageEvent("Looking closer"))
	c.emit(backend.StepEvent(1, "Step one"))
	require.Equal(t, 40, h.view().Progress)

	h.clk.Advance(400 * time.Millisecond)
	c.emit(backend.TokenEvent("Hel"))
	require.Equal(t, Answering, h.state())
	require.True(t, h.view().IsStreaming)
	c.emit(backend.TokenEvent("lo"))

	h.clk.Advance(100 * time.Millisecond)
	c.emit(backend.FinalEvent(backend.Final{Response: "Hello", Facts: []string{"greeting"}, ExecutionTime: 0.25}))
	c.done <- nil
	require.Equal(t, Completed, h.state())
	require.Equal(t, 100, h.view().Progress)

	entries := h.entries()
	require.Len(t, entries, 4)
	require.Equal(t, timeline.KindUser, entries[0].Kind)
	require.Equal(t, "Looking closer", entries[1].Content)
	require.Equal(t, 1, entries[2].Step.Number)
	agent := entries[3]
	require.Equal(t, timeline.KindAgent, agent.Kind)
	require.Equal(t, "Hello", agent.Content)
	require.Equal(t, []string{"greeting"}, agent.Facts)
	require.Equal(t, int64(550), agent.Timing.TTFTMs)
	require.Equal(t, int64(650), agent.Timing.TotalMs)
	require.Equal(t, int64(250), agent.Timing.ExecutionMs)

	answer, hit := h.cache.Lookup("hi")
	require.Equal(t, cache.HitExact, hit)
	require.Equal(t, "Hello", answer)
}

func TestSubmitWhileActiveIsBusy(t *testing.T) {
	h := newHarness(t, newManualBackend())
	require.NoError(t, h.submit(t, "first"))
	h.next(t)
	require.ErrorIs(t, h.submit(t, "second"), ErrBusy)
}

func TestStopThenSubmitIgnoresStaleEvents(t *testing.T) {
	h := newHarness(t, newManualBackend())

	require.NoError(t, h.submit(t, "first question"))
	first := h.next(t)
	first.emit(backend.MessageEvent("thinking"))

	var stopped bool
	h.do(func() { stopped = h.c.Stop() })
	require.True(t, stopped)
	require.Equal(t, Aborted, h.state())
	require.ErrorIs(t, first.ctx.Err(), context.Canceled)

	require.NoError(t, h.submit(t, "second question"))
	second := h.next(t)
	require.NotEqual(t, first.ctx, second.ctx)
	require.NoError(t, second.ctx.Err())

	first.emit(backend.TokenEvent("stale"))
	first.emit(backend.FinalEvent(backend.Final{Response: "stale"}))
	for _, e := range h.entries() {
		require.NotContains(t, e.Content, "stale")
	}
	require.Equal(t, Connecting, h.state())

	for _, e := range h.entries() {
		require.NotEqual(t, timeline.KindError, e.Kind, "abort must not produce an error entry")
	}
}

func TestStopCollapsesShortRunImmediately(t *testing.T) {
	h := newHarness(t, newManualBackend())
	require.NoError(t, h.submit(t, "question"))
	c := h.next(t)
	c.emit(backend.MessageEvent("thinking"))

	h.clk.Advance(time.Second)
	h.do(func() { h.c.Stop() })

	thought := h.entries()[1]
	require.True(t, thought.Frozen)
	require.True(t, thought.Collapsed)
}

func TestStopCollapsesLongRunAfterGrace(t *testing.T) {
	h := newHarness(t, newManualBackend())
	require.NoError(t, h.submit(t, "question"))
	c := h.next(t)
	c.emit(backend.MessageEvent("thinking"))

	h.clk.Advance(2500 * time.Millisecond)
	h.do(func() { h.c.Stop() })
	require.False(t, h.entries()[1].Collapsed)

	h.clk.Advance(2999 * time.Millisecond)
	require.False(t, h.entries()[1].Collapsed)
	h.clk.Advance(time.Millisecond)
	require.True(t, h.entries()[1].Collapsed)
}

func TestHoverSuppressesCollapse(t *testing.T) {
	h := newHarness(t, newManualBackend())
	require.NoError(t, h.submit(t, "question"))
	c := h.next(t)
	c.emit(backend.MessageEvent("thinking"))

	h.clk.Advance(3 * time.Second)
	h.do(func() { h.c.Stop() })
	thoughtID := h.entries()[1].ID
	h.do(func() { h.c.SetHovered(thoughtID) })

	h.clk.Advance(5 * time.Second)
	thought := h.entries()[1]
	require.True(t, thought.Frozen)
	require.False(t, thought.Collapsed)
}

// =============================================================================
// CACHE
// =============================================================================

func TestCacheHitRevealsWithoutBackend(t *testing.T) {
	h := newHarness(t, newManualBackend())
	h.cache.Store("what is go", "Go is a language")

	require.NoError(t, h.submit(t, "What is Go"))
	require.Equal(t, Completed, h.state())
	require.True(t, h.view().IsStreaming)
	require.Equal(t, "", h.entries()[1].Content)

	h.clk.Advance(30 * time.Millisecond)
	require.Equal(t, "Go ", h.entries()[1].Content)
	h.clk.Advance(60 * time.Millisecond)
	require.Equal(t, "Go is a ", h.entries()[1].Content)
	h.clk.Advance(30 * time.Millisecond)
	require.Equal(t, "Go is a language", h.entries()[1].Content)
	require.False(t, h.view().IsStreaming)
	require.True(t, h.entries()[1].Timing.Cached)

	select {
	case <-h.be.calls:
		t.Fatal("cache hit must not call the backend")
	default:
	}
}

func TestStopDuringRevealShowsFullAnswer(t *testing.T) {
	h := newHarness(t, newManualBackend())
	h.cache.Store("what is go", "Go is a language")
	require.NoError(t, h.submit(t, "what is go"))

	h.clk.Advance(30 * time.Millisecond)
	h.do(func() { h.c.Stop() })
	require.Equal(t, "Go is a language", h.entries()[1].Content)
	require.Equal(t, Completed, h.state())
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorKindsProduceEntries(t *testing.T) {
	cases := []struct {
		err  error
		kind backend.Kind
	}{
		{&backend.HTTPError{Status: 502}, backend.KindServer},
		{context.DeadlineExceeded, backend.KindTimeout},
		{backend.ErrAuthFailed, backend.KindAuth},
		{backend.ErrRateLimited, backend.KindRateLimit},
		{errors.New("weird"), backend.KindUnknown},
	}
	for _, tc := range cases {
		h := newHarness(t, newManualBackend())
		require.NoError(t, h.submit(t, "question"))
		h.next(t).done <- tc.err
		h.waitState(t, Errored)

		entries := h.entries()
		last := entries[len(entries)-1]
		require.Equal(t, timeline.KindError, last.Kind)
		require.Equal(t, tc.kind.Message(), last.Content)
		require.Len(t, h.host.Notifications(), 1)
		require.True(t, h.view().IsConnected)
	}
}

func TestNetworkErrorFlipsConnectivity(t *testing.T) {
	h := newHarness(t, newManualBackend())
	require.NoError(t, h.submit(t, "question"))
	h.next(t).done <- &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	h.waitState(t, Errored)
	require.False(t, h.view().IsConnected)

	require.NoError(t, h.submit(t, "again please"))
	c := h.next(t)
	c.emit(backend.MessageEvent("back"))
	require.True(t, h.view().IsConnected)
}

func TestErrorEventInStream(t *testing.T) {
	h := newHarness(t, newManualBackend())
	require.NoError(t, h.submit(t, "question"))
	c := h.next(t)
	c.emit(backend.ErrorEvent("overloaded"))
	require.Equal(t, Errored, h.state())
	c.done <- nil
}

func TestEmptyStreamIsAnError(t *testing.T) {
	h := newHarness(t, newManualBackend())
	require.NoError(t, h.submit(t, "question"))
	h.next(t).done <- nil
	h.waitState(t, Errored)
}

// =============================================================================
// CONTINUE AND RESUBMIT
// =============================================================================

func TestContinueUnsupported(t *testing.T) {
	h := newHarness(t, newManualBackend())
	require.NoError(t, h.submit(t, "question"))
	c := h.next(t)
	c.emit(backend.TokenEvent("partial"))
	h.do(func() { h.c.Stop() })

	var err error
	h.do(func() { err = h.c.Continue() })
	require.ErrorIs(t, err, ErrContinueNotSupported)
	var status Status
	h.do(func() { status = h.c.Status() })
	require.Equal(t, StatusContinueUnsupported, status)
}

func TestContinueNothingStopped(t *testing.T) {
	h := newHarness(t, continuingBackend{newManualBackend()})
	var err error
	h.do(func() { err = h.c.Continue() })
	require.ErrorIs(t, err, ErrNothingToContinue)
}

func TestContinueResumesPartial(t *testing.T) {
	h := newHarness(t, continuingBackend{newManualBackend()})
	require.NoError(t, h.submit(t, "question"))
	c := h.next(t)
	c.emit(backend.TokenEvent("Hel"))
	h.do(func() { h.c.Stop() })

	var err error
	h.do(func() { err = h.c.Continue() })
	require.NoError(t, err)

	resumed := h.next(t)
	require.NotNil(t, resumed.cont)
	require.Equal(t, "Hel", resumed.cont.Partial)
	resumed.emit(backend.TokenEvent("lo"))
	resumed.emit(backend.FinalEvent(backend.Final{}))
	resumed.done <- nil

	entries := h.entries()
	require.Len(t, entries, 2)
	require.Equal(t, "Hello", entries[1].Content)
	require.Equal(t, Completed, h.state())
}

func TestResubmitSkipsUserEntry(t *testing.T) {
	h := newHarness(t, newManualBackend())
	var err error
	h.do(func() { err = h.c.Resubmit("again") })
	require.NoError(t, err)

	c := h.next(t)
	require.Equal(t, "again", c.req.Message)
	require.Empty(t, h.entries())
	require.Equal(t, 0, h.composer.cleared)
}

func TestResubmitBypassesCache(t *testing.T) {
	h := newHarness(t, newManualBackend())
	h.cache.Store("what is go", "Go is a language")

	var err error
	h.do(func() { err = h.c.Resubmit("what is go") })
	require.NoError(t, err)

	c := h.next(t)
	require.Equal(t, "what is go", c.req.Message)
	require.True(t, h.state().Active())
}

func TestContextTurnsExcludeCurrentPrompt(t *testing.T) {
	h := newHarness(t, newManualBackend())
	h.do(func() {
		h.tl.Append(timeline.NewEntry(timeline.KindUser, "earlier"))
		h.tl.Append(timeline.NewEntry(timeline.KindAgent, "answer"))
		h.tl.Append(timeline.NewEntry(timeline.KindThought, "ignored"))
	})
	require.NoError(t, h.submit(t, "now"))
	c := h.next(t)
	require.Equal(t, []backend.Turn{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "answer"},
	}, c.req.Context)
}
