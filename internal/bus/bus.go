// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"sync"

	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/session"
	"github.com/jeranaias/rigrun-overlay/internal/state"
)

// ApplyOptions tune how a remote snapshot is adopted.
type ApplyOptions struct {
	// SkipComposer leaves the local composer text untouched because the
	// user is typing in this window.
	SkipComposer bool
}

// Source is the window state the bus publishes and applies.
type Source interface {
	Snapshot() state.Snapshot
	Apply(snap state.Snapshot, opts ApplyOptions)
}

// Seeder is implemented by sources that decline bootstrap requests while
// they hold nothing worth sharing. An empty reply would overwrite the
// requester's state.
type Seeder interface {
	HasState() bool
}

// Stats counts bus traffic.
type Stats struct {
	Published  int
	Suppressed int
	Received   int
	Applied    int
	Ignored    int
	SendErrors int
}

// Bus keeps one window's shared state in step with its peers. All methods
// except Close must be called on the window's executor; deliveries from
// the transport are routed there.
type Bus struct {
	id        session.WindowID
	transport Transport
	exec      session.Executor
	log       pslog.Logger

	mu  sync.Mutex
	src Source

	cancelSub       func()
	lastSig         string
	applying        bool
	publishing      bool
	editingComposer bool
	closed          bool
	stats           Stats
}

// New builds a bus for window id. A nil transport yields a local-only bus
// on which every operation is a no-op.
func New(id session.WindowID, t Transport, exec session.Executor, log pslog.Logger) *Bus {
	if exec == nil {
		exec = session.Inline{}
	}
	b := &Bus{
		id:        id,
		transport: t,
		exec:      exec,
		log:       logx.WithComponent(logx.OrDiscard(log), "bus"),
	}
	if t == nil {
		b.log.Warn("broadcast transport unavailable, running local-only")
	}
	return b
}

// Local reports whether the bus has no transport.
func (b *Bus) Local() bool { return b.transport == nil }

// ID returns the window id used as message source.
func (b *Bus) ID() session.WindowID { return b.id }

// Bind attaches the state source and starts receiving.
func (b *Bus) Bind(src Source) error {
	b.mu.Lock()
	b.src = src
	b.mu.Unlock()
	if b.transport == nil {
		return nil
	}
	cancel, err := b.transport.Subscribe(func(data []byte) {
		b.exec.Do(func() { b.OnRemoteMessage(data) })
	})
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.cancelSub = cancel
	b.mu.Unlock()
	return nil
}

func (b *Bus) source() Source {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.src
}

// SetEditingComposer marks whether the local composer is being edited.
func (b *Bus) SetEditingComposer(editing bool) {
	b.mu.Lock()
	b.editingComposer = editing
	b.mu.Unlock()
}

// Applying reports whether a remote snapshot is being applied right now.
func (b *Bus) Applying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applying
}

// Publish broadcasts snap unless it matches the last state sent or
// adopted, or a remote snapshot is being applied.
func (b *Bus) Publish(snap state.Snapshot) {
	b.mu.Lock()
	if b.transport == nil || b.closed || b.applying {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	sig, err := state.Signature(snap)
	if err != nil {
		b.log.Warn("snapshot signature failed", "err", err)
		return
	}

	b.mu.Lock()
	if sig == b.lastSig {
		b.stats.Suppressed++
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	if b.send(Message{Type: KindUpdate, Source: b.id, State: &snap}) {
		b.mu.Lock()
		b.lastSig = sig
		b.stats.Published++
		b.mu.Unlock()
	}
}

// PublishCurrent publishes the bound source's snapshot.
func (b *Bus) PublishCurrent() {
	if src := b.source(); src != nil {
		b.Publish(src.Snapshot())
	}
}

// RequestBootstrap asks peers for their state.
func (b *Bus) RequestBootstrap() {
	b.send(Message{Type: KindRequest, Source: b.id})
}

// Announce tells peers this window exists.
func (b *Bus) Announce() {
	b.send(Message{Type: KindAnnounce, Source: b.id})
}

func (b *Bus) send(m Message) bool {
	b.mu.Lock()
	if b.transport == nil || b.closed {
		b.mu.Unlock()
		return false
	}
	b.publishing = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.publishing = false
		b.mu.Unlock()
	}()

	data, err := Encode(m)
	if err != nil {
		b.log.Warn("encode failed", "type", m.Type, "err", err)
		return false
	}
	if err := b.transport.Send(data); err != nil {
		b.mu.Lock()
		b.stats.SendErrors++
		b.mu.Unlock()
		b.log.Warn("broadcast failed", "type", m.Type, "err", err)
		return false
	}
	b.log.Trace("sent", "type", m.Type)
	return true
}

// OnRemoteMessage handles one delivery from the transport.
func (b *Bus) OnRemoteMessage(data []byte) {
	m, err := Decode(data)
	if err != nil {
		b.log.Debug("dropping message", "err", err)
		b.count(func(s *Stats) { s.Ignored++ })
		return
	}
	if m.Source == b.id {
		return
	}
	b.count(func(s *Stats) { s.Received++ })

	b.mu.Lock()
	busy := b.publishing || b.applying || b.closed
	src := b.src
	skipComposer := b.editingComposer
	b.mu.Unlock()
	if busy || src == nil {
		b.count(func(s *Stats) { s.Ignored++ })
		return
	}

	switch m.Type {
	case KindAnnounce:
		b.log.Debug("peer announced", "peer", m.Source)
	case KindRequest:
		b.respond(src)
	case KindUpdate:
		b.apply(src, *m.State, ApplyOptions{SkipComposer: skipComposer}, m.Source)
	}
}

// respond answers a bootstrap request with the current state even if it
// was already sent.
func (b *Bus) respond(src Source) {
	if sd, ok := src.(Seeder); ok && !sd.HasState() {
		b.log.Trace("bootstrap request declined, nothing to share")
		return
	}
	snap := src.Snapshot()
	sig, err := state.Signature(snap)
	if err != nil {
		b.log.Warn("snapshot signature failed", "err", err)
		return
	}
	if b.send(Message{Type: KindUpdate, Source: b.id, State: &snap}) {
		b.mu.Lock()
		b.lastSig = sig
		b.stats.Published++
		b.mu.Unlock()
	}
}

func (b *Bus) apply(src Source, snap state.Snapshot, opts ApplyOptions, from session.WindowID) {
	b.mu.Lock()
	b.applying = true
	b.mu.Unlock()

	src.Apply(snap, opts)

	// Record what the window now holds so the change the apply itself
	// caused is not echoed back.
	sig, err := state.Signature(src.Snapshot())

	b.mu.Lock()
	b.applying = false
	if err == nil {
		b.lastSig = sig
	}
	b.stats.Applied++
	b.mu.Unlock()
	b.log.Trace("applied", "peer", from)
}

func (b *Bus) count(fn func(*Stats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}

// Stats returns a copy of the traffic counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Close stops receiving and releases the transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	cancel := b.cancelSub
	b.cancelSub = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if b.transport == nil {
		return nil
	}
	return b.transport.Close()
}
