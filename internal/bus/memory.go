// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"sync"

	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/logx"
)

// MemoryHub fans messages out to in-process endpoints. Each endpoint has a
// bounded queue; when it is full the message is dropped for that endpoint.
type MemoryHub struct {
	mu        sync.Mutex
	endpoints map[*MemoryEndpoint]struct{}
	log       pslog.Logger
	depth     int
}

// NewMemoryHub constructs a hub.
func NewMemoryHub(log pslog.Logger) *MemoryHub {
	return &MemoryHub{
		endpoints: make(map[*MemoryEndpoint]struct{}),
		log:       logx.WithComponent(logx.OrDiscard(log), "bus.memory"),
		depth:     256,
	}
}

// Endpoint attaches a new endpoint to the hub.
func (h *MemoryHub) Endpoint() *MemoryEndpoint {
	ep := &MemoryEndpoint{
		hub: h,
		ch:  make(chan []byte, h.depth),
	}
	h.mu.Lock()
	h.endpoints[ep] = struct{}{}
	count := len(h.endpoints)
	h.mu.Unlock()
	h.log.Debug("memory endpoint attached", "endpoints", count)
	return ep
}

func (h *MemoryHub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for ep := range h.endpoints {
		select {
		case ep.ch <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.log.Trace("memory hub dropped", "count", dropped)
	}
}

func (h *MemoryHub) detach(ep *MemoryEndpoint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.endpoints[ep]; !ok {
		return false
	}
	delete(h.endpoints, ep)
	close(ep.ch)
	return true
}

// MemoryEndpoint is one window's attachment to a MemoryHub.
type MemoryEndpoint struct {
	hub *MemoryHub
	ch  chan []byte

	mu      sync.Mutex
	fn      func([]byte)
	started bool
	done    chan struct{}
}

// Send implements Transport.
func (e *MemoryEndpoint) Send(data []byte) error {
	e.hub.broadcast(append([]byte(nil), data...))
	return nil
}

// Subscribe implements Transport.
func (e *MemoryEndpoint) Subscribe(fn func([]byte)) (func(), error) {
	e.mu.Lock()
	e.fn = fn
	if !e.started {
		e.started = true
		e.done = make(chan struct{})
		go e.pump()
	}
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		e.fn = nil
		e.mu.Unlock()
	}, nil
}

func (e *MemoryEndpoint) pump() {
	defer close(e.done)
	for data := range e.ch {
		e.mu.Lock()
		fn := e.fn
		e.mu.Unlock()
		if fn != nil {
			fn(data)
		}
	}
}

// Close implements Transport. It waits for an in-progress delivery.
func (e *MemoryEndpoint) Close() error {
	if !e.hub.detach(e) {
		return nil
	}
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
	return nil
}
