// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/config"
)

// ErrTransportUnavailable is returned when no broadcast transport can be
// used in this environment.
var ErrTransportUnavailable = errors.New("bus: transport unavailable")

// Transport is a best-effort, unordered broadcast channel. Messages sent by
// an endpoint may or may not be delivered back to that same endpoint;
// receivers filter by source.
type Transport interface {
	// Send broadcasts data to every endpoint on the channel.
	Send(data []byte) error
	// Subscribe registers the receive callback. Deliveries happen on a
	// transport-owned goroutine.
	Subscribe(fn func(data []byte)) (cancel func(), err error)
	// Close releases the endpoint.
	Close() error
}

var (
	sharedHubOnce sync.Once
	sharedHub     *MemoryHub
)

// SharedHub returns the process-wide in-memory hub.
func SharedHub() *MemoryHub {
	sharedHubOnce.Do(func() {
		sharedHub = NewMemoryHub(nil)
	})
	return sharedHub
}

// OpenTransport builds the transport selected by cfg. The "none" transport
// returns ErrTransportUnavailable.
func OpenTransport(cfg config.BusConfig, log pslog.Logger) (Transport, error) {
	switch strings.ToLower(cfg.Transport) {
	case "memory":
		return SharedHub().Endpoint(), nil
	case "spool", "":
		sp, err := OpenSpool(cfg.SpoolDir, cfg.Channel, cfg.Retain(), log)
		if err != nil {
			return nil, err
		}
		return sp, nil
	case "none":
		return nil, ErrTransportUnavailable
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", ErrTransportUnavailable, cfg.Transport)
	}
}
