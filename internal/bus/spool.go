// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/util"
)

// =============================================================================
// SPOOL TRANSPORT
// =============================================================================

const spoolExt = ".msg"

// Spool exchanges messages between processes through a shared directory.
// Each message is one file, written atomically and picked up by every
// endpoint watching the directory. Files older than the retain window are
// pruned by senders.
type Spool struct {
	dir     string
	channel string
	retain  time.Duration
	log     pslog.Logger
	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	fn      func([]byte)
	seen    map[string]time.Time
	started bool
	closed  bool
}

// OpenSpool watches dir for messages on channel.
func OpenSpool(dir, channel string, retain time.Duration, log pslog.Logger) (*Spool, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: spool directory not set", ErrTransportUnavailable)
	}
	if channel == "" {
		channel = "overlay"
	}
	if retain <= 0 {
		retain = 30 * time.Second
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Spool{
		dir:     dir,
		channel: channel,
		retain:  retain,
		log:     logx.WithComponent(logx.OrDiscard(log), "bus.spool"),
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
		seen:    make(map[string]time.Time),
	}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string { return s.dir }

// Send implements Transport.
func (s *Spool) Send(data []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: spool closed", ErrTransportUnavailable)
	}

	now := time.Now()
	name := fmt.Sprintf("%s-%020d-%s%s", s.channel, now.UnixNano(), uuid.NewString()[:8], spoolExt)
	if err := util.AtomicWriteFile(filepath.Join(s.dir, name), data, 0o644, util.NoSync()); err != nil {
		return fmt.Errorf("spool write: %w", err)
	}
	s.prune(now)
	return nil
}

// Subscribe implements Transport.
func (s *Spool) Subscribe(fn func([]byte)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: spool closed", ErrTransportUnavailable)
	}
	s.fn = fn
	if !s.started {
		s.started = true
		s.wg.Add(1)
		go s.processEvents()
	}
	return func() {
		s.mu.Lock()
		s.fn = nil
		s.mu.Unlock()
	}, nil
}

// Close implements Transport.
func (s *Spool) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.fn = nil
	s.mu.Unlock()

	s.cancel()
	err := s.watcher.Close()
	s.wg.Wait()
	return err
}

func (s *Spool) processEvents() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			// Atomic writes land as a rename into the directory, which is
			// reported as Create for the new name.
			if event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Write == fsnotify.Write {
				s.handle(event.Name)
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("spool watcher error", "err", err)
		}
	}
}

func (s *Spool) handle(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, util.TempPrefix) || !strings.HasSuffix(base, spoolExt) {
		return
	}
	if !strings.HasPrefix(base, s.channel+"-") {
		return
	}

	s.mu.Lock()
	if _, dup := s.seen[base]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[base] = time.Now()
	fn := s.fn
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Debug("spool read failed", "file", base, "err", err)
		}
		return
	}
	if fn != nil {
		fn(data)
	}
}

// prune removes expired message files and forgets their names.
func (s *Spool) prune(now time.Time) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	cutoff := now.Add(-s.retain)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, spoolExt) || !strings.HasPrefix(name, s.channel+"-") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err == nil {
			removed++
		}
	}

	s.mu.Lock()
	for name, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, name)
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.log.Trace("spool pruned", "files", removed)
	}
}
