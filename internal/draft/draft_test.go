// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package draft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-overlay/internal/clock"
	"github.com/jeranaias/rigrun-overlay/internal/session"
	"github.com/jeranaias/rigrun-overlay/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.MemoryKV, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.UnixMilli(1740819600000))
	timers := session.NewTimers(clk, session.Inline{})
	t.Cleanup(timers.Close)
	kv := storage.NewMemoryKV()
	return New(kv, timers, 500*time.Millisecond, nil), kv, clk
}

func TestSaveIsDebounced(t *testing.T) {
	s, kv, clk := newTestStore(t)

	s.Save("s1", "h")
	clk.Advance(300 * time.Millisecond)
	s.Save("s1", "he")
	clk.Advance(300 * time.Millisecond)
	s.Save("s1", "hello")
	require.Equal(t, 0, kv.Writes())
	require.Equal(t, "hello", s.Load("s1"))

	clk.Advance(500 * time.Millisecond)
	require.Equal(t, 1, kv.Writes())
	v, ok, _ := kv.Get(storage.DraftKey("s1"))
	require.True(t, ok)
	require.Equal(t, "hello", v)
}

func TestClearCancelsPendingWrite(t *testing.T) {
	s, kv, clk := newTestStore(t)
	require.NoError(t, kv.Set(storage.DraftKey("s1"), "old"))

	s.Save("s1", "new text")
	s.Clear("s1")
	clk.Advance(time.Second)

	_, ok, _ := kv.Get(storage.DraftKey("s1"))
	require.False(t, ok)
	require.Equal(t, "", s.Load("s1"))
}

func TestFlushWritesPending(t *testing.T) {
	s, kv, _ := newTestStore(t)

	s.Save("a", "draft a")
	s.Save("b", "draft b")
	s.Flush()

	va, _, _ := kv.Get(storage.DraftKey("a"))
	vb, _, _ := kv.Get(storage.DraftKey("b"))
	require.Equal(t, "draft a", va)
	require.Equal(t, "draft b", vb)
}

func TestSaveEmptyDeletes(t *testing.T) {
	s, kv, clk := newTestStore(t)
	require.NoError(t, kv.Set(storage.DraftKey("s1"), "old"))

	s.Save("s1", "")
	clk.Advance(500 * time.Millisecond)
	_, ok, _ := kv.Get(storage.DraftKey("s1"))
	require.False(t, ok)
}
