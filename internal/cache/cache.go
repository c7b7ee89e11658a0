// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"sort"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/logx"
	"github.com/jeranaias/rigrun-overlay/internal/storage"
)

// =============================================================================
// HIT TYPE
// =============================================================================

// HitType describes how a lookup was answered.
type HitType int

const (
	HitNone HitType = iota
	HitExact
	HitSemantic
)

// String returns the string representation of the hit type.
func (h HitType) String() string {
	switch h {
	case HitExact:
		return "exact"
	case HitSemantic:
		return "semantic"
	default:
		return "none"
	}
}

// =============================================================================
// MANAGER
// =============================================================================

// Store persists cached responses. *storage.DB implements it.
type Store interface {
	LoadResponses(limit int) ([]storage.ResponseRecord, error)
	SaveResponse(rec storage.ResponseRecord) error
	ClearResponses() error
}

// Options configures a Manager.
type Options struct {
	MaxEntries          int
	SemanticThreshold   float64
	SuggestionThreshold float64
	// Store is optional; without it the cache lives only in memory.
	Store  Store
	Logger pslog.Logger
	Now    func() time.Time
}

// Result is the full outcome of a lookup.
type Result struct {
	Answer string
	Prompt string
	Hit    HitType
	Score  float64
}

// Stats holds cache statistics.
type Stats struct {
	Entries       int
	ExactHits     int
	SemanticHits  int
	Misses        int
	HitRate       float64
	PersistErrors int
}

type entry struct {
	prompt   string
	key      string
	answer   string
	vec      termVector
	created  time.Time
	accessed time.Time
	hits     int
}

// Manager is an LRU response cache keyed by normalized prompt text, with
// near-duplicate matching over term vectors.
type Manager struct {
	opts Options
	log  pslog.Logger

	mu          sync.Mutex
	entries     map[string]*entry
	accessOrder []string

	exactHits     int
	semanticHits  int
	misses        int
	persistErrors int
}

// NewManager creates a cache manager.
func NewManager(opts Options) *Manager {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1000
	}
	if opts.SemanticThreshold <= 0 || opts.SemanticThreshold > 1 {
		opts.SemanticThreshold = 0.92
	}
	if opts.SuggestionThreshold <= 0 || opts.SuggestionThreshold > 1 {
		opts.SuggestionThreshold = 0.5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		opts:    opts,
		log:     logx.WithComponent(logx.OrDiscard(opts.Logger), "cache"),
		entries: make(map[string]*entry),
	}
}

// Load warms the cache from the store, oldest first so the newest entries
// end up most recently used.
func (m *Manager) Load() error {
	if m.opts.Store == nil {
		return nil
	}
	recs, err := m.opts.Store.LoadResponses(m.opts.MaxEntries)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		e := m.putLocked(rec.Prompt, rec.Answer)
		if e != nil {
			e.created = rec.CreatedAt
			e.hits = rec.Hits
		}
	}
	m.log.Debug("cache loaded", "entries", len(m.entries))
	return nil
}

// Lookup returns the cached answer for q and how it matched.
func (m *Manager) Lookup(q string) (string, HitType) {
	r := m.LookupResult(q)
	return r.Answer, r.Hit
}

// LookupResult is Lookup with the matched prompt and score.
func (m *Manager) LookupResult(q string) Result {
	key := Normalize(q)
	if key == "" {
		return Result{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		m.touchLocked(e)
		m.exactHits++
		return Result{Answer: e.answer, Prompt: e.prompt, Hit: HitExact, Score: 1}
	}

	vec := vectorize(key)
	var best *entry
	bestScore := 0.0
	for _, e := range m.entries {
		if s := cosine(vec, e.vec); s > bestScore {
			best, bestScore = e, s
		}
	}
	if best != nil && bestScore >= m.opts.SemanticThreshold {
		m.touchLocked(best)
		m.semanticHits++
		return Result{Answer: best.answer, Prompt: best.prompt, Hit: HitSemantic, Score: bestScore}
	}

	m.misses++
	return Result{Score: bestScore}
}

// Store caches answer for prompt q and writes it through to the store.
func (m *Manager) Store(q, answer string) {
	if answer == "" {
		return
	}
	m.mu.Lock()
	e := m.putLocked(q, answer)
	var rec storage.ResponseRecord
	if e != nil {
		rec = storage.ResponseRecord{Prompt: e.prompt, Answer: e.answer, CreatedAt: e.created, Hits: e.hits}
	}
	m.mu.Unlock()

	if e == nil || m.opts.Store == nil {
		return
	}
	if err := m.opts.Store.SaveResponse(rec); err != nil {
		m.mu.Lock()
		m.persistErrors++
		m.mu.Unlock()
		m.log.Warn("cache persist failed", "err", err)
	}
}

// Similar returns up to n cached prompts related to q, most similar first.
// Exact matches of q itself are excluded.
func (m *Manager) Similar(q string, n int) []string {
	key := Normalize(q)
	if key == "" || n <= 0 {
		return nil
	}
	vec := vectorize(key)

	type scored struct {
		prompt string
		score  float64
	}

	m.mu.Lock()
	var candidates []scored
	for k, e := range m.entries {
		if k == key {
			continue
		}
		if s := cosine(vec, e.vec); s >= m.opts.SuggestionThreshold {
			candidates = append(candidates, scored{prompt: e.prompt, score: s})
		}
	}
	m.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].prompt < candidates[j].prompt
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.prompt
	}
	return out
}

// Clear empties the cache and the store.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.entries = make(map[string]*entry)
	m.accessOrder = nil
	m.mu.Unlock()

	if m.opts.Store == nil {
		return nil
	}
	return m.opts.Store.ClearResponses()
}

// Stats returns cache statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.exactHits + m.semanticHits + m.misses
	rate := 0.0
	if total > 0 {
		rate = float64(m.exactHits+m.semanticHits) / float64(total)
	}
	return Stats{
		Entries:       len(m.entries),
		ExactHits:     m.exactHits,
		SemanticHits:  m.semanticHits,
		Misses:        m.misses,
		HitRate:       rate,
		PersistErrors: m.persistErrors,
	}
}

// putLocked inserts or refreshes an entry, evicting the least recently
// used ones (must hold lock).
func (m *Manager) putLocked(prompt, answer string) *entry {
	key := Normalize(prompt)
	if key == "" {
		return nil
	}
	now := m.opts.Now()
	if e, ok := m.entries[key]; ok {
		e.answer = answer
		e.prompt = prompt
		m.touchLocked(e)
		return e
	}
	for len(m.entries) >= m.opts.MaxEntries && len(m.accessOrder) > 0 {
		m.removeLocked(m.accessOrder[0])
	}
	e := &entry{
		prompt:   prompt,
		key:      key,
		answer:   answer,
		vec:      vectorize(key),
		created:  now,
		accessed: now,
	}
	m.entries[key] = e
	m.accessOrder = append(m.accessOrder, key)
	return e
}

// touchLocked marks e most recently used (must hold lock).
func (m *Manager) touchLocked(e *entry) {
	e.accessed = m.opts.Now()
	e.hits++
	for i, k := range m.accessOrder {
		if k == e.key {
			m.accessOrder = append(m.accessOrder[:i], m.accessOrder[i+1:]...)
			break
		}
	}
	m.accessOrder = append(m.accessOrder, e.key)
}

// removeLocked drops an entry (must hold lock).
func (m *Manager) removeLocked(key string) {
	delete(m.entries, key)
	for i, k := range m.accessOrder {
		if k == key {
			m.accessOrder = append(m.accessOrder[:i], m.accessOrder[i+1:]...)
			return
		}
	}
}
