// Package store holds the fused per-match live state, merged from every
// source that reports it. It is the single owner of FusedMatchState; all
// reads get deep copies.
package store

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/nvoloshin/betfuse/internal/pkg/enums"
	"github.com/nvoloshin/betfuse/internal/pkg/metrics"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

const shardCount = 32

// Store is a sharded concurrent map keyed by MatchKey. Writers for matches
// in different shards never contend; a slow lookup on one match cannot
// stall other sources' writers.
type Store struct {
	window time.Duration
	shards [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*matchEntry
}

// matchEntry is the store-internal mutable state for one match. Score feeds
// and odds feeds write disjoint fields: a score update never touches quotes
// and a quote never touches the score.
type matchEntry struct {
	key            models.MatchKey
	score          models.DetailedScore
	scoreUpdatedAt time.Time
	lastLiveAt     time.Time // last time any source said in-progress
	sourceSeen     map[string]time.Time
	quotes         map[string]models.OddsQuote // source + "|" + market
	updatedAt      time.Time
}

// New creates a store with the given freshness window (how long a silent
// source's data stays usable).
func New(freshnessWindow time.Duration) *Store {
	s := &Store{window: freshnessWindow}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*matchEntry)
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

// ApplyScore merges a live-score observation into the match state.
// Out-of-order score updates (older than what we already hold) only refresh
// the source's last-seen timestamp.
func (s *Store) ApplyScore(key models.MatchKey, source string, score *models.DetailedScore, isLive bool, observedAt time.Time) {
	sh := s.shardFor(key.String())
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := sh.getOrCreate(key)
	e.touch(source, observedAt)
	if isLive && observedAt.After(e.lastLiveAt) {
		e.lastLiveAt = observedAt
	}
	if score != nil && !score.IsEmpty() && !observedAt.Before(e.scoreUpdatedAt) {
		e.score = *score
		e.scoreUpdatedAt = observedAt
	}
}

// ApplyQuote merges an odds quote. Keyed by (source, market): a later quote
// from the same source replaces the earlier one.
func (s *Store) ApplyQuote(quote models.OddsQuote) {
	sh := s.shardFor(quote.Key.String())
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := sh.getOrCreate(quote.Key)
	e.touch(quote.Source, quote.ObservedAt)
	qk := quote.Source + "|" + quote.Market
	if prev, ok := e.quotes[qk]; ok && quote.ObservedAt.Before(prev.ObservedAt) {
		return
	}
	e.quotes[qk] = quote
}

func (sh *shard) getOrCreate(key models.MatchKey) *matchEntry {
	ks := key.String()
	e, ok := sh.entries[ks]
	if !ok {
		e = &matchEntry{
			key:        key,
			sourceSeen: make(map[string]time.Time),
			quotes:     make(map[string]models.OddsQuote),
		}
		sh.entries[ks] = e
		metrics.MatchesTracked.Inc()
	}
	return e
}

func (e *matchEntry) touch(source string, observedAt time.Time) {
	if prev, ok := e.sourceSeen[source]; !ok || observedAt.After(prev) {
		e.sourceSeen[source] = observedAt
	}
	if observedAt.After(e.updatedAt) {
		e.updatedAt = observedAt
	}
}

// Snapshot returns a deep copy of one match's fused state, or false if the
// match is not tracked.
func (s *Store) Snapshot(key models.MatchKey, now time.Time) (models.FusedMatchState, bool) {
	sh := s.shardFor(key.String())
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e, ok := sh.entries[key.String()]
	if !ok {
		return models.FusedMatchState{}, false
	}
	return e.snapshot(now, s.window), true
}

func (e *matchEntry) snapshot(now time.Time, window time.Duration) models.FusedMatchState {
	seen := make(map[string]time.Time, len(e.sourceSeen))
	for src, at := range e.sourceSeen {
		seen[src] = at
	}
	quotes := make([]models.OddsQuote, 0, len(e.quotes))
	for _, q := range e.quotes {
		prices := make(map[string]float64, len(q.Prices))
		for outcome, price := range q.Prices {
			prices[outcome] = price
		}
		q.Prices = prices
		quotes = append(quotes, q)
	}
	return models.FusedMatchState{
		Key:        e.key,
		Score:      e.score,
		IsLive:     !e.lastLiveAt.IsZero() && now.Sub(e.lastLiveAt) <= window,
		SourceSeen: seen,
		Quotes:     quotes,
		UpdatedAt:  e.updatedAt,
	}
}

// All returns deep copies of every tracked match state.
func (s *Store) All(now time.Time) []models.FusedMatchState {
	var out []models.FusedMatchState
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, e := range sh.entries {
			out = append(out, e.snapshot(now, s.window))
		}
		sh.mu.RUnlock()
	}
	return out
}

// Has reports whether the key is currently tracked.
func (s *Store) Has(key models.MatchKey) bool {
	sh := s.shardFor(key.String())
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.entries[key.String()]
	return ok
}

// KeysForSport lists tracked keys for one sport (the resolver's fuzzy
// candidate set).
func (s *Store) KeysForSport(sport enums.Sport) []models.MatchKey {
	var out []models.MatchKey
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, e := range sh.entries {
			if e.key.Sport == sport {
				out = append(out, e.key)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// Len returns the number of tracked matches.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep evicts every match whose sources are all silent for longer than the
// freshness window. Eviction is the live -> finished/stale boundary; an
// evicted key simply disappears from snapshots. Returns evicted keys.
func (s *Store) Sweep(now time.Time) []models.MatchKey {
	var evicted []models.MatchKey
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for ks, e := range sh.entries {
			if allStale(e.sourceSeen, now, s.window) {
				delete(sh.entries, ks)
				evicted = append(evicted, e.key)
				metrics.MatchesTracked.Dec()
				metrics.SweeperEvictions.Inc()
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

func allStale(sourceSeen map[string]time.Time, now time.Time, window time.Duration) bool {
	if len(sourceSeen) == 0 {
		return true
	}
	for _, seen := range sourceSeen {
		if now.Sub(seen) <= window {
			return false
		}
	}
	return true
}
