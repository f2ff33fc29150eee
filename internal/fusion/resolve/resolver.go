// Package resolve builds canonical match keys from raw team names and owns
// the guarded fuzzy matching that fuses differently-spelled feeds.
//
// False merges (two real matches fused into one key) corrupt every
// downstream consumer, so the fuzzy path is deliberately conservative:
// when in doubt it mints a new key and lets coverage suffer instead.
package resolve

import (
	"log/slog"
	"time"

	"github.com/nvoloshin/betfuse/internal/fusion/normalize"
	"github.com/nvoloshin/betfuse/internal/pkg/config"
	"github.com/nvoloshin/betfuse/internal/pkg/enums"
	"github.com/nvoloshin/betfuse/internal/pkg/metrics"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

// Method says how a key was resolved.
type Method string

const (
	MethodExact       Method = "exact"
	MethodAliasCache  Method = "alias-cache"
	MethodTokenSubset Method = "token-subset"
	MethodMinted      Method = "minted"
)

// KnownKeys is the view of currently-tracked match keys the resolver matches
// against. Satisfied by the state store.
type KnownKeys interface {
	Has(key models.MatchKey) bool
	KeysForSport(sport enums.Sport) []models.MatchKey
}

// Resolver maps (sport, team1, team2) raw strings onto canonical MatchKeys.
type Resolver struct {
	norm  *normalize.Normalizer
	cfg   config.ResolverConfig
	known KnownKeys
	cache *aliasCache
	clock func() time.Time
}

func New(cfg config.ResolverConfig, known KnownKeys) *Resolver {
	return &Resolver{
		norm: normalize.New(normalize.Options{
			StripSuffixes: cfg.StripSuffixes,
			ExtraSuffixes: cfg.ExtraSuffixes,
			MinTokens:     cfg.MinTeamTokens,
		}),
		cfg:   cfg,
		known: known,
		cache: newAliasCache(cfg.AliasCacheCapacity, cfg.AliasCacheTTL.Std()),
		clock: time.Now,
	}
}

// Resolve returns the canonical key for a raw team pair.
//
// Order: exact key (always preferred, O(1)), then the alias cache, then
// guarded token-subset matching, then minting a new key. With fuzzy matching
// disabled the path degrades to exact-or-mint, which under-merges but never
// corrupts.
func (r *Resolver) Resolve(rawSport, team1, team2 string) (models.MatchKey, Method) {
	sport := normalize.Sport(rawSport)
	n1 := r.norm.Name(team1)
	n2 := r.norm.Name(team2)
	exact := models.NewMatchKey(sport, n1, n2)
	if exact.IsZero() {
		return exact, MethodMinted
	}

	if r.known.Has(exact) {
		metrics.FuzzyResolutions.WithLabelValues(string(MethodExact)).Inc()
		return exact, MethodExact
	}

	now := r.clock()
	fuzzyKey := exact.String()
	if cached, ok := r.cache.get(fuzzyKey, now); ok {
		if r.known.Has(cached) {
			metrics.FuzzyResolutions.WithLabelValues(string(MethodAliasCache)).Inc()
			return cached, MethodAliasCache
		}
		// Cached target was swept away; the entry is stale, not wrong.
		r.cache.invalidate(fuzzyKey)
	}

	if r.cfg.FuzzyEnabled {
		if match, overlap, ok := r.tokenSubsetMatch(sport, n1, n2); ok {
			r.cache.put(fuzzyKey, match, MethodTokenSubset, now)
			metrics.FuzzyResolutions.WithLabelValues(string(MethodTokenSubset)).Inc()
			slog.Info("Resolver: fuzzy key match",
				"method", MethodTokenSubset,
				"sport", sport,
				"incoming", fuzzyKey,
				"resolved", match.String(),
				"overlap_tokens", overlap)
			return match, MethodTokenSubset
		}
	}

	metrics.FuzzyResolutions.WithLabelValues(string(MethodMinted)).Inc()
	return exact, MethodMinted
}

// tokenSubsetMatch looks for an existing key of the same sport whose sides
// both token-subset-match the incoming pair. Guardrails: every side must
// contribute at least two significant tokens and the shared tokens must not
// all be ultra-common. Both team orderings are tried since the incoming pair
// is already sorted but token sets are not symmetric.
func (r *Resolver) tokenSubsetMatch(sport enums.Sport, n1, n2 string) (models.MatchKey, int, bool) {
	sig1 := normalize.SignificantTokens(n1)
	sig2 := normalize.SignificantTokens(n2)
	if len(sig1) < 2 || len(sig2) < 2 {
		return models.MatchKey{}, 0, false
	}

	for _, cand := range r.known.KeysForSport(sport) {
		candA := normalize.SignificantTokens(cand.TeamA)
		candB := normalize.SignificantTokens(cand.TeamB)
		if len(candA) < 2 || len(candB) < 2 {
			continue
		}

		if ov1, ok1 := sideMatches(sig1, candA); ok1 {
			if ov2, ok2 := sideMatches(sig2, candB); ok2 {
				return cand, ov1 + ov2, true
			}
		}
		if ov1, ok1 := sideMatches(sig1, candB); ok1 {
			if ov2, ok2 := sideMatches(sig2, candA); ok2 {
				return cand, ov1 + ov2, true
			}
		}
	}
	return models.MatchKey{}, 0, false
}

// sideMatches reports whether one side's tokens subset-match a candidate
// side's tokens, in either direction, with at least two shared tokens.
// Significant tokens exclude ultra-common words already, so an overlap here
// always carries real identity.
func sideMatches(side, cand []string) (int, bool) {
	shared := intersect(side, cand)
	if shared < 2 {
		return shared, false
	}
	if shared == len(side) || shared == len(cand) {
		return shared, true
	}
	return shared, false
}

func intersect(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}
	n := 0
	for _, tok := range b {
		if _, ok := set[tok]; ok {
			n++
		}
	}
	return n
}

// NormalizedName exposes the resolver's team-name normalization. Ingestion
// uses it to orient producer-side outcome labels onto the sorted key.
func (r *Resolver) NormalizedName(raw string) string {
	return r.norm.Name(raw)
}

// CacheLen exposes the alias cache size for health reporting.
func (r *Resolver) CacheLen() int {
	return r.cache.len()
}
