// Package ingest turns untrusted feed messages into state store writes.
// Malformed input is dropped with a logged reason, never an error back
// to the producer, and never a fault downstream.
package ingest

import (
	"log/slog"
	"strings"
	"time"

	"github.com/nvoloshin/betfuse/internal/fusion/normalize"
	"github.com/nvoloshin/betfuse/internal/fusion/resolve"
	"github.com/nvoloshin/betfuse/internal/fusion/store"
	"github.com/nvoloshin/betfuse/internal/pkg/metrics"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

// Drop reasons, used in logs and metrics labels.
const (
	dropUnknownType   = "unknown type"
	dropMissingSource = "missing source"
	dropMissingTeams  = "missing teams"
	dropSameTeam      = "same team twice"
	dropEmptyKey      = "unresolvable key"
	dropNoScore       = "score missing"
	dropNoPrices      = "prices missing"
	dropBadPrice      = "price out of range"
	dropFutureStamp   = "timestamp in the future"
)

// maxClockSkew tolerates producer clocks slightly ahead of ours.
const maxClockSkew = 5 * time.Second

// Pipeline validates observations, resolves their match key and writes
// them into the state store. Safe for concurrent use; each feed
// connection runs its own intake goroutine against one shared pipeline.
type Pipeline struct {
	resolver *resolve.Resolver
	store    *store.Store
	health   *SourceHealth
	clock    func() time.Time
}

func NewPipeline(resolver *resolve.Resolver, st *store.Store, health *SourceHealth) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		store:    st,
		health:   health,
		clock:    time.Now,
	}
}

// Apply processes one observation. Returns false when it was dropped.
func (p *Pipeline) Apply(obs models.RawObservation) bool {
	reason := p.validate(obs)
	if reason != "" {
		metrics.ObservationsDropped.WithLabelValues(reason).Inc()
		slog.Debug("Observation dropped",
			"reason", reason, "source", obs.Source, "type", obs.Type,
			"team1", obs.Team1, "team2", obs.Team2)
		return false
	}

	now := p.clock()
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = now
	}

	key, _ := p.resolver.Resolve(obs.Sport, obs.Team1, obs.Team2)
	if key.IsZero() {
		metrics.ObservationsDropped.WithLabelValues(dropEmptyKey).Inc()
		slog.Debug("Observation dropped", "reason", dropEmptyKey, "source", obs.Source)
		return false
	}

	switch obs.Type {
	case models.ObservationLiveScore:
		p.store.ApplyScore(key, obs.Source, obs.Score, obs.IsLive, obs.ObservedAt)
	case models.ObservationOddsQuote:
		p.store.ApplyQuote(models.OddsQuote{
			Key:        key,
			Source:     obs.Source,
			Market:     normalizeMarket(obs.Market),
			Prices:     p.orientPrices(key, obs),
			ObservedAt: obs.ObservedAt,
		})
	}

	p.health.Seen(obs.Source, now)
	metrics.ObservationsIngested.WithLabelValues(obs.Source, string(obs.Type)).Inc()
	return true
}

// Beat records a per-source heartbeat. Observability only.
func (p *Pipeline) Beat(hb models.Heartbeat) {
	if hb.Source == "" {
		return
	}
	at := hb.SentAt
	if at.IsZero() {
		at = p.clock()
	}
	p.health.Beat(hb.Source, at)
}

func (p *Pipeline) validate(obs models.RawObservation) string {
	if obs.Type != models.ObservationLiveScore && obs.Type != models.ObservationOddsQuote {
		return dropUnknownType
	}
	if strings.TrimSpace(obs.Source) == "" {
		return dropMissingSource
	}
	if strings.TrimSpace(obs.Team1) == "" || strings.TrimSpace(obs.Team2) == "" {
		return dropMissingTeams
	}
	if p.resolver.NormalizedName(obs.Team1) == p.resolver.NormalizedName(obs.Team2) {
		return dropSameTeam
	}
	if !obs.ObservedAt.IsZero() && obs.ObservedAt.After(p.clock().Add(maxClockSkew)) {
		return dropFutureStamp
	}

	switch obs.Type {
	case models.ObservationLiveScore:
		if obs.Score == nil || obs.Score.IsEmpty() {
			return dropNoScore
		}
	case models.ObservationOddsQuote:
		if len(obs.Prices) == 0 {
			return dropNoPrices
		}
		for _, price := range obs.Prices {
			// Decimal odds below 1.01 or absurdly high are producer noise.
			if price < 1.01 || price > 1000 {
				return dropBadPrice
			}
		}
	}
	return ""
}

// orientPrices maps producer-side outcome labels (team1/team2, home/away)
// onto the canonical team_a/team_b sides of the sorted key.
func (p *Pipeline) orientPrices(key models.MatchKey, obs models.RawObservation) map[string]float64 {
	aLabel, bLabel := "team_a", "team_b"
	if !p.firstTeamIsA(key, obs.Team1) {
		aLabel, bLabel = bLabel, aLabel
	}

	out := make(map[string]float64, len(obs.Prices))
	for outcome, price := range obs.Prices {
		switch strings.ToLower(strings.TrimSpace(outcome)) {
		case "team1", "home", "1":
			out[aLabel] = price
		case "team2", "away", "2":
			out[bLabel] = price
		case "draw", "x":
			out["draw"] = price
		case "team_a":
			out["team_a"] = price
		case "team_b":
			out["team_b"] = price
		default:
			// Unknown outcome labels pass through lowercased; a sport
			// model that does not understand them ignores them.
			out[strings.ToLower(strings.TrimSpace(outcome))] = price
		}
	}
	return out
}

// firstTeamIsA reports whether the producer's team1 landed on the
// sorted key's A side. For fuzzy-matched keys the names differ, so the
// side with the larger token overlap wins.
func (p *Pipeline) firstTeamIsA(key models.MatchKey, team1 string) bool {
	n1 := p.resolver.NormalizedName(team1)
	if n1 == key.TeamA {
		return true
	}
	if n1 == key.TeamB {
		return false
	}
	tokens := normalize.Tokens(n1)
	return overlap(tokens, normalize.Tokens(key.TeamA)) >= overlap(tokens, normalize.Tokens(key.TeamB))
}

func overlap(a, b []string) int {
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

func normalizeMarket(market string) string {
	switch strings.ToLower(strings.TrimSpace(market)) {
	case "", "match_winner", "matchwinner", "1x2", "moneyline":
		return models.MarketMatchWinner
	case "map_winner", "mapwinner":
		return models.MarketMapWinner
	default:
		return strings.ToLower(strings.TrimSpace(market))
	}
}
