// Package opportunity joins fused live state with market quotes and surfaces
// mispricings worth acting on. Opportunities are ephemeral: each tick
// recomputes the set from scratch and anything below threshold simply does
// not exist downstream.
package opportunity

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nvoloshin/betfuse/internal/fusion/store"
	"github.com/nvoloshin/betfuse/internal/pkg/config"
	"github.com/nvoloshin/betfuse/internal/pkg/metrics"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
	"github.com/nvoloshin/betfuse/internal/sportmodel"
)

// Outcome identifiers relative to the sorted key sides.
const (
	OutcomeTeamA = "team_a"
	OutcomeTeamB = "team_b"
)

// Engine evaluates the store on a fixed tick.
type Engine struct {
	cfg   config.OpportunityConfig
	store *store.Store
	clock func() time.Time

	mu     sync.RWMutex
	latest []models.Opportunity
}

func New(cfg config.OpportunityConfig, st *store.Store) *Engine {
	return &Engine{cfg: cfg, store: st, clock: time.Now}
}

// Run evaluates on every tick and pushes emitted opportunities to out.
// Blocks until ctx is canceled. out is never closed by Run; a nil out
// keeps evaluating for Latest readers without pushing anywhere.
func (e *Engine) Run(ctx context.Context, out chan<- models.Opportunity) {
	ticker := time.NewTicker(e.cfg.TickInterval.Std())
	defer ticker.Stop()

	slog.Info("Opportunity engine started",
		"tick", e.cfg.TickInterval.Std(),
		"min_edge_percent", e.cfg.MinEdgePercent)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Opportunity engine stopped")
			return
		case now := <-ticker.C:
			opps := e.Evaluate(now)
			if out == nil {
				continue
			}
			for _, opp := range opps {
				select {
				case out <- opp:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Latest returns the opportunities from the most recent evaluation, for the
// read-only query API.
func (e *Engine) Latest() []models.Opportunity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Opportunity, len(e.latest))
	copy(out, e.latest)
	return out
}

// Evaluate runs one pass over every tracked match.
func (e *Engine) Evaluate(now time.Time) []models.Opportunity {
	var opps []models.Opportunity
	for _, state := range e.store.All(now) {
		opps = append(opps, e.evaluateMatch(state, now)...)
	}

	e.mu.Lock()
	e.latest = opps
	e.mu.Unlock()

	for _, opp := range opps {
		metrics.OpportunitiesEmitted.WithLabelValues(string(opp.Signal)).Inc()
	}
	return opps
}

func (e *Engine) evaluateMatch(state models.FusedMatchState, now time.Time) []models.Opportunity {
	fresh := e.freshQuotes(state.Quotes, now)
	if len(fresh) == 0 {
		return nil
	}

	var opps []models.Opportunity
	if opp, ok := e.scoreMomentum(state, fresh, now); ok {
		opps = append(opps, opp)
	}
	opps = append(opps, e.oddsAnomalies(state, fresh, now)...)
	return opps
}

// freshQuotes drops quotes past the max odds age; anything older is too
// stale to trade on and must not contribute to any signal.
func (e *Engine) freshQuotes(quotes []models.OddsQuote, now time.Time) []models.OddsQuote {
	maxAge := e.cfg.MaxOddsAge.Std()
	var out []models.OddsQuote
	for _, q := range quotes {
		if q.Age(now) <= maxAge {
			out = append(out, q)
		}
	}
	return out
}

// scoreMomentum compares the model's fair probability for the leading side
// against the best available market price. Only emitted while the match is
// live: a dead feed's last score means nothing.
func (e *Engine) scoreMomentum(state models.FusedMatchState, fresh []models.OddsQuote, now time.Time) (models.Opportunity, bool) {
	if !state.IsLive {
		return models.Opportunity{}, false
	}

	est := sportmodel.FairProbability(state.Key.Sport, state.Score)
	if est.Leader == 0 || est.Confidence < e.cfg.MinConfidence {
		return models.Opportunity{}, false
	}

	outcome := OutcomeTeamA
	if est.Leader == 2 {
		outcome = OutcomeTeamB
	}

	// Momentum always trades the series/match winner; map-level markets are
	// covered by the anomaly path.
	market := models.MarketMatchWinner

	bestPrice, bestSource := bestPriceFor(fresh, market, outcome)
	if bestPrice <= 1.0 {
		return models.Opportunity{}, false
	}

	implied := models.ImpliedProbability(bestPrice)
	edge := roundEdge((est.Prob - implied) * 100)
	if edge < e.cfg.MinEdgePercent {
		return models.Opportunity{}, false
	}

	return models.Opportunity{
		Key:         state.Key,
		Sport:       state.Key.Sport.String(),
		Signal:      models.SignalScoreMomentum,
		Market:      market,
		Outcome:     outcome,
		FairProb:    est.Prob,
		Confidence:  est.Confidence,
		Price:       bestPrice,
		PriceSource: bestSource,
		ImpliedProb: implied,
		EdgePercent: edge,
		Sources:     len(state.SourceSeen),
		GeneratedAt: now,
	}, true
}

// oddsAnomalies finds cross-source price divergence per market/outcome.
// Identical prices across sources are collapsed before counting: a mirrored
// feed is one opinion, not independent price discovery.
func (e *Engine) oddsAnomalies(state models.FusedMatchState, fresh []models.OddsQuote, now time.Time) []models.Opportunity {
	type sample struct {
		source string
		price  float64
	}
	byOutcome := make(map[string][]sample) // market+"|"+outcome

	for _, q := range fresh {
		for outcome, price := range q.Prices {
			if price <= 1.0 || math.IsNaN(price) || math.IsInf(price, 0) {
				continue
			}
			k := q.Market + "|" + outcome
			byOutcome[k] = append(byOutcome[k], sample{source: q.Source, price: price})
		}
	}

	var opps []models.Opportunity
	for k, samples := range byOutcome {
		if len(samples) < e.cfg.AnomalyMinBooks {
			continue
		}

		// Collapse identical prices (identical-odds guard).
		distinct := make(map[float64]sample)
		for _, s := range samples {
			distinct[roundPrice(s.price)] = s
		}
		if len(distinct) < 2 {
			continue // all sources mirror each other
		}

		minP, maxP := math.MaxFloat64, 0.0
		var maxSample sample
		var probSum float64
		for p, s := range distinct {
			probSum += models.ImpliedProbability(p)
			if p < minP {
				minP = p
			}
			if p > maxP {
				maxP = p
				maxSample = s
			}
		}
		divergence := (maxP/minP - 1.0) * 100
		if divergence < e.cfg.AnomalyPercent {
			continue
		}

		// Consensus of the distinct quotes is the anomaly path's fair prob.
		fairProb := probSum / float64(len(distinct))
		implied := models.ImpliedProbability(maxP)
		edge := roundEdge((fairProb - implied) * 100)
		if edge < e.cfg.MinEdgePercent {
			continue
		}

		market, outcome := splitOutcomeKey(k)
		opps = append(opps, models.Opportunity{
			Key:         state.Key,
			Sport:       state.Key.Sport.String(),
			Signal:      models.SignalOddsAnomaly,
			Market:      market,
			Outcome:     outcome,
			FairProb:    fairProb,
			Confidence:  confidenceFromBooks(len(distinct)),
			Price:       maxP,
			PriceSource: maxSample.source,
			ImpliedProb: implied,
			EdgePercent: edge,
			Sources:     len(distinct),
			GeneratedAt: now,
		})
	}
	return opps
}

func bestPriceFor(quotes []models.OddsQuote, market, outcome string) (float64, string) {
	best, source := 0.0, ""
	for _, q := range quotes {
		if q.Market != market {
			continue
		}
		if price, ok := q.Prices[outcome]; ok && price > best {
			best = price
			source = q.Source
		}
	}
	return best, source
}

func splitOutcomeKey(k string) (market, outcome string) {
	for i := 0; i < len(k); i++ {
		if k[i] == '|' {
			return k[:i], k[i+1:]
		}
	}
	return k, ""
}

func confidenceFromBooks(n int) float64 {
	c := 0.3 + 0.2*float64(n-2)
	if c > 0.9 {
		c = 0.9
	}
	return c
}

func roundEdge(edge float64) float64 {
	return math.Round(edge*10) / 10
}

func roundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}
