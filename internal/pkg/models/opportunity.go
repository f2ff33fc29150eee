package models

import "time"

// SignalKind says what produced an opportunity.
type SignalKind string

const (
	SignalScoreMomentum SignalKind = "score-momentum" // model fair prob vs market price
	SignalOddsAnomaly   SignalKind = "odds-anomaly"   // cross-source price divergence
)

// Opportunity is one detected mispricing. Ephemeral: recomputed every
// evaluation cycle and only meaningful for a few seconds; it is not stored
// unless the decision engine acts on it.
type Opportunity struct {
	Key         MatchKey   `json:"key"`
	Sport       string     `json:"sport"`
	Signal      SignalKind `json:"signal"`
	Market      string     `json:"market"`
	Outcome     string     `json:"outcome"` // selected side, e.g. "team_a"
	FairProb    float64    `json:"fair_prob"`
	Confidence  float64    `json:"confidence"`
	Price       float64    `json:"price"`        // best available decimal odds for the outcome
	PriceSource string     `json:"price_source"` // bookmaker quoting that price
	ImpliedProb float64    `json:"implied_prob"`
	EdgePercent float64    `json:"edge_percent"` // (fair - implied) * 100, rounded
	Sources     int        `json:"sources"`      // independent sources contributing
	GeneratedAt time.Time  `json:"generated_at"`
}

// Condition returns the underlying-market identity this opportunity bets on.
func (o Opportunity) Condition() string {
	return ConditionKey(o.Key, o.Market, o.Outcome)
}
