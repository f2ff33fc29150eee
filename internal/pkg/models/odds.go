package models

import "time"

// Market identifiers used across sources. Sources quoting the same
// proposition must land on the same market string for fusion to work.
const (
	MarketMatchWinner = "match_winner"
	MarketMapWinner   = "map_winner"
)

// OddsQuote is one bookmaker's current prices for one market of one match.
// Keyed by (match, source, market): a later quote from the same source for
// the same market replaces the previous one, it never accumulates.
type OddsQuote struct {
	Key        MatchKey           `json:"key"`
	Source     string             `json:"source"`
	Market     string             `json:"market"`
	Prices     map[string]float64 `json:"prices"` // outcome -> decimal odds
	ObservedAt time.Time          `json:"observed_at"`
}

// Age returns how stale the quote is at the given instant.
func (q OddsQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.ObservedAt)
}

// ImpliedProbability converts a decimal price to the bookmaker-implied
// probability. Returns 0 for unusable prices.
func ImpliedProbability(decimalOdds float64) float64 {
	if decimalOdds <= 1.0 {
		return 0
	}
	return 1.0 / decimalOdds
}
