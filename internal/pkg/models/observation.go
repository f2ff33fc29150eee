package models

import "time"

// ObservationType tags an inbound feed message.
type ObservationType string

const (
	ObservationLiveScore ObservationType = "live-score"
	ObservationOddsQuote ObservationType = "odds-quote"
)

// RawObservation is one inbound message from a feed producer, exactly as
// received. It is validated and normalized once and then discarded; nothing
// downstream holds raw team strings.
//
// Producers are untrusted: any field may be missing, stale or garbage.
type RawObservation struct {
	Type       ObservationType    `json:"type"`
	Source     string             `json:"source"`
	Sport      string             `json:"sport"`
	Team1      string             `json:"team1"`
	Team2      string             `json:"team2"`
	League     string             `json:"league,omitempty"`
	IsLive     bool               `json:"is_live,omitempty"`
	Score      *DetailedScore     `json:"score,omitempty"`
	Market     string             `json:"market,omitempty"`   // odds-quote only, e.g. "match_winner", "map_winner"
	Prices     map[string]float64 `json:"prices,omitempty"`   // odds-quote only: outcome -> decimal odds
	ObservedAt time.Time          `json:"observed_at"`
}

// Heartbeat is a per-source liveness signal. Observability only; correctness
// never depends on heartbeats arriving.
type Heartbeat struct {
	Source string    `json:"source"`
	SentAt time.Time `json:"sent_at"`
}
