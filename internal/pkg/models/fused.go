package models

import "time"

// FusedMatchState is the best-known live situation for one MatchKey, merged
// from every source that reported it. Owned by the state store; everything
// handed out of the store is a deep copy.
type FusedMatchState struct {
	Key        MatchKey             `json:"key"`
	Score      DetailedScore        `json:"score"`
	IsLive     bool                 `json:"is_live"`
	SourceSeen map[string]time.Time `json:"source_seen"` // source id -> last accepted update
	Quotes     []OddsQuote          `json:"quotes"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// FreshSources counts sources that reported within the window ending at now.
func (s FusedMatchState) FreshSources(now time.Time, window time.Duration) int {
	n := 0
	for _, seen := range s.SourceSeen {
		if now.Sub(seen) <= window {
			n++
		}
	}
	return n
}

// AllStale reports whether every contributing source is older than the
// window. This is the live -> finished/stale boundary: once true the match
// is eligible for eviction.
func (s FusedMatchState) AllStale(now time.Time, window time.Duration) bool {
	if len(s.SourceSeen) == 0 {
		return true
	}
	for _, seen := range s.SourceSeen {
		if now.Sub(seen) <= window {
			return false
		}
	}
	return true
}
