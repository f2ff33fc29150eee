package models

import (
	"strings"

	"github.com/nvoloshin/betfuse/internal/pkg/enums"
)

// MatchKey is the canonical cross-source identity of one real-world match.
//
// Team tokens are stored sorted so that either team ordering resolves to the
// same key ("hades vs heist" and "heist vs hades" are the same match).
// Tokens must already be normalized; the resolver owns that step.
type MatchKey struct {
	Sport enums.Sport `json:"sport"`
	TeamA string      `json:"team_a"`
	TeamB string      `json:"team_b"`
}

// NewMatchKey builds a key from two normalized team tokens, sorting them
// so argument order does not matter.
func NewMatchKey(sport enums.Sport, team1, team2 string) MatchKey {
	a := strings.TrimSpace(team1)
	b := strings.TrimSpace(team2)
	if a > b {
		a, b = b, a
	}
	return MatchKey{Sport: sport, TeamA: a, TeamB: b}
}

// String renders the key in "sport|teamA|teamB" form, usable as a map or
// storage key.
func (k MatchKey) String() string {
	return string(k.Sport) + "|" + k.TeamA + "|" + k.TeamB
}

// IsZero reports whether the key is empty (no teams resolved).
func (k MatchKey) IsZero() bool {
	return k.TeamA == "" && k.TeamB == ""
}

// ConditionKey identifies one bettable proposition: a market+outcome on a
// match. Dedup and exposure caps are scoped to this, not to the match alone.
func ConditionKey(key MatchKey, market, outcome string) string {
	return key.String() + "|" + market + "|" + outcome
}
