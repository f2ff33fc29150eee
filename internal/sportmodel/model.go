// Package sportmodel estimates the live win probability of the side that is
// currently ahead. The models are deliberately simple, table-driven
// heuristics: every number in them can be read and argued about, which is
// worth more here than statistical optimality.
package sportmodel

import (
	"github.com/nvoloshin/betfuse/internal/pkg/enums"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

// Estimate is the model output for one live situation.
type Estimate struct {
	// Prob is the estimated probability that the leading side wins,
	// always inside (0,1) exclusive.
	Prob float64
	// Confidence in the estimate, 0..1. Low confidence means "no opinion";
	// consumers should not trade on it.
	Confidence float64
	// Leader is 1 (first side of the key), 2, or 0 when the situation has
	// no leading side.
	Leader int
}

// NoOpinion is what every model returns for situations it cannot read.
func NoOpinion() Estimate {
	return Estimate{Prob: 0.5, Confidence: 0, Leader: 0}
}

// FairProbability dispatches to the sport's model. Closed dispatch: each
// supported sport is handled explicitly, everything else is a no-opinion.
// Total on arbitrary input, including zero, negative and oversized scores.
func FairProbability(sport enums.Sport, score models.DetailedScore) Estimate {
	switch sport {
	case enums.Tennis:
		if score.Tennis != nil {
			return tennisEstimate(*score.Tennis)
		}
	case enums.Football:
		if score.Football != nil {
			return footballEstimate(*score.Football)
		}
	case enums.Basketball:
		if score.Basketball != nil {
			return basketballEstimate(*score.Basketball)
		}
	case enums.Dota2, enums.CS, enums.Valorant, enums.LOL:
		if score.Esports != nil {
			return esportsEstimate(*score.Esports)
		}
	}
	return NoOpinion()
}

// clampProb keeps probabilities strictly inside (0,1).
func clampProb(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}

// clampConf keeps confidence in [0,1].
func clampConf(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// clampInt bounds a raw feed integer to a sane range.
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
