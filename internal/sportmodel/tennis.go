package sportmodel

import "github.com/nvoloshin/betfuse/internal/pkg/models"

// tennisEstimate reads sets, then games, then points to find the leader.
// Set lead dominates; a break of serve situation adds confidence because
// the leader controls the set script from there.
func tennisEstimate(sc models.TennisScore) Estimate {
	bestOf := sc.BestOf
	if bestOf != 3 && bestOf != 5 {
		bestOf = 3
	}
	setsToWin := bestOf/2 + 1

	sets1 := clampInt(sc.Sets1, 0, setsToWin)
	sets2 := clampInt(sc.Sets2, 0, setsToWin)
	games1 := clampInt(sc.Games1, 0, 7)
	games2 := clampInt(sc.Games2, 0, 7)
	points1 := pointStep(sc.Points1)
	points2 := pointStep(sc.Points2)

	leader := 0
	switch {
	case sets1 != sets2:
		leader = pick(sets1 > sets2)
	case games1 != games2:
		leader = pick(games1 > games2)
	case points1 != points2:
		leader = pick(points1 > points2)
	default:
		return Estimate{Prob: 0.5, Confidence: 0.1, Leader: 0}
	}

	setDiff := absInt(sets1 - sets2)
	gameDiff := absInt(games1 - games2)
	pointDiff := absInt(points1 - points2)

	p := 0.5 + 0.14*float64(setDiff) + 0.025*float64(gameDiff) + 0.008*float64(pointDiff)
	conf := 0.3 + 0.22*float64(setDiff) + 0.03*float64(gameDiff)

	leaderSets := sets1
	if leader == 2 {
		leaderSets = sets2
	}
	// One set from the match.
	if leaderSets == setsToWin-1 {
		p += 0.06
		conf += 0.15
	}
	// Break situation: leader ahead in games while the opponent serves.
	if sc.Serving != 0 && sc.Serving != leader && gameDiff > 0 {
		conf += 0.1
	}

	return Estimate{Prob: clampProb(p), Confidence: clampConf(conf), Leader: leader}
}

// pointStep maps tennis point calls to an ordinal (0,15,30,40,Ad).
func pointStep(points int) int {
	switch {
	case points <= 0:
		return 0
	case points <= 15:
		return 1
	case points <= 30:
		return 2
	case points <= 40:
		return 3
	default: // advantage
		return 4
	}
}

func pick(firstLeads bool) int {
	if firstLeads {
		return 1
	}
	return 2
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
