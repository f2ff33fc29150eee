package sportmodel

import "github.com/nvoloshin/betfuse/internal/pkg/models"

// esportsEstimate reads the map score first and the in-map round state
// second. A side at match point (one round from taking the deciding map
// count) is treated as near-certain.
func esportsEstimate(sc models.EsportsScore) Estimate {
	bestOf := sc.BestOf
	if bestOf < 1 || bestOf > 7 {
		bestOf = 3
	}
	mapsToWin := bestOf/2 + 1

	maps1 := clampInt(sc.Maps1, 0, mapsToWin)
	maps2 := clampInt(sc.Maps2, 0, mapsToWin)
	rounds1 := clampInt(sc.Rounds1, 0, 99)
	rounds2 := clampInt(sc.Rounds2, 0, 99)

	leader := 0
	switch {
	case maps1 != maps2:
		leader = pick(maps1 > maps2)
	case rounds1 != rounds2:
		leader = pick(rounds1 > rounds2)
	default:
		return Estimate{Prob: 0.5, Confidence: 0.1, Leader: 0}
	}

	mapDiff := absInt(maps1 - maps2)
	roundDiff := absInt(rounds1 - rounds2)

	p := 0.5 + 0.17*float64(mapDiff) + 0.012*float64(roundDiff)
	conf := 0.3 + 0.2*float64(mapDiff) + 0.015*float64(roundDiff)

	leaderMaps, leaderRounds := maps1, rounds1
	if leader == 2 {
		leaderMaps, leaderRounds = maps2, rounds2
	}

	target := sc.RoundTarget
	if target <= 0 {
		target = 13
	}

	// Match point: leader is one map from the series and one round from the
	// map (or already has the deciding map count in hand).
	onMapPoint := leaderRounds >= target-1
	if leaderMaps >= mapsToWin || (leaderMaps == mapsToWin-1 && onMapPoint) {
		return Estimate{Prob: 0.97, Confidence: 0.95, Leader: leader}
	}
	// Map point on a non-deciding map still tilts hard.
	if onMapPoint {
		p += 0.08
		conf += 0.15
	}

	return Estimate{Prob: clampProb(p), Confidence: clampConf(conf), Leader: leader}
}
