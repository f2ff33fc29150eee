package sportmodel

import "github.com/nvoloshin/betfuse/internal/pkg/models"

// footballEstimate scales the goal lead by how deep into the match we are:
// the same 1-0 is worth much more at minute 85 than at minute 10. Extra time
// compresses the remaining clock further.
func footballEstimate(sc models.FootballScore) Estimate {
	goals1 := clampInt(sc.Goals1, 0, 20)
	goals2 := clampInt(sc.Goals2, 0, 20)
	if goals1 == goals2 {
		return Estimate{Prob: 0.5, Confidence: 0.1, Leader: 0}
	}

	leader := pick(goals1 > goals2)
	diff := absInt(goals1 - goals2)
	minute := clampInt(sc.Minute, 0, 130)

	// Fraction of match played. The half boundary matters: at half-time the
	// clock says 45 but a whole half remains, so progression is computed per
	// period rather than straight off the minute.
	total := 90.0
	if sc.Period >= 3 {
		total = 120.0
	}
	played := float64(minute) / total
	if played > 1 {
		played = 1
	}

	base := 0.08 + 0.28*played          // weight of one goal right now
	step := 0.5 * base                  // each extra goal adds half again
	p := 0.5 + base + step*float64(diff-1)

	conf := 0.25 + 0.45*played + 0.08*float64(diff-1)
	// A 2+ goal lead late in the game is close to decided.
	if diff >= 2 && played > 0.8 {
		conf += 0.1
	}

	return Estimate{Prob: clampProb(p), Confidence: clampConf(conf), Leader: leader}
}
