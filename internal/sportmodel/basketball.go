package sportmodel

import (
	"math"

	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

const quarterSeconds = 600 // 10-minute quarters; NBA's 12 only shifts the scale slightly

// basketballEstimate weighs the point lead against the time left: a lead is
// only as good as the number of possessions remaining to defend it.
func basketballEstimate(sc models.BasketballScore) Estimate {
	points1 := clampInt(sc.Points1, 0, 300)
	points2 := clampInt(sc.Points2, 0, 300)
	if points1 == points2 {
		return Estimate{Prob: 0.5, Confidence: 0.1, Leader: 0}
	}

	leader := pick(points1 > points2)
	diff := float64(absInt(points1 - points2))

	quarter := clampInt(sc.Quarter, 1, 8)
	secondsLeft := clampInt(sc.SecondsLeft, 0, quarterSeconds)

	remaining := float64(4-quarter)*quarterSeconds + float64(secondsLeft)
	if remaining < 0 { // overtime
		remaining = float64(secondsLeft)
	}
	remainingQuarters := remaining / quarterSeconds

	// A lead survives roughly in proportion to diff / sqrt(time left).
	// The +0.3 keeps the estimate sane with a full game still to play.
	margin := diff / (7.0 * math.Sqrt(remainingQuarters+0.3))
	p := 0.5 + 0.45*math.Tanh(margin)

	conf := 0.2 + 0.5*math.Tanh(margin)
	if remainingQuarters < 0.5 && diff >= 10 {
		conf += 0.2
	}

	return Estimate{Prob: clampProb(p), Confidence: clampConf(conf), Leader: leader}
}
