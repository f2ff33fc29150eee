package sportmodel

import (
	"testing"

	"github.com/nvoloshin/betfuse/internal/pkg/enums"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

func checkBounds(t *testing.T, e Estimate, label string) {
	t.Helper()
	if e.Prob <= 0 || e.Prob >= 1 {
		t.Errorf("%s: prob %v outside (0,1)", label, e.Prob)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		t.Errorf("%s: confidence %v outside [0,1]", label, e.Confidence)
	}
}

func TestFairProbability_UnknownShapeIsNoOpinion(t *testing.T) {
	// Sport/shape mismatches and empty scores must yield no opinion, not a guess.
	cases := []struct {
		sport enums.Sport
		score models.DetailedScore
	}{
		{enums.Football, models.DetailedScore{}},
		{enums.Football, models.DetailedScore{Tennis: &models.TennisScore{Sets1: 1}}},
		{enums.Sport("korfball"), models.DetailedScore{Football: &models.FootballScore{Goals1: 3}}},
		{enums.Hockey, models.DetailedScore{}},
	}
	for _, c := range cases {
		e := FairProbability(c.sport, c.score)
		if e.Confidence != 0 || e.Leader != 0 {
			t.Errorf("sport %s: expected no opinion, got %+v", c.sport, e)
		}
		checkBounds(t, e, string(c.sport))
	}
}

func TestFootball_LateLeadBeatsEarlyLead(t *testing.T) {
	early := FairProbability(enums.Football, models.DetailedScore{
		Football: &models.FootballScore{Goals1: 1, Goals2: 0, Minute: 10, Period: 1},
	})
	late := FairProbability(enums.Football, models.DetailedScore{
		Football: &models.FootballScore{Goals1: 1, Goals2: 0, Minute: 85, Period: 2},
	})
	if late.Prob <= early.Prob {
		t.Errorf("late lead %v should be worth more than early lead %v", late.Prob, early.Prob)
	}
	if late.Confidence <= early.Confidence {
		t.Errorf("late confidence %v should exceed early %v", late.Confidence, early.Confidence)
	}
	if early.Leader != 1 || late.Leader != 1 {
		t.Error("leader should be side 1")
	}
}

func TestFootball_OneNilAtSeventy(t *testing.T) {
	e := FairProbability(enums.Football, models.DetailedScore{
		Football: &models.FootballScore{Goals1: 1, Goals2: 0, Minute: 70, Period: 2},
	})
	// The home side up a goal at minute 70 should be strongly favoured.
	if e.Prob < 0.70 || e.Prob > 0.90 {
		t.Errorf("prob = %v, want roughly 0.78", e.Prob)
	}
}

func TestTennis_SetLeadAndMatchPoint(t *testing.T) {
	oneSet := FairProbability(enums.Tennis, models.DetailedScore{
		Tennis: &models.TennisScore{Sets1: 1, Sets2: 0, BestOf: 3},
	})
	if oneSet.Leader != 1 || oneSet.Prob <= 0.55 {
		t.Errorf("set lead should favour side 1: %+v", oneSet)
	}

	// One set up in a best of three is one set from the match.
	level := FairProbability(enums.Tennis, models.DetailedScore{
		Tennis: &models.TennisScore{Sets1: 1, Sets2: 1, Games1: 3, Games2: 2, BestOf: 3},
	})
	if oneSet.Confidence <= level.Confidence {
		t.Errorf("set lead confidence %v should exceed level-score confidence %v",
			oneSet.Confidence, level.Confidence)
	}
}

func TestTennis_BreakSituationAddsConfidence(t *testing.T) {
	serving := FairProbability(enums.Tennis, models.DetailedScore{
		Tennis: &models.TennisScore{Games1: 4, Games2: 2, Serving: 1, BestOf: 3},
	})
	broken := FairProbability(enums.Tennis, models.DetailedScore{
		Tennis: &models.TennisScore{Games1: 4, Games2: 2, Serving: 2, BestOf: 3},
	})
	if broken.Confidence <= serving.Confidence {
		t.Errorf("game lead on opponent serve %v should outweigh own serve %v",
			broken.Confidence, serving.Confidence)
	}
}

func TestBasketball_LeadScaledByRemainingTime(t *testing.T) {
	firstQuarter := FairProbability(enums.Basketball, models.DetailedScore{
		Basketball: &models.BasketballScore{Points1: 60, Points2: 50, Quarter: 1, SecondsLeft: 300},
	})
	fourthQuarter := FairProbability(enums.Basketball, models.DetailedScore{
		Basketball: &models.BasketballScore{Points1: 100, Points2: 90, Quarter: 4, SecondsLeft: 120},
	})
	if fourthQuarter.Prob <= firstQuarter.Prob {
		t.Errorf("same lead late %v should beat early %v", fourthQuarter.Prob, firstQuarter.Prob)
	}
}

func TestEsports_MatchPointNearCertainty(t *testing.T) {
	// 12-6 on the deciding map of a bo3: one round from the series.
	matchPoint := FairProbability(enums.CS, models.DetailedScore{
		Esports: &models.EsportsScore{Maps1: 1, Maps2: 1, BestOf: 3, Rounds1: 12, Rounds2: 6, RoundTarget: 13},
	})
	if matchPoint.Prob < 0.95 {
		t.Errorf("match point prob = %v, want >= 0.95", matchPoint.Prob)
	}

	midMap := FairProbability(enums.CS, models.DetailedScore{
		Esports: &models.EsportsScore{Maps1: 0, Maps2: 0, BestOf: 3, Rounds1: 8, Rounds2: 6, RoundTarget: 13},
	})
	if midMap.Prob >= matchPoint.Prob {
		t.Errorf("mid-map lead %v should be worth less than match point %v", midMap.Prob, matchPoint.Prob)
	}
	checkBounds(t, midMap, "cs mid-map")
}

func TestModels_TotalOnGarbage(t *testing.T) {
	// Arbitrary garbage must neither panic nor escape (0,1).
	garbage := []models.DetailedScore{
		{Tennis: &models.TennisScore{Sets1: -5, Sets2: 99, Games1: -1, Games2: 800, Points1: -40, Points2: 1000, BestOf: -3, Serving: 9}},
		{Football: &models.FootballScore{Goals1: -2, Goals2: 500, Minute: -10, Period: 99}},
		{Football: &models.FootballScore{Goals1: 9999, Minute: 999999}},
		{Basketball: &models.BasketballScore{Points1: -1, Points2: -1, Quarter: -4, SecondsLeft: -100}},
		{Esports: &models.EsportsScore{Maps1: -1, Maps2: 42, BestOf: 100, Rounds1: -7, Rounds2: 7000, RoundTarget: -13}},
	}
	sports := []enums.Sport{enums.Tennis, enums.Football, enums.Football, enums.Basketball, enums.CS}
	for i, score := range garbage {
		e := FairProbability(sports[i], score)
		checkBounds(t, e, string(sports[i]))
	}
}
