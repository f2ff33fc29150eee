package autobet

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoloshin/betfuse/internal/ledger"
	"github.com/nvoloshin/betfuse/internal/pkg/config"
)

func riskConfig() config.AutoBetConfig {
	return config.AutoBetConfig{
		Enabled:              true,
		MinEdgePercent:       18,
		OddsFloor:            1.2,
		OddsCeiling:          3.5,
		MaxInflight:          4,
		StakeFraction:        0.02,
		MaxBetFraction:       0.05,
		MaxMatchFraction:     0.08,
		MaxConditionFraction: 0.05,
		MaxSportFraction:     0.20,
		MaxDailyFraction:     0.30,
		DailyLossLimit:       150,
		LossStreakLimit:      3,
		LossStreakPause:      config.Duration(2 * time.Hour),
		MinBankroll:          100,
		InitialBankroll:      1000,
	}
}

func reservation(id, condition string, stake float64) Reservation {
	return Reservation{
		DecisionID: id,
		Condition:  condition,
		MatchKey:   "football|hades|heist",
		Sport:      "football",
		Stake:      decimal.NewFromFloat(stake),
		Price:      1.82,
		Edge:       23,
	}
}

func TestReserve_DuplicateCondition(t *testing.T) {
	r := NewRiskState(riskConfig())
	now := time.Now()

	require.NoError(t, r.Reserve(reservation("d1", "c1", 20), now))

	err := r.Reserve(reservation("d2", "c1", 20), now)
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ReasonDuplicateCondition, perr.Reason)
}

func TestReserve_RebetAllowedOnGrowingEdge(t *testing.T) {
	cfg := riskConfig()
	cfg.RebetEnabled = true
	cfg.RebetMinEdgeGrowth = 5
	r := NewRiskState(cfg)
	now := time.Now()

	first := reservation("d1", "c1", 20)
	first.Edge = 20
	require.NoError(t, r.Reserve(first, now))

	flat := reservation("d2", "c1", 20)
	flat.Edge = 22 // grew, but less than the required 5 points
	var perr *PolicyError
	require.ErrorAs(t, r.Reserve(flat, now), &perr)
	assert.Equal(t, ReasonDuplicateCondition, perr.Reason)

	grown := reservation("d3", "c1", 20)
	grown.Edge = 26
	assert.NoError(t, r.Reserve(grown, now))
}

func TestReserve_InflightDefers(t *testing.T) {
	cfg := riskConfig()
	cfg.MaxInflight = 2
	r := NewRiskState(cfg)
	now := time.Now()

	require.NoError(t, r.Reserve(reservation("d1", "c1", 10), now))
	require.NoError(t, r.Reserve(reservation("d2", "c2", 10), now))

	err := r.Reserve(reservation("d3", "c3", 10), now)
	assert.ErrorIs(t, err, ErrInflightFull)

	// Confirmation frees the slot.
	r.Confirm("d1")
	assert.NoError(t, r.Reserve(reservation("d3", "c3", 10), now))
}

func TestReserve_ExposureCapLeavesStateUnchanged(t *testing.T) {
	r := NewRiskState(riskConfig())
	now := time.Now()

	// 60 > 5% of 1000: single-bet cap.
	err := r.Reserve(reservation("d1", "c1", 60), now)
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ReasonStakeCap, perr.Reason)

	assert.True(t, r.OpenExposure().IsZero())
	assert.Equal(t, 0, r.Inflight())
	// The condition is not marked as bet either.
	assert.NoError(t, r.Reserve(reservation("d2", "c1", 20), now))
}

func TestReserve_SportCapAcrossBets(t *testing.T) {
	cfg := riskConfig()
	cfg.MaxInflight = 20
	cfg.MaxDailyFraction = 1
	r := NewRiskState(cfg)
	now := time.Now()

	// 200 = 20% of 1000 fills the sport cap across five bets.
	for i := 0; i < 5; i++ {
		res := reservation(string(rune('a'+i)), "c"+string(rune('a'+i)), 40)
		res.MatchKey = "football|m" + string(rune('a'+i)) + "|x"
		require.NoError(t, r.Reserve(res, now))
	}

	over := reservation("z", "cz", 40)
	over.MatchKey = "football|mz|x"
	var perr *PolicyError
	require.ErrorAs(t, r.Reserve(over, now), &perr)
	assert.Equal(t, ReasonSportCap, perr.Reason)
}

func TestSettle_WonUpdatesBankrollAndResetsStreak(t *testing.T) {
	r := NewRiskState(riskConfig())
	now := time.Now()

	require.NoError(t, r.Reserve(reservation("d1", "c1", 20), now))
	r.Confirm("d1")

	require.True(t, r.Settle("d1", SettleWon, now))
	// 20 at 1.82 returns 16.40 profit.
	want := decimal.NewFromFloat(1016.40)
	assert.True(t, r.Bankroll().Equal(want), "bankroll = %s", r.Bankroll())
	assert.True(t, r.OpenExposure().IsZero())
}

func TestSettle_Idempotent(t *testing.T) {
	r := NewRiskState(riskConfig())
	now := time.Now()

	require.NoError(t, r.Reserve(reservation("d1", "c1", 20), now))
	r.Confirm("d1")

	require.True(t, r.Settle("d1", SettleLost, now))
	assert.False(t, r.Settle("d1", SettleLost, now), "second settlement must be a no-op")

	want := decimal.NewFromInt(980)
	assert.True(t, r.Bankroll().Equal(want), "bankroll = %s", r.Bankroll())
}

func TestLossStreakCooldown(t *testing.T) {
	cfg := riskConfig()
	cfg.MaxDailyFraction = 1
	cfg.DailyLossLimit = 10000
	r := NewRiskState(cfg)
	now := time.Now()

	for i := 0; i < 3; i++ {
		id := "d" + string(rune('a'+i))
		require.NoError(t, r.Reserve(reservation(id, "c"+id, 20), now))
		r.Confirm(id)
		require.True(t, r.Settle(id, SettleLost, now))
	}
	require.True(t, r.InCooldown(now))

	var perr *PolicyError
	require.ErrorAs(t, r.Reserve(reservation("dx", "cx", 20), now), &perr)
	assert.Equal(t, ReasonLossStreak, perr.Reason)

	// Cooldown expires with time.
	later := now.Add(3 * time.Hour)
	assert.NoError(t, r.Reserve(reservation("dx", "cx", 20), later))
}

func TestDailyLossLimit_ResetsNextDay(t *testing.T) {
	cfg := riskConfig()
	cfg.MaxDailyFraction = 1
	cfg.DailyLossLimit = 50
	cfg.LossStreakLimit = 100
	r := NewRiskState(cfg)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Lose 60 over three bets: beyond the 50 daily limit.
	for i := 0; i < 3; i++ {
		id := "d" + string(rune('a'+i))
		require.NoError(t, r.Reserve(reservation(id, "c"+id, 20), now))
		r.Confirm(id)
		require.True(t, r.Settle(id, SettleLost, now))
	}

	var perr *PolicyError
	require.ErrorAs(t, r.Reserve(reservation("dx", "cx", 20), now), &perr)
	assert.Equal(t, ReasonDailyLossLimit, perr.Reason)

	// The next trading day starts clean.
	nextDay := now.Add(24 * time.Hour)
	assert.NoError(t, r.Reserve(reservation("dx", "cx", 20), nextDay))
}

func TestRestore_DailyLossBreakerSurvivesRestart(t *testing.T) {
	cfg := riskConfig()
	cfg.MaxDailyFraction = 1
	cfg.DailyLossLimit = 30
	cfg.LossStreakLimit = 100
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Two 20-unit losses push the day 40 past breakeven, beyond the
	// 30-unit limit.
	recordsFor := func(id, condition string, at time.Time) []ledger.Record {
		submitted := ledger.NewRecord(id, condition, ledger.EventSubmitted, at)
		submitted.Sport = "football"
		submitted.Stake = decimal.NewFromInt(20)
		submitted.Price = 1.82
		lost := ledger.NewRecord(id, condition, ledger.EventSettledLost, at.Add(time.Minute))
		lost.Sport = "football"
		lost.Stake = decimal.NewFromInt(20)
		lost.Price = 1.82
		return []ledger.Record{submitted, lost}
	}
	recs := append(recordsFor("d1", "c1", now), recordsFor("d2", "c2", now.Add(2*time.Minute))...)

	restored := NewRiskState(cfg)
	restored.Restore(ledger.Replay(recs), now.Add(10*time.Minute))

	var perr *PolicyError
	require.ErrorAs(t, restored.Reserve(reservation("d3", "c3", 20), now.Add(10*time.Minute)), &perr)
	assert.Equal(t, ReasonDailyLossLimit, perr.Reason)

	// Restarting the morning after, the counters start the day clean.
	nextDay := NewRiskState(cfg)
	nextDay.Restore(ledger.Replay(recs), now.Add(24*time.Hour))
	assert.NoError(t, nextDay.Reserve(reservation("d3", "c3", 20), now.Add(24*time.Hour)))
}

func TestReserve_BankrollFloor(t *testing.T) {
	cfg := riskConfig()
	cfg.InitialBankroll = 90 // below the 100 floor
	r := NewRiskState(cfg)

	var perr *PolicyError
	require.ErrorAs(t, r.Reserve(reservation("d1", "c1", 1), time.Now()), &perr)
	assert.Equal(t, ReasonBankrollFloor, perr.Reason)
}
