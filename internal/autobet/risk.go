package autobet

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nvoloshin/betfuse/internal/ledger"
	"github.com/nvoloshin/betfuse/internal/pkg/config"
)

// ErrInflightFull signals that the submitted-but-unconfirmed cap is
// reached. Unlike a policy rejection the opportunity is deferred, not
// dropped: the caller retries once capacity frees up.
var ErrInflightFull = errors.New("autobet: inflight limit reached")

// Reservation is everything the risk checks need about a candidate bet.
type Reservation struct {
	DecisionID string
	Condition  string
	MatchKey   string
	Sport      string
	Stake      decimal.Decimal
	Price      float64
	Edge       float64
}

type openBet struct {
	decisionID   string
	conditionKey string
	matchKey     string
	sport        string
	stake        decimal.Decimal
	edge         float64
	price        float64
	confirmed    bool
}

// RiskState owns bankroll, exposure accumulators, the per-condition
// dedup set and the circuit breakers. All mutation happens under one
// mutex so the dedup check and the exposure-cap check commit together.
type RiskState struct {
	cfg config.AutoBetConfig

	mu       sync.Mutex
	bankroll decimal.Decimal

	// open bets keyed by decision id, plus the dedup index by condition.
	open        map[string]*openBet
	byCondition map[string]*openBet
	inflight    int // submitted, not yet confirmed

	matchExposure map[string]decimal.Decimal
	sportExposure map[string]decimal.Decimal

	day           string // UTC trading day the daily counters belong to
	wageredToday  decimal.Decimal
	returnedToday decimal.Decimal

	lossStreak    int
	cooldownUntil time.Time

	settled map[string]bool // decision ids whose settlement was applied
}

// NewRiskState starts from the configured initial bankroll.
func NewRiskState(cfg config.AutoBetConfig) *RiskState {
	return &RiskState{
		cfg:           cfg,
		bankroll:      decimal.NewFromFloat(cfg.InitialBankroll),
		open:          make(map[string]*openBet),
		byCondition:   make(map[string]*openBet),
		matchExposure: make(map[string]decimal.Decimal),
		sportExposure: make(map[string]decimal.Decimal),
		settled:       make(map[string]bool),
	}
}

// Restore folds an audit trail back into the state after a restart.
func (r *RiskState) Restore(summary ledger.ReplaySummary, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bankroll = decimal.NewFromFloat(r.cfg.InitialBankroll).Add(summary.RealizedPnL)
	r.lossStreak = summary.LossStreak
	if r.lossStreak >= r.cfg.LossStreakLimit && r.cfg.LossStreakLimit > 0 {
		r.cooldownUntil = summary.LastLossAt.Add(r.cfg.LossStreakPause.Std())
	}
	for condition, decisionID := range summary.OpenConditions {
		bet := &openBet{
			decisionID:   decisionID,
			conditionKey: condition,
			stake:        summary.OpenStakes[decisionID],
			confirmed:    true, // unknown poll state after restart; do not hold an inflight slot
		}
		r.open[decisionID] = bet
		r.byCondition[condition] = bet
	}
	for sport, stake := range summary.SportExposure {
		r.sportExposure[sport] = stake
	}
	r.day = tradingDay(now)
	// Daily totals carry over only when the trail ends on the current
	// trading day; otherwise the counters start the day at zero. This
	// keeps a tripped daily-loss breaker tripped across a restart.
	if summary.Day == r.day {
		r.wageredToday = summary.WageredToday
		r.returnedToday = summary.ReturnedToday
	}
}

// Bankroll returns the current bankroll.
func (r *RiskState) Bankroll() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bankroll
}

// InCooldown reports whether the loss-streak pause is active.
func (r *RiskState) InCooldown(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.Before(r.cooldownUntil)
}

// Inflight returns the submitted-but-unconfirmed count.
func (r *RiskState) Inflight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight
}

// OpenExposure sums the stakes of all open bets.
func (r *RiskState) OpenExposure() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openExposureLocked()
}

func (r *RiskState) openExposureLocked() decimal.Decimal {
	total := decimal.Zero
	for _, bet := range r.open {
		total = total.Add(bet.stake)
	}
	return total
}

// SuggestStake sizes a bet as a fraction of the current bankroll.
func (r *RiskState) SuggestStake() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bankroll.Mul(decimal.NewFromFloat(r.cfg.StakeFraction)).Round(2)
}

// Reserve runs policy steps two through seven atomically and, if they
// all pass, commits the stake into every exposure accumulator. A
// *PolicyError return is a drop; ErrInflightFull is a deferral.
func (r *RiskState) Reserve(res Reservation, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDayLocked(now)

	// Dedup: at most one open decision per underlying market. A re-bet
	// is allowed only when enabled and only on a strictly growing edge.
	if prev, ok := r.byCondition[res.Condition]; ok {
		if !r.cfg.RebetEnabled {
			return rejected(ReasonDuplicateCondition)
		}
		if res.Edge < prev.edge+r.cfg.RebetMinEdgeGrowth {
			return rejected(ReasonDuplicateCondition)
		}
	}

	if r.cfg.MaxInflight > 0 && r.inflight >= r.cfg.MaxInflight {
		return ErrInflightFull
	}

	if reason := r.exposureReasonLocked(res); reason != "" {
		return rejected(reason)
	}

	// Daily-loss circuit breaker.
	if r.cfg.DailyLossLimit > 0 {
		loss := r.wageredToday.Sub(r.returnedToday)
		if loss.GreaterThan(decimal.NewFromFloat(r.cfg.DailyLossLimit)) {
			return rejected(ReasonDailyLossLimit)
		}
	}

	if r.lossStreak >= r.cfg.LossStreakLimit && r.cfg.LossStreakLimit > 0 && now.Before(r.cooldownUntil) {
		return rejected(ReasonLossStreak)
	}

	if r.bankroll.LessThan(decimal.NewFromFloat(r.cfg.MinBankroll)) {
		return rejected(ReasonBankrollFloor)
	}

	// Commit.
	bet := &openBet{
		decisionID:   res.DecisionID,
		conditionKey: res.Condition,
		matchKey:     res.MatchKey,
		sport:        res.Sport,
		stake:        res.Stake,
		edge:         res.Edge,
		price:        res.Price,
	}
	r.open[res.DecisionID] = bet
	r.byCondition[res.Condition] = bet
	r.inflight++
	r.matchExposure[res.MatchKey] = r.matchExposure[res.MatchKey].Add(res.Stake)
	r.sportExposure[res.Sport] = r.sportExposure[res.Sport].Add(res.Stake)
	r.wageredToday = r.wageredToday.Add(res.Stake)
	return nil
}

// exposureReasonLocked checks every cap simultaneously against the
// current bankroll; all must pass.
func (r *RiskState) exposureReasonLocked(res Reservation) string {
	frac := func(f float64) decimal.Decimal {
		return r.bankroll.Mul(decimal.NewFromFloat(f))
	}
	if r.cfg.MaxBetFraction > 0 && res.Stake.GreaterThan(frac(r.cfg.MaxBetFraction)) {
		return ReasonStakeCap
	}
	if r.cfg.MaxConditionFraction > 0 {
		current := decimal.Zero
		if prev, ok := r.byCondition[res.Condition]; ok {
			current = prev.stake
		}
		if current.Add(res.Stake).GreaterThan(frac(r.cfg.MaxConditionFraction)) {
			return ReasonConditionCap
		}
	}
	if r.cfg.MaxMatchFraction > 0 &&
		r.matchExposure[res.MatchKey].Add(res.Stake).GreaterThan(frac(r.cfg.MaxMatchFraction)) {
		return ReasonMatchCap
	}
	if r.cfg.MaxSportFraction > 0 &&
		r.sportExposure[res.Sport].Add(res.Stake).GreaterThan(frac(r.cfg.MaxSportFraction)) {
		return ReasonSportCap
	}
	if r.cfg.MaxDailyFraction > 0 &&
		r.wageredToday.Add(res.Stake).GreaterThan(frac(r.cfg.MaxDailyFraction)) {
		return ReasonDailyCap
	}
	return ""
}

// Release undoes a reservation that never became a live bet (executor
// rejection, failed state gate, submit error).
func (r *RiskState) Release(decisionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bet, ok := r.open[decisionID]
	if !ok {
		return
	}
	delete(r.open, decisionID)
	if cur, ok := r.byCondition[bet.conditionKey]; ok && cur.decisionID == decisionID {
		delete(r.byCondition, bet.conditionKey)
	}
	if !bet.confirmed {
		r.inflight--
	}
	r.matchExposure[bet.matchKey] = r.matchExposure[bet.matchKey].Sub(bet.stake)
	r.sportExposure[bet.sport] = r.sportExposure[bet.sport].Sub(bet.stake)
	// The stake never left: it does not count against the daily total.
	r.wageredToday = r.wageredToday.Sub(bet.stake)
}

// Confirm marks a submitted bet as accepted by the venue, freeing its
// inflight slot. Exposure stays until settlement.
func (r *RiskState) Confirm(decisionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bet, ok := r.open[decisionID]
	if !ok || bet.confirmed {
		return
	}
	bet.confirmed = true
	r.inflight--
}

// Settlement outcomes.
type SettleOutcome string

const (
	SettleWon      SettleOutcome = "won"
	SettleLost     SettleOutcome = "lost"
	SettleCanceled SettleOutcome = "canceled"
)

// Settle applies a terminal outcome. Idempotent: the same settlement
// applied twice never double-counts P&L or the loss streak.
func (r *RiskState) Settle(decisionID string, outcome SettleOutcome, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled[decisionID] {
		return false
	}
	bet, ok := r.open[decisionID]
	if !ok {
		return false
	}
	r.settled[decisionID] = true
	r.rollDayLocked(now)

	delete(r.open, decisionID)
	if cur, ok := r.byCondition[bet.conditionKey]; ok && cur.decisionID == decisionID {
		delete(r.byCondition, bet.conditionKey)
	}
	if !bet.confirmed {
		r.inflight--
	}
	r.matchExposure[bet.matchKey] = r.matchExposure[bet.matchKey].Sub(bet.stake)
	r.sportExposure[bet.sport] = r.sportExposure[bet.sport].Sub(bet.stake)

	switch outcome {
	case SettleWon:
		payout := bet.stake.Mul(decimal.NewFromFloat(bet.price))
		r.bankroll = r.bankroll.Add(payout.Sub(bet.stake))
		r.returnedToday = r.returnedToday.Add(payout)
		r.lossStreak = 0
	case SettleLost:
		r.bankroll = r.bankroll.Sub(bet.stake)
		r.lossStreak++
		if r.cfg.LossStreakLimit > 0 && r.lossStreak >= r.cfg.LossStreakLimit {
			r.cooldownUntil = now.Add(r.cfg.LossStreakPause.Std())
		}
	case SettleCanceled:
		// Stake returned, nothing won or lost.
		r.returnedToday = r.returnedToday.Add(bet.stake)
	}
	return true
}

func (r *RiskState) rollDayLocked(now time.Time) {
	day := tradingDay(now)
	if r.day == day {
		return
	}
	r.day = day
	r.wageredToday = decimal.Zero
	r.returnedToday = decimal.Zero
}

func tradingDay(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}
