package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ReplaySummary is the aggregate state folded out of an audit trail.
// It is what the risk engine needs to resume after a restart: money
// still at risk, realized P&L, and the current loss streak.
type ReplaySummary struct {
	// OpenStakes holds stake per decision id that is submitted or
	// confirmed but not yet settled or rejected.
	OpenStakes map[string]decimal.Decimal
	// OpenConditions maps condition key -> decision id for open bets,
	// used to re-arm duplicate-condition suppression.
	OpenConditions map[string]string
	// SportExposure is open stake per sport.
	SportExposure map[string]decimal.Decimal

	RealizedPnL decimal.Decimal
	LossStreak  int
	LastLossAt  time.Time
	Submitted   int
	Confirmed   int
	Rejected    int
	SettledWon  int
	SettledLost int
	SettledVoid int

	// Day is the UTC trading day (yyyy-mm-dd) of the newest record
	// replayed; the daily totals below belong to that day only, so the
	// daily-loss breaker survives a mid-day restart.
	Day           string
	WageredToday  decimal.Decimal
	ReturnedToday decimal.Decimal
}

// OpenExposure sums all stakes still at risk.
func (s ReplaySummary) OpenExposure() decimal.Decimal {
	total := decimal.Zero
	for _, stake := range s.OpenStakes {
		total = total.Add(stake)
	}
	return total
}

type decisionState struct {
	condition string
	sport     string
	stake     decimal.Decimal
	price     float64
	open      bool
	seen      map[Event]bool
}

// Replay folds records into a summary. Records are processed in causal
// order per decision id; duplicate events for the same decision are
// ignored, so replaying an at-least-once trail stays idempotent.
func Replay(recs []Record) ReplaySummary {
	sorted := make([]Record, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
	})

	summary := ReplaySummary{
		OpenStakes:     make(map[string]decimal.Decimal),
		OpenConditions: make(map[string]string),
		SportExposure:  make(map[string]decimal.Decimal),
	}
	decisions := make(map[string]*decisionState)

	state := func(rec Record) *decisionState {
		ds, ok := decisions[rec.DecisionID]
		if !ok {
			ds = &decisionState{seen: make(map[Event]bool)}
			decisions[rec.DecisionID] = ds
		}
		if ds.condition == "" {
			ds.condition = rec.Condition
		}
		if ds.sport == "" {
			ds.sport = rec.Sport
		}
		if !rec.Stake.IsZero() {
			ds.stake = rec.Stake
		}
		if rec.Price != 0 {
			ds.price = rec.Price
		}
		return ds
	}

	open := func(id string, ds *decisionState) {
		ds.open = true
		summary.OpenStakes[id] = ds.stake
		summary.OpenConditions[ds.condition] = id
		summary.SportExposure[ds.sport] = summary.SportExposure[ds.sport].Add(ds.stake)
	}
	release := func(id string, ds *decisionState) {
		if !ds.open {
			return
		}
		ds.open = false
		delete(summary.OpenStakes, id)
		delete(summary.OpenConditions, ds.condition)
		summary.SportExposure[ds.sport] = summary.SportExposure[ds.sport].Sub(ds.stake)
	}

	for _, rec := range sorted {
		// Daily totals reset on a calendar-day boundary, same as the
		// live counters.
		if day := rec.RecordedAt.UTC().Format("2006-01-02"); day != summary.Day {
			summary.Day = day
			summary.WageredToday = decimal.Zero
			summary.ReturnedToday = decimal.Zero
		}

		ds := state(rec)
		if ds.seen[rec.Event] {
			continue
		}
		ds.seen[rec.Event] = true

		switch rec.Event {
		case EventProposed:
			// Informational only; money moves on submit.
		case EventSubmitted:
			summary.Submitted++
			summary.WageredToday = summary.WageredToday.Add(ds.stake)
			open(rec.DecisionID, ds)
		case EventConfirmed:
			summary.Confirmed++
		case EventRejected:
			// No money moved: release the reservation, no P&L impact.
			summary.Rejected++
			if ds.open {
				summary.WageredToday = summary.WageredToday.Sub(ds.stake)
			}
			release(rec.DecisionID, ds)
		case EventSettledWon:
			summary.SettledWon++
			release(rec.DecisionID, ds)
			profit := ds.stake.Mul(decimal.NewFromFloat(ds.price - 1))
			summary.RealizedPnL = summary.RealizedPnL.Add(profit)
			summary.ReturnedToday = summary.ReturnedToday.Add(ds.stake.Mul(decimal.NewFromFloat(ds.price)))
			summary.LossStreak = 0
		case EventSettledLost:
			summary.SettledLost++
			release(rec.DecisionID, ds)
			summary.RealizedPnL = summary.RealizedPnL.Sub(ds.stake)
			summary.LossStreak++
			summary.LastLossAt = rec.RecordedAt
		case EventSettledCanceled:
			summary.SettledVoid++
			release(rec.DecisionID, ds)
			summary.ReturnedToday = summary.ReturnedToday.Add(ds.stake)
		}
	}
	return summary
}
