package autobet

import (
	"fmt"

	"github.com/nvoloshin/betfuse/internal/pkg/config"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

// Named rejection reasons. Every failed policy check logs exactly one
// of these; they also end up in the audit trail.
const (
	ReasonEdgeBelowMinimum   = "edge below minimum"
	ReasonOddsOutOfBounds    = "odds outside bounds"
	ReasonDuplicateCondition = "duplicate condition"
	ReasonInflightLimit      = "inflight limit"
	ReasonStakeCap           = "stake exposure cap"
	ReasonConditionCap       = "condition exposure cap"
	ReasonMatchCap           = "match exposure cap"
	ReasonSportCap           = "sport exposure cap"
	ReasonDailyCap           = "daily exposure cap"
	ReasonDailyLossLimit     = "daily loss limit"
	ReasonLossStreak         = "loss streak cooldown"
	ReasonBankrollFloor      = "bankroll floor"
	ReasonMarketClosed       = "market closed"
	ReasonDisabled           = "auto-betting disabled"
)

// PolicyError carries the named reason a check failed with.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy rejection: %s", e.Reason)
}

func rejected(reason string) *PolicyError {
	return &PolicyError{Reason: reason}
}

// boundsFor resolves the edge/odds limits for an opportunity. Lookup
// order: "sport/signal" override, then "sport" override, then globals.
// A zero override field inherits the global value.
func boundsFor(cfg config.AutoBetConfig, opp models.Opportunity) config.PolicyBounds {
	resolved := config.PolicyBounds{
		MinEdgePercent: cfg.MinEdgePercent,
		OddsFloor:      cfg.OddsFloor,
		OddsCeiling:    cfg.OddsCeiling,
	}
	apply := func(o config.PolicyBounds) {
		if o.MinEdgePercent != 0 {
			resolved.MinEdgePercent = o.MinEdgePercent
		}
		if o.OddsFloor != 0 {
			resolved.OddsFloor = o.OddsFloor
		}
		if o.OddsCeiling != 0 {
			resolved.OddsCeiling = o.OddsCeiling
		}
	}
	if o, ok := cfg.Overrides[opp.Sport]; ok {
		apply(o)
	}
	if o, ok := cfg.Overrides[opp.Sport+"/"+string(opp.Signal)]; ok {
		apply(o)
	}
	return resolved
}

// checkBounds is policy step one: per-sport/per-signal minimum edge and
// odds floor/ceiling. Pure on the opportunity, no risk state involved.
func checkBounds(cfg config.AutoBetConfig, opp models.Opportunity) *PolicyError {
	b := boundsFor(cfg, opp)
	if opp.EdgePercent < b.MinEdgePercent {
		return rejected(ReasonEdgeBelowMinimum)
	}
	if opp.Price < b.OddsFloor || opp.Price > b.OddsCeiling {
		return rejected(ReasonOddsOutOfBounds)
	}
	return nil
}
