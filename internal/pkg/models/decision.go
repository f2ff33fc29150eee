package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DecisionStatus is the lifecycle of one bet decision.
//
// Proposed -> Submitted -> {Confirmed | Rejected} -> Settled{Won|Lost|Canceled} -> Closed
type DecisionStatus string

const (
	DecisionProposed  DecisionStatus = "proposed"
	DecisionSubmitted DecisionStatus = "submitted"
	DecisionConfirmed DecisionStatus = "confirmed"
	DecisionRejected  DecisionStatus = "rejected"
	DecisionWon       DecisionStatus = "won"
	DecisionLost      DecisionStatus = "lost"
	DecisionCanceled  DecisionStatus = "canceled"
	DecisionClosed    DecisionStatus = "closed"
)

// Terminal reports whether the status ends the money movement for the bet.
// Rejected is terminal with no money moved; won/lost/canceled settle it.
func (s DecisionStatus) Terminal() bool {
	switch s {
	case DecisionRejected, DecisionWon, DecisionLost, DecisionCanceled, DecisionClosed:
		return true
	default:
		return false
	}
}

// BetDecision is one auto-bet issued (or attempted) for an opportunity.
// Created exactly once per condition; the dedup set enforces that.
type BetDecision struct {
	ID          string          `json:"id"`
	Condition   string          `json:"condition"` // underlying market identity (dedup scope)
	Opportunity Opportunity     `json:"opportunity"`
	Stake       decimal.Decimal `json:"stake"`
	MinPrice    float64         `json:"min_price"` // lowest acceptable odds at execution
	Status      DecisionStatus  `json:"status"`
	ExternalID  string          `json:"external_id,omitempty"` // id on the execution venue
	Reason      string          `json:"reason,omitempty"`      // rejection reason, if any
	DecidedAt   time.Time       `json:"decided_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
